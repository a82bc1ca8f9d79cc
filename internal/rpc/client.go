// Package rpc is a typed wrapper over the node's JSON-RPC 1.0 interface.
// It surfaces node errors verbatim and de-duplicates concurrent identical
// calls with singleflight; retry policy belongs to the caller.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrKind classifies an RPC failure so callers can decide whether to
// retry, abort the current batch, or treat it as fatal at startup.
type ErrKind int

const (
	// ErrConnect covers dial/TLS failures — the node could not be reached.
	ErrConnect ErrKind = iota
	// ErrHTTP covers a non-2xx HTTP status with no parseable RPC error.
	ErrHTTP
	// ErrParse covers a response body that is not valid JSON-RPC.
	ErrParse
	// ErrNode covers a well-formed JSON-RPC error returned by the node.
	ErrNode
)

func (k ErrKind) String() string {
	switch k {
	case ErrConnect:
		return "connect"
	case ErrHTTP:
		return "http"
	case ErrParse:
		return "parse"
	case ErrNode:
		return "node"
	default:
		return "unknown"
	}
}

// Error wraps an RPC failure with the method that produced it and a
// classification, per the error-kind design: transient RPC failures
// (connect, http) are retried only at startup; elsewhere the caller
// aborts its current step without committing.
type Error struct {
	Method string
	Kind   ErrKind
	Cause  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc %s: %s: %v", e.Method, e.Kind, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// request is a JSON-RPC 1.0 request envelope.
type request struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int64         `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

// response is a JSON-RPC 1.0 response envelope.
type response struct {
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *nodeError      `json:"error"`
}

type nodeError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *nodeError) Error() string {
	return fmt.Sprintf("node error %d: %s", e.Code, e.Message)
}

// Client is a stateless, concurrency-safe JSON-RPC 1.0 client. It may be
// shared read-only across the Scheduler and StatusServer threads.
type Client struct {
	baseURL    string
	user, pass string
	httpClient *http.Client
	requestID  int64
	group      singleflight.Group
}

// NewClient builds a client rooted at http://host:port.
func NewClient(host string, port int, user, pass string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    fmt.Sprintf("http://%s:%d", host, port),
		user:       user,
		pass:       pass,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// SetAuth overrides the basic-auth credentials, used after loading a
// node auth cookie that rotates across restarts.
func (c *Client) SetAuth(user, pass string) {
	c.user, c.pass = user, pass
}

// Call issues a single JSON-RPC request against the given wallet (root
// endpoint if wallet is empty), de-duplicating concurrent identical
// calls via singleflight.
func (c *Client) Call(ctx context.Context, wallet, method string, params []interface{}) (json.RawMessage, error) {
	id := atomic.AddInt64(&c.requestID, 1)
	req := request{JSONRPC: "1.0", ID: id, Method: method, Params: params}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &Error{Method: method, Kind: ErrParse, Cause: err}
	}

	// The request id is left out of the key so that identical concurrent
	// calls share one in-flight request.
	paramsKey, err := json.Marshal(params)
	if err != nil {
		return nil, &Error{Method: method, Kind: ErrParse, Cause: err}
	}
	sfKey := wallet + "|" + method + "|" + string(paramsKey)
	result, err, _ := c.group.Do(sfKey, func() (interface{}, error) {
		return c.do(ctx, wallet, method, body)
	})
	if err != nil {
		return nil, err
	}
	return result.(json.RawMessage), nil
}

func (c *Client) endpoint(wallet string) string {
	if wallet == "" {
		return c.baseURL
	}
	return c.baseURL + "/wallet/" + url.PathEscape(wallet)
}

func (c *Client) do(ctx context.Context, wallet, method string, body []byte) (interface{}, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(wallet), bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Method: method, Kind: ErrConnect, Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(c.user, c.pass)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &Error{Method: method, Kind: ErrConnect, Cause: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Method: method, Kind: ErrHTTP, Cause: err}
	}
	non2xx := resp.StatusCode < 200 || resp.StatusCode >= 300
	httpErr := &Error{Method: method, Kind: ErrHTTP, Cause: fmt.Errorf("status %d", resp.StatusCode)}
	if non2xx && len(respBody) == 0 {
		return nil, httpErr
	}

	var rpcResp response
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		if non2xx {
			return nil, httpErr
		}
		return nil, &Error{Method: method, Kind: ErrParse, Cause: err}
	}
	if rpcResp.Error != nil {
		return nil, &Error{Method: method, Kind: ErrNode, Cause: rpcResp.Error}
	}
	if non2xx {
		return nil, httpErr
	}
	return rpcResp.Result, nil
}

// callTo issues a call against the root endpoint and unmarshals the
// result into out.
func (c *Client) callTo(ctx context.Context, method string, params []interface{}, out interface{}) error {
	return c.callWalletTo(ctx, "", method, params, out)
}

func (c *Client) callWalletTo(ctx context.Context, wallet, method string, params []interface{}, out interface{}) error {
	raw, err := c.Call(ctx, wallet, method, params)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &Error{Method: method, Kind: ErrParse, Cause: err}
	}
	return nil
}
