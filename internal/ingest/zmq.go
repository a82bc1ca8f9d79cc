// Package ingest subscribes to a node's ZMQ "hashblock" publisher, the
// Scheduler's non-blocking trigger to advance process_block, grounded
// on the original's zmq.SUB/NOBLOCK recv loop (stakepool.py
// checkBlocks, ~line 739-756) and transliterated onto
// github.com/pebbe/zmq4's socket API.
package ingest

import (
	"fmt"
	"syscall"

	zmq "github.com/pebbe/zmq4"
)

// HashBlockNotifier is a non-blocking ZMQ SUB socket subscribed to the
// node's "hashblock" topic.
type HashBlockNotifier struct {
	sock *zmq.Socket
}

// Dial connects a SUB socket to tcp://host:port and subscribes to the
// "hashblock" topic.
func Dial(host string, port int) (*HashBlockNotifier, error) {
	sock, err := zmq.NewSocket(zmq.SUB)
	if err != nil {
		return nil, fmt.Errorf("ingest: new zmq socket: %w", err)
	}
	if err := sock.Connect(fmt.Sprintf("%s:%d", host, port)); err != nil {
		sock.Close()
		return nil, fmt.Errorf("ingest: connect %s:%d: %w", host, port, err)
	}
	if err := sock.SetSubscribe("hashblock"); err != nil {
		sock.Close()
		return nil, fmt.Errorf("ingest: subscribe hashblock: %w", err)
	}
	return &HashBlockNotifier{sock: sock}, nil
}

func (n *HashBlockNotifier) Close() error {
	return n.sock.Close()
}

// Poll does a single non-blocking check for a pending "hashblock"
// notification. It returns ok=false (with no error) when nothing is
// pending, matching the original's catch of zmq.Again. On a match it
// drains the notification's two trailing frames (block hash, sequence
// number) — the Scheduler doesn't need their contents, since it always
// re-reads the node's current tip via getblockchaininfo, but the
// frames must still be read off the socket or the next recv desyncs.
func (n *HashBlockNotifier) Poll() (ok bool, err error) {
	topic, err := n.sock.Recv(zmq.DONTWAIT)
	if err != nil {
		if zmq.AsErrno(err) == zmq.Errno(syscall.EAGAIN) { // nothing pending
			return false, nil
		}
		return false, fmt.Errorf("ingest: recv: %w", err)
	}
	if topic != "hashblock" {
		return false, nil
	}
	if _, err := n.sock.Recv(0); err != nil {
		return false, fmt.Errorf("ingest: recv block hash frame: %w", err)
	}
	if _, err := n.sock.Recv(0); err != nil {
		return false, fmt.Errorf("ingest: recv sequence frame: %w", err)
	}
	return true, nil
}
