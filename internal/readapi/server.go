package readapi

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tecnovert/particl-coldstakepool/internal/codec"
	"github.com/tecnovert/particl-coldstakepool/internal/config"
)

// Server is the StatusServer of §5/§6.3: a gin router over ReadAPI,
// exposing the HTML pages and JSON routes the original's
// http.server.HttpHandler served, generalized onto gin's
// context/handler idiom the way the teacher's internal/api package
// wires its own routes.
type Server struct {
	API    *ReadAPI
	Config *config.Settings
	Router *gin.Engine
}

// NewServer builds the router. gin.ReleaseMode is left to the caller
// (via gin.SetMode before calling NewServer), matching the teacher's
// own cmd/api/main.go convention of switching mode by environment
// before constructing the engine.
func NewServer(api *ReadAPI, cfg *config.Settings) *Server {
	s := &Server{API: api, Config: cfg, Router: gin.New()}
	s.Router.Use(gin.Recovery())
	s.Router.Use(s.corsMiddleware())

	s.Router.GET("/", s.pageIndex)
	s.Router.GET("/config", s.pageConfig)
	s.Router.GET("/address/:addr", s.pageAddress)
	s.Router.GET("/version", s.pageVersion)
	s.Router.GET("/voting", s.pageVoting)

	s.Router.GET("/json", s.jsonSummary)
	s.Router.GET("/json/address/:addr", s.jsonAddress)
	s.Router.GET("/json/metrics", s.jsonMetrics)
	s.Router.GET("/json/metrics/:code", s.jsonMetrics)
	s.Router.GET("/json/pending", s.jsonPending)
	s.Router.GET("/json/pending/:code", s.jsonPending)
	s.Router.GET("/json/version", s.jsonVersion)
	s.Router.GET("/json/voting", s.jsonVoting)
	return s
}

// corsMiddleware mirrors the original's putHeaders/do_OPTIONS: when
// allow_cors is set, every response (including preflight OPTIONS)
// carries Access-Control-Allow-Origin: *.
func (s *Server) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.Config.AllowCORS {
			c.Header("Access-Control-Allow-Origin", "*")
			if c.Request.Method == http.MethodOptions {
				c.Header("Access-Control-Allow-Headers", "*")
				c.AbortWithStatus(http.StatusOK)
				return
			}
		}
		c.Next()
	}
}

// checkManagementCode validates a :code path parameter against
// sha256(code || management_key_salt).hex() == management_key_hash,
// per §6.3. An empty code parameter (the bare /json/metrics route) is
// never valid — only an explicit, correct code unlocks the
// management-gated behavior (rebuild, expand_detail).
func (s *Server) checkManagementCode(code string) bool {
	if code == "" || s.Config.ManagementKeyHash == "" {
		return false
	}
	sum := sha256.Sum256([]byte(code + s.Config.ManagementKeySalt))
	got := hex.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(got), []byte(s.Config.ManagementKeyHash)) == 1
}

func jsonError(c *gin.Context, err error) {
	c.JSON(http.StatusOK, gin.H{"error": err.Error()})
}

// --- JSON routes ---

func (s *Server) jsonSummary(c *gin.Context) {
	summary, err := s.API.Summary(c.Request.Context())
	if err != nil {
		jsonError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) jsonAddress(c *gin.Context) {
	summary, err := s.API.AddressSummary(c.Request.Context(), c.Param("addr"))
	if err != nil {
		jsonError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"address":         summary.Address,
		"known":           summary.Known,
		"accumulated":     codec.FormatX16(summary.Accumulated),
		"reward_pending":  codec.FormatSatoshi(int64(summary.RewardPending)),
		"reward_paid_out": codec.FormatSatoshi(int64(summary.RewardPaidOut)),
		"last_staking":    codec.FormatSatoshi(int64(summary.LastStakeWeight)),
		"current_total":   codec.FormatSatoshi(int64(summary.CurrentTotal)),
	})
}

// jsonMetrics serves get_metrics() normally; a correct :code triggers
// rebuild_metrics() instead, per §6.3's management-code gate.
func (s *Server) jsonMetrics(c *gin.Context) {
	if code := c.Param("code"); code != "" {
		if !s.checkManagementCode(code) {
			jsonError(c, fmt.Errorf("unknown argument"))
			return
		}
		if err := s.API.RebuildMetrics(c.Request.Context()); err != nil {
			jsonError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"rebuilt": true})
		return
	}
	months, err := s.API.Metrics()
	if err != nil {
		jsonError(c, err)
		return
	}
	c.JSON(http.StatusOK, months)
}

// jsonPending serves get_pending(); a correct :code additionally
// requests the per-participant expand_detail breakdown.
func (s *Server) jsonPending(c *gin.Context) {
	expand := false
	if code := c.Param("code"); code != "" {
		if !s.checkManagementCode(code) {
			jsonError(c, fmt.Errorf("unknown argument"))
			return
		}
		expand = true
	}
	groups, participants, err := s.API.Pending(expand)
	if err != nil {
		jsonError(c, err)
		return
	}
	body := gin.H{"pending": groups}
	if expand {
		body["participants"] = participants
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) jsonVersion(c *gin.Context) {
	v, err := s.API.Versions(c.Request.Context())
	if err != nil {
		jsonError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (s *Server) jsonVoting(c *gin.Context) {
	v, err := s.API.VotingInfo(c.Request.Context())
	if err != nil {
		jsonError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// --- HTML routes ---
//
// The HTML pages are small, hand-built templates in the original's own
// style (http_server.py builds the same pages by string
// concatenation) — there is no templating library in this stack to
// reach for, and the original itself never used one.

func (s *Server) pageError(c *gin.Context, err error) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(
		"<!DOCTYPE html><html><head><title>Pool Error</title></head><body>"+
			"<p>Error: "+err.Error()+"</p><p><a href='/'>home</a></p></body></html>"))
}

func (s *Server) pageIndex(c *gin.Context) {
	ctx := c.Request.Context()
	summary, err := s.API.Summary(ctx)
	if err != nil {
		s.pageError(c, err)
		return
	}
	live := s.API.Live()

	html := fmt.Sprintf(`<!DOCTYPE html><html><head><meta charset="UTF-8"><title>Particl Stake Pool</title></head><body>
<h2>Particl Stake Pool</h2>
<p>Mode: %s<br/>
Pool Fee: %.2f%%<br/>
Stake Bonus: %.2f%%<br/>
Payout Threshold: %s<br/>
Blocks Between Payment Runs: %d<br/>
Minimum Output Value: %s<br/></p>
<p>Synced Height: %d<br/>
Blocks Found: %d<br/>
Last Payment Run: %d<br/>
Last Withdrawal Run: %d<br/></p>
<p>Total Pool Rewards: %s<br/>
Total Pool Fees: %s<br/>
Total Pool Rewards Withdrawn: %s<br/>
Total Pool Coin Disbursed: %s<br/></p>
<p>Currently Staking: %s<br/></p>
</body></html>`,
		summary.PoolMode,
		live.PoolFeePercent, live.StakeBonusPercent,
		codec.FormatSatoshi(int64(live.PayoutThreshold)), live.MinBlocksBetweenPayments,
		codec.FormatSatoshi(int64(live.MinOutputValue)),
		summary.PoolHeight, summary.BlocksFound,
		summary.LastPaymentRunHeight, summary.LastWithdrawalHeight,
		codec.FormatSatoshi(int64(summary.PoolRewardTotal)),
		codec.FormatSatoshi(int64(summary.PoolFeesTotal)),
		codec.FormatSatoshi(int64(summary.PoolWithdrawnTotal)),
		codec.FormatSatoshi(int64(summary.PoolDisbursedTotal)),
		codec.FormatSatoshi(int64(summary.StakeWeight)))
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

func (s *Server) pageAddress(c *gin.Context) {
	summary, err := s.API.AddressSummary(c.Request.Context(), c.Param("addr"))
	if err != nil {
		s.pageError(c, err)
		return
	}
	html := fmt.Sprintf(`<!DOCTYPE html><html><head><meta charset="UTF-8"><title>Pool Address</title></head><body>
<h2>Spend Address %s</h2>
<table>
<tr><td>Accumulated:</td><td>%s</td></tr>
<tr><td>Payout Pending:</td><td>%s</td></tr>
<tr><td>Paid Out:</td><td>%s</td></tr>
<tr><td>Last Total Staking:</td><td>%s</td></tr>
<tr><td>Current Total in Pool:</td><td>%s</td></tr>
</table>
<p><a href='/'>home</a></p></body></html>`,
		summary.Address,
		codec.FormatX16(summary.Accumulated),
		codec.FormatSatoshi(int64(summary.RewardPending)),
		codec.FormatSatoshi(int64(summary.RewardPaidOut)),
		codec.FormatSatoshi(int64(summary.LastStakeWeight)),
		codec.FormatSatoshi(int64(summary.CurrentTotal)))
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

func (s *Server) pageVersion(c *gin.Context) {
	v, err := s.API.Versions(c.Request.Context())
	if err != nil {
		s.pageError(c, err)
		return
	}
	html := fmt.Sprintf(`<!DOCTYPE html><html><head><title>Versions</title></head><body>
<p>Pool version: %s<br/>Node version: %d<br/>Node subversion: %s<br/>Protocol version: %d<br/></p>
<p><a href='/'>home</a></p></body></html>`, v.PoolVersion, v.NodeVersion, v.NodeSubVersion, v.ProtocolVersion)
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

func (s *Server) pageVoting(c *gin.Context) {
	v, err := s.API.VotingInfo(c.Request.Context())
	if err != nil {
		s.pageError(c, err)
		return
	}
	html := fmt.Sprintf(`<!DOCTYPE html><html><head><title>Voting</title></head><body>
<p>Staking enabled: %t<br/>Currently staking: %t<br/>Stake weight: %s<br/></p>
<p><a href='/'>home</a></p></body></html>`, v.StakingEnabled, v.Staking, codec.FormatSatoshi(int64(v.StakeWeight)))
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

// pageConfig serves a redacted JSON view of the running configuration,
// per §6.3's "/config -> JSON (with sensitive paths and addresses
// redacted to "...")" — grounded on the original's page_config. The
// management key fields stay in the output as empty strings, and the
// poolownerwithdrawal block is zeroed.
func (s *Server) pageConfig(c *gin.Context) {
	redacted := *s.Config
	redacted.DataDir = "..."
	redacted.RpcCookieDir = "..."
	redacted.RpcAuth = "..."
	redacted.PoolAddress = "..."
	redacted.RewardAddress = "..."
	redacted.ManagementKeySalt = ""
	redacted.ManagementKeyHash = ""
	redacted.PoolOwnerWithdrawal = config.PoolOwnerWithdrawalSettings{}
	c.JSON(http.StatusOK, redacted)
}
