// Package web provides an HTTP status and control server for the
// scroll-stabilizer daemon.
package web

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/sweeney/scroll-stabilizer/internal/logic"
	"github.com/sweeney/scroll-stabilizer/internal/settings"
	"github.com/sweeney/scroll-stabilizer/internal/status"
)

const writeWait = 5 * time.Second

// Controller applies changes requested over HTTP.
type Controller interface {
	// Tunables returns the active debounce settings.
	Tunables() logic.Config
	// UpdateTunables persists cfg and reloads the engine with it.
	UpdateTunables(cfg logic.Config) error
	// ResetCounters zeroes the event counters.
	ResetCounters()
}

// Server serves the status page, the control API and a websocket feed.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	ctrl       Controller
	poll       time.Duration
	upgrader   websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Server that reads state from the given tracker. Websocket
// clients receive the status JSON every poll interval.
func New(addr string, tracker *status.Tracker, ctrl Controller, poll time.Duration) *Server {
	if poll <= 0 {
		poll = time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		tracker: tracker,
		ctrl:    ctrl,
		poll:    poll,
		ctx:     ctx,
		cancel:  cancel,
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/", s.handleIndex)
	r.GET("/index.html", s.handleIndex)
	r.GET("/index.json", s.handleJSON)
	r.GET("/api/config", s.handleGetConfig)
	r.PUT("/api/config", s.handlePutConfig)
	r.POST("/api/reset", s.handleReset)
	r.GET("/ws", s.handleWS)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           r,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler. Useful for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown closes websocket feeds and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(c *gin.Context) {
	snap := s.tracker.Snapshot()
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	renderHTML(c.Writer, snap)
}

func (s *Server) handleJSON(c *gin.Context) {
	c.Data(http.StatusOK, "application/json", status.FormatJSON(s.tracker.Snapshot()))
}

func tunablesJSON(cfg logic.Config) status.TunablesJSON {
	return status.TunablesJSON{
		BlockIntervalMs:          cfg.TimeThreshold.Milliseconds(),
		DirectionChangeThreshold: cfg.DirectionChangeCount,
		Enabled:                  cfg.Enabled,
	}
}

func (s *Server) handleGetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, tunablesJSON(s.ctrl.Tunables()))
}

// configRequest is a partial update; omitted fields keep their value.
type configRequest struct {
	BlockIntervalMs          *int64 `json:"block_interval_ms"`
	DirectionChangeThreshold *int   `json:"direction_change_threshold"`
	Enabled                  *bool  `json:"enabled"`
}

func (s *Server) handlePutConfig(c *gin.Context) {
	var req configRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}

	cfg := s.ctrl.Tunables()
	if ms := req.BlockIntervalMs; ms != nil {
		// Checked in milliseconds first; a huge value would wrap when scaled.
		if *ms < settings.MinTimeThreshold.Milliseconds() || *ms > settings.MaxTimeThreshold.Milliseconds() {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("block_interval_ms %d out of range [%d, %d]",
				*ms, settings.MinTimeThreshold.Milliseconds(), settings.MaxTimeThreshold.Milliseconds())})
			return
		}
		cfg.TimeThreshold = time.Duration(*ms) * time.Millisecond
	}
	if req.DirectionChangeThreshold != nil {
		cfg.DirectionChangeCount = *req.DirectionChangeThreshold
	}
	if req.Enabled != nil {
		cfg.Enabled = *req.Enabled
	}

	if err := settings.Validate(cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.ctrl.UpdateTunables(cfg); err != nil {
		log.Printf("web: update settings: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save settings"})
		return
	}
	c.JSON(http.StatusOK, tunablesJSON(s.ctrl.Tunables()))
}

func (s *Server) handleReset(c *gin.Context) {
	s.ctrl.ResetCounters()
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleWS(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("web: websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	// Drain client frames so close and ping are handled.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()

	for {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, status.FormatJSON(s.tracker.Snapshot())); err != nil {
			return
		}

		select {
		case <-ticker.C:
		case <-done:
			return
		case <-s.ctx.Done():
			msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down")
			conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			return
		}
	}
}
