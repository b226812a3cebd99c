package web

import (
	"context"
	"errors"
	"html/template"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"taskdesk/internal/toast"
	"taskdesk/pkg/logx"
)

// Server exposes the surface over HTTP:
//
//	GET  /                    standalone page
//	GET  /toasts              current container fragment (204 before the first toast)
//	GET  /toasts/ws           live show/remove stream
//	POST /toasts/:id/dismiss  close a toast
type Server struct {
	surface   *Surface
	dismisser toast.Dismisser
	log       logx.Logger
	engine    *gin.Engine
}

func NewServer(s *Surface, d toast.Dismisser, log logx.Logger) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	if gin.Mode() == gin.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &Server{surface: s, dismisser: d, log: log}
	srv.engine = srv.routes()
	return srv
}

func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.accessLog())

	r.GET("/", s.handlePage)
	g := r.Group("/toasts")
	g.GET("", s.handleContainer)
	g.GET("/ws", func(c *gin.Context) { s.surface.hub.serveWS(c.Writer, c.Request) })
	g.POST("/:id/dismiss", s.handleDismiss)
	return r
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("http",
			logx.String("method", c.Request.Method),
			logx.String("path", c.FullPath()),
			logx.Int("status", c.Writer.Status()),
			logx.Duration("dur", time.Since(start)),
		)
	}
}

func (s *Server) handlePage(c *gin.Context) {
	ts, _ := s.surface.Snapshot()
	body, err := RenderContainer(ts)
	if err != nil {
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := page.Execute(c.Writer, template.HTML(body)); err != nil {
		s.log.Warn("page render failed", logx.Err(err))
	}
}

func (s *Server) handleContainer(c *gin.Context) {
	ts, started := s.surface.Snapshot()
	if !started {
		c.Status(http.StatusNoContent)
		return
	}
	body, err := RenderContainer(ts)
	if err != nil {
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(body))
}

func (s *Server) handleDismiss(c *gin.Context) {
	if s.dismisser == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "dismiss unavailable"})
		return
	}
	ok := s.dismisser.Dismiss(toast.ID(c.Param("id")))
	c.JSON(http.StatusOK, gin.H{"dismissed": ok})
}

// Run serves on addr until ctx is done. The hub must be running.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	hs := &http.Server{Handler: s.engine, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- hs.Serve(ln) }()
	s.log.Info("toast web surface listening", logx.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		return hs.Shutdown(sctx)
	}
}
