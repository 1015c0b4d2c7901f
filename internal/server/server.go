// Package server exposes the agenda over a JSON HTTP API and a WebSocket push channel.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/cpuguy83/agenda/internal/attendance"
	"github.com/cpuguy83/agenda/internal/calendar"
	"github.com/cpuguy83/agenda/internal/config"
	"github.com/cpuguy83/agenda/internal/layout"
)

// Refresher reloads the agenda for a set of months.
type Refresher interface {
	Refresh(ctx context.Context, months ...layout.YearMonth) ([]calendar.Event, error)
	Watched() []layout.YearMonth
}

// CurrentMeeting reports the meeting in progress.
type CurrentMeeting interface {
	Current() (calendar.Event, bool)
}

// Deps are the components the server binds to HTTP.
type Deps struct {
	Board      *attendance.Board
	Attendance *attendance.Service
	Current    CurrentMeeting
	Hub        *Hub

	// Refresher, when set, is asked to fetch months a request needs that
	// are not loaded yet.
	Refresher Refresher
}

// Server is the HTTP shell around the agenda core.
type Server struct {
	engine *gin.Engine
	addr   string
	deps   Deps

	grid        layout.Grid
	strategy    layout.Strategy
	weekStart   time.Weekday
	loc         *time.Location
	storageBase string
	now         func() time.Time
}

// New creates a server from configuration.
func New(cfg *config.Config, deps Deps) (*Server, error) {
	if deps.Board == nil || deps.Attendance == nil {
		return nil, errors.New("server needs a board and an attendance service")
	}
	if deps.Hub == nil {
		deps.Hub = NewHub(cfg.Server.AllowOrigins)
	}

	grid := layout.Grid{
		StartHour:   cfg.Layout.StartHour,
		EndHour:     cfg.Layout.EndHour,
		PxPerMinute: cfg.Layout.PxPerMinute,
	}
	if err := grid.Validate(); err != nil {
		return nil, fmt.Errorf("layout: %w", err)
	}
	strategy, err := layout.ParseStrategy(cfg.Layout.Strategy)
	if err != nil {
		return nil, fmt.Errorf("layout: %w", err)
	}
	weekStart, err := parseWeekStart(cfg.Layout.WeekStart)
	if err != nil {
		return nil, fmt.Errorf("layout: %w", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	s := &Server{
		addr:        cfg.Server.Listen,
		deps:        deps,
		grid:        grid,
		strategy:    strategy,
		weekStart:   weekStart,
		loc:         loc,
		storageBase: cfg.Storage.BaseURL,
		now:         time.Now,
	}
	s.engine = s.newEngine(cfg.Server.AllowOrigins)
	return s, nil
}

func parseWeekStart(s string) (time.Weekday, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "monday", "lunes":
		return time.Monday, nil
	case "sunday", "domingo":
		return time.Sunday, nil
	default:
		return 0, fmt.Errorf("invalid week start %q", s)
	}
}

func (s *Server) newEngine(allowOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = allowOrigins
	}
	r.Use(cors.New(corsCfg))

	s.registerRoutes(r)
	return r
}

func (s *Server) registerRoutes(r *gin.Engine) {
	r.GET("/health", s.handleHealth)
	r.GET("/ws", s.deps.Hub.Handle)

	api := r.Group("/api")
	api.GET("/events", s.handleEvents)
	api.GET("/days", s.handleDays)
	api.GET("/week", s.handleWeek)
	api.GET("/current", s.handleCurrent)
	api.GET("/attendance", s.handleAttendance)
	api.GET("/agenda.ics", s.handleICS)
	api.GET("/events/:id/document", s.handleDocument)
	api.POST("/events/:id/status", s.handleStatus)

	public := api.Group("/public", markPublic)
	public.GET("/events", s.handleEvents)
	public.GET("/days", s.handleDays)
	public.GET("/week", s.handleWeek)
	public.GET("/current", s.handleCurrent)
	public.POST("/events/:id/confirm", s.handlePublic(calendar.StatusWillAttend))
	public.POST("/events/:id/decline", s.handlePublic(calendar.StatusWontAttend))
}

// requestLogger logs requests through slog at debug level.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.deps.Hub
}

// PublishCurrent pushes the current meeting to WebSocket clients.
func (s *Server) PublishCurrent(ev *calendar.Event) {
	var dto *eventDTO
	if ev != nil {
		d := s.toDTO(*ev, s.now())
		dto = &d
	}
	if err := s.deps.Hub.PublishCurrent(dto); err != nil {
		slog.Warn("failed to publish current meeting", "error", err)
	}
}

// Run serves HTTP until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting http server", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	case <-ctx.Done():
	}

	s.deps.Hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http: %w", err)
	}
	return nil
}
