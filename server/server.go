package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/hrygo/itemsearch/ai/recognition"
	"github.com/hrygo/itemsearch/internal/profile"
	"github.com/hrygo/itemsearch/server/metrics"
	apiv1 "github.com/hrygo/itemsearch/server/router/api/v1"
	"github.com/hrygo/itemsearch/store"
)

type Server struct {
	Profile *profile.Profile
	Store   *store.Store

	echoServer *echo.Echo
	metrics    *metrics.PrometheusExporter
}

func NewServer(_ context.Context, profile *profile.Profile, store *store.Store) (*Server, error) {
	s := &Server{
		Profile: profile,
		Store:   store,
		metrics: metrics.NewPrometheusExporter(metrics.DefaultConfig()),
	}

	echoServer := echo.New()
	echoServer.HideBanner = true
	echoServer.HidePort = true
	echoServer.JSONSerializer = &sonicSerializer{}
	echoServer.Use(middleware.Recover())
	echoServer.Use(s.requestLogger())
	echoServer.Use(s.observeRequests)
	if profile.BodyLimit != "" {
		echoServer.Use(middleware.BodyLimit(profile.BodyLimit))
	}
	if profile.RateLimit > 0 {
		echoServer.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(profile.RateLimit))))
	}
	echoServer.Use(middleware.CORS())
	s.echoServer = echoServer

	echoServer.GET("/healthz", func(c echo.Context) error {
		if err := s.Store.Ping(c.Request().Context()); err != nil {
			slog.Warn("health check failed", "error", err)
			return c.String(http.StatusServiceUnavailable, "Service unavailable!")
		}
		return c.String(http.StatusOK, "Service ready.")
	})
	if profile.MetricsEnabled {
		echoServer.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}

	recognizer := recognition.NewRecognizer(newPipelineRunner(profile, store), recognition.DefaultPipelines(), s.metrics)
	apiv1.NewAPIV1Service(profile, store, recognizer, s.metrics).RegisterRoutes(echoServer)

	return s, nil
}

// newPipelineRunner prefers the HTTP recognizer when one is configured and
// otherwise runs pipelines inside the database.
func newPipelineRunner(profile *profile.Profile, store *store.Store) recognition.PipelineRunner {
	if profile.UsesDatabasePipeline() {
		return store
	}
	timeout := time.Duration(profile.RecognizerTimeout) * time.Second
	slog.Info("using HTTP recognizer", "url", profile.RecognizerURL, "timeout", timeout)
	return recognition.NewHTTPRunner(profile.RecognizerURL, timeout)
}

func (s *Server) Start(_ context.Context) error {
	var address, network string
	if len(s.Profile.UNIXSock) == 0 {
		address = fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
		network = "tcp"
	} else {
		address = s.Profile.UNIXSock
		network = "unix"
	}
	listener, err := net.Listen(network, address)
	if err != nil {
		return errors.Wrap(err, "failed to listen")
	}
	s.echoServer.Listener = listener

	go func() {
		if err := s.echoServer.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to start echo server", "error", err)
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	slog.Info("server shutting down")

	// Shutdown echo server.
	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shutdown server", slog.String("error", err.Error()))
	}

	// Close database connection.
	if err := s.Store.Close(); err != nil {
		slog.Error("failed to close database", slog.String("error", err.Error()))
	}

	slog.Info("server stopped properly")
}

// GetEcho returns the underlying echo instance.
func (s *Server) GetEcho() *echo.Echo {
	return s.echoServer
}

func (s *Server) requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
				"remote_ip", v.RemoteIP,
			}
			if v.Error != nil {
				slog.Error("request failed", append(attrs, "error", v.Error)...)
				return nil
			}
			slog.Info("request", attrs...)
			return nil
		},
	})
}

// observeRequests records every request against its registered route.
func (s *Server) observeRequests(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		done := s.metrics.IncInFlight()
		defer done()

		start := time.Now()
		err := next(c)

		status := c.Response().Status
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			status = httpErr.Code
		} else if err != nil {
			status = http.StatusInternalServerError
		}
		route := c.Path()
		if route == "" {
			route = "unmatched"
		}
		s.metrics.RecordRequest(route, c.Request().Method, status, time.Since(start))
		return err
	}
}
