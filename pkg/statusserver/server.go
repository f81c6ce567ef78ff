// Package statusserver serves a read-only HTTP view of running markers and
// completion results.
package statusserver

import (
	"context"
	"errors"
	"io"
	"log"
	"net"
	"net/http"
	"time"

	xe "github.com/humanconnectome/hcp-pipelines/pkg/errors"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type config struct {
	gracefulPeriod time.Duration
	logger         *log.Logger
}

type Option func(*config) *config

// WithGracefulPeriod sets how long in-flight requests may take after ctx is done.
// Zero closes connections at once.
//
// Default is 30 seconds.
func WithGracefulPeriod(d time.Duration) Option {
	return func(c *config) *config {
		c.gracefulPeriod = d
		return c
	}
}

func WithLogger(l *log.Logger) Option {
	return func(c *config) *config {
		if l != nil {
			c.logger = l
		}
		return c
	}
}

type Server struct {
	// Addr is the address the server listens on.
	Addr net.Addr

	// Stopped receives the error which stopped the server, if any, then is closed.
	Stopped <-chan error
}

// Start serves h on addr (like ":8080" or "localhost:0") until ctx is done.
//
// The address is bound before Start returns. Failing to bind is an error.
func Start(ctx context.Context, addr string, h *Handlers, opts ...Option) (Server, error) {
	conf := &config{
		gracefulPeriod: 30 * time.Second,
		logger:         log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		conf = opt(conf)
	}

	l, err := net.Listen("tcp", addr)
	if err != nil {
		return Server{}, xe.Configuration("cannot listen on %s: %s", addr, err)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Listener = l
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod: true,
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			conf.logger.Printf("%s %s -> %d", v.Method, v.URI, v.Status)
			return nil
		},
	}))
	h.Route(e)

	stopped := make(chan error, 1)
	go func() {
		defer close(stopped)
		// the listener is set, so the address passed here is not used.
		if err := e.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) {
			conf.logger.Printf("server stopped: %s", err)
			stopped <- err
		}
	}()
	go func() {
		<-ctx.Done()
		if 0 < conf.gracefulPeriod {
			sctx, cancel := context.WithTimeout(context.Background(), conf.gracefulPeriod)
			defer cancel()
			if err := e.Shutdown(sctx); err != nil {
				conf.logger.Printf("graceful shutdown: %s", err)
			}
		}
		e.Close()
	}()

	conf.logger.Printf("listening on %s", l.Addr())
	return Server{Addr: l.Addr(), Stopped: stopped}, nil
}
