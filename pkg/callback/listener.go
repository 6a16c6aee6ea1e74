package callback

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultPath is the callback path used when Config.Path is empty.
	DefaultPath = "/"

	// DefaultShutdownGrace is how long Shutdown waits for in-flight responses.
	DefaultShutdownGrace = 2 * time.Second

	readHeaderTimeout = 10 * time.Second
	maxFormSize       = 64 << 10
)

// Config configures a Listener.
type Config struct {
	// Address is the loopback host:port to bind. Port 0 picks a free port.
	// The host "localhost" binds 127.0.0.1.
	Address string

	// Path is the callback path. Default: DefaultPath.
	Path string

	// ShutdownGrace bounds graceful shutdown before connections are
	// force-closed. Default: DefaultShutdownGrace.
	ShutdownGrace time.Duration

	// Logger receives listener logs. Default: no-op.
	Logger *zap.Logger
}

// Listener is a running callback server.
type Listener struct {
	path   string
	grace  time.Duration
	logger *zap.Logger

	listener net.Listener
	server   *http.Server
	future   *Future

	served   chan struct{}
	shutdown sync.Once
	stopErr  error
	stopped  chan struct{}
}

// Start binds cfg.Address and serves callbacks until Shutdown is called or
// ctx is done. A bind failure is returned as a *BindError.
func Start(ctx context.Context, cfg Config) (*Listener, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	addr, err := loopbackAddress(cfg.Address)
	if err != nil {
		return nil, err
	}

	path := cfg.Path
	if path == "" {
		path = DefaultPath
	}
	if !strings.HasPrefix(path, "/") {
		return nil, fmt.Errorf("%w: path %q must start with /", ErrInvalidConfiguration, path)
	}

	grace := cfg.ShutdownGrace
	if grace <= 0 {
		grace = DefaultShutdownGrace
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, &BindError{Address: addr, Err: err}
	}

	l := &Listener{
		path:     path,
		grace:    grace,
		logger:   logger.Named("callback"),
		listener: ln,
		future:   newFuture(),
		served:   make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	l.server = &http.Server{
		Handler:           secureHeaders(http.HandlerFunc(l.handle)),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		defer close(l.served)
		if err := l.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.logger.Error("callback server stopped", zap.Error(err))
		}
	}()

	go func() {
		select {
		case <-ctx.Done():
			_ = l.Shutdown(context.Background())
		case <-l.stopped:
		}
	}()

	l.logger.Info("callback listener started",
		zap.String("address", l.Addr().String()),
		zap.String("path", path))

	return l, nil
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr {
	return l.listener.Addr()
}

// URL returns the callback URL served by the listener.
func (l *Listener) URL() string {
	return "http://" + l.Addr().String() + l.path
}

// Result returns the future the first callback request resolves.
func (l *Listener) Result() *Future {
	return l.future
}

// Stopped is closed once Shutdown has completed and the port is released.
func (l *Listener) Stopped() <-chan struct{} {
	return l.stopped
}

// Shutdown stops the listener. In-flight responses get up to the configured
// grace period (or until ctx is done) before connections are closed.
// It is safe to call more than once; every call returns after the port is
// released.
func (l *Listener) Shutdown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	l.shutdown.Do(func() {
		defer close(l.stopped)

		shutdownCtx, cancel := context.WithTimeout(ctx, l.grace)
		defer cancel()

		if err := l.server.Shutdown(shutdownCtx); err != nil {
			l.logger.Warn("graceful shutdown incomplete, closing connections", zap.Error(err))
			if closeErr := l.server.Close(); closeErr != nil {
				l.stopErr = closeErr
			}
		}
		<-l.served
		l.logger.Debug("callback listener stopped", zap.String("address", l.Addr().String()))
	})
	<-l.stopped
	return l.stopErr
}

func (l *Listener) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != l.path {
		http.NotFound(w, r)
		return
	}

	var params url.Values
	switch r.Method {
	case http.MethodGet:
		params = r.URL.Query()
	case http.MethodPost:
		r.Body = http.MaxBytesReader(w, r.Body, maxFormSize)
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form", http.StatusBadRequest)
			return
		}
		params = r.Form
	default:
		l.logger.Debug("unexpected method on callback listener", zap.String("method", r.Method))
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	res := Result{
		Code:             params.Get("code"),
		State:            params.Get("state"),
		Error:            params.Get("error"),
		ErrorDescription: params.Get("error_description"),
	}
	if res.Code != "" {
		res.Error = ""
		res.ErrorDescription = ""
	} else if res.Error == "" {
		res.Error = MissingCode
	}

	first := l.future.resolve(res)
	l.logger.Info("callback received",
		zap.String("method", r.Method),
		zap.Bool("code_present", res.Code != ""),
		zap.Bool("state_present", res.State != ""),
		zap.String("error", res.Error),
		zap.Bool("first", first))

	if !res.OK() {
		msg := "Authentication failed: " + res.Error
		if res.ErrorDescription != "" {
			msg += ": " + res.ErrorDescription
		}
		http.Error(w, msg, http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintln(w, "Authentication complete. You may close this window and return to the terminal.")
}

// secureHeaders sets response headers that keep callback pages out of
// caches and referrers.
func secureHeaders(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hdr := w.Header()
		hdr.Set("Cache-Control", "no-store")
		hdr.Set("Pragma", "no-cache")
		hdr.Set("X-Content-Type-Options", "nosniff")
		hdr.Set("Referrer-Policy", "no-referrer")
		hdr.Set("X-Frame-Options", "DENY")
		h.ServeHTTP(w, r)
	})
}

// loopbackAddress validates addr and maps "localhost" to 127.0.0.1.
func loopbackAddress(addr string) (string, error) {
	if addr == "" {
		return "", fmt.Errorf("%w: address is required", ErrInvalidConfiguration)
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}
	if port == "" {
		return "", fmt.Errorf("%w: port is required", ErrInvalidConfiguration)
	}
	if strings.EqualFold(host, "localhost") {
		host = "127.0.0.1"
	}
	ip := net.ParseIP(host)
	if ip == nil || !ip.IsLoopback() {
		return "", fmt.Errorf("%w: %q", ErrNotLoopback, host)
	}
	return net.JoinHostPort(host, port), nil
}
