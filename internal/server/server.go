package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lead-responder/internal/domain"
)

const healthBody = `{"status":"ok","message":"lead responder is running"}`

// LastTick remembers the most recent tick result for the status endpoint.
type LastTick struct {
	mu  sync.RWMutex
	res *domain.TickResult
}

func (l *LastTick) ObserveTick(r domain.TickResult) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.res = &r
}

// Last returns the most recent result, if a tick has finished.
func (l *LastTick) Last() (domain.TickResult, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.res == nil {
		return domain.TickResult{}, false
	}
	return *l.res, true
}

type tickStatus struct {
	ID               string    `json:"id"`
	Status           string    `json:"status"`
	Reason           string    `json:"reason,omitempty"`
	Error            string    `json:"error,omitempty"`
	StartedAt        time.Time `json:"startedAt"`
	DurationMS       int64     `json:"durationMs"`
	Conversations    int       `json:"conversations"`
	NewMessages      int       `json:"newMessages"`
	Replies          int       `json:"replies"`
	EmptyCompletions int       `json:"emptyCompletions"`
}

// NewRouter serves /health, /metrics and /status. gatherer may be nil for the
// default registry; last may be nil to disable /status.
func NewRouter(gatherer prometheus.Gatherer, last *LastTick) http.Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(healthBody))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	if last != nil {
		r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			res, ok := last.Last()
			if !ok {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"pending"}`))
				return
			}
			out := tickStatus{
				ID:               res.ID,
				Status:           string(res.Status),
				Reason:           res.Reason,
				StartedAt:        res.StartedAt,
				DurationMS:       res.Duration().Milliseconds(),
				Conversations:    res.Conversations,
				NewMessages:      res.NewMessages,
				Replies:          res.Replies,
				EmptyCompletions: res.EmptyCompletions,
			}
			if res.Err != nil {
				out.Error = res.Err.Error()
			}
			_ = json.NewEncoder(w).Encode(out)
		})
	}
	return r
}

// Server is the HTTP listener for the long-running process.
type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

func New(addr string, handler http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Serve accepts connections on ln until Shutdown. It returns nil after a
// graceful shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("http server listening", "addr", ln.Addr().String())
	if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
