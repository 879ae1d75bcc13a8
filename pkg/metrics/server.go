package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	dserrors "github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/errors"
)

// Server serves the scrape endpoint of one binary, apart from its API.
type Server struct {
	srv *http.Server
	ln  net.Listener
}

// Listen binds addr and serves g on /metrics in the background. A nil g
// serves the default gatherer. The address is bound before Listen returns,
// so a port already in use is reported to the caller.
func Listen(addr string, g prometheus.Gatherer) (*Server, error) {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, dserrors.Newf(dserrors.ErrConfig, "metrics.Listen", "binding %s: %v", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", HandlerFor(g))
	mux.Handle("GET /{$}", http.RedirectHandler("/metrics", http.StatusFound))

	s := &Server{
		srv: &http.Server{
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		ln: ln,
	}
	go func() {
		slog.Info("metrics server listening", "addr", ln.Addr().String())
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server error", "error", err)
		}
	}()
	return s, nil
}

func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
