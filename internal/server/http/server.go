package httpserver

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/eigenein/myiot/internal/runtime"
	"github.com/eigenein/myiot/internal/server/http/controllers"
	"github.com/eigenein/myiot/pkg/log"
)

// ShutdownTimeout bounds graceful shutdown of open requests.
const ShutdownTimeout = 5 * time.Second

type Server struct {
	rt     *runtime.Runtime
	srv    *http.Server
	mu     sync.Mutex
	lis    net.Listener
	feed   *controllers.Feed
	logger log.Logger
}

func New(rt *runtime.Runtime, logger log.Logger) *Server {
	if logger == nil {
		logger = log.NewNop()
	}
	logger = logger.WithComponent("http")
	mux := http.NewServeMux()
	feed := controllers.NewFeed(controllers.DefaultFeedBuffer)
	controllers.NewControllerRegistry(rt, feed, logger).RegisterAllRoutes(mux)
	s := &Server{
		rt:     rt,
		feed:   feed,
		logger: logger,
		srv: &http.Server{
			Handler:           cors(mux),
			ReadHeaderTimeout: 10 * time.Second,
			ErrorLog:          log.ToStdLogger(logger, log.WarnLevel),
		},
	}
	return s
}

// Feed returns the live event feed to be registered with the router.
func (s *Server) Feed() *controllers.Feed { return s.feed }

// Handler exposes the root handler.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Addr returns the bound address once listening.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lis == nil {
		return nil
	}
	return s.lis.Addr()
}

func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.lis = l
	s.mu.Unlock()
	// open feeds would otherwise hold Shutdown until the timeout
	s.srv.BaseContext = func(net.Listener) context.Context { return ctx }
	s.logger.Info("http server listening", log.Str("addr", l.Addr().String()))
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(l) }()
	select {
	case <-ctx.Done():
		cctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		_ = s.srv.Shutdown(cctx)
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (s *Server) Close() {
	_ = s.srv.Close()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lis != nil {
		_ = s.lis.Close()
	}
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
