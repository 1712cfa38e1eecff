package voiceserver

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Server exposes generated voice clips over HTTP so push notifications can
// link to them. Read-only: the dispatcher writes each clip exactly once
// under a unique name, so no coordination with the poll loop is needed.
type Server struct {
	addr   string
	dir    string
	logger *slog.Logger
	mux    *http.ServeMux
}

func New(addr, dir string, logger *slog.Logger) *Server {
	s := &Server{addr: addr, dir: dir, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /voice/{filename}", s.handleVoice)
	s.mux = mux
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleVoice(w http.ResponseWriter, r *http.Request) {
	filename := r.PathValue("filename")
	if filename == "" || filename != filepath.Base(filename) || strings.HasPrefix(filename, ".") {
		http.NotFound(w, r)
		return
	}

	file, err := os.Open(filepath.Join(s.dir, filename))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) && s.logger != nil {
			s.logger.Warn("open clip failed", "filename", filename, "err", err)
		}
		http.NotFound(w, r)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}

	http.ServeContent(w, r, filename, info.ModTime(), file)
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{Addr: s.addr, Handler: s}

	errc := make(chan error, 1)
	go func() {
		errc <- server.ListenAndServe()
	}()

	if s.logger != nil {
		s.logger.Info("voice server listening", "addr", s.addr, "dir", s.dir)
	}

	select {
	case err := <-errc:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("voice server: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("voice server shutdown: %w", err)
		}
		return ctx.Err()
	}
}
