package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"longbox/internal/comicfile"
	"longbox/internal/config"
	"longbox/internal/logging"
	"longbox/internal/pipeline"
	"longbox/internal/services"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil
	}

	srv := &apiServer{
		bind:   bind,
		logger: logging.NewComponentLogger(logger, "api"),
		daemon: d,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", srv.handleStatus)
	mux.HandleFunc("/api/runs", srv.handleRuns)
	mux.HandleFunc("/api/run/", srv.handleRun)
	mux.HandleFunc("/api/comics", srv.handleComics)
	mux.HandleFunc("/api/stop", srv.handleStop)
	mux.HandleFunc("/api/pages/", srv.handlePage)

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, s.daemon.Status(r.Context()))
}

// handleStop acknowledges first and shuts the daemon down asynchronously so
// the graceful HTTP shutdown does not wait on this very request.
func (s *apiServer) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "stopping"})
	go s.daemon.Stop()
}

func (s *apiServer) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"pipelines": s.daemon.registry.Names(),
		"history":   reportPayloads(s.daemon.registry.History()),
	})
}

// handleRun triggers a named pipeline. Query parameters become run
// parameter overrides.
func (s *apiServer) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/api/run/")
	if name == "" || strings.Contains(name, "/") {
		s.writeError(w, http.StatusBadRequest, "pipeline name required")
		return
	}

	overrides := make(map[string]string)
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			overrides[key] = values[0]
		}
	}
	params, err := pipeline.DefaultParams(s.daemon.cfg).WithOverrides(overrides)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := s.daemon.registry.Run(r.Context(), name, params)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, err.Error())
			return
		}
		// The report still describes the failed run.
	}
	s.writeJSON(w, http.StatusOK, reportPayload(report))
}

func (s *apiServer) handleComics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	comics, err := s.daemon.store.ListComics(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	payload := make([]comicPayload, len(comics))
	for i, comic := range comics {
		payload[i] = comicPayload{
			ID:       comic.ID,
			Filename: comic.Filename,
			Kind:     string(comic.Kind),
			State:    string(comic.State),
			Series:   comic.Series,
			Title:    comic.Title,
			Number:   comic.Number,
			Year:     comic.Year,
		}
	}
	s.writeJSON(w, http.StatusOK, payload)
}

// handlePage serves page bytes by digest: cache first, then the source
// archive with a write-back to the cache. The response content type is
// sniffed from the bytes, never taken from a file extension.
func (s *apiServer) handlePage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.daemon.cache == nil {
		s.writeError(w, http.StatusServiceUnavailable, "page cache not configured")
		return
	}
	digest := strings.TrimPrefix(r.URL.Path, "/api/pages/")

	data, found, err := s.daemon.cache.FindByDigest(digest)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !found {
		data, err = s.loadFromArchive(r.Context(), digest)
		if err != nil {
			if errors.Is(err, services.ErrNotFound) {
				s.writeError(w, http.StatusNotFound, "no page with that digest")
				return
			}
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if _, err := s.daemon.cache.SaveByDigest(digest, data); err != nil {
			s.logger.Warn("page cache write-back failed",
				logging.String(logging.FieldDigest, digest),
				logging.Error(err))
		}
	}

	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// loadFromArchive decodes the page bytes from the source archive of any
// comic owning a page with the digest.
func (s *apiServer) loadFromArchive(ctx context.Context, digest string) ([]byte, error) {
	pages, err := s.daemon.store.PagesWithDigest(ctx, digest)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: digest %s", services.ErrNotFound, digest)
	}

	var lastErr error
	for _, page := range pages {
		comic, err := s.daemon.store.GetComic(ctx, page.ComicID)
		if err != nil {
			lastErr = err
			continue
		}
		data, err := comicfile.LoadPageBytes(comic.Filename, comic.Kind, page.Filename)
		if err != nil {
			lastErr = err
			continue
		}
		return data, nil
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, fmt.Errorf("%w: digest %s", services.ErrNotFound, digest)
}

type comicPayload struct {
	ID       int64  `json:"id"`
	Filename string `json:"filename"`
	Kind     string `json:"kind"`
	State    string `json:"state"`
	Series   string `json:"series,omitempty"`
	Title    string `json:"title,omitempty"`
	Number   string `json:"number,omitempty"`
	Year     int    `json:"year,omitempty"`
}

type runPayload struct {
	RunID     string `json:"runId"`
	Pipeline  string `json:"pipeline"`
	Status    string `json:"status"`
	Processed int    `json:"processed"`
	Skipped   int    `json:"skipped"`
	Dropped   int    `json:"dropped"`
	Written   int    `json:"written"`
	Started   string `json:"started"`
	Finished  string `json:"finished"`
	Error     string `json:"error,omitempty"`
}

func reportPayload(report pipeline.Report) runPayload {
	return runPayload{
		RunID:     report.RunID,
		Pipeline:  report.Pipeline,
		Status:    string(report.Status),
		Processed: report.Processed,
		Skipped:   report.Skipped,
		Dropped:   report.Dropped,
		Written:   report.Written,
		Started:   report.Started.Format(time.RFC3339),
		Finished:  report.Finished.Format(time.RFC3339),
		Error:     report.Error,
	}
}

func reportPayloads(reports []pipeline.Report) []runPayload {
	payloads := make([]runPayload, len(reports))
	for i, report := range reports {
		payloads[i] = reportPayload(report)
	}
	return payloads
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("encode response failed", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// Addr returns the bound API address once the server is listening.
func (s *apiServer) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}
