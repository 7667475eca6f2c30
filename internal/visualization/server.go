package visualization

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nvandessel/lifnet/internal/analysis"
	"github.com/nvandessel/lifnet/internal/simulation"
	"github.com/nvandessel/lifnet/internal/store"
)

// Server browses stored runs over HTTP on localhost.
//
//	GET /                         run index
//	GET /runs/{id}                HTML report
//	GET /runs/{id}/raster.svg     raster plot
//	GET /runs/{id}/topology.dot   connectivity regenerated from the seed
//	GET /api/runs/{id}/spikes     spike events as JSON
type Server struct {
	store      store.RunStore
	opts       Options
	httpServer *http.Server
	mu         sync.Mutex
	addr       string
}

// NewServer creates a server over s. opts apply to every rendered plot.
func NewServer(s store.RunStore, opts Options) *Server {
	return &Server{store: s, opts: opts}
}

// Addr returns the address the server is listening on (e.g. "localhost:PORT"),
// or "" before ListenAndServe has bound its port.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Handler returns the request router.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /runs/{id}", s.handleRun)
	mux.HandleFunc("GET /runs/{id}/raster.svg", s.handleSVG)
	mux.HandleFunc("GET /runs/{id}/topology.dot", s.handleDOT)
	mux.HandleFunc("GET /api/runs/{id}/spikes", s.handleSpikes)
	return mux
}

// ListenAndServe serves on an OS-assigned localhost port until ctx is
// cancelled. A clean shutdown returns nil.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.httpServer = srv
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	err = srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.ListRuns(r.Context(), 0)
	if err != nil {
		http.Error(w, "list runs: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pages.ExecuteTemplate(w, "index.html.tmpl", runs); err != nil {
		http.Error(w, "render error: "+err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookup(w, r)
	if !ok {
		return
	}
	events, err := s.store.LoadSpikes(r.Context(), run.ID)
	if err != nil {
		http.Error(w, "load spikes: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderReport(w, run, events, s.opts, "/"); err != nil {
		http.Error(w, "render error: "+err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) handleSVG(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookup(w, r)
	if !ok {
		return
	}
	events, err := s.store.LoadSpikes(r.Context(), run.ID)
	if err != nil {
		http.Error(w, "load spikes: "+err.Error(), http.StatusInternalServerError)
		return
	}
	opts := s.opts
	if opts.Title == "" {
		opts.Title = reportTitle(run)
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	if err := RenderSVG(w, events, run.Neurons, RunDuration(run), opts); err != nil {
		http.Error(w, "render error: "+err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) handleDOT(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookup(w, r)
	if !ok {
		return
	}
	topo, err := simulation.ReplayTopology(*run)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	events, err := s.store.LoadSpikes(r.Context(), run.ID)
	if err != nil {
		http.Error(w, "load spikes: "+err.Error(), http.StatusInternalServerError)
		return
	}
	sum, err := analysis.Summarize(events, run.Neurons, RunDuration(run))
	if err != nil {
		http.Error(w, "summarize: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/vnd.graphviz; charset=utf-8")
	RenderDOT(w, topo, NeuronRates(sum))
}

func (s *Server) handleSpikes(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookup(w, r)
	if !ok {
		return
	}
	events, err := s.store.LoadSpikes(r.Context(), run.ID)
	if err != nil {
		http.Error(w, "load spikes: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"run_id":      run.ID,
		"neurons":     run.Neurons,
		"duration_ms": RunDuration(run),
		"spikes":      events,
	})
}

// lookup resolves the {id} path value, which may be a unique prefix, and
// writes a 404 when no run matches.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*store.Run, bool) {
	ctx := r.Context()
	id, err := store.ResolveID(ctx, s.store, r.PathValue("id"))
	if err == nil {
		var run *store.Run
		if run, err = s.store.GetRun(ctx, id); err == nil {
			return run, true
		}
	}
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "run not found: "+r.PathValue("id"), http.StatusNotFound)
	} else {
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
	return nil, false
}
