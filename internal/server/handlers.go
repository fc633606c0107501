package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ShayCichocki/researchmind/internal/manager"
	"github.com/ShayCichocki/researchmind/internal/orchestrator"
	"github.com/ShayCichocki/researchmind/internal/router"
	"github.com/ShayCichocki/researchmind/internal/state"
	"github.com/ShayCichocki/researchmind/pkg/models"
)

type errorResponse struct {
	Error string           `json:"error"`
	Kind  models.ErrorKind `json:"kind,omitempty"`
}

type submitResponse struct {
	RunID     string `json:"run_id"`
	StatusURL string `json:"status_url"`
}

type statsResponse struct {
	models.SystemStats
	LiveRuns      int    `json:"live_runs"`
	DroppedEvents uint64 `json:"dropped_events"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error, fallback int) {
	kind := models.KindOf(err)
	if kind == models.ErrorKindInternal {
		kind = ""
	}
	writeJSON(w, statusFor(err, fallback), errorResponse{Error: err.Error(), Kind: kind})
}

// statusFor maps the error taxonomy onto HTTP statuses.
func statusFor(err error, fallback int) int {
	switch {
	case errors.Is(err, models.ErrUnknownCapability), errors.Is(err, router.ErrUnknownPipeline),
		errors.Is(err, router.ErrUnknownPreferredAgent):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrNoEligibleAgent), errors.Is(err, orchestrator.ErrStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, orchestrator.ErrRunNotFound), errors.Is(err, state.ErrNotFound),
		errors.Is(err, manager.ErrUnknownAgent):
		return http.StatusNotFound
	case errors.Is(err, router.ErrEmptyRequest), errors.Is(err, router.ErrCycleDetected),
		errors.Is(err, router.ErrDuplicateCapability):
		return http.StatusBadRequest
	default:
		return fallback
	}
}

func decodeRequest(w http.ResponseWriter, r *http.Request) (models.Request, bool) {
	var req models.Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return models.Request{}, false
	}
	return req, true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}
	plan, err := s.orch.Plan(req)
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}
	id, err := s.orch.Submit(r.Context(), req)
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}
	w.Header().Set("Location", "/v1/runs/"+id)
	writeJSON(w, http.StatusAccepted, submitResponse{RunID: id, StatusURL: "/v1/runs/" + id})
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}
	res, err := s.orch.Execute(r.Context(), req)
	if err != nil {
		writeError(w, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs := s.orch.Runs()
	if st := models.RunState(r.URL.Query().Get("state")); st != "" {
		filtered := runs[:0]
		for _, run := range runs {
			if run.State == st {
				filtered = append(filtered, run)
			}
		}
		runs = filtered
	}
	writeJSON(w, http.StatusOK, runs)
}

// handleGetRun returns a run snapshot. With ?wait=<duration> it blocks
// until the run finishes or the wait elapses.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	wait := r.URL.Query().Get("wait")
	if wait == "" {
		res, err := s.orch.Status(id)
		if err != nil {
			writeError(w, err, http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, res)
		return
	}

	d, err := time.ParseDuration(wait)
	if err != nil || d < 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid wait duration " + strconv.Quote(wait)})
		return
	}
	d = min(d, maxWait)
	ctx, cancel := context.WithTimeout(r.Context(), d)
	defer cancel()
	res, err := s.orch.Wait(ctx, id)
	if err != nil && res == nil {
		writeError(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.orch.Cancel(id); err != nil {
		writeError(w, err, http.StatusInternalServerError)
		return
	}
	res, err := s.orch.Status(id)
	if err != nil {
		writeError(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusAccepted, res)
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.orch.Manager().Snapshots())
}

func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	snap, err := s.orch.Manager().Snapshot(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleResetAgent(w http.ResponseWriter, r *http.Request) {
	s.agentAction(w, r, s.orch.Manager().Reset)
}

func (s *Server) handleOfflineAgent(w http.ResponseWriter, r *http.Request) {
	s.agentAction(w, r, s.orch.Manager().SetOffline)
}

func (s *Server) agentAction(w http.ResponseWriter, r *http.Request, action func(string) error) {
	id := chi.URLParam(r, "id")
	if err := action(id); err != nil {
		writeError(w, err, http.StatusInternalServerError)
		return
	}
	s.handleGetAgent(w, r)
}

func (s *Server) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	reg := s.orch.Manager().Registry()
	out := make(map[models.Capability][]string)
	for _, c := range reg.Capabilities() {
		out[c] = reg.AgentIDs(c)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePipelines(w http.ResponseWriter, r *http.Request) {
	reg := s.orch.Manager().Registry()
	out := make(map[string][]models.Capability)
	for _, name := range reg.Pipelines() {
		caps, err := reg.Pipeline(name)
		if err != nil {
			continue
		}
		out[name] = caps
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	live := 0
	for _, run := range s.orch.Runs() {
		if !run.State.Terminal() {
			live++
		}
	}
	writeJSON(w, http.StatusOK, statsResponse{
		SystemStats:   s.orch.Manager().SystemStats(),
		LiveRuns:      live,
		DroppedEvents: s.orch.DroppedEventCount(),
	})
}

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	filter := state.RunFilter{State: models.RunState(r.URL.Query().Get("state")), Limit: 50}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid limit " + strconv.Quote(v)})
			return
		}
		filter.Limit = n
	}
	runs, err := s.cfg.History.ListRuns(filter)
	if err != nil {
		writeError(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	run, err := s.cfg.History.GetRun(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, run)
}
