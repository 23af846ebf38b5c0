package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mattjoyce/relaycmd/internal/registry"
)

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	resp := HealthzResponse{
		Status:         "ok",
		UptimeSeconds:  int64(time.Since(s.startedAt).Seconds()),
		Commands:       s.registry.Len(),
		ActiveProgress: len(s.registry.Progress()),
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListCommands(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, CommandListResponse{Commands: s.registry.List()})
}

func (s *Server) handleGetCommand(w http.ResponseWriter, r *http.Request) {
	v, err := s.registry.View(chi.URLParam(r, "name"))
	if err != nil {
		s.writeRegistryError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, v)
}

// handleExecute dispatches a command. With ?wait=true it holds the request
// until the execution settles, up to the configured MaxWait.
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	wait := false
	if v := r.URL.Query().Get("wait"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "wait must be a boolean")
			return
		}
		wait = b
	}

	exec, err := s.registry.Execute(name)
	if err != nil {
		s.writeRegistryError(w, err)
		return
	}
	s.logger.Info("command dispatched", "command", name, "execution_id", exec.ID)

	if wait {
		ctx, cancel := context.WithTimeout(r.Context(), s.config.MaxWait)
		defer cancel()
		_, _ = exec.Task.Wait(ctx)
	}

	// Settled executions report 200; ones still running report 202.
	status := http.StatusAccepted
	if exec.Task.Settled() {
		status = http.StatusOK
	}
	respondJSON(w, status, executeResponse(exec))
}

func executeResponse(exec *registry.Execution) ExecuteResponse {
	resp := ExecuteResponse{
		ExecutionID: exec.ID,
		Command:     exec.Command,
		Status:      StatusRunning,
	}
	if _, err, ok := exec.Task.Result(); ok {
		resp.Status = StatusCompleted
		if err != nil {
			resp.Status = StatusFailed
			resp.Error = err.Error()
		}
	}
	return resp
}

func (s *Server) handleEnable(w http.ResponseWriter, r *http.Request) {
	s.toggle(w, r, s.registry.Enable)
}

func (s *Server) handleDisable(w http.ResponseWriter, r *http.Request) {
	s.toggle(w, r, s.registry.Disable)
}

func (s *Server) toggle(w http.ResponseWriter, r *http.Request, fn func(string) error) {
	name := chi.URLParam(r, "name")
	if err := fn(name); err != nil {
		s.writeRegistryError(w, err)
		return
	}
	v, err := s.registry.View(name)
	if err != nil {
		s.writeRegistryError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, v)
}

// handleHistory lists recorded executions, newest first. ?limit bounds the
// result; the store applies its own default when it is absent.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	recs, err := s.registry.History(r.Context(), name, limit)
	if err != nil {
		s.writeRegistryError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, HistoryResponse{Command: name, Executions: recs})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	active := s.registry.Progress()
	respondJSON(w, http.StatusOK, ProgressResponse{
		Active:   len(active) > 0,
		Progress: active,
	})
}

func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, buildOpenAPIDoc(s.config.Title, s.registry.List()))
}

// writeRegistryError maps registry sentinel errors to status codes.
func (s *Server) writeRegistryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, registry.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, registry.ErrNotExecutable):
		s.writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error("registry operation failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// respondJSON is a helper to write JSON responses
func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}
