package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/jaivgar/workflow-executor/logger"
	"github.com/jaivgar/workflow-executor/model"
	"github.com/jaivgar/workflow-executor/persistence"
	"github.com/jaivgar/workflow-executor/service"
	"github.com/jaivgar/workflow-executor/workflow"
	"go.uber.org/zap"
)

const defaultHistoryLimit = 100

func (s *Server) HandleExecute(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var req model.StartWorkflowDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid workflow request: "+err.Error())
		return
	}
	if strings.TrimSpace(req.WorkflowName) == "" {
		respondWithError(w, http.StatusBadRequest, "workflowName is required")
		return
	}
	queued, err := s.executorService.Submit(req.WorkflowName, req.WorkflowConfig)
	if err != nil {
		logger.Error("error queueing workflow", zap.String("name", req.WorkflowName), zap.Error(err))
		respondWithError(w, submitStatus(err), err.Error())
		return
	}
	respondWithJSON(w, http.StatusCreated, model.NewQueuedWorkflowDTO(queued.Snapshot()))
}

func submitStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrUnknownWorkflow):
		return http.StatusNotFound
	case errors.Is(err, workflow.ErrInvalidConfig):
		return http.StatusBadRequest
	case errors.Is(err, persistence.ErrQueueFull), errors.Is(err, service.ErrSchedulerStopped):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) HandleListInExecution(w http.ResponseWriter, r *http.Request) {
	executions := s.executorService.ListInFlight()
	out := make([]model.QueuedWorkflowDTO, 0, len(executions))
	for _, e := range executions {
		out = append(out, model.NewQueuedWorkflowDTO(e))
	}
	respondOK(w, out)
}

func (s *Server) HandleGetExecution(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid workflow id")
		return
	}
	exec, ok := s.executorService.Get(r.Context(), id)
	if !ok {
		respondWithError(w, http.StatusNotFound, "workflow execution not found")
		return
	}
	respondOK(w, model.NewFinishWorkflowDTO(exec))
}

func (s *Server) HandleHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondWithError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	history, err := s.executorService.History(r.Context(), limit)
	if err != nil {
		logger.Error("error reading execution history", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "error reading execution history")
		return
	}
	out := make([]model.FinishWorkflowDTO, 0, len(history))
	for _, e := range history {
		out = append(out, model.NewFinishWorkflowDTO(e))
	}
	respondOK(w, out)
}
