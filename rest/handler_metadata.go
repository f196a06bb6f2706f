package rest

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/jaivgar/workflow-executor/logger"
	"github.com/jaivgar/workflow-executor/model"
)

func (s *Server) HandleEcho(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Got it!"))
}

func (s *Server) HandleListWorkflows(w http.ResponseWriter, r *http.Request) {
	templates := s.executorService.ListTemplates()
	out := make([]model.WorkflowDTO, 0, len(templates))
	for _, t := range templates {
		out = append(out, model.NewWorkflowDTO(t))
	}
	respondOK(w, out)
}

func (s *Server) HandleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	for _, t := range s.executorService.ListTemplates() {
		if t.Name == name {
			respondOK(w, model.NewWorkflowDTO(t))
			return
		}
	}
	logger.Info("workflow does not exist", zap.String("name", name))
	respondWithError(w, http.StatusNotFound, "workflow does not exist")
}
