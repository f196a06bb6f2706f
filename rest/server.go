package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/jaivgar/workflow-executor/logger"
	"github.com/jaivgar/workflow-executor/service"
	"go.uber.org/zap"
)

const (
	BasePath        = "/workflow-executor"
	EchoURI         = BasePath + "/echo"
	WorkflowsURI    = BasePath + "/workflows"
	InExecutionURI  = WorkflowsURI + "/execution"
	ExecuteURI      = BasePath + "/execute"
	HistoryURI      = WorkflowsURI + "/history"
	RequestIDHeader = "X-Request-Id"
)

type Server struct {
	http.Server
	Port            int
	executorService *service.WorkflowExecutionService
}

func NewServer(httpPort int, executorService *service.WorkflowExecutionService) (*Server, error) {
	if executorService == nil {
		return nil, errors.New("http server needs a workflow execution service")
	}
	s := &Server{
		Server: http.Server{
			Addr:              fmt.Sprintf(":%d", httpPort),
			IdleTimeout:       2 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
		},
		executorService: executorService,
		Port:            httpPort,
	}

	router := mux.NewRouter()
	router.HandleFunc(EchoURI, s.HandleEcho).Methods(http.MethodGet)
	router.HandleFunc(WorkflowsURI, s.HandleListWorkflows).Methods(http.MethodGet)
	router.HandleFunc(InExecutionURI, s.HandleListInExecution).Methods(http.MethodGet)
	router.HandleFunc(HistoryURI, s.HandleHistory).Methods(http.MethodGet)
	router.HandleFunc(InExecutionURI+"/{id:[0-9]+}", s.HandleGetExecution).Methods(http.MethodGet)
	router.HandleFunc(WorkflowsURI+"/{name}", s.HandleGetWorkflow).Methods(http.MethodGet)
	router.HandleFunc(ExecuteURI, s.HandleExecute).Methods(http.MethodPost)

	router.Use(requestIDMiddleware, loggingMiddleware)
	s.Handler = router
	return s, nil
}

func (s *Server) Start() error {
	logger.Info("starting http server on", zap.Int("port", s.Port))
	if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop() error {
	logger.Info("stopping http server")
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		logger.Error("error shutting down http server", zap.Error(err))
		return err
	}
	return nil
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(RequestIDHeader, id)
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info(r.RequestURI, zap.String("method", r.Method), zap.Int("status", rec.status),
			zap.String("requestId", r.Header.Get(RequestIDHeader)), zap.Duration("took", time.Since(start)))
	})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		logger.Error("error encoding response", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondOK(w http.ResponseWriter, payload interface{}) {
	respondWithJSON(w, http.StatusOK, payload)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}
