package service

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/open-feature/flagmigrate/pkg/model"
	"github.com/open-feature/flagmigrate/pkg/store"
)

const shutdownTimeout = 5 * time.Second

type HTTPServiceConfiguration struct {
	Port int32
	// APIToken, when set, must be sent verbatim in the Authorization header.
	APIToken string
}

// HTTPService serves the flag service REST API from an in-memory store.
type HTTPService struct {
	HTTPServiceConfiguration *HTTPServiceConfiguration
	Logger                   log.FieldLogger
}

type Server struct {
	state  *store.State
	logger log.FieldLogger
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewHandler returns the REST API routes backed by state.
func NewHandler(state *store.State, token string, logger log.FieldLogger) http.Handler {
	s := Server{state: state, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Route("/api/v2", func(r chi.Router) {
		r.Use(authenticate(token, logger))
		r.Get("/projects/{projectKey}", s.GetProject)
		r.Get("/flags/{projectKey}", s.ListFlags)
		r.Post("/flags/{projectKey}", s.CreateFlag)
		r.Get("/flags/{projectKey}/{flagKey}", s.GetFlag)
		r.Patch("/flags/{projectKey}/{flagKey}", s.PatchFlag)
	})
	return r
}

func (h *HTTPService) Serve(ctx context.Context, state *store.State) error {
	if h.HTTPServiceConfiguration == nil {
		return errors.New("http service configuration has not been initialised")
	}
	logger := h.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", h.HTTPServiceConfiguration.Port),
		Handler:           NewHandler(state, h.HTTPServiceConfiguration.APIToken, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Infof("sandbox listening on %s", srv.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("sandbox server stopped: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("unable to shut down sandbox server: %w", err)
	}
	return nil
}

func authenticate(token string, logger log.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token != "" && subtle.ConstantTimeCompare([]byte(r.Header.Get("Authorization")), []byte(token)) != 1 {
				handleError(model.NewError(model.KindUnauthorized, "invalid api token"), w, logger)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s Server) GetProject(w http.ResponseWriter, r *http.Request) {
	project, err := s.state.GetProject(r.Context(), chi.URLParam(r, "projectKey"))
	if err != nil {
		handleError(err, w, s.logger)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (s Server) ListFlags(w http.ResponseWriter, r *http.Request) {
	flags, err := s.state.ListFlags(r.Context(), chi.URLParam(r, "projectKey"))
	if err != nil {
		handleError(err, w, s.logger)
		return
	}
	writeJSON(w, http.StatusOK, model.FlagList{Items: flags})
}

func (s Server) GetFlag(w http.ResponseWriter, r *http.Request) {
	flag, err := s.state.GetFlag(r.Context(), chi.URLParam(r, "projectKey"), chi.URLParam(r, "flagKey"))
	if err != nil {
		handleError(err, w, s.logger)
		return
	}
	writeJSON(w, http.StatusOK, flag)
}

func (s Server) CreateFlag(w http.ResponseWriter, r *http.Request) {
	var payload model.FlagCreatePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		handleError(model.NewError(model.KindValidation, "invalid request body: %v", err), w, s.logger)
		return
	}

	flag, err := s.state.CreateFlag(r.Context(), chi.URLParam(r, "projectKey"), payload)
	if err != nil {
		handleError(err, w, s.logger)
		return
	}
	writeJSON(w, http.StatusCreated, flag)
}

func (s Server) PatchFlag(w http.ResponseWriter, r *http.Request) {
	var body model.PatchComment
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		handleError(model.NewError(model.KindValidation, "invalid request body: %v", err), w, s.logger)
		return
	}

	flag, err := s.state.PatchFlag(r.Context(), chi.URLParam(r, "projectKey"), chi.URLParam(r, "flagKey"), body.Patch, body.Comment)
	if err != nil {
		handleError(err, w, s.logger)
		return
	}
	writeJSON(w, http.StatusOK, flag)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// some basic mapping of errors from model to HTTP
func handleError(err error, w http.ResponseWriter, logger log.FieldLogger) {
	kind := model.KindOf(err)
	message := err.Error()
	var serviceErr *model.ServiceError
	if errors.As(err, &serviceErr) && serviceErr.Message != "" {
		message = serviceErr.Message
	}

	if kind == model.KindUnknown {
		logger.Error(err)
	} else {
		logger.Debug(err)
	}
	writeJSON(w, kind.StatusCode(), errorResponse{Code: kind.Code(), Message: message})
}
