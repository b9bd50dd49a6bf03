package runs

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/de-tools/account-review/pkg/adapters"
	"github.com/de-tools/account-review/pkg/analytics"
	"github.com/de-tools/account-review/pkg/fault"
	"github.com/de-tools/account-review/pkg/models/api"
	"github.com/de-tools/account-review/pkg/models/domain"
	"github.com/de-tools/account-review/pkg/services/history"
	"github.com/de-tools/account-review/pkg/services/review"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// ClientResolver returns the run identity of a configured client.
type ClientResolver func(clientID, month string) (domain.ClientInfo, error)

// RunRequest starts a review of one extract.
type RunRequest struct {
	InputPath string   `json:"input_path" validate:"required"`
	ClientID  string   `json:"client_id" validate:"required"`
	Month     string   `json:"month" validate:"required,len=7"`
	Modules   []string `json:"modules,omitempty"`
}

type Handler struct {
	history  history.Service
	registry analytics.Registry
	reviewer review.Service
	clients  ClientResolver
	validate *validator.Validate
}

func NewHandler(hist history.Service, registry analytics.Registry, reviewer review.Service, clients ClientResolver) *Handler {
	return &Handler{
		history:  hist,
		registry: registry,
		reviewer: reviewer,
		clients:  clients,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)

	limit := defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxLimit {
			writeError(w, http.StatusBadRequest, api.Error{Title: "Bad Request", Message: "limit must be between 1 and 500"})
			return
		}
		limit = n
	}
	var clients []string
	for _, c := range r.URL.Query()["client"] {
		for _, id := range strings.Split(c, ",") {
			if id = strings.TrimSpace(id); id != "" {
				clients = append(clients, id)
			}
		}
	}

	runs, err := h.history.List(ctx, clients, limit)
	if err != nil {
		logger.Error().Err(err).Msg("failed to list runs")
		writeError(w, http.StatusInternalServerError, api.Error{Title: "Internal Error", Message: "failed to list runs"})
		return
	}

	response := make([]api.Run, 0, len(runs))
	for _, run := range runs {
		response = append(response, adapters.MapRunDomainToApi(run))
	}
	writeJSON(w, http.StatusOK, response)
}

func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	run, err := h.history.Get(ctx, id)
	if errors.Is(err, history.ErrNotFound) {
		writeError(w, http.StatusNotFound, api.Error{Title: "Not Found", Message: "no run with id " + id})
		return
	}
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("run_id", id).Msg("failed to read run")
		writeError(w, http.StatusInternalServerError, api.Error{Title: "Internal Error", Message: "failed to read run"})
		return
	}
	writeJSON(w, http.StatusOK, adapters.MapRunDomainToApi(run))
}

func (h *Handler) ListModules(w http.ResponseWriter, r *http.Request) {
	modules := h.registry.Ordered(r.Context())
	response := make([]api.Module, 0, len(modules))
	for _, m := range modules {
		response = append(response, adapters.MapModuleToApi(m))
	}
	writeJSON(w, http.StatusOK, response)
}

// StartRun reviews one extract synchronously and returns the recorded run.
func (h *Handler) StartRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)

	if h.reviewer == nil {
		writeError(w, http.StatusServiceUnavailable, api.Error{Title: "Unavailable", Message: "runs cannot be started on this server"})
		return
	}

	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, api.Error{Title: "Bad Request", Message: "invalid JSON body", Detail: err.Error()})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, api.Error{Title: "Bad Request", Message: "invalid run request", Detail: err.Error()})
		return
	}
	for _, id := range req.Modules {
		if _, err := h.registry.Get(id); err != nil {
			writeError(w, http.StatusBadRequest, faultError(err))
			return
		}
	}

	client, err := h.clients(req.ClientID, req.Month)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, faultError(err))
		return
	}

	run, _ := h.reviewer.Review(ctx, review.Job{InputPath: req.InputPath, Client: client, Modules: req.Modules})
	logger.Info().Str("run_id", run.ID).Str("status", string(run.Status)).Msg("run finished")

	status := http.StatusCreated
	if run.Status != domain.RunStatusSucceeded {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, adapters.MapRunDomainToApi(run))
}

func faultError(err error) api.Error {
	title, message := fault.Guidance(err)
	return api.Error{Title: title, Message: message, Detail: err.Error()}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, e api.Error) {
	writeJSON(w, status, e)
}
