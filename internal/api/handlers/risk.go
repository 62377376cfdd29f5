package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/wonny/riskdash/internal/contracts"
	"github.com/wonny/riskdash/internal/store"
	"github.com/wonny/riskdash/internal/views"
	"github.com/wonny/riskdash/pkg/logger"
)

// StateSource provides consistent store reads
type StateSource interface {
	Snapshot() store.State
}

// RangeCoordinator is the fetch trigger surface used by the API
type RangeCoordinator interface {
	Request(ctx context.Context, r contracts.Range) (bool, error)
	Trigger(ctx context.Context, r contracts.Range) (<-chan error, error)
	Retry(ctx context.Context) error
	TriggerRetry(ctx context.Context) (<-chan error, error)
	Last() (contracts.Range, bool)
}

// RiskHandler serves the derived risk views
// ⭐ SSOT: 리스크 API 핸들러는 이 구조체에서만
type RiskHandler struct {
	state       StateSource
	views       *views.Views
	coordinator RangeCoordinator
	validate    *validator.Validate
	logger      *logger.Logger
}

// NewRiskHandler creates a new risk handler
func NewRiskHandler(
	state StateSource,
	v *views.Views,
	coordinator RangeCoordinator,
	log *logger.Logger,
) *RiskHandler {
	return &RiskHandler{
		state:       state,
		views:       v,
		coordinator: coordinator,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		logger:      log,
	}
}

// GetLatest returns the most recent observation
// GET /api/risk/latest
func (h *RiskHandler) GetLatest(w http.ResponseWriter, r *http.Request) {
	latest := h.views.Latest(h.state.Snapshot())
	if latest == nil {
		respondError(w, http.StatusNotFound, "No observations loaded")
		return
	}
	respondJSON(w, http.StatusOK, latest)
}

// GetWindow returns the full display window
// GET /api/risk/window
func (h *RiskHandler) GetWindow(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.views.Window(h.state.Snapshot()))
}

// GetSummary returns the summary statistics
// GET /api/risk/summary
func (h *RiskHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary := h.state.Snapshot().Summary
	if summary == nil {
		respondError(w, http.StatusNotFound, "No summary available")
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// GetSnapshot returns the current snapshot
// GET /api/risk/snapshot
func (h *RiskHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	snap := h.state.Snapshot().Snapshot
	if snap == nil {
		respondError(w, http.StatusNotFound, "No snapshot available")
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// GetRegime returns the current-regime descriptor
// GET /api/risk/regime
func (h *RiskHandler) GetRegime(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.views.Regime(h.state.Snapshot()))
}

// GetWarning returns the warning descriptor
// GET /api/risk/warning
func (h *RiskHandler) GetWarning(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.views.Warning(h.state.Snapshot()))
}

// GetStats returns the period metrics
// GET /api/risk/stats
func (h *RiskHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.views.Stats(h.state.Snapshot()))
}

// GetQuality returns the snapshot quality report
// GET /api/risk/quality
func (h *RiskHandler) GetQuality(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.views.Quality(h.state.Snapshot()))
}

// GetChart returns one visualization projection
// GET /api/risk/charts/{kind}
func (h *RiskHandler) GetChart(w http.ResponseWriter, r *http.Request) {
	kind := mux.Vars(r)["kind"]

	chart, err := h.views.Chart(kind, h.state.Snapshot())
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, chart)
}

// RangeRequest selects the history window.
// Either days or start_date/end_date; an empty body means the default window.
// Days is a pointer so an explicit 0 is rejected instead of meaning "default".
type RangeRequest struct {
	Days      *int   `json:"days" validate:"omitempty,gt=0,lte=3650"`
	StartDate string `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	Wait      bool   `json:"wait"` // block until the fetch completes
}

// FetchResponse reports what a range or retry request did
type FetchResponse struct {
	Triggered bool   `json:"triggered"`
	Range     string `json:"range,omitempty"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

// SetRange requests a history range through the coordinator
// POST /api/risk/range
func (h *RiskHandler) SetRange(w http.ResponseWriter, r *http.Request) {
	var req RangeRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	rng := contracts.Range{StartDate: req.StartDate, EndDate: req.EndDate}
	if req.Days != nil {
		rng.Days = *req.Days
	}
	ctx := context.WithoutCancel(r.Context())

	if req.Wait {
		triggered, err := h.coordinator.Request(ctx, rng)
		h.respondFetch(w, triggered, err)
		return
	}

	done, err := h.coordinator.Trigger(ctx, rng)
	h.respondAsync(w, done, err)
}

// Retry re-triggers the last range
// POST /api/risk/retry
func (h *RiskHandler) Retry(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithoutCancel(r.Context())

	if r.URL.Query().Get("wait") == "true" {
		err := h.coordinator.Retry(ctx)
		h.respondFetch(w, err == nil || !isRejection(err), err)
		return
	}

	done, err := h.coordinator.TriggerRetry(ctx)
	h.respondAsync(w, done, err)
}

func (h *RiskHandler) respondAsync(w http.ResponseWriter, done <-chan error, err error) {
	if err != nil {
		h.respondRejection(w, err)
		return
	}
	if done == nil {
		respondJSON(w, http.StatusOK, h.fetchResponse(false, "unchanged", nil))
		return
	}
	respondJSON(w, http.StatusAccepted, h.fetchResponse(true, "started", nil))
}

func (h *RiskHandler) respondFetch(w http.ResponseWriter, triggered bool, err error) {
	switch {
	case err == nil && !triggered:
		respondJSON(w, http.StatusOK, h.fetchResponse(false, "unchanged", nil))
	case err == nil:
		respondJSON(w, http.StatusOK, h.fetchResponse(true, "completed", nil))
	case isRejection(err):
		h.respondRejection(w, err)
	default:
		// fetch ran and failed; the previous window is still served
		respondJSON(w, http.StatusBadGateway, h.fetchResponse(true, "failed", err))
	}
}

func (h *RiskHandler) respondRejection(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, contracts.ErrInvalidRange):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, contracts.ErrFetchInFlight):
		respondError(w, http.StatusConflict, err.Error())
	default:
		h.logger.WithError(err).Error("Failed to trigger fetch")
		respondError(w, http.StatusInternalServerError, "Failed to trigger fetch")
	}
}

func (h *RiskHandler) fetchResponse(triggered bool, status string, err error) FetchResponse {
	resp := FetchResponse{Triggered: triggered, Status: status, Error: views.ErrorText(err)}
	if last, ok := h.coordinator.Last(); ok {
		resp.Range = last.String()
	}
	return resp
}

func isRejection(err error) bool {
	return errors.Is(err, contracts.ErrInvalidRange) || errors.Is(err, contracts.ErrFetchInFlight)
}
