package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"clearclaim/internal/claims"
	"clearclaim/internal/fraud"
	"clearclaim/internal/platform/metrics"
	"clearclaim/internal/platform/middleware"
	"clearclaim/internal/transport/http/shared"
	"clearclaim/pkg/domain"
	dErrors "clearclaim/pkg/domain-errors"
	"clearclaim/pkg/requestcontext"
)

// Service defines the lifecycle operations the transport layer needs.
type Service interface {
	Create(ctx context.Context, principal domain.Principal, input claims.CreateInput) (*claims.Claim, error)
	Update(ctx context.Context, principal domain.Principal, id domain.ClaimID, input claims.UpdateInput) (*claims.Claim, error)
	Transition(ctx context.Context, principal domain.Principal, id domain.ClaimID, target claims.ClaimStatus, reason, notes string) (*claims.Claim, error)
	BulkTransition(ctx context.Context, principal domain.Principal, ids []domain.ClaimID, target claims.ClaimStatus) (int, error)
	Get(ctx context.Context, principal domain.Principal, id domain.ClaimID) (*claims.Claim, error)
	List(ctx context.Context, principal domain.Principal, filter claims.ListFilter, page claims.Page) (*claims.ClaimPage, error)
	AssessFraud(ctx context.Context, patientID domain.PatientID, amount float64, procedureCodes, diagnosisCodes []string) (fraud.Assessment, error)
}

// Handler handles claim endpoints.
type Handler struct {
	service   Service
	logger    *slog.Logger
	metrics   *metrics.Metrics
	validator middleware.PrincipalValidator
}

// New creates a new claims Handler.
func New(service Service, logger *slog.Logger, m *metrics.Metrics, validator middleware.PrincipalValidator) *Handler {
	return &Handler{
		service:   service,
		logger:    logger,
		metrics:   m,
		validator: validator,
	}
}

// Register registers the claim routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	claimsRouter := chi.NewRouter()
	claimsRouter.Use(middleware.Recovery(h.logger))
	claimsRouter.Use(middleware.RequestID)
	claimsRouter.Use(middleware.Logger(h.logger))
	claimsRouter.Use(middleware.Timeout(30 * time.Second))
	claimsRouter.Use(middleware.ContentTypeJSON)
	claimsRouter.Use(middleware.Latency(h.metrics))
	claimsRouter.Use(middleware.RequireAuth(h.validator, h.logger))

	claimsRouter.Post("/claims", h.handleCreate)
	claimsRouter.Get("/claims", h.handleList)
	claimsRouter.Get("/claims/{id}", h.handleGet)
	claimsRouter.Patch("/claims/{id}", h.handleUpdate)
	claimsRouter.Post("/claims/{id}/status", h.handleTransition)
	claimsRouter.Post("/claims/bulk-status", h.handleBulkTransition)
	claimsRouter.Post("/fraud/assess", h.handleAssessFraud)

	r.Mount("/", claimsRouter)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal := requestcontext.Principal(ctx)

	var req createClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	patientID, err := domain.ParsePatientID(req.PatientID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	claim, err := h.service.Create(ctx, principal, claims.CreateInput{
		PatientID:      patientID,
		Amount:         req.Amount,
		ProcedureCodes: req.ProcedureCodes,
		DiagnosisCodes: req.DiagnosisCodes,
		Notes:          req.Notes,
	})
	if err != nil {
		h.logFailure(ctx, "create claim failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, claim)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal := requestcontext.Principal(ctx)

	id, err := domain.ParseClaimID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req updateClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	claim, err := h.service.Update(ctx, principal, id, claims.UpdateInput{
		Amount:         req.Amount,
		ProcedureCodes: req.ProcedureCodes,
		DiagnosisCodes: req.DiagnosisCodes,
		Notes:          req.Notes,
	})
	if err != nil {
		h.logFailure(ctx, "update claim failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, claim)
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal := requestcontext.Principal(ctx)

	id, err := domain.ParseClaimID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	target, ok := claims.ParseStatus(req.Status)
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "unknown target status"))
		return
	}

	claim, err := h.service.Transition(ctx, principal, id, target, req.Reason, req.Notes)
	if err != nil {
		h.logFailure(ctx, "transition failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, claim)
}

func (h *Handler) handleBulkTransition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal := requestcontext.Principal(ctx)

	var req bulkTransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	target, ok := claims.ParseStatus(req.Status)
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "unknown target status"))
		return
	}
	ids := make([]domain.ClaimID, 0, len(req.ClaimIDs))
	for _, raw := range req.ClaimIDs {
		id, err := domain.ParseClaimID(raw)
		if err != nil {
			shared.WriteError(w, err)
			return
		}
		ids = append(ids, id)
	}

	updated, err := h.service.BulkTransition(ctx, principal, ids, target)
	if err != nil {
		h.logFailure(ctx, "bulk transition failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, bulkTransitionResponse{UpdatedCount: updated})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal := requestcontext.Principal(ctx)

	id, err := domain.ParseClaimID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	claim, err := h.service.Get(ctx, principal, id)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, claim)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal := requestcontext.Principal(ctx)

	filter, page, err := parseListQuery(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	result, err := h.service.List(ctx, principal, filter, page)
	if err != nil {
		h.logFailure(ctx, "list claims failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) handleAssessFraud(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req assessFraudRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	patientID, err := domain.ParsePatientID(req.PatientID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	assessment, err := h.service.AssessFraud(ctx, patientID, req.Amount, req.ProcedureCodes, req.DiagnosisCodes)
	if err != nil {
		h.logFailure(ctx, "fraud assessment failed", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, assessment)
}

func parseListQuery(r *http.Request) (claims.ListFilter, claims.Page, error) {
	var filter claims.ListFilter
	query := r.URL.Query()

	if raw := query.Get("patientId"); raw != "" {
		patientID, err := domain.ParsePatientID(raw)
		if err != nil {
			return filter, claims.Page{}, err
		}
		filter.PatientID = patientID
	}
	if raw := query.Get("status"); raw != "" {
		status, ok := claims.ParseStatus(raw)
		if !ok {
			return filter, claims.Page{}, dErrors.New(dErrors.CodeInvalidInput, "unknown status filter")
		}
		filter.Status = status
	}
	filter.Search = query.Get("search")

	page := claims.Page{
		Number: queryInt(query.Get("page")),
		Size:   queryInt(query.Get("pageSize")),
	}
	return filter, page, nil
}

func queryInt(raw string) int {
	if raw == "" {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return v
}

func (h *Handler) logFailure(ctx context.Context, msg string, err error) {
	code := dErrors.CodeOf(err)
	if code == dErrors.CodeInternal || code == dErrors.CodeDependency {
		h.logger.ErrorContext(ctx, msg,
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		return
	}
	h.logger.WarnContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err.Error(),
	)
}
