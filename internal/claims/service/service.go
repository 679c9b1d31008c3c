// Package service orchestrates the claim lifecycle: create, edit, adjudicate,
// and list. Every mutation follows the same strict sequence - authorize,
// assess if needed, persist, invalidate cache, audit - and correctness under
// concurrency rests entirely on the store's conditional write.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"clearclaim/internal/audit"
	"clearclaim/internal/cache"
	"clearclaim/internal/claims"
	"clearclaim/internal/fraud"
	"clearclaim/internal/platform/metrics"
	"clearclaim/pkg/domain"
	dErrors "clearclaim/pkg/domain-errors"
	"clearclaim/pkg/platform/sentinel"
	"clearclaim/pkg/requestcontext"
)

// Assessor is the risk engine as the lifecycle sees it.
type Assessor interface {
	Assess(ctx context.Context, patientID domain.PatientID, amount float64, procedureCodes, diagnosisCodes []string) (fraud.Assessment, error)
}

// retryPolicy bounds the automatic re-read/reapply/re-write cycle on
// optimistic-concurrency conflicts before surfacing CodeConflict.
type retryPolicy struct {
	maxAttempts int
	backoff     time.Duration
}

var defaultRetryPolicy = retryPolicy{maxAttempts: 3, backoff: 25 * time.Millisecond}

// Service is the claim lifecycle orchestrator.
type Service struct {
	store    claims.Store
	assessor Assessor
	cache    *cache.Cache
	recorder *audit.Recorder
	logger   *slog.Logger
	metrics  *metrics.Metrics
	listTTL  time.Duration
	retry    retryPolicy
}

func New(store claims.Store, assessor Assessor, c *cache.Cache, recorder *audit.Recorder, logger *slog.Logger, m *metrics.Metrics, listTTL time.Duration) *Service {
	return &Service{
		store:    store,
		assessor: assessor,
		cache:    c,
		recorder: recorder,
		logger:   logger,
		metrics:  m,
		listTTL:  listTTL,
		retry:    defaultRetryPolicy,
	}
}

// Create validates the input, runs the risk engine, and persists the claim.
// A fraudulent assessment pre-denies the claim at creation time; it is still
// created and visible, just DENIED instead of PENDING.
func (s *Service) Create(ctx context.Context, principal domain.Principal, input claims.CreateInput) (*claims.Claim, error) {
	if err := validateCreate(input); err != nil {
		return nil, err
	}

	assessment, err := s.assessor.Assess(ctx, input.PatientID, input.Amount, input.ProcedureCodes, input.DiagnosisCodes)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	claim := &claims.Claim{
		ID:             domain.NewClaimID(),
		PatientID:      input.PatientID,
		Amount:         input.Amount,
		ProcedureCodes: append([]string{}, input.ProcedureCodes...),
		DiagnosisCodes: append([]string{}, input.DiagnosisCodes...),
		Notes:          input.Notes,
		Status:         claims.StatusPending,
		IsFraudulent:   assessment.IsFraudulent,
		FraudCheck: &claims.FraudCheckDetails{
			IsFraudulent: assessment.IsFraudulent,
			Reasons:      assessment.Reasons,
			RiskScore:    assessment.RiskScore,
			EvaluatedAt:  now,
			EvaluatedBy:  principal.ID,
		},
		CreatedBy: principal.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if assessment.IsFraudulent {
		claim.Status = claims.StatusDenied
		if s.metrics != nil {
			s.metrics.ClaimsAutoDenied.Inc()
		}
	}

	if err := s.store.Create(ctx, claim); err != nil {
		return nil, translateStoreError(err, "create claim")
	}
	if s.metrics != nil {
		s.metrics.ClaimsCreated.Inc()
	}

	s.invalidateListCache(ctx, principal)
	s.audit(ctx, principal, audit.ActionCreate, claim, "status="+string(claim.Status))
	return claim, nil
}

// Update edits the mutable fields of a PENDING claim. If the amount or either
// code list changes, the claim is re-assessed synchronously and the fraud
// fields overwritten. Conflicting concurrent writes are retried a bounded
// number of times before surfacing a conflict.
func (s *Service) Update(ctx context.Context, principal domain.Principal, id domain.ClaimID, input claims.UpdateInput) (*claims.Claim, error) {
	if err := validateUpdate(input); err != nil {
		return nil, err
	}

	claim, err := s.withConflictRetry(ctx, func(ctx context.Context) (*claims.Claim, error) {
		claim, err := s.store.FindByID(ctx, id)
		if err != nil {
			return nil, translateStoreError(err, "load claim")
		}
		if claim.Status.IsFinal() {
			return nil, dErrors.New(dErrors.CodeInvalidState, "claim is finalized and cannot be edited")
		}

		changed := applyUpdate(claim, input)
		now := requestcontext.Now(ctx)
		if changed {
			assessment, err := s.assessor.Assess(ctx, claim.PatientID, claim.Amount, claim.ProcedureCodes, claim.DiagnosisCodes)
			if err != nil {
				return nil, err
			}
			claim.IsFraudulent = assessment.IsFraudulent
			claim.FraudCheck = &claims.FraudCheckDetails{
				IsFraudulent: assessment.IsFraudulent,
				Reasons:      assessment.Reasons,
				RiskScore:    assessment.RiskScore,
				EvaluatedAt:  now,
				EvaluatedBy:  principal.ID,
			}
		}
		claim.UpdatedAt = now

		if err := s.store.UpdateIfVersion(ctx, claim, claim.Version); err != nil {
			return nil, err
		}
		return claim, nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateListCache(ctx, principal)
	s.audit(ctx, principal, audit.ActionUpdate, claim, "")
	return claim, nil
}

// Transition moves a claim to a new adjudication status. Approval is
// administrative; denial is open to any authorized caller. The risk engine is
// not re-run; the existing fraud details are stamped with the processing
// principal and time.
func (s *Service) Transition(ctx context.Context, principal domain.Principal, id domain.ClaimID, target claims.ClaimStatus, reason, notes string) (*claims.Claim, error) {
	if target == claims.StatusPending {
		return nil, dErrors.New(dErrors.CodeInvalidState, "claim cannot be returned to pending")
	}
	if _, ok := claims.ParseStatus(string(target)); !ok {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown target status")
	}
	if (target == claims.StatusApproved || target == claims.StatusPaid) && !principal.Role.CanApprove() {
		return nil, dErrors.New(dErrors.CodeForbidden, "insufficient permissions to approve claims")
	}

	claim, err := s.withConflictRetry(ctx, func(ctx context.Context) (*claims.Claim, error) {
		claim, err := s.store.FindByID(ctx, id)
		if err != nil {
			return nil, translateStoreError(err, "load claim")
		}
		if !claim.Status.CanTransitionTo(target) {
			return nil, dErrors.New(dErrors.CodeInvalidState, "claim has already been processed")
		}
		if target == claims.StatusApproved && claim.IsFraudulent {
			// A pending claim can carry a fraudulent re-assessment from an
			// edit; approving it would break the fraud/approval invariant.
			return nil, dErrors.New(dErrors.CodeInvalidState, "claim flagged as fraudulent cannot be approved")
		}

		now := requestcontext.Now(ctx)
		claim.Status = target
		claim.UpdatedAt = now
		if claim.FraudCheck == nil {
			claim.FraudCheck = &claims.FraudCheckDetails{Reasons: []string{}}
		}
		processedBy := principal.ID
		claim.FraudCheck.ProcessedAt = &now
		claim.FraudCheck.ProcessedBy = &processedBy
		if reason != "" || notes != "" {
			claim.FraudCheck.Notes = joinNonEmpty(reason, notes)
		}

		if err := s.store.UpdateIfVersion(ctx, claim, claim.Version); err != nil {
			return nil, err
		}
		return claim, nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.Transitions.WithLabelValues(string(target)).Inc()
	}
	s.invalidateListCache(ctx, principal)
	s.audit(ctx, principal, audit.ActionTransition, claim, "target="+string(target))
	return claim, nil
}

// BulkTransition moves every listed claim that is still PENDING to the target
// status in one atomic conditional write. Claims that left PENDING between
// selection and write are silently excluded; the returned count reflects the
// rows actually updated.
func (s *Service) BulkTransition(ctx context.Context, principal domain.Principal, ids []domain.ClaimID, target claims.ClaimStatus) (int, error) {
	if len(ids) == 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "claim ids must not be empty")
	}
	if target != claims.StatusApproved && target != claims.StatusDenied {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "bulk transition target must be APPROVED or DENIED")
	}
	if target == claims.StatusApproved && !principal.Role.CanApprove() {
		return 0, dErrors.New(dErrors.CodeForbidden, "insufficient permissions to approve claims")
	}

	updated, err := s.store.BulkUpdateStatusWherePending(ctx, ids, target, requestcontext.Now(ctx))
	if err != nil {
		return 0, translateStoreError(err, "bulk transition")
	}

	s.invalidateListCache(ctx, principal)
	s.recorder.Record(ctx, audit.Event{
		Actor:     principal.ID,
		ActorRole: principal.Role,
		Action:    audit.ActionBulkTransition,
		Detail:    "target=" + string(target),
	})
	return updated, nil
}

// Get loads one claim.
func (s *Service) Get(ctx context.Context, _ domain.Principal, id domain.ClaimID) (*claims.Claim, error) {
	claim, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, translateStoreError(err, "load claim")
	}
	return claim, nil
}

// List returns one page of claims through the read-through cache. Cache
// backend failures degrade to a direct store read.
func (s *Service) List(ctx context.Context, principal domain.Principal, filter claims.ListFilter, page claims.Page) (*claims.ClaimPage, error) {
	key := cache.ListKey(principal.ID, filter, page)
	return cache.Wrap(ctx, s.cache, key, s.listTTL, func(ctx context.Context) (*claims.ClaimPage, error) {
		items, total, err := s.store.List(ctx, filter, page)
		if err != nil {
			return nil, translateStoreError(err, "list claims")
		}
		normalized := page.Normalize()
		totalPages := (total + normalized.Size - 1) / normalized.Size
		if items == nil {
			items = []*claims.Claim{}
		}
		return &claims.ClaimPage{
			Items:      items,
			Total:      total,
			Page:       normalized.Number,
			TotalPages: totalPages,
		}, nil
	})
}

// AssessFraud exposes the risk engine directly for pre-submission warnings.
// Nothing is persisted.
func (s *Service) AssessFraud(ctx context.Context, patientID domain.PatientID, amount float64, procedureCodes, diagnosisCodes []string) (fraud.Assessment, error) {
	if amount <= 0 {
		return fraud.Assessment{}, dErrors.New(dErrors.CodeInvalidInput, "amount must be positive")
	}
	if len(procedureCodes) == 0 || len(diagnosisCodes) == 0 {
		return fraud.Assessment{}, dErrors.New(dErrors.CodeInvalidInput, "procedure and diagnosis codes must not be empty")
	}
	return s.assessor.Assess(ctx, patientID, amount, procedureCodes, diagnosisCodes)
}

// withConflictRetry runs op, retrying the whole read-apply-write cycle when
// the conditional write reports a conflict.
func (s *Service) withConflictRetry(ctx context.Context, op func(context.Context) (*claims.Claim, error)) (*claims.Claim, error) {
	var lastErr error
	for attempt := 1; attempt <= s.retry.maxAttempts; attempt++ {
		claim, err := op(ctx)
		if err == nil {
			return claim, nil
		}
		if !errors.Is(err, sentinel.ErrConflict) {
			return nil, err
		}
		lastErr = err
		if s.metrics != nil {
			s.metrics.ConflictRetries.Inc()
		}
		if attempt < s.retry.maxAttempts {
			select {
			case <-ctx.Done():
				return nil, dErrors.Wrap(dErrors.CodeDependency, "context cancelled during retry", ctx.Err())
			case <-time.After(s.retry.backoff * time.Duration(attempt)):
			}
		}
	}
	return nil, dErrors.Wrap(dErrors.CodeConflict, "claim was modified concurrently", lastErr)
}

// invalidateListCache wipes every cached list for the principal. Best-effort:
// a failing cache backend is logged, never fatal.
func (s *Service) invalidateListCache(ctx context.Context, principal domain.Principal) {
	if err := s.cache.InvalidatePrefix(ctx, cache.PrincipalPrefix(principal.ID)); err != nil {
		s.logger.WarnContext(ctx, "cache invalidation failed",
			"principal", principal.ID.String(),
			"error", err,
		)
	}
}

func (s *Service) audit(ctx context.Context, principal domain.Principal, action audit.Action, claim *claims.Claim, detail string) {
	s.recorder.Record(ctx, audit.Event{
		Actor:     principal.ID,
		ActorRole: principal.Role,
		Action:    action,
		ClaimID:   claim.ID,
		PatientID: claim.PatientID,
		Detail:    detail,
	})
}

func validateCreate(input claims.CreateInput) error {
	if input.PatientID.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "patient id is required")
	}
	if input.Amount <= 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "amount must be positive")
	}
	if len(input.ProcedureCodes) == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "at least one procedure code is required")
	}
	if len(input.DiagnosisCodes) == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "at least one diagnosis code is required")
	}
	return nil
}

func validateUpdate(input claims.UpdateInput) error {
	if input.Amount != nil && *input.Amount <= 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "amount must be positive")
	}
	if input.ProcedureCodes != nil && len(input.ProcedureCodes) == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "procedure codes must not be empty")
	}
	if input.DiagnosisCodes != nil && len(input.DiagnosisCodes) == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "diagnosis codes must not be empty")
	}
	return nil
}

// applyUpdate mutates the claim in place and reports whether a field that
// feeds the risk engine (amount or either code list) actually changed.
func applyUpdate(claim *claims.Claim, input claims.UpdateInput) bool {
	changed := false
	if input.Amount != nil && *input.Amount != claim.Amount {
		claim.Amount = *input.Amount
		changed = true
	}
	if input.ProcedureCodes != nil && !equalCodes(claim.ProcedureCodes, input.ProcedureCodes) {
		claim.ProcedureCodes = append([]string{}, input.ProcedureCodes...)
		changed = true
	}
	if input.DiagnosisCodes != nil && !equalCodes(claim.DiagnosisCodes, input.DiagnosisCodes) {
		claim.DiagnosisCodes = append([]string{}, input.DiagnosisCodes...)
		changed = true
	}
	if input.Notes != nil {
		claim.Notes = *input.Notes
	}
	return changed
}

func equalCodes(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func joinNonEmpty(reason, notes string) string {
	switch {
	case reason == "":
		return notes
	case notes == "":
		return reason
	default:
		return reason + ": " + notes
	}
}

func translateStoreError(err error, action string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "claim not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(dErrors.CodeConflict, action+" conflicted with a concurrent write", err)
	default:
		return dErrors.Wrap(dErrors.CodeDependency, action+" failed", err)
	}
}
