package fraud

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"clearclaim/internal/claims"
	"clearclaim/internal/patients"
	"clearclaim/internal/platform/metrics"
	"clearclaim/pkg/domain"
	dErrors "clearclaim/pkg/domain-errors"
	"clearclaim/pkg/platform/sentinel"
	"clearclaim/pkg/requestcontext"
)

// ClaimHistory is the narrow read the engine needs from the claim repository:
// the patient's claims inside the trailing window, most recent first.
type ClaimHistory interface {
	ListByPatientSince(ctx context.Context, patientID domain.PatientID, since time.Time) ([]*claims.Claim, error)
}

// Engine computes a fraud risk score and reasons for a proposed claim. Its
// only side effects are the two reads it requires; heuristics accumulate
// additively into the score.
type Engine struct {
	records patients.Store
	history ClaimHistory
	tables  RuleTables
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewEngine(records patients.Store, history ClaimHistory, tables RuleTables, logger *slog.Logger, m *metrics.Metrics) *Engine {
	return &Engine{
		records: records,
		history: history,
		tables:  tables,
		logger:  logger,
		metrics: m,
	}
}

// Assess evaluates a proposed claim. A missing medical record short-circuits
// to a fixed maximal assessment; an infrastructure failure on either read
// propagates as a dependency error and is never folded into the score.
func (e *Engine) Assess(ctx context.Context, patientID domain.PatientID, amount float64, procedureCodes, diagnosisCodes []string) (Assessment, error) {
	now := requestcontext.Now(ctx)

	var (
		record        *patients.MedicalRecord
		recordMissing bool
		history       []*claims.Claim
	)

	// The two reads have no ordering dependency, so they run concurrently.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		found, err := e.records.FindByPatient(gctx, patientID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				recordMissing = true
				return nil
			}
			return dErrors.Wrap(dErrors.CodeDependency, "medical record lookup failed", err)
		}
		record = found
		return nil
	})
	g.Go(func() error {
		since := now.Add(-historyWindow)
		listed, err := e.history.ListByPatientSince(gctx, patientID, since)
		if err != nil {
			return dErrors.Wrap(dErrors.CodeDependency, "claim history lookup failed", err)
		}
		history = listed
		return nil
	})
	if err := g.Wait(); err != nil {
		return Assessment{}, err
	}

	if recordMissing {
		e.observe("missing_record", Assessment{IsFraudulent: true})
		return Assessment{
			IsFraudulent: true,
			Reasons:      []string{ReasonNoMedicalRecord},
			RiskScore:    1,
		}, nil
	}

	assessment := e.evaluate(record, history, amount, procedureCodes, diagnosisCodes)
	outcome := "clear"
	if assessment.IsFraudulent {
		outcome = "fraudulent"
	}
	e.observe(outcome, assessment)
	return assessment, nil
}

// evaluate runs the heuristic chain. Pure domain logic: no I/O, no clock.
func (e *Engine) evaluate(record *patients.MedicalRecord, history []*claims.Claim, amount float64, procedureCodes, diagnosisCodes []string) Assessment {
	assessment := Assessment{Reasons: []string{}}

	// Heuristic 1: amount outlier against the window mean. Mean is 0 for an
	// empty history, so a patient's first claim of any positive amount fires.
	if amount > amountMultiplier*meanAmount(history) {
		e.fire(&assessment, weightHighAmount, ReasonHighAmount, "high_amount")
	}

	// Heuristic 2: claim frequency inside the window.
	if len(history) > frequencyThreshold {
		e.fire(&assessment, weightHighFrequency, ReasonHighFrequency, "high_frequency")
	}

	// Heuristic 3: any proposed procedure already billed inside the window.
	if hasDuplicateProcedure(history, procedureCodes) {
		e.fire(&assessment, weightDuplicateProcedures, ReasonDuplicateProcedures, "duplicate_procedures")
	}

	// Heuristic 4: a constrained procedure with no clinically valid diagnosis
	// among the proposed codes.
	if e.hasCodeMismatch(procedureCodes, diagnosisCodes) {
		e.fire(&assessment, weightCodeMismatch, ReasonCodeMismatch, "code_mismatch")
	}

	// Heuristic 5: a constrained procedure with no supporting condition in the
	// medical record.
	if e.hasUnsupportedProcedure(record, procedureCodes) {
		e.fire(&assessment, weightUnsupportedByRecord, ReasonUnsupportedByRecord, "unsupported_by_record")
	}

	assessment.IsFraudulent = assessment.RiskScore >= fraudThreshold
	return assessment
}

// fire adds one heuristic contribution, keeping reasons distinct and ordered
// by evaluation order.
func (e *Engine) fire(assessment *Assessment, weight float64, reason, heuristic string) {
	assessment.RiskScore += weight
	for _, existing := range assessment.Reasons {
		if existing == reason {
			return
		}
	}
	assessment.Reasons = append(assessment.Reasons, reason)
	if e.metrics != nil {
		e.metrics.HeuristicFired.WithLabelValues(heuristic).Inc()
	}
}

func (e *Engine) observe(outcome string, assessment Assessment) {
	if e.metrics != nil {
		e.metrics.Assessments.WithLabelValues(outcome).Inc()
	}
	if e.logger != nil && assessment.IsFraudulent {
		e.logger.Debug("claim assessed as fraudulent",
			"risk_score", assessment.RiskScore,
			"reasons", assessment.Reasons,
		)
	}
}

func meanAmount(history []*claims.Claim) float64 {
	if len(history) == 0 {
		return 0
	}
	var sum float64
	for _, claim := range history {
		sum += claim.Amount
	}
	return sum / float64(len(history))
}

func hasDuplicateProcedure(history []*claims.Claim, procedureCodes []string) bool {
	seen := make(map[string]bool)
	for _, claim := range history {
		for _, code := range claim.ProcedureCodes {
			seen[code] = true
		}
	}
	for _, code := range procedureCodes {
		if seen[code] {
			return true
		}
	}
	return false
}

func (e *Engine) hasCodeMismatch(procedureCodes, diagnosisCodes []string) bool {
	proposed := make(map[string]bool, len(diagnosisCodes))
	for _, code := range diagnosisCodes {
		proposed[code] = true
	}
	for _, procedure := range procedureCodes {
		valid, constrained := e.tables.ValidDiagnoses[procedure]
		if !constrained {
			continue
		}
		matched := false
		for _, diagnosis := range valid {
			if proposed[diagnosis] {
				matched = true
				break
			}
		}
		if !matched {
			return true
		}
	}
	return false
}

func (e *Engine) hasUnsupportedProcedure(record *patients.MedicalRecord, procedureCodes []string) bool {
	for _, procedure := range procedureCodes {
		expected, constrained := e.tables.ExpectedConditions[procedure]
		if !constrained {
			continue
		}
		if !conditionsContainAny(record.Conditions, expected) {
			return true
		}
	}
	return false
}

func conditionsContainAny(conditions []patients.Condition, substrings []string) bool {
	for _, condition := range conditions {
		name := strings.ToLower(condition.Name)
		for _, substring := range substrings {
			if strings.Contains(name, strings.ToLower(substring)) {
				return true
			}
		}
	}
	return false
}
