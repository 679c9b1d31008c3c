package fraud

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clearclaim/internal/claims"
	"clearclaim/internal/patients"
	"clearclaim/pkg/domain"
	dErrors "clearclaim/pkg/domain-errors"
	"clearclaim/pkg/requestcontext"
)

// stubHistory serves a fixed claim history without a full store.
type stubHistory struct {
	claims []*claims.Claim
	err    error
}

func (s *stubHistory) ListByPatientSince(_ context.Context, _ domain.PatientID, _ time.Time) ([]*claims.Claim, error) {
	return s.claims, s.err
}

type failingRecords struct{ err error }

func (f *failingRecords) FindByPatient(_ context.Context, _ domain.PatientID) (*patients.MedicalRecord, error) {
	return nil, f.err
}

func newTestEngine(records patients.Store, history ClaimHistory) *Engine {
	return NewEngine(records, history, DefaultRuleTables(), nil, nil)
}

func historyClaim(patientID domain.PatientID, amount float64, procedureCodes []string, age time.Duration) *claims.Claim {
	return &claims.Claim{
		ID:             domain.NewClaimID(),
		PatientID:      patientID,
		Amount:         amount,
		ProcedureCodes: procedureCodes,
		DiagnosisCodes: []string{"I10"},
		Status:         claims.StatusApproved,
		CreatedAt:      time.Now().Add(-age),
	}
}

func TestAssess_MissingRecordShortCircuits(t *testing.T) {
	patientID := domain.PatientID(uuid.New())
	records := patients.NewInMemoryStore()
	// Even a history that would fire every heuristic must be ignored.
	history := &stubHistory{claims: []*claims.Claim{
		historyClaim(patientID, 10, []string{"99213"}, 24*time.Hour),
	}}
	engine := newTestEngine(records, history)

	assessment, err := engine.Assess(context.Background(), patientID, 100000, []string{"99213"}, []string{"Z00"})
	require.NoError(t, err)

	assert.True(t, assessment.IsFraudulent)
	assert.Equal(t, 1.0, assessment.RiskScore)
	assert.Equal(t, []string{ReasonNoMedicalRecord}, assessment.Reasons)
}

func TestAssess_RecordLookupFailureIsDependencyError(t *testing.T) {
	patientID := domain.PatientID(uuid.New())
	engine := newTestEngine(&failingRecords{err: errors.New("connection refused")}, &stubHistory{})

	_, err := engine.Assess(context.Background(), patientID, 100, []string{"99213"}, []string{"I10"})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeDependency))
}

func TestAssess_HistoryLookupFailurePropagates(t *testing.T) {
	patientID := domain.PatientID(uuid.New())
	records := patients.NewInMemoryStore()
	records.Put(patients.MedicalRecord{PatientID: patientID})
	engine := newTestEngine(records, &stubHistory{err: errors.New("timeout")})

	_, err := engine.Assess(context.Background(), patientID, 100, []string{"99213"}, []string{"I10"})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeDependency))
}

// TestAssess_FirstClaimFiresAmountHeuristic covers the deliberate zero-baseline
// behavior: with no prior claims the window mean is 0, so any positive amount
// is an outlier.
func TestAssess_FirstClaimFiresAmountHeuristic(t *testing.T) {
	patientID := domain.PatientID(uuid.New())
	records := patients.NewInMemoryStore()
	records.Put(patients.MedicalRecord{
		PatientID:  patientID,
		Conditions: []patients.Condition{{Name: "Hypertension", Active: true}},
	})
	engine := newTestEngine(records, &stubHistory{})

	assessment, err := engine.Assess(context.Background(), patientID, 1000, []string{"99213"}, []string{"I10"})
	require.NoError(t, err)

	assert.Contains(t, assessment.Reasons, ReasonHighAmount)
	assert.InDelta(t, 0.30, assessment.RiskScore, 1e-9)
	assert.False(t, assessment.IsFraudulent)
}

func TestAssess_FrequencyAndDuplicates(t *testing.T) {
	patientID := domain.PatientID(uuid.New())
	records := patients.NewInMemoryStore()
	records.Put(patients.MedicalRecord{
		PatientID:  patientID,
		Conditions: []patients.Condition{{Name: "Hypertension", Active: true}},
	})

	// 12 prior claims in the window, all around the same amount, sharing a
	// procedure code with the proposal.
	var history []*claims.Claim
	for i := 0; i < 12; i++ {
		history = append(history, historyClaim(patientID, 100, []string{"99213"}, time.Duration(i+1)*24*time.Hour))
	}
	engine := newTestEngine(records, &stubHistory{claims: history})

	t.Run("normal amount stays below the threshold", func(t *testing.T) {
		assessment, err := engine.Assess(context.Background(), patientID, 100, []string{"99213"}, []string{"I10"})
		require.NoError(t, err)

		assert.Contains(t, assessment.Reasons, ReasonHighFrequency)
		assert.Contains(t, assessment.Reasons, ReasonDuplicateProcedures)
		assert.InDelta(t, 0.45, assessment.RiskScore, 1e-9)
		assert.False(t, assessment.IsFraudulent)
	})

	t.Run("outlier amount on top crosses it", func(t *testing.T) {
		assessment, err := engine.Assess(context.Background(), patientID, 5000, []string{"99213"}, []string{"I10"})
		require.NoError(t, err)

		assert.Contains(t, assessment.Reasons, ReasonHighFrequency)
		assert.Contains(t, assessment.Reasons, ReasonDuplicateProcedures)
		assert.Contains(t, assessment.Reasons, ReasonHighAmount)
		assert.GreaterOrEqual(t, assessment.RiskScore, 0.5)
		assert.True(t, assessment.IsFraudulent)
	})
}

func TestAssess_CodeMismatch(t *testing.T) {
	patientID := domain.PatientID(uuid.New())
	records := patients.NewInMemoryStore()
	records.Put(patients.MedicalRecord{
		PatientID:  patientID,
		Conditions: []patients.Condition{{Name: "Hypertension", Active: true}},
	})
	history := &stubHistory{claims: []*claims.Claim{
		historyClaim(patientID, 100, []string{"71046"}, 24*time.Hour),
	}}
	engine := newTestEngine(records, history)

	t.Run("constrained procedure with no valid diagnosis fires", func(t *testing.T) {
		// 99213 maps to I10/E11.9/J06.9/M54.5; Z00.00 is none of them.
		assessment, err := engine.Assess(context.Background(), patientID, 100, []string{"99213"}, []string{"Z00.00"})
		require.NoError(t, err)
		assert.Contains(t, assessment.Reasons, ReasonCodeMismatch)
	})

	t.Run("unmapped procedure never fires", func(t *testing.T) {
		assessment, err := engine.Assess(context.Background(), patientID, 100, []string{"00000"}, []string{"Z00.00"})
		require.NoError(t, err)
		assert.NotContains(t, assessment.Reasons, ReasonCodeMismatch)
	})
}

func TestAssess_UnsupportedByHistory(t *testing.T) {
	patientID := domain.PatientID(uuid.New())
	records := patients.NewInMemoryStore()
	// No diabetes anywhere in the record.
	records.Put(patients.MedicalRecord{
		PatientID:  patientID,
		Conditions: []patients.Condition{{Name: "Hypertension", Active: true}},
	})
	history := &stubHistory{claims: []*claims.Claim{
		historyClaim(patientID, 100, []string{"99214"}, 24*time.Hour),
	}}
	engine := newTestEngine(records, history)

	// 82947 (glucose test) expects a diabetes-related condition.
	assessment, err := engine.Assess(context.Background(), patientID, 100, []string{"82947"}, []string{"E11.9"})
	require.NoError(t, err)
	assert.Contains(t, assessment.Reasons, ReasonUnsupportedByRecord)

	t.Run("case-insensitive condition match suppresses the heuristic", func(t *testing.T) {
		records.Put(patients.MedicalRecord{
			PatientID:  patientID,
			Conditions: []patients.Condition{{Name: "Type 2 DIABETES mellitus", Active: true}},
		})
		assessment, err := engine.Assess(context.Background(), patientID, 100, []string{"82947"}, []string{"E11.9"})
		require.NoError(t, err)
		assert.NotContains(t, assessment.Reasons, ReasonUnsupportedByRecord)
	})
}

// TestAssess_Deterministic verifies identical inputs against identical backing
// data always produce identical assessments.
func TestAssess_Deterministic(t *testing.T) {
	patientID := domain.PatientID(uuid.New())
	records := patients.NewInMemoryStore()
	records.Put(patients.MedicalRecord{
		PatientID:  patientID,
		Conditions: []patients.Condition{{Name: "Hypertension", Active: true}},
	})
	var history []*claims.Claim
	for i := 0; i < 12; i++ {
		history = append(history, historyClaim(patientID, 100, []string{"99213"}, time.Duration(i+1)*24*time.Hour))
	}
	engine := newTestEngine(records, &stubHistory{claims: history})

	// Pin the evaluation time so the window cutoff is identical across runs.
	ctx := requestcontext.WithTime(context.Background(), time.Now())

	first, err := engine.Assess(ctx, patientID, 5000, []string{"99213"}, []string{"Z00.00"})
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := engine.Assess(ctx, patientID, 5000, []string{"99213"}, []string{"Z00.00"})
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

// TestAssess_ScoreAccumulatesAboveOne: multiple firing heuristics add up
// without clamping.
func TestAssess_ScoreAccumulatesAboveOne(t *testing.T) {
	patientID := domain.PatientID(uuid.New())
	records := patients.NewInMemoryStore()
	records.Put(patients.MedicalRecord{
		PatientID:  patientID,
		Conditions: []patients.Condition{{Name: "Seasonal allergies", Active: true}},
	})
	var history []*claims.Claim
	for i := 0; i < 12; i++ {
		history = append(history, historyClaim(patientID, 10, []string{"82947"}, time.Duration(i+1)*24*time.Hour))
	}
	engine := newTestEngine(records, &stubHistory{claims: history})

	// Fires: amount (0.30), frequency (0.20), duplicate (0.25),
	// mismatch (0.25), unsupported (0.20) = 1.20.
	assessment, err := engine.Assess(context.Background(), patientID, 10000, []string{"82947"}, []string{"Z00.00"})
	require.NoError(t, err)

	assert.InDelta(t, 1.20, assessment.RiskScore, 1e-9)
	assert.True(t, assessment.IsFraudulent)
	assert.Len(t, assessment.Reasons, 5)
}
