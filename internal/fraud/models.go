// Package fraud scores proposed claims for suspicion. The engine is
// deterministic given identical inputs and identical backing data: the same
// patient history and medical record always produce the same assessment.
package fraud

import "time"

// Assessment is the engine's verdict for one proposed claim.
type Assessment struct {
	IsFraudulent bool     `json:"isFraudulent"`
	Reasons      []string `json:"reasons"`
	RiskScore    float64  `json:"riskScore"`
}

// Reason tags appended when a heuristic fires. Consumers match on these
// strings, so they are part of the contract.
const (
	ReasonNoMedicalRecord     = "No medical record found for patient"
	ReasonHighAmount          = "Unusually high claim amount"
	ReasonHighFrequency       = "High frequency of claims"
	ReasonDuplicateProcedures = "Duplicate procedures within 90 days"
	ReasonCodeMismatch        = "Procedure and diagnosis code mismatch"
	ReasonUnsupportedByRecord = "Procedures without related conditions in medical record"
)

// Heuristic weights. Contributions are independently additive and the total is
// not clamped above 1; only the missing-record short-circuit pins the score.
const (
	weightHighAmount          = 0.30
	weightHighFrequency       = 0.20
	weightDuplicateProcedures = 0.25
	weightCodeMismatch        = 0.25
	weightUnsupportedByRecord = 0.20

	// fraudThreshold marks a claim fraudulent once the accumulated score
	// reaches it.
	fraudThreshold = 0.5

	// historyWindow is the trailing window of prior claims considered.
	historyWindow = 90 * 24 * time.Hour

	// frequencyThreshold is the claim count above which the frequency
	// heuristic fires.
	frequencyThreshold = 10

	// amountMultiplier: a proposed amount above this multiple of the window
	// mean fires the amount heuristic. With an empty history the mean is 0,
	// so any positive amount fires; that first-claim conservatism is a known
	// sensitivity and is deliberate, not a bug.
	amountMultiplier = 3.0
)
