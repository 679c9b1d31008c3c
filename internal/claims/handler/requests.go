package handler

type createClaimRequest struct {
	PatientID      string   `json:"patientId"`
	Amount         float64  `json:"amount"`
	ProcedureCodes []string `json:"procedureCodes"`
	DiagnosisCodes []string `json:"diagnosisCodes"`
	Notes          string   `json:"notes"`
}

// updateClaimRequest is a partial edit; nil fields are left untouched.
type updateClaimRequest struct {
	Amount         *float64 `json:"amount"`
	ProcedureCodes []string `json:"procedureCodes"`
	DiagnosisCodes []string `json:"diagnosisCodes"`
	Notes          *string  `json:"notes"`
}

type transitionRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
	Notes  string `json:"notes"`
}

type bulkTransitionRequest struct {
	ClaimIDs []string `json:"claimIds"`
	Status   string   `json:"status"`
}

type assessFraudRequest struct {
	PatientID      string   `json:"patientId"`
	Amount         float64  `json:"amount"`
	ProcedureCodes []string `json:"procedureCodes"`
	DiagnosisCodes []string `json:"diagnosisCodes"`
}
