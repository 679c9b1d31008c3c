package fraud

// RuleTables is the clinical reference data the code-consistency heuristics
// consult. It is injected configuration, not control flow: extending coverage
// means adding entries, never touching the engine.
type RuleTables struct {
	// ValidDiagnoses maps a procedure code to the diagnosis codes considered
	// clinically valid for it. Procedure codes without an entry are treated as
	// unconstrained and never trigger the mismatch heuristic.
	ValidDiagnoses map[string][]string

	// ExpectedConditions maps a procedure code to condition-name substrings
	// expected to justify it in the patient's medical record. Matching is
	// case-insensitive substring; codes without an entry never trigger the
	// unsupported-by-history heuristic.
	ExpectedConditions map[string][]string
}

// DefaultRuleTables seeds the small built-in mapping set. Deployments with a
// richer terminology source can swap in their own tables wholesale.
func DefaultRuleTables() RuleTables {
	return RuleTables{
		ValidDiagnoses: map[string][]string{
			// Office visits, established patient
			"99213": {"I10", "E11.9", "J06.9", "M54.5"},
			"99214": {"I10", "E11.9", "E78.5", "F41.1"},
			// ECG
			"93000": {"I10", "I25.10", "R07.9"},
			// Glucose / A1c testing
			"82947": {"E11.9", "E13.9", "R73.03"},
			"83036": {"E11.9", "E13.9"},
			// Chest radiograph
			"71046": {"J06.9", "J18.9", "R05.9"},
			// Knee arthroscopy
			"29881": {"M23.205", "M17.11", "S83.241A"},
		},
		ExpectedConditions: map[string][]string{
			"93000": {"hypertension", "heart", "cardiac"},
			"82947": {"diabetes"},
			"83036": {"diabetes"},
			"71046": {"pneumonia", "respiratory", "cough", "copd"},
			"29881": {"meniscus", "knee", "osteoarthritis"},
		},
	}
}
