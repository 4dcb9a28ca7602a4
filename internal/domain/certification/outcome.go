package certification

// Outcome is the certification decision assigned to a single claim row.
type Outcome string

const (
	OutcomeAuthorized          Outcome = "authorized"
	OutcomePartiallyAuthorized Outcome = "partially_authorized"
	OutcomeDeauthorized        Outcome = "deauthorized"
)

// IsValid reports whether o is one of the known outcomes
func (o Outcome) IsValid() bool {
	switch o {
	case OutcomeAuthorized, OutcomePartiallyAuthorized, OutcomeDeauthorized:
		return true
	}
	return false
}

func (o Outcome) String() string {
	return string(o)
}

// ParseOutcome converts a string into an Outcome
func ParseOutcome(s string) (Outcome, bool) {
	o := Outcome(s)
	return o, o.IsValid()
}

// AllOutcomes returns every outcome in reporting order
func AllOutcomes() []Outcome {
	return []Outcome{OutcomeAuthorized, OutcomePartiallyAuthorized, OutcomeDeauthorized}
}
