package classify

import (
	"strings"
)

const (
	MsgDisallowedStrategy = "Deposit Defender cannot draft or support rent strike or withholding-rent strategies. Please seek independent legal advice."
	MsgNotConfirmed       = "Please confirm that your details are true and that this is not legal advice."
	MsgEmptyText          = "Please paste your landlord's email so we can analyse it."
)

// Phrases that describe strategies the service will not draft for
var disallowedStrategies = []string{
	"withhold rent",
	"rent strike",
}

// ValidationError blocks a submission before any classifier runs
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Validate checks a submission. Disallowed strategies are rejected first,
// whatever else the submission contains.
func Validate(in CaseInput) error {
	lower := strings.ToLower(in.EmailText)
	for _, phrase := range disallowedStrategies {
		if strings.Contains(lower, phrase) {
			return &ValidationError{Field: "text", Message: MsgDisallowedStrategy}
		}
	}

	if !in.ConfirmedTruthful {
		return &ValidationError{Field: "confirmedTruthful", Message: MsgNotConfirmed}
	}

	if strings.TrimSpace(in.EmailText) == "" {
		return &ValidationError{Field: "text", Message: MsgEmptyText}
	}

	return nil
}
