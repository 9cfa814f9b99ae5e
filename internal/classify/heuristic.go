package classify

import (
	"context"
	"fmt"
	"strings"

	"github.com/depositdefender/defender/internal/letter"
)

// Statutes cited by the heuristic policy
const (
	ActFeesSchedule        = "Tenant Fees Act 2019 – Schedule 1 (Permitted Payments)"
	ActProtectionFairness  = "Housing Act 2004 & Consumer Rights Act 2015"
	ActProtectionGeneric   = "Housing Act 2004 (Deposit Protection) & Consumer Rights Act 2015"
	ActFeesFairnessOfTerms = "Tenant Fees Act 2019 & Consumer Rights Act 2015 (fairness of terms)"
)

const (
	summaryDisputeCleaning = "Strong case: the landlord appears to be claiming broad “professional cleaning” or admin fees which are often prohibited unless clearly evidenced and limited to actual loss."
	summaryDisputeItems    = "Mixed case: some items may be legitimate, but the landlord still has to prove loss and compliance with deposit protection rules and fair contract terms."
	summaryDisputeGeneric  = "There may be scope to challenge the deductions, especially if the deposit was not protected correctly or charges are not transparently set out."
	summaryAdmitHigh       = "Good prospects of reducing the amount: even where some responsibility is accepted, the landlord cannot charge “new for old” and must allow for age, condition and fair wear and tear."
	summaryAdmitMedium     = "There is a realistic chance of reducing the figures by relying on apportionment and betterment, even though some liability is accepted."
)

// Signals are the keyword hits that drive the heuristic policy
type Signals struct {
	Cleaning bool
	Carpet   bool
	Repairs  bool
}

// DetectSignals does case-insensitive substring matching on the fixed vocabulary
func DetectSignals(text string) Signals {
	lowered := strings.ToLower(text)
	return Signals{
		Cleaning: strings.Contains(lowered, "cleaning") || strings.Contains(lowered, "professional clean"),
		Carpet:   strings.Contains(lowered, "carpet"),
		Repairs:  strings.Contains(lowered, "repair") || strings.Contains(lowered, "damage"),
	}
}

// Heuristic is the keyword classifier. It never fails and is the fallback
// for every other classifier.
type Heuristic struct {
	blocks map[string]string
}

// NewHeuristic pre-renders every letter block so drafting cannot fail later
func NewHeuristic(engine *letter.Engine, signature string) (*Heuristic, error) {
	if signature == "" {
		signature = letter.DefaultSignature
	}

	h := &Heuristic{blocks: make(map[string]string)}
	seen := make(map[string]bool)
	for _, opts := range []letter.Options{
		{Dispute: true, MentionsCleaning: true, MentionsCarpet: true},
		{Dispute: false},
	} {
		for _, name := range letter.Select(opts) {
			if seen[name] {
				continue
			}
			seen[name] = true
			text, err := engine.Render(name, letter.Data{Signature: signature})
			if err != nil {
				return nil, fmt.Errorf("failed to prepare letter blocks: %w", err)
			}
			h.blocks[name] = text
		}
	}
	return h, nil
}

func (h *Heuristic) Name() string { return string(SourceHeuristic) }

// Classify satisfies Classifier; it never returns an error
func (h *Heuristic) Classify(ctx context.Context, text string, stance Stance) (Result, error) {
	return h.Draft(text, stance), nil
}

// Draft is the pure policy: same input, same result
func (h *Heuristic) Draft(text string, stance Stance) Result {
	sig := DetectSignals(text)

	var r Result
	if stance == StanceAdmitFault {
		r.Strength = StrengthMedium
		if sig.Carpet || sig.Cleaning {
			r.Strength = StrengthHigh
		}
		r.ActCited = ActFeesFairnessOfTerms
		r.Summary = summaryAdmitMedium
		if r.Strength == StrengthHigh {
			r.Summary = summaryAdmitHigh
		}
	} else {
		switch {
		case sig.Cleaning:
			r.Strength = StrengthHigh
			r.ActCited = ActFeesSchedule
			r.Summary = summaryDisputeCleaning
		case sig.Carpet || sig.Repairs:
			r.Strength = StrengthMedium
			r.ActCited = ActProtectionFairness
			r.Summary = summaryDisputeItems
		default:
			r.Strength = StrengthMedium
			r.ActCited = ActProtectionGeneric
			r.Summary = summaryDisputeGeneric
		}
	}

	names := letter.Select(letter.Options{
		Dispute:          stance != StanceAdmitFault,
		MentionsCleaning: sig.Cleaning,
		MentionsCarpet:   sig.Carpet,
	})
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = h.blocks[name]
	}
	r.Letter = strings.Join(parts, letter.ParagraphSeparator)

	return r
}
