// Package classify decides how strong a tenant's deposit case is, which
// statute to cite, and drafts the rebuttal letter.
package classify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/depositdefender/defender/internal/config"
	"github.com/depositdefender/defender/internal/llm"
	"github.com/google/uuid"
)

// Classifier is one way of producing a Result
type Classifier interface {
	Name() string
	Classify(ctx context.Context, text string, stance Stance) (Result, error)
}

// Warnings shown alongside a fallback letter
const (
	WarnNotConfigured = "AI drafting is not configured, so this is the standard template letter."
	WarnUnavailable   = "AI drafting is temporarily unavailable, so this is the standard template letter."
)

// AIClassifier adapts a generative drafting provider
type AIClassifier struct {
	provider llm.Provider
}

func NewAIClassifier(provider llm.Provider) *AIClassifier {
	return &AIClassifier{provider: provider}
}

func (a *AIClassifier) Name() string { return string(SourceAI) }

func (a *AIClassifier) Classify(ctx context.Context, text string, stance Stance) (Result, error) {
	if a.provider == nil {
		return Result{}, llm.ErrDisabled
	}

	resp, err := a.provider.Draft(ctx, llm.DraftRequest{Text: text, Context: stance.Label()})
	if err != nil {
		return Result{}, err
	}

	strength, err := ParseStrength(resp.Strength)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", llm.ErrIncompleteDraft, err)
	}
	r := Result{
		Strength: strength,
		ActCited: resp.ActCited,
		Summary:  resp.Summary,
		Letter:   resp.Letter,
	}
	if !r.Complete() {
		return Result{}, llm.ErrIncompleteDraft
	}
	return r, nil
}

// Outcome is a result plus where it came from
type Outcome struct {
	Result  Result
	Source  Source
	Warning string
}

// Fallback tries the primary classifier and substitutes the heuristic when the
// primary is absent, fails, or returns an incomplete result.
type Fallback struct {
	primary Classifier
	backup  *Heuristic
}

// NewFallback builds the chain; primary may be nil
func NewFallback(primary Classifier, backup *Heuristic) *Fallback {
	return &Fallback{primary: primary, backup: backup}
}

// Classify always returns an outcome
func (f *Fallback) Classify(ctx context.Context, text string, stance Stance) Outcome {
	if f.primary == nil {
		return Outcome{Result: f.backup.Draft(text, stance), Source: SourceHeuristic}
	}

	r, err := f.primary.Classify(ctx, text, stance)
	if err == nil && !r.Complete() {
		err = llm.ErrIncompleteDraft
	}
	if err == nil {
		return Outcome{Result: r, Source: Source(f.primary.Name())}
	}

	log.Printf("AI draft unavailable, using heuristic fallback: %v", err)
	return Outcome{
		Result:  f.backup.Draft(text, stance),
		Source:  SourceHeuristic,
		Warning: fallbackWarning(err),
	}
}

func fallbackWarning(err error) string {
	if errors.Is(err, config.ErrMissingCredential) || errors.Is(err, llm.ErrDisabled) {
		return WarnNotConfigured
	}
	return WarnUnavailable
}

// NewDraft assigns a fresh letter correlation token to an outcome
func NewDraft(out Outcome) Draft {
	return Draft{
		ID:        uuid.NewString(),
		Result:    out.Result,
		Source:    out.Source,
		Warning:   out.Warning,
		CreatedAt: time.Now(),
	}
}
