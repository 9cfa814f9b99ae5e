package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrIncompleteDraft means the backend answered but not with a usable draft
	ErrIncompleteDraft = errors.New("incomplete draft from generative backend")

	// ErrDisabled means no drafting backend is configured
	ErrDisabled = errors.New("generative drafting is disabled")
)

// Provider defines the interface for generative drafting backends
type Provider interface {
	// Name returns the provider name
	Name() string

	// Draft classifies the correspondence and writes the letter
	Draft(ctx context.Context, req DraftRequest) (*DraftResponse, error)
}

// DraftRequest contains the input for one drafting call
type DraftRequest struct {
	// Text is the landlord's correspondence
	Text string

	// Context is the tenant stance label ("Innocent/Dispute" or "Guilty/Mitigate")
	Context string
}

// DraftResponse is the structured object the backend must return
type DraftResponse struct {
	Strength string `json:"strength"`
	ActCited string `json:"act_cited"`
	Summary  string `json:"summary"`
	Letter   string `json:"letter"`

	// Model and TokensUsed are filled by the provider, not the backend
	Model      string `json:"-"`
	TokensUsed int    `json:"-"`
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai" or "" (disabled)
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for the provider
	APIKey string

	// BaseURL for custom endpoints
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// MaxTokens for response generation
	MaxTokens int
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:  "openai",
		Model:     "gpt-4o",
		Timeout:   30,
		MaxTokens: 2000,
	}
}

// SystemPrompt encodes the drafting policy. It is stricter than the keyword
// classifier: clear tenant-caused damage forces a Low result.
const SystemPrompt = `You are helping a tenant draft a letter to their landlord about a deposit dispute.

YOUR TASK:
Analyze the landlord's email and the tenant's context.
Draft a letter written from the TENANT'S perspective (using "I", not "we").
Return a JSON object (NO MARKDOWN).

CRITICAL: The letter must be written in FIRST PERSON from the tenant's perspective.
- Use "I" and "my" throughout
- Do NOT write as a solicitor or use "we"
- The tenant is writing this letter themselves
- Keep it professional but personal
- Separate paragraphs with a blank line

LEGAL FRAMEWORK:
- Tenant Fees Act 2019: Bans professional cleaning fees.
- Landlord & Tenant Act 1985 (Sec 11): Landlord repairs structure/exterior.
- Housing Act 2004: Deposit protection rules.
- Principle of Betterment: Landlord cannot charge "New for Old" for wear and tear, but CAN charge full replacement cost for tenant-caused damage.

SCENARIO LOGIC (CRITICAL):
1. If Context = "Innocent/Dispute": Assume landlord is exaggerating. Cite Acts aggressively. Strength = High.
2. If Context = "Guilty/Mitigate":
   - For WEAR AND TEAR items (carpets, paint, general wear): Argue "Apportionment" (Depreciation/Betterment) to lower cost. Strength = Medium.
   - For CLEAR TENANT DAMAGE (broken windows from party, smashed doors, deliberate damage): Tenant must pay FULL replacement cost. Betterment does NOT apply. Strength = Low.
3. STRENGTH = LOW when:
   - Clear, admitted tenant fault (broken windows, smashed items, deliberate damage)
   - Damage that cannot be argued as wear and tear
   - Tenant admits responsibility but disputes only the amount (where amount is reasonable)
   - Cases where betterment/depreciation arguments don't apply

IMPORTANT: Broken windows, smashed items, party damage, deliberate damage = tenant pays FULL cost. No betterment argument. Strength = Low, act_cited = "N/A".

OUTPUT JSON STRUCTURE (exactly these four keys):
{
  "strength": "High" | "Medium" | "Low",
  "act_cited": "Name of Act (e.g. Tenant Fees Act 2019) or 'N/A' for Low cases",
  "summary": "2 sentence explanation of the legal standing.",
  "letter": "The full legal draft written in first person from the tenant's perspective..."
}`

// BuildUserPrompt wraps the correspondence and stance label
func BuildUserPrompt(text, context string) string {
	return fmt.Sprintf("Landlord Text: %q\nTenant Context: %q", text, context)
}

// ParseDraft decodes backend output. Anything other than a single object with
// exactly the four draft fields is ErrIncompleteDraft.
func ParseDraft(content string) (*DraftResponse, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: empty content", ErrIncompleteDraft)
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(content)))
	dec.DisallowUnknownFields()

	var raw struct {
		Strength *string `json:"strength"`
		ActCited *string `json:"act_cited"`
		Summary  *string `json:"summary"`
		Letter   *string `json:"letter"`
	}
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIncompleteDraft, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after object", ErrIncompleteDraft)
	}

	var missing []string
	if raw.Strength == nil || strings.TrimSpace(*raw.Strength) == "" {
		missing = append(missing, "strength")
	}
	if raw.ActCited == nil {
		missing = append(missing, "act_cited")
	}
	if raw.Summary == nil || strings.TrimSpace(*raw.Summary) == "" {
		missing = append(missing, "summary")
	}
	if raw.Letter == nil || strings.TrimSpace(*raw.Letter) == "" {
		missing = append(missing, "letter")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrIncompleteDraft, strings.Join(missing, ", "))
	}

	switch *raw.Strength {
	case "High", "Medium", "Low":
	default:
		return nil, fmt.Errorf("%w: unknown strength %q", ErrIncompleteDraft, *raw.Strength)
	}

	return &DraftResponse{
		Strength: *raw.Strength,
		ActCited: strings.TrimSpace(*raw.ActCited),
		Summary:  strings.TrimSpace(*raw.Summary),
		Letter:   strings.TrimSpace(*raw.Letter),
	}, nil
}
