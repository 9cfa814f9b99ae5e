package llm

import (
	"errors"
	"testing"
)

func TestParseDraft(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{
			name:    "complete",
			content: `{"strength":"High","act_cited":"Tenant Fees Act 2019","summary":"Strong.","letter":"Dear Sir,\n\nI dispute this."}`,
		},
		{
			name:    "low with N/A",
			content: `{"strength":"Low","act_cited":"N/A","summary":"Weak.","letter":"Dear Sir,\n\nI accept."}`,
		},
		{
			name:    "missing letter",
			content: `{"strength":"High","act_cited":"x","summary":"Strong."}`,
			wantErr: true,
		},
		{
			name:    "missing act",
			content: `{"strength":"High","summary":"Strong.","letter":"Dear Sir"}`,
			wantErr: true,
		},
		{
			name:    "blank summary",
			content: `{"strength":"High","act_cited":"x","summary":"  ","letter":"Dear Sir"}`,
			wantErr: true,
		},
		{
			name:    "unknown strength",
			content: `{"strength":"Very High","act_cited":"x","summary":"s","letter":"l"}`,
			wantErr: true,
		},
		{
			name:    "extra field",
			content: `{"strength":"High","act_cited":"x","summary":"s","letter":"l","confidence":0.9}`,
			wantErr: true,
		},
		{
			name:    "markdown fenced",
			content: "```json\n{\"strength\":\"High\"}\n```",
			wantErr: true,
		},
		{
			name:    "two objects",
			content: `{"strength":"High","act_cited":"x","summary":"s","letter":"l"} {}`,
			wantErr: true,
		},
		{
			name:    "empty",
			content: "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDraft(tt.content)
			if tt.wantErr {
				if !errors.Is(err, ErrIncompleteDraft) {
					t.Errorf("ParseDraft() error = %v, want ErrIncompleteDraft", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDraft() error = %v", err)
			}
			if got.Letter == "" || got.Summary == "" {
				t.Errorf("ParseDraft() = %+v", got)
			}
		})
	}
}

func TestBuildUserPromptQuotesInput(t *testing.T) {
	got := BuildUserPrompt(`He said "clean"`, "Innocent/Dispute")
	want := "Landlord Text: \"He said \\\"clean\\\"\"\nTenant Context: \"Innocent/Dispute\""
	if got != want {
		t.Errorf("BuildUserPrompt() = %q, want %q", got, want)
	}
}
