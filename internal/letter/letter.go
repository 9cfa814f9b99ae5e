// Package letter assembles the rebuttal letter from fixed prose blocks.
package letter

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed templates/*.tmpl
var embeddedTemplates embed.FS

// DefaultSignature is the placeholder the tenant replaces with their name
const DefaultSignature = "[Your Name]"

// ParagraphSeparator joins blocks; readers split on blank lines
const ParagraphSeparator = "\n\n"

// Block names, in the order they can appear in a letter
const (
	BlockOpening          = "opening"
	BlockLiabilityDispute = "liability_dispute"
	BlockLiabilityAdmit   = "liability_admit"
	BlockCleaning         = "cleaning"
	BlockRedecoration     = "redecoration"
	BlockCarpet           = "carpet"
	BlockReplacement      = "replacement"
	BlockDeposit          = "deposit"
	BlockClosing          = "closing"
)

var blockNames = []string{
	BlockOpening,
	BlockLiabilityDispute,
	BlockLiabilityAdmit,
	BlockCleaning,
	BlockRedecoration,
	BlockCarpet,
	BlockReplacement,
	BlockDeposit,
	BlockClosing,
}

// Options selects which blocks make up a letter
type Options struct {
	Dispute          bool // Tenant disputes liability (otherwise admits some fault)
	MentionsCleaning bool
	MentionsCarpet   bool
}

// Data is what a block template can reference
type Data struct {
	Signature string
}

// Engine renders letter blocks
type Engine struct {
	templates map[string]*template.Template
}

// NewEngine parses every embedded block
func NewEngine() (*Engine, error) {
	e := &Engine{
		templates: make(map[string]*template.Template),
	}

	for _, name := range blockNames {
		content, err := embeddedTemplates.ReadFile("templates/" + name + ".tmpl")
		if err != nil {
			return nil, fmt.Errorf("failed to read embedded block %s: %w", name, err)
		}

		tmpl, err := template.New(name).Option("missingkey=error").Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("failed to parse block %s: %w", name, err)
		}

		e.templates[name] = tmpl
	}

	return e, nil
}

// Render executes a single block
func (e *Engine) Render(name string, data Data) (string, error) {
	tmpl, ok := e.templates[name]
	if !ok {
		return "", fmt.Errorf("unknown block: %s", name)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render block %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// Select returns the block sequence for a letter: opening, liability by
// stance, cleaning or redecoration, carpet or replacement, deposit, closing.
func Select(opts Options) []string {
	liability := BlockLiabilityAdmit
	if opts.Dispute {
		liability = BlockLiabilityDispute
	}
	cleaning := BlockRedecoration
	if opts.MentionsCleaning {
		cleaning = BlockCleaning
	}
	carpet := BlockReplacement
	if opts.MentionsCarpet {
		carpet = BlockCarpet
	}
	return []string{BlockOpening, liability, cleaning, carpet, BlockDeposit, BlockClosing}
}
