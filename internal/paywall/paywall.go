// Package paywall decides how much of a drafted letter a client may see.
package paywall

import (
	"regexp"
	"strings"
	"sync"
	"unicode"

	"github.com/depositdefender/defender/internal/classify"
)

// State of the unlock machine
type State string

const (
	NoResult      State = "no_result"
	FreeShown     State = "free_shown"
	GatedLocked   State = "gated_locked"
	GatedUnlocked State = "gated_unlocked"
)

// ObscureRune replaces every letter and digit in a gated paragraph
const ObscureRune = '•'

var paragraphBreak = regexp.MustCompile(`\n\s*\n`)

// View is what a client is allowed to render
type View struct {
	State              State    `json:"state"`
	VisibleParagraph   string   `json:"visibleParagraph"`
	ObscuredParagraphs []string `json:"obscuredParagraphs"`
	Letter             string   `json:"letter,omitempty"`
	ShowPaywall        bool     `json:"showPaywall"`
	CanCopy            bool     `json:"canCopy"`
}

// Machine tracks one client's unlock state for the current result
type Machine struct {
	mu     sync.Mutex
	state  State
	result *classify.Result
	paid   bool
}

// New returns a machine in NoResult; paid carries a previously persisted flag
func New(paid bool) *Machine {
	return &Machine{state: NoResult, paid: paid}
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Load resets and then transitions on a new classification result
func (m *Machine) Load(r classify.Result) State {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = NoResult
	m.result = &r

	switch {
	case !r.Strength.Gated():
		m.state = FreeShown
	case m.paid:
		m.state = GatedUnlocked
	default:
		m.state = GatedLocked
	}
	return m.state
}

// Unlock records a verified payment. The flag is kept for later results.
func (m *Machine) Unlock() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.paid = true
	if m.state == GatedLocked {
		m.state = GatedUnlocked
	}
	return m.state
}

// View renders the current result for the current state
func (m *Machine) View() View {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.result == nil {
		return View{State: NoResult}
	}
	return render(m.state, m.result.Letter)
}

func render(state State, letter string) View {
	v := View{State: state, ObscuredParagraphs: []string{}}
	paragraphs := Split(letter)
	if len(paragraphs) > 0 {
		v.VisibleParagraph = paragraphs[0]
	}

	switch state {
	case GatedLocked:
		v.ShowPaywall = true
		for _, p := range paragraphs[min(1, len(paragraphs)):] {
			v.ObscuredParagraphs = append(v.ObscuredParagraphs, Obscure(p))
		}
	case FreeShown, GatedUnlocked:
		v.Letter = letter
		v.CanCopy = true
	}
	return v
}

// Split breaks a letter on blank lines, dropping empty paragraphs
func Split(letter string) []string {
	var out []string
	for _, p := range paragraphBreak.Split(strings.TrimSpace(letter), -1) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Obscure keeps the shape of a paragraph while hiding its content
func Obscure(paragraph string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return ObscureRune
		}
		return r
	}, paragraph)
}
