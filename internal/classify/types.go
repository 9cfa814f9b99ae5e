package classify

import (
	"fmt"
	"strings"
	"time"
)

// Strength is the estimated favorability of the tenant's position
type Strength string

const (
	StrengthHigh   Strength = "High"
	StrengthMedium Strength = "Medium"
	StrengthLow    Strength = "Low"
)

// Valid reports whether s is one of the three tiers
func (s Strength) Valid() bool {
	switch s {
	case StrengthHigh, StrengthMedium, StrengthLow:
		return true
	}
	return false
}

// Gated reports whether a letter of this strength sits behind the paywall
func (s Strength) Gated() bool {
	return s == StrengthHigh || s == StrengthMedium
}

// ParseStrength accepts any capitalization of a tier name
func ParseStrength(raw string) (Strength, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "high":
		return StrengthHigh, nil
	case "medium":
		return StrengthMedium, nil
	case "low":
		return StrengthLow, nil
	}
	return "", fmt.Errorf("unknown strength %q", raw)
}

// Stance is what the tenant declares about their own liability
type Stance string

const (
	StanceDispute    Stance = "dispute"
	StanceAdmitFault Stance = "admit"
)

// Context labels sent to the drafting backend
const (
	labelDispute    = "Innocent/Dispute"
	labelAdmitFault = "Guilty/Mitigate"
)

// Label is the drafting-backend name for the stance
func (s Stance) Label() string {
	if s == StanceAdmitFault {
		return labelAdmitFault
	}
	return labelDispute
}

// ParseStance accepts the short names and the drafting-backend labels
func ParseStance(raw string) (Stance, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "dispute", "innocent", "innocent/dispute":
		return StanceDispute, nil
	case "admit", "admit-fault", "admitfault", "guilty", "guilty/mitigate", "mitigate":
		return StanceAdmitFault, nil
	}
	return "", fmt.Errorf("unknown stance %q (expected dispute or admit)", raw)
}

// Result is a classification plus the drafted letter
type Result struct {
	Strength Strength `json:"strength"`
	ActCited string   `json:"act_cited"`
	Summary  string   `json:"summary"`
	Letter   string   `json:"letter"`
}

// Complete reports whether every field a caller relies on is present
func (r Result) Complete() bool {
	return r.Strength.Valid() &&
		strings.TrimSpace(r.Summary) != "" &&
		strings.TrimSpace(r.Letter) != ""
}

// CaseInput is one submission from the drafting form
type CaseInput struct {
	EmailText         string `json:"text"`
	Stance            Stance `json:"stance"`
	ConfirmedTruthful bool   `json:"confirmedTruthful"`
}

// Source names which classifier produced a result
type Source string

const (
	SourceAI        Source = "ai"
	SourceHeuristic Source = "heuristic"
)

// Draft is a stored result with its letter correlation token
type Draft struct {
	ID        string    `json:"letterId"`
	Result    Result    `json:"result"`
	Source    Source    `json:"source"`
	Warning   string    `json:"warning,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
