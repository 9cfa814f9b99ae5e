package web

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/depositdefender/defender/internal/classify"
	"github.com/depositdefender/defender/internal/config"
	"github.com/depositdefender/defender/internal/correspondence"
	"github.com/depositdefender/defender/internal/history"
	"github.com/depositdefender/defender/internal/llm"
	"github.com/depositdefender/defender/internal/payment"
	"github.com/depositdefender/defender/internal/paywall"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/csrf"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeJSON reads a bounded JSON body; an empty body leaves v untouched
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := map[string]interface{}{
		"CSRFToken": csrf.Token(r),
		"Paid":      s.paid.IsPaid(r),
		"Failed":    r.URL.Query().Get("payment") == "failed",
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.index.Execute(w, data); err != nil {
		log.Printf("Template error: %v", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"ai":        s.aiProvider != nil,
		"payments":  s.payments.Configured(),
		"letters":   s.letters.Len(),
		"letterTTL": s.letters.TTL().String(),
	})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"paid":      s.paid.IsPaid(r),
		"csrfToken": csrf.Token(r),
	})
}

type chatRequest struct {
	Text    string `json:"text"`
	Context string `json:"context"`
}

// handleChat is the AI-only drafting endpoint; clients fall back locally on any error
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if s.aiProvider == nil {
		writeError(w, http.StatusInternalServerError, configMessage(s.aiErr))
		return
	}

	stance, err := parseStance(req.Context)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := classify.NewAIClassifier(s.aiProvider).Classify(r.Context(), req.Text, stance)
	if err != nil {
		log.Printf("AI draft failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to draft letter: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type draftRequest struct {
	Text              string `json:"text"`
	Stance            string `json:"stance"`
	Context           string `json:"context"`
	ConfirmedTruthful bool   `json:"confirmedTruthful"`
}

type draftResponse struct {
	LetterID string            `json:"letterId"`
	Strength classify.Strength `json:"strength"`
	ActCited string            `json:"act_cited"`
	Summary  string            `json:"summary"`
	Source   classify.Source   `json:"source"`
	Warning  string            `json:"warning,omitempty"`
	paywall.View
}

func newDraftResponse(d classify.Draft, view paywall.View) draftResponse {
	return draftResponse{
		LetterID: d.ID,
		Strength: d.Result.Strength,
		ActCited: d.Result.ActCited,
		Summary:  d.Result.Summary,
		Source:   d.Source,
		Warning:  d.Warning,
		View:     view,
	}
}

// handleDraft runs the full flow: validation, classification with fallback,
// storage and the paywall decision
func (s *Server) handleDraft(w http.ResponseWriter, r *http.Request) {
	var req draftRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	rawStance := req.Stance
	if rawStance == "" {
		rawStance = req.Context
	}
	stance, err := parseStance(rawStance)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	doc := correspondence.Normalize(req.Text)
	in := classify.CaseInput{EmailText: doc.Content(), Stance: stance, ConfirmedTruthful: req.ConfirmedTruthful}
	if err := classify.Validate(in); err != nil {
		var verr *classify.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": verr.Message, "field": verr.Field})
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	out := s.classifier.Classify(r.Context(), in.EmailText, stance)
	draft := classify.NewDraft(out)
	s.letters.Put(draft)
	s.recordDraft(draft, stance)

	writeJSON(w, http.StatusOK, newDraftResponse(draft, s.view(r, draft)))
}

func (s *Server) handleGetLetter(w http.ResponseWriter, r *http.Request) {
	letterID := chi.URLParam(r, "letterID")
	draft, ok := s.letters.Get(letterID)
	if !ok {
		writeError(w, http.StatusNotFound, "Letter not found or expired. Please draft it again.")
		return
	}

	writeJSON(w, http.StatusOK, newDraftResponse(draft, s.view(r, draft)))
}

// view runs the unlock machine for one draft. The paid cookie unlocks every
// gated draft; a verified payment naming this letter unlocks it alone.
func (s *Server) view(r *http.Request, d classify.Draft) paywall.View {
	m := paywall.New(s.paid.IsPaid(r))
	if m.Load(d.Result) == paywall.GatedLocked && s.letterPaid(d.ID) {
		m.Unlock()
	}
	return m.View()
}

func (s *Server) letterPaid(letterID string) bool {
	if s.historyStore == nil || letterID == "" {
		return false
	}
	paid, err := s.historyStore.IsLetterPaid(letterID)
	if err != nil {
		log.Printf("failed to check payment for letter %s: %v", letterID, err)
		return false
	}
	return paid
}

type checkoutRequest struct {
	LetterID string `json:"letterId"`
}

func (s *Server) handleCreateCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	co, err := s.payments.CreateSession(r.Context(), req.LetterID)
	if err != nil {
		if errors.Is(err, config.ErrMissingCredential) {
			writeError(w, http.StatusInternalServerError, configMessage(err))
			return
		}
		log.Printf("Stripe checkout error: %v", err)
		writeError(w, http.StatusBadGateway, "Failed to create checkout session")
		return
	}
	writeJSON(w, http.StatusOK, co)
}

type verifyRequest struct {
	SessionID string `json:"sessionId"`
}

func (s *Server) handleVerifyPayment(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	v, err := s.verify(w, r, req.SessionID)
	if err != nil {
		switch {
		case errors.Is(err, payment.ErrMissingSessionID):
			writeError(w, http.StatusBadRequest, "Session ID is required")
		case errors.Is(err, config.ErrMissingCredential):
			writeError(w, http.StatusInternalServerError, configMessage(err))
		default:
			writeError(w, http.StatusBadGateway, "Failed to verify payment")
		}
		return
	}

	if !v.Verified {
		writeJSON(w, http.StatusBadRequest, v)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// handleSuccess is the provider's return URL
func (s *Server) handleSuccess(w http.ResponseWriter, r *http.Request) {
	v, err := s.verify(w, r, r.URL.Query().Get("session_id"))
	if err != nil || !v.Verified {
		http.Redirect(w, r, "/?payment=failed", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/?paid=true", http.StatusSeeOther)
}

// verify polls the provider, records the attempt, and sets the paid flag on success
func (s *Server) verify(w http.ResponseWriter, r *http.Request, sessionID string) (*payment.Verification, error) {
	v, err := s.payments.VerifySession(r.Context(), sessionID)
	if errors.Is(err, payment.ErrMissingSessionID) {
		return nil, err
	}

	rec := &history.PaymentRecord{SessionID: sessionID}
	if err != nil {
		log.Printf("Payment verification error: %v", err)
		rec.Error = err.Error()
	} else {
		rec.Verified = v.Verified
		rec.LetterID = v.LetterID
	}
	s.recordPayment(rec)

	if err != nil {
		return nil, err
	}
	if v.Verified {
		if err := s.paid.Set(w, sessionID); err != nil {
			log.Printf("failed to set paid flag: %v", err)
		}
	}
	return v, nil
}

func (s *Server) recordDraft(d classify.Draft, stance classify.Stance) {
	if s.historyStore == nil {
		return
	}
	err := s.historyStore.RecordDraft(&history.DraftRecord{
		LetterID:  d.ID,
		Strength:  string(d.Result.Strength),
		ActCited:  d.Result.ActCited,
		Source:    string(d.Source),
		Stance:    string(stance),
		Fallback:  d.Source == classify.SourceHeuristic,
		CreatedAt: d.CreatedAt,
	})
	if err != nil {
		log.Printf("failed to record draft: %v", err)
	}
}

func (s *Server) recordPayment(rec *history.PaymentRecord) {
	if s.historyStore == nil {
		return
	}
	if err := s.historyStore.RecordPayment(rec); err != nil {
		log.Printf("failed to record payment check: %v", err)
	}
}

// parseStance defaults to dispute when nothing was chosen
func parseStance(raw string) (classify.Stance, error) {
	if strings.TrimSpace(raw) == "" {
		return classify.StanceDispute, nil
	}
	return classify.ParseStance(raw)
}

// configMessage names the missing credential without echoing any secret
func configMessage(err error) string {
	if err == nil {
		return "Service is not configured"
	}
	msg := err.Error()
	if i := strings.Index(msg, ":"); i > 0 && errors.Is(err, config.ErrMissingCredential) {
		return msg[:i] + " is not configured"
	}
	if errors.Is(err, llm.ErrDisabled) {
		return "AI drafting is disabled"
	}
	return msg
}
