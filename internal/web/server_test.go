package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/depositdefender/defender/internal/cache"
	"github.com/depositdefender/defender/internal/classify"
	"github.com/depositdefender/defender/internal/config"
	"github.com/depositdefender/defender/internal/history"
	"github.com/depositdefender/defender/internal/letter"
	"github.com/depositdefender/defender/internal/llm"
	"github.com/depositdefender/defender/internal/payment"
)

type stubAI struct {
	resp  *llm.DraftResponse
	err   error
	calls int
	texts []string
}

func (s *stubAI) Name() string { return "stub" }

func (s *stubAI) Draft(ctx context.Context, req llm.DraftRequest) (*llm.DraftResponse, error) {
	s.calls++
	s.texts = append(s.texts, req.Text)
	return s.resp, s.err
}

type stubCheckout struct {
	sessions map[string]*payment.Session
}

func (s *stubCheckout) Name() string { return "stub" }

func (s *stubCheckout) CreateSession(ctx context.Context, req payment.CheckoutRequest) (*payment.Session, error) {
	return &payment.Session{ID: "cs_new", URL: "https://checkout.example/cs_new", LetterID: req.LetterID}, nil
}

func (s *stubCheckout) GetSession(ctx context.Context, id string) (*payment.Session, error) {
	sess, ok := s.sessions[id]
	if !ok {
		return nil, payment.ErrSessionNotFound
	}
	return sess, nil
}

type testEnv struct {
	server   *Server
	handler  http.Handler
	history  *history.Store
	checkout *stubCheckout
}

type envOptions struct {
	ai        llm.Provider
	aiErr     error
	noPayment bool
	csrf      bool
	rateLimit int
}

func newTestEnv(t *testing.T, opts envOptions) *testEnv {
	t.Helper()

	cfg := config.Default()
	cfg.Server.CSRF = opts.csrf
	cfg.Server.CookieSecret = "test-cookie-secret-0123456789abcdef"
	if opts.rateLimit > 0 {
		cfg.Server.RateLimitPerMinute = opts.rateLimit
	}

	engine, err := letter.NewEngine()
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	heuristic, err := classify.NewHeuristic(engine, "")
	if err != nil {
		t.Fatalf("NewHeuristic() error = %v", err)
	}

	var primary classify.Classifier
	if opts.ai != nil {
		primary = classify.NewAIClassifier(opts.ai)
	}

	checkout := &stubCheckout{sessions: map[string]*payment.Session{
		"cs_paid":   {ID: "cs_paid", Paid: true, LetterID: "letter-from-stripe"},
		"cs_unpaid": {ID: "cs_unpaid", Paid: false},
	}}
	var provider payment.Provider
	if !opts.noPayment {
		provider = checkout
	}

	store, err := history.NewStore(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	srv, err := NewServer(cfg, Deps{
		Classifier: classify.NewFallback(primary, heuristic),
		AIProvider: opts.ai,
		AIError:    opts.aiErr,
		Payments:   payment.NewService(provider, cfg.Payment, cfg.Server.BaseURL),
		Letters:    cache.NewLetterStore(time.Hour),
		History:    store,
	})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	t.Cleanup(func() { srv.Shutdown(context.Background()) })

	return &testEnv{server: srv, handler: srv.Handler(), history: store, checkout: checkout}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid JSON %q: %v", rec.Body.String(), err)
	}
	return out
}

func paidCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == paidCookieName {
			return c
		}
	}
	t.Fatal("paid cookie not set")
	return nil
}

func TestDraftValidation(t *testing.T) {
	ai := &stubAI{resp: &llm.DraftResponse{Strength: "High", ActCited: "a", Summary: "s", Letter: "Dear Sir,\n\nNo."}}
	env := newTestEnv(t, envOptions{ai: ai})

	tests := []struct {
		name string
		body map[string]interface{}
		want string
	}{
		{
			name: "withhold rent",
			body: map[string]interface{}{"text": "I intend to withhold rent", "confirmedTruthful": false},
			want: classify.MsgDisallowedStrategy,
		},
		{
			name: "withhold rent in message subject",
			body: map[string]interface{}{
				"text":              "From: tenant@example.com\nTo: agent@example.co.uk\nSubject: I will withhold rent\n\nPlease return my deposit.",
				"confirmedTruthful": true,
			},
			want: classify.MsgDisallowedStrategy,
		},
		{
			name: "unconfirmed",
			body: map[string]interface{}{"text": "carpet cleaning"},
			want: classify.MsgNotConfirmed,
		},
		{
			name: "empty",
			body: map[string]interface{}{"text": "", "confirmedTruthful": true},
			want: classify.MsgEmptyText,
		},
		{
			name: "html with no text",
			body: map[string]interface{}{"text": "<html><body><script>x()</script></body></html>", "confirmedTruthful": true},
			want: classify.MsgEmptyText,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/draft", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if got := decode(t, rec)["error"]; got != tt.want {
				t.Errorf("error = %q, want %q", got, tt.want)
			}
			if ai.calls != 0 {
				t.Errorf("drafting backend called %d times for a rejected submission", ai.calls)
			}
		})
	}

	rec := env.do(t, http.MethodPost, "/api/draft", map[string]interface{}{"text": "x", "stance": "sideways", "confirmedTruthful": true})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown stance status = %d", rec.Code)
	}
	if ai.calls != 0 {
		t.Errorf("drafting backend called %d times", ai.calls)
	}

	// an accepted submission does reach the backend
	rec = env.do(t, http.MethodPost, "/api/draft", map[string]interface{}{"text": "cleaning £100", "confirmedTruthful": true})
	if rec.Code != http.StatusOK || ai.calls != 1 {
		t.Errorf("accepted draft status = %d, calls = %d", rec.Code, ai.calls)
	}
}

func TestDraftReadsMessageSubject(t *testing.T) {
	raw := "From: agent@example.co.uk\nTo: tenant@example.com\nSubject: Professional cleaning charge\n\nPlease see the attached invoice for £180."

	t.Run("keyword classifier", func(t *testing.T) {
		env := newTestEnv(t, envOptions{})
		rec := env.do(t, http.MethodPost, "/api/draft", map[string]interface{}{
			"text":              raw,
			"stance":            "dispute",
			"confirmedTruthful": true,
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
		}
		body := decode(t, rec)
		if body["strength"] != "High" || body["act_cited"] != classify.ActFeesSchedule {
			t.Errorf("strength/act = %v/%v", body["strength"], body["act_cited"])
		}
	})

	t.Run("drafting backend", func(t *testing.T) {
		ai := &stubAI{resp: &llm.DraftResponse{Strength: "High", ActCited: "a", Summary: "s", Letter: "Dear Sir,\n\nNo."}}
		env := newTestEnv(t, envOptions{ai: ai})
		env.do(t, http.MethodPost, "/api/draft", map[string]interface{}{"text": raw, "confirmedTruthful": true})
		if len(ai.texts) != 1 || !strings.HasPrefix(ai.texts[0], "Professional cleaning charge\n\n") {
			t.Errorf("backend text = %q", ai.texts)
		}
	})
}

func TestDraftGatedLocked(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	rec := env.do(t, http.MethodPost, "/api/draft", map[string]interface{}{
		"text":              "We deducted £180 for a professional clean.",
		"stance":            "dispute",
		"confirmedTruthful": true,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	body := decode(t, rec)
	if body["strength"] != "High" || body["source"] != "heuristic" {
		t.Errorf("strength/source = %v/%v", body["strength"], body["source"])
	}
	if body["state"] != "gated_locked" || body["showPaywall"] != true || body["canCopy"] != false {
		t.Errorf("paywall = %v %v %v", body["state"], body["showPaywall"], body["canCopy"])
	}
	if _, ok := body["letter"]; ok {
		t.Error("locked response must not include the letter")
	}
	if body["visibleParagraph"] != "Dear Sir or Madam," {
		t.Errorf("visibleParagraph = %v", body["visibleParagraph"])
	}
	if obscured, _ := body["obscuredParagraphs"].([]interface{}); len(obscured) == 0 {
		t.Error("expected obscured paragraphs")
	}
	if strings.Contains(rec.Body.String(), "In relation to cleaning") {
		t.Error("gated prose leaked in response")
	}

	id, _ := body["letterId"].(string)
	rec2, err := env.history.GetDraft(id)
	if err != nil || rec2 == nil {
		t.Fatalf("draft not recorded: %v", err)
	}
	if rec2.Strength != "High" {
		t.Errorf("recorded strength = %s", rec2.Strength)
	}
	if !rec2.Fallback || rec2.Source != "heuristic" {
		t.Errorf("keyword-only draft recorded as source=%s fallback=%v", rec2.Source, rec2.Fallback)
	}
}

func TestDraftLowIsFree(t *testing.T) {
	env := newTestEnv(t, envOptions{ai: &stubAI{resp: &llm.DraftResponse{
		Strength: "Low",
		ActCited: "N/A",
		Summary:  "The damage was deliberate.",
		Letter:   "Dear Landlord,\n\nI accept the cost of the window.",
	}}})

	rec := env.do(t, http.MethodPost, "/api/draft", map[string]interface{}{
		"text":              "Window smashed at a party",
		"context":           "Guilty/Mitigate",
		"confirmedTruthful": true,
	})
	body := decode(t, rec)
	if body["source"] != "ai" || body["strength"] != "Low" {
		t.Errorf("source/strength = %v/%v", body["source"], body["strength"])
	}
	if body["state"] != "free_shown" || body["showPaywall"] != false || body["canCopy"] != true {
		t.Errorf("view = %v", body)
	}
	if body["letter"] != "Dear Landlord,\n\nI accept the cost of the window." {
		t.Errorf("letter = %v", body["letter"])
	}

	rec2, err := env.history.GetDraft(body["letterId"].(string))
	if err != nil || rec2 == nil {
		t.Fatalf("draft not recorded: %v", err)
	}
	if rec2.Fallback {
		t.Error("AI draft recorded as fallback")
	}
}

func TestDraftFallbackWarning(t *testing.T) {
	env := newTestEnv(t, envOptions{ai: &stubAI{err: errors.New("upstream timeout")}})

	rec := env.do(t, http.MethodPost, "/api/draft", map[string]interface{}{
		"text":              "Carpet replacement £600",
		"confirmedTruthful": true,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decode(t, rec)
	if body["source"] != "heuristic" || body["warning"] != classify.WarnUnavailable {
		t.Errorf("source/warning = %v/%v", body["source"], body["warning"])
	}
	if body["act_cited"] != classify.ActProtectionFairness {
		t.Errorf("act = %v", body["act_cited"])
	}
}

func TestPaidRoundTrip(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	rec := env.do(t, http.MethodPost, "/api/draft", map[string]interface{}{
		"text":              "Cleaning charge £150",
		"confirmedTruthful": true,
	})
	id := decode(t, rec)["letterId"].(string)

	rec = env.do(t, http.MethodPost, "/api/verify-payment", map[string]string{"sessionId": "cs_paid"})
	if rec.Code != http.StatusOK {
		t.Fatalf("verify status = %d: %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if body["verified"] != true || body["letterId"] != "letter-from-stripe" {
		t.Errorf("verify = %v", body)
	}
	cookie := paidCookie(t, rec)

	rec = env.do(t, http.MethodGet, "/api/letters/"+id, nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("letter status = %d", rec.Code)
	}
	body = decode(t, rec)
	if body["state"] != "gated_unlocked" || body["canCopy"] != true || body["showPaywall"] != false {
		t.Errorf("unlocked view = %v", body)
	}
	if letter, _ := body["letter"].(string); !strings.HasPrefix(letter, "Dear Sir or Madam,") {
		t.Errorf("letter = %q", letter)
	}

	rec = env.do(t, http.MethodGet, "/api/session", nil, cookie)
	if decode(t, rec)["paid"] != true {
		t.Error("session should report paid")
	}

	// without the cookie the same letter is locked again
	rec = env.do(t, http.MethodGet, "/api/letters/"+id, nil)
	if decode(t, rec)["state"] != "gated_locked" {
		t.Error("letter should be locked without the paid flag")
	}

	stats, err := env.history.GetStats()
	if err != nil {
		t.Fatalf("GetStats() error = %v", err)
	}
	if stats.VerifiedPayment != 1 {
		t.Errorf("verified payments = %d", stats.VerifiedPayment)
	}
}

func TestPaymentForLetterUnlocksThatLetter(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	draft := func() string {
		rec := env.do(t, http.MethodPost, "/api/draft", map[string]interface{}{"text": "Cleaning charge £150", "confirmedTruthful": true})
		return decode(t, rec)["letterId"].(string)
	}
	paidFor, other := draft(), draft()

	env.checkout.sessions["cs_letter"] = &payment.Session{ID: "cs_letter", Paid: true, LetterID: paidFor}
	if rec := env.do(t, http.MethodPost, "/api/verify-payment", map[string]string{"sessionId": "cs_letter"}); rec.Code != http.StatusOK {
		t.Fatalf("verify status = %d", rec.Code)
	}

	// no paid cookie is sent: only the recorded payment can unlock
	tests := []struct {
		id   string
		want string
	}{
		{paidFor, "gated_unlocked"},
		{other, "gated_locked"},
	}
	for _, tt := range tests {
		rec := env.do(t, http.MethodGet, "/api/letters/"+tt.id, nil)
		body := decode(t, rec)
		if body["state"] != tt.want {
			t.Errorf("letter %s state = %v, want %s", tt.id, body["state"], tt.want)
		}
		if tt.want == "gated_unlocked" && body["canCopy"] != true {
			t.Errorf("unlocked letter canCopy = %v", body["canCopy"])
		}
	}
}

func TestForgedPaidCookieIgnored(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	rec := env.do(t, http.MethodGet, "/api/session", nil, &http.Cookie{Name: paidCookieName, Value: "true"})
	if decode(t, rec)["paid"] != false {
		t.Error("unsigned cookie must not unlock")
	}
}

func TestVerifyPayment(t *testing.T) {
	tests := []struct {
		name      string
		noPayment bool
		body      interface{}
		status    int
		check     func(t *testing.T, body map[string]interface{})
	}{
		{
			name:   "missing session id",
			body:   map[string]string{},
			status: http.StatusBadRequest,
			check: func(t *testing.T, body map[string]interface{}) {
				if body["error"] != "Session ID is required" {
					t.Errorf("error = %v", body["error"])
				}
			},
		},
		{
			name:   "unpaid",
			body:   map[string]string{"sessionId": "cs_unpaid"},
			status: http.StatusBadRequest,
			check: func(t *testing.T, body map[string]interface{}) {
				if body["verified"] != false {
					t.Errorf("verified = %v", body["verified"])
				}
			},
		},
		{
			name:   "unknown session",
			body:   map[string]string{"sessionId": "cs_bogus"},
			status: http.StatusBadRequest,
		},
		{
			name:      "not configured",
			noPayment: true,
			body:      map[string]string{"sessionId": "cs_paid"},
			status:    http.StatusInternalServerError,
			check: func(t *testing.T, body map[string]interface{}) {
				if body["error"] != "STRIPE_SECRET_KEY is not configured" {
					t.Errorf("error = %v", body["error"])
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, envOptions{noPayment: tt.noPayment})
			rec := env.do(t, http.MethodPost, "/api/verify-payment", tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.status, rec.Body.String())
			}
			for _, c := range rec.Result().Cookies() {
				if c.Name == paidCookieName {
					t.Error("paid cookie set on failed verification")
				}
			}
			if tt.check != nil {
				tt.check(t, decode(t, rec))
			}
		})
	}
}

func TestSuccessRedirect(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	rec := env.do(t, http.MethodGet, "/success?session_id=cs_paid&letter_id=abc", nil)
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/?paid=true" {
		t.Errorf("paid redirect = %d %s", rec.Code, rec.Header().Get("Location"))
	}
	paidCookie(t, rec)

	for _, path := range []string{"/success?session_id=cs_unpaid", "/success"} {
		rec = env.do(t, http.MethodGet, path, nil)
		if rec.Header().Get("Location") != "/?payment=failed" {
			t.Errorf("%s redirect = %s", path, rec.Header().Get("Location"))
		}
	}
}

func TestCreateCheckout(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	rec := env.do(t, http.MethodPost, "/api/create-checkout", map[string]string{"letterId": "abc"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decode(t, rec)
	if body["sessionId"] != "cs_new" || body["url"] != "https://checkout.example/cs_new" {
		t.Errorf("checkout = %v", body)
	}

	// letterId is optional
	rec = env.do(t, http.MethodPost, "/api/create-checkout", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("empty body status = %d", rec.Code)
	}

	env = newTestEnv(t, envOptions{noPayment: true})
	rec = env.do(t, http.MethodPost, "/api/create-checkout", map[string]string{"letterId": "abc"})
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("unconfigured status = %d", rec.Code)
	}
}

func TestChat(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		env := newTestEnv(t, envOptions{aiErr: fmt.Errorf("OPENAI_API_KEY: %w", config.ErrMissingCredential)})
		rec := env.do(t, http.MethodPost, "/api/chat", map[string]string{"text": "x", "context": "Innocent/Dispute"})
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d", rec.Code)
		}
		if decode(t, rec)["error"] != "OPENAI_API_KEY is not configured" {
			t.Errorf("error = %s", rec.Body.String())
		}
	})

	t.Run("success", func(t *testing.T) {
		env := newTestEnv(t, envOptions{ai: &stubAI{resp: &llm.DraftResponse{
			Strength: "High", ActCited: "Tenant Fees Act 2019", Summary: "s", Letter: "Dear Sir,\n\nNo.",
		}}})
		rec := env.do(t, http.MethodPost, "/api/chat", map[string]string{"text": "cleaning", "context": "Innocent/Dispute"})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		body := decode(t, rec)
		for _, k := range []string{"strength", "act_cited", "summary", "letter"} {
			if _, ok := body[k]; !ok {
				t.Errorf("missing %s", k)
			}
		}
	})

	t.Run("incomplete", func(t *testing.T) {
		env := newTestEnv(t, envOptions{ai: &stubAI{err: llm.ErrIncompleteDraft}})
		rec := env.do(t, http.MethodPost, "/api/chat", map[string]string{"text": "x"})
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("status = %d", rec.Code)
		}
	})
}

func TestLetterNotFound(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	rec := env.do(t, http.MethodGet, "/api/letters/does-not-exist", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestHealthAndHeaders(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	rec := env.do(t, http.MethodGet, "/healthz", nil)
	health := decode(t, rec)
	if rec.Code != http.StatusOK || health["status"] != "ok" {
		t.Errorf("healthz = %d %s", rec.Code, rec.Body.String())
	}
	if health["letters"] != float64(0) || health["letterTTL"] != "1h0m0s" {
		t.Errorf("letter store health = %v/%v", health["letters"], health["letterTTL"])
	}
	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("missing security headers")
	}
	if rec.Header().Get("Cache-Control") == "" {
		t.Error("missing Cache-Control")
	}

	rec = env.do(t, http.MethodGet, "/", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Deposit Defender") {
		t.Errorf("index = %d", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, envOptions{rateLimit: 2})
	body := map[string]interface{}{"text": "cleaning", "confirmedTruthful": true}

	for i := 0; i < 2; i++ {
		if rec := env.do(t, http.MethodPost, "/api/draft", body); rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, rec.Code)
		}
	}
	if rec := env.do(t, http.MethodPost, "/api/draft", body); rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}

	// non-drafting routes are not limited
	if rec := env.do(t, http.MethodGet, "/api/session", nil); rec.Code != http.StatusOK {
		t.Errorf("session status = %d", rec.Code)
	}
}

func TestCSRF(t *testing.T) {
	env := newTestEnv(t, envOptions{csrf: true})
	body := map[string]interface{}{"text": "cleaning", "confirmedTruthful": true}

	rec := env.do(t, http.MethodPost, "/api/draft", body)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("without token status = %d, want 403", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/session", nil)
	token, _ := decode(t, rec)["csrfToken"].(string)
	if token == "" {
		t.Fatal("no CSRF token issued")
	}

	var buf bytes.Buffer
	json.NewEncoder(&buf).Encode(body)
	req := httptest.NewRequest(http.MethodPost, "/api/draft", &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-CSRF-Token", token)
	req.Header.Set("Origin", "http://localhost:3000")
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	rec2 := httptest.NewRecorder()
	env.handler.ServeHTTP(rec2, req)
	if rec2.Code != http.StatusOK {
		t.Errorf("with token status = %d: %s", rec2.Code, rec2.Body.String())
	}
}
