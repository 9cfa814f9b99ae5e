package web

import (
	"crypto/rand"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
)

const (
	paidCookieName   = "deposit_defender_paid"
	paidCookieMaxAge = 365 * 24 * 60 * 60
)

// paidFlag is the client-persisted unlock. It is a blanket capability: any
// valid flag unlocks any gated letter for this client.
type paidFlag struct {
	Paid      bool
	SessionID string
	PaidAt    int64
}

// PaidFlags signs and reads the paid-flag cookie
type PaidFlags struct {
	codec  *securecookie.SecureCookie
	secure bool
}

// NewPaidFlags uses secret as the hash key. An empty secret gets a random
// per-process key, so flags do not survive a restart.
func NewPaidFlags(secret string, secure bool) (*PaidFlags, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("failed to generate cookie key: %w", err)
		}
	}
	codec := securecookie.New(key, nil)
	codec.MaxAge(paidCookieMaxAge)
	return &PaidFlags{codec: codec, secure: secure}, nil
}

// IsPaid reports whether the request carries a valid paid flag
func (p *PaidFlags) IsPaid(r *http.Request) bool {
	cookie, err := r.Cookie(paidCookieName)
	if err != nil || cookie.Value == "" {
		return false
	}
	var flag paidFlag
	if err := p.codec.Decode(paidCookieName, cookie.Value, &flag); err != nil {
		return false
	}
	return flag.Paid
}

// Set persists the paid flag on the client
func (p *PaidFlags) Set(w http.ResponseWriter, sessionID string) error {
	encoded, err := p.codec.Encode(paidCookieName, paidFlag{Paid: true, SessionID: sessionID, PaidAt: time.Now().Unix()})
	if err != nil {
		return fmt.Errorf("failed to encode paid flag: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     paidCookieName,
		Value:    encoded,
		Path:     "/",
		MaxAge:   paidCookieMaxAge,
		HttpOnly: true,
		Secure:   p.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}
