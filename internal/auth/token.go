// Package auth signs and verifies the short-lived capability tokens that
// gate a media stream connection.
//
// A token is the lowercase hex HMAC-SHA256 of "userId:callId:issuedAtMs"
// keyed with the shared media secret.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"
)

// DefaultMaxSkew is the largest accepted distance between now and issuedAtMs.
const DefaultMaxSkew = 60 * time.Second

var (
	ErrMissingParams = errors.New("auth: missing token parameters")
	ErrBadTimestamp  = errors.New("auth: malformed issued-at timestamp")
	ErrExpired       = errors.New("auth: token outside allowed clock skew")
	ErrBadSignature  = errors.New("auth: invalid token signature")
)

// Token is the transient credential presented by a connecting stream.
type Token struct {
	UserID     string
	CallID     string
	IssuedAtMs string
	Signature  string
}

// Verifier checks tokens against one secret.
type Verifier struct {
	Secret  string
	MaxSkew time.Duration
	Now     func() time.Time
}

// NewVerifier returns a Verifier using the wall clock.
func NewVerifier(secret string, maxSkew time.Duration) *Verifier {
	if maxSkew <= 0 {
		maxSkew = DefaultMaxSkew
	}
	return &Verifier{Secret: secret, MaxSkew: maxSkew, Now: time.Now}
}

// Verify returns nil when the token is complete, fresh and correctly signed.
func (v *Verifier) Verify(t Token) error {
	if t.UserID == "" || t.CallID == "" || t.IssuedAtMs == "" || t.Signature == "" || v.Secret == "" {
		return ErrMissingParams
	}
	issued, err := strconv.ParseInt(t.IssuedAtMs, 10, 64)
	if err != nil {
		return ErrBadTimestamp
	}
	skew := v.Now().UnixMilli() - issued
	if skew < 0 {
		skew = -skew
	}
	if skew > v.MaxSkew.Milliseconds() {
		return ErrExpired
	}
	expected := Sign(v.Secret, t.UserID, t.CallID, issued)
	if !hmac.Equal([]byte(expected), []byte(t.Signature)) {
		return ErrBadSignature
	}
	return nil
}

// Sign computes the hex signature for the given token fields.
func Sign(secret, userID, callID string, issuedAtMs int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(Message(userID, callID, issuedAtMs)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Message is the exact string covered by the signature.
func Message(userID, callID string, issuedAtMs int64) string {
	return userID + ":" + callID + ":" + strconv.FormatInt(issuedAtMs, 10)
}
