// Package signing issues and verifies HMAC-signed, expiring share links for
// the read-only document viewer.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// ViewPath is the route prefix of the read-only viewer.
const ViewPath = "/document/view/"

var (
	ErrBadSignature = errors.New("invalid share link signature")
	ErrExpired      = errors.New("share link expired")
)

// Signer generates and validates HMAC based signatures.
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSigner creates a Signer whose links live for ttl.
func NewSigner(secret []byte, ttl time.Duration) *Signer {
	return &Signer{secret: secret, ttl: ttl, now: time.Now}
}

// Sign returns the hex signature for a document id and expiry.
func (s *Signer) Sign(documentID string, expiresUnix int64) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "view:%s:%d", documentID, expiresUnix)
	return hex.EncodeToString(mac.Sum(nil))
}

// Validate compares the provided signature with the expected one. It does not
// look at the clock; Verify does.
func (s *Signer) Validate(documentID, expires, signature string) bool {
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return false
	}
	expected := s.Sign(documentID, exp)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Verify checks signature and expiry together.
func (s *Signer) Verify(documentID, expires, signature string) error {
	if !s.Validate(documentID, expires, signature) {
		return ErrBadSignature
	}
	exp, _ := strconv.ParseInt(expires, 10, 64)
	if s.now().Unix() > exp {
		return ErrExpired
	}
	return nil
}

// Link is a signed viewer URL.
type Link struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ShareLink builds <origin>/document/view/<id>?expires=..&signature=..
func (s *Signer) ShareLink(origin, documentID string) Link {
	exp := s.now().Add(s.ttl).Unix()
	q := url.Values{}
	q.Set("expires", strconv.FormatInt(exp, 10))
	q.Set("signature", s.Sign(documentID, exp))
	return Link{
		URL:       origin + ViewPath + url.PathEscape(documentID) + "?" + q.Encode(),
		ExpiresAt: time.Unix(exp, 0).UTC(),
	}
}
