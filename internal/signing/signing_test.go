package signing

import (
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSigner(t *testing.T) {
	s := NewSigner([]byte("topsecret"), time.Hour)
	sig := s.Sign("1700000000123", 1700000000)
	require.NotEmpty(t, sig)

	assert.True(t, s.Validate("1700000000123", "1700000000", sig))
	assert.False(t, s.Validate("wrong", "1700000000", sig))
	assert.False(t, s.Validate("1700000000123", "42", sig))
	assert.False(t, s.Validate("1700000000123", "soon", sig))
	assert.False(t, NewSigner([]byte("other"), time.Hour).Validate("1700000000123", "1700000000", sig))
}

func TestShareLinkRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := NewSigner([]byte("topsecret"), 24*time.Hour)
	s.now = func() time.Time { return now }

	link := s.ShareLink("https://docs.example.com", "1700000000123")
	assert.True(t, strings.HasPrefix(link.URL, "https://docs.example.com/document/view/1700000000123?"))
	assert.Equal(t, now.Add(24*time.Hour), link.ExpiresAt)

	u, err := url.Parse(link.URL)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, strconv.FormatInt(now.Add(24*time.Hour).Unix(), 10), q.Get("expires"))
	assert.NoError(t, s.Verify("1700000000123", q.Get("expires"), q.Get("signature")))
	assert.ErrorIs(t, s.Verify("1700000000124", q.Get("expires"), q.Get("signature")), ErrBadSignature)

	s.now = func() time.Time { return now.Add(25 * time.Hour) }
	assert.ErrorIs(t, s.Verify("1700000000123", q.Get("expires"), q.Get("signature")), ErrExpired)
}
