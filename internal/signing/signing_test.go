package signing

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSigner(t *testing.T) {
	s := NewSigner([]byte("topsecret"))
	s.now = func() time.Time { return time.Unix(1700000000, 0) }

	sig := s.Sign("selfies/s1/1-me.png", 1700000060)
	require.NotEmpty(t, sig)
	assert.True(t, s.Validate("selfies/s1/1-me.png", "1700000060", sig))
	assert.False(t, s.Validate("selfies/s2/1-me.png", "1700000060", sig))
	assert.False(t, s.Validate("selfies/s1/1-me.png", "1700000061", sig))
	assert.False(t, s.Validate("selfies/s1/1-me.png", "soon", sig))

	// Expired links fail even with a correct signature.
	old := s.Sign("selfies/s1/1-me.png", 1699999999)
	assert.False(t, s.Validate("selfies/s1/1-me.png", "1699999999", old))
}

func TestSignerURLRoundTrip(t *testing.T) {
	s := NewSigner([]byte("topsecret"))
	link := s.URL("/api/v1/admin/kyc/images", "documents/s1/1-card.png", time.Minute)
	require.True(t, strings.HasPrefix(link, "/api/v1/admin/kyc/images?"))

	u, err := url.Parse(link)
	require.NoError(t, err)
	ref, ok := s.Verify(u.Query())
	assert.True(t, ok)
	assert.Equal(t, "documents/s1/1-card.png", ref)

	q := u.Query()
	q.Set("ref", "selfies/other")
	_, ok = s.Verify(q)
	assert.False(t, ok)

	_, ok = NewSigner([]byte("other")).Verify(u.Query())
	assert.False(t, ok)
}
