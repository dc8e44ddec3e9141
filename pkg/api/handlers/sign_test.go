package handlers

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bitserrors "github.com/marmos91/bitsgate/pkg/errors"
)

func fixedSigner(at time.Time) *HMACSigner {
	s := NewHMACSigner("s3cret", 0)
	s.now = func() time.Time { return at }
	return s
}

func splitSigned(t *testing.T, signed string) (string, url.Values) {
	t.Helper()
	u, err := url.Parse(signed)
	require.NoError(t, err)
	return u.Path, u.Query()
}

func TestHMACSigner_SignPath(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	s := fixedSigner(now)

	p, q := splitSigned(t, s.SignPath(VerbGet, "/packages/abc"))
	assert.Equal(t, "/signed/packages/abc", p)
	assert.Equal(t, "1700003600", q.Get("expires"), "one hour by default")
	assert.Len(t, q.Get("signature"), 64)

	require.NoError(t, s.Verify(VerbGet, "/packages/abc", q.Get("expires"), q.Get("signature")))
}

func TestHMACSigner_Verify(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	s := fixedSigner(now)
	_, q := splitSigned(t, s.SignPath(VerbPut, "/droplets/d1"))
	expires, sig := q.Get("expires"), q.Get("signature")

	tests := []struct {
		name    string
		verify  func() error
		message string
	}{
		{"WrongVerb", func() error { return s.Verify(VerbGet, "/droplets/d1", expires, sig) }, "does not match"},
		{"WrongResource", func() error { return s.Verify(VerbPut, "/droplets/d2", expires, sig) }, "does not match"},
		{"TamperedExpiry", func() error { return s.Verify(VerbPut, "/droplets/d1", "1800000000", sig) }, "does not match"},
		{"BadExpiry", func() error { return s.Verify(VerbPut, "/droplets/d1", "soon", sig) }, "no valid expiry"},
		{"OtherSecret", func() error { return NewHMACSigner("other", 0).Verify(VerbPut, "/droplets/d1", expires, sig) }, "does not match"},
		{"Expired", func() error {
			s.now = func() time.Time { return now.Add(2 * time.Hour) }
			defer func() { s.now = func() time.Time { return now } }()
			return s.Verify(VerbPut, "/droplets/d1", expires, sig)
		}, "expired"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.verify()
			require.Error(t, err)
			assert.True(t, bitserrors.IsSignatureInvalid(err))
			assert.True(t, strings.Contains(err.Error(), tt.message), err.Error())
		})
	}
}
