package auth

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSecret() string {
	return base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))
}

func newTestService(t *testing.T, ttl time.Duration) *TokenService {
	t.Helper()
	svc, err := NewTokenService(testSecret(), "ping-backend", ttl)
	require.NoError(t, err)
	return svc
}

func TestNewTokenServiceRejectsBadSecret(t *testing.T) {
	_, err := NewTokenService("", "ping-backend", time.Hour)
	assert.Error(t, err)

	_, err = NewTokenService("not-base64!!!", "ping-backend", time.Hour)
	assert.Error(t, err)
}

func TestIssueValidateRoundTrip(t *testing.T) {
	svc := newTestService(t, time.Hour)

	identity := Identity{Username: "alice", Roles: []Role{RoleUser, RoleAdmin}}
	token, err := svc.Issue(identity)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	got, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, []Role{RoleUser, RoleAdmin}, got.Roles)
	assert.True(t, got.HasRole(RoleAdmin))
}

func TestIssueRequiresUsername(t *testing.T) {
	svc := newTestService(t, time.Hour)
	_, err := svc.Issue(Identity{})
	assert.Error(t, err)
}

func TestExpiryBoundary(t *testing.T) {
	issuedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ttl := time.Hour

	clock := issuedAt
	svc := newTestService(t, ttl).WithClock(func() time.Time { return clock })

	token, err := svc.Issue(Identity{Username: "alice", Roles: []Role{RoleUser}})
	require.NoError(t, err)

	// One second before expiry the token still validates.
	clock = issuedAt.Add(ttl - time.Second)
	_, err = svc.Validate(token)
	assert.NoError(t, err)

	// One second after expiry it does not.
	clock = issuedAt.Add(ttl + time.Second)
	_, err = svc.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTamperedTokenRejected(t *testing.T) {
	svc := newTestService(t, time.Hour)

	token, err := svc.Issue(Identity{Username: "alice", Roles: []Role{RoleUser}})
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)

	// Corrupt the signature.
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	_, err = svc.Validate(tampered)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenFromDifferentKeyRejected(t *testing.T) {
	svc := newTestService(t, time.Hour)
	other, err := NewTokenService(
		base64.StdEncoding.EncodeToString([]byte("fedcba9876543210fedcba9876543210")),
		"ping-backend", time.Hour,
	)
	require.NoError(t, err)

	token, err := other.Issue(Identity{Username: "alice", Roles: []Role{RoleUser}})
	require.NoError(t, err)

	_, err = svc.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

// Every failure mode surfaces as the same error so the caller cannot tell
// malformed from forged from expired.
func TestUniformValidationFailure(t *testing.T) {
	issuedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := issuedAt
	svc := newTestService(t, time.Hour).WithClock(func() time.Time { return clock })

	expired, err := svc.Issue(Identity{Username: "alice", Roles: []Role{RoleUser}})
	require.NoError(t, err)
	clock = issuedAt.Add(2 * time.Hour)

	for name, token := range map[string]string{
		"empty":     "",
		"garbage":   "not-a-token",
		"truncated": "eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiJhbGljZSJ9",
		"expired":   expired,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Validate(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestExtractSubjectIgnoresExpiry(t *testing.T) {
	issuedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := issuedAt
	svc := newTestService(t, time.Hour).WithClock(func() time.Time { return clock })

	token, err := svc.Issue(Identity{Username: "alice", Roles: []Role{RoleUser}})
	require.NoError(t, err)

	// Well past expiry the subject is still readable, but Validate refuses.
	clock = issuedAt.Add(48 * time.Hour)
	subject, err := svc.ExtractSubject(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", subject)

	_, err = svc.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestExtractSubjectStillVerifiesSignature(t *testing.T) {
	svc := newTestService(t, time.Hour)

	token, err := svc.Issue(Identity{Username: "alice", Roles: []Role{RoleUser}})
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	tampered := parts[0] + "." + parts[1] + ".AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

	_, err = svc.ExtractSubject(tampered)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRoleFailsClosed(t *testing.T) {
	role, ok := ParseRole("ADMIN")
	assert.True(t, ok)
	assert.Equal(t, RoleAdmin, role)

	_, ok = ParseRole("SUPERUSER")
	assert.False(t, ok)

	roles := ParseRoles([]string{"USER", "SUPERUSER", "ADMIN"})
	assert.Equal(t, []Role{RoleUser, RoleAdmin}, roles)
}
