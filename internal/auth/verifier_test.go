package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDevTokens(t *testing.T) {
	v := NewVerifier("", nil)
	p, err := v.Verify("t_acme:Planner")
	require.NoError(t, err)
	assert.Equal(t, Principal{Tenant: "t_acme", Role: RolePlanner}, p)

	_, err = v.Verify("nope")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestHS256RoundTrip(t *testing.T) {
	secret := []byte("s3cr3t")
	v := NewVerifier("hmac", secret)
	v.now = func() time.Time { return time.Unix(1000, 0) }

	tok, err := SignHS256(secret, map[string]any{"tenant": "t1", "role": "admin", "sub": "u1", "exp": 2000})
	require.NoError(t, err)
	p, err := v.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, Principal{Tenant: "t1", Role: RoleAdmin, Subject: "u1"}, p)

	forged, err := SignHS256([]byte("other"), map[string]any{"tenant": "t1", "role": "admin"})
	require.NoError(t, err)
	_, err = v.Verify(forged)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := SignHS256(secret, map[string]any{"tenant": "t1", "exp": 999})
	require.NoError(t, err)
	_, err = v.Verify(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	noTenant, err := SignHS256(secret, map[string]any{"role": "admin"})
	require.NoError(t, err)
	_, err = v.Verify(noTenant)
	assert.ErrorIs(t, err, ErrInvalidToken)

	viewer, err := SignHS256(secret, map[string]any{"tenant": "t2"})
	require.NoError(t, err)
	p, err = v.Verify(viewer)
	require.NoError(t, err)
	assert.Equal(t, RoleViewer, p.Role)
}
