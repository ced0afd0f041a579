// Package auth provides bearer token verification for the API.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Roles understood by the API.
const (
	RoleAdmin   = "admin"
	RolePlanner = "planner"
	RoleViewer  = "viewer"
)

var ErrInvalidToken = errors.New("invalid token")

// Verifier validates bearer tokens and extracts tenant/role claims.
// Modes: dev ("tenant:role" tokens, no signature) and hmac (HS256 JWT).
type Verifier struct {
	Mode        string
	HMACSecret  []byte
	TenantClaim string
	RoleClaim   string
	now         func() time.Time
}

type Principal struct {
	Tenant  string
	Role    string
	Subject string
}

func NewVerifier(mode string, secret []byte) *Verifier {
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode == "" {
		mode = "dev"
	}
	return &Verifier{Mode: mode, HMACSecret: secret, TenantClaim: "tenant", RoleClaim: "role", now: time.Now}
}

func (v *Verifier) Verify(token string) (Principal, error) {
	switch v.Mode {
	case "dev":
		parts := strings.Split(token, ":")
		if len(parts) < 2 || parts[0] == "" {
			return Principal{}, fmt.Errorf("%w: expected tenant:role", ErrInvalidToken)
		}
		return Principal{Tenant: parts[0], Role: strings.ToLower(parts[1])}, nil
	case "hmac":
		return v.verifyHS256(token)
	}
	return Principal{}, fmt.Errorf("unsupported auth mode %q", v.Mode)
}

func (v *Verifier) verifyHS256(token string) (Principal, error) {
	if len(v.HMACSecret) == 0 {
		return Principal{}, errors.New("hmac auth without secret")
	}
	segs := strings.Split(token, ".")
	if len(segs) != 3 {
		return Principal{}, fmt.Errorf("%w: malformed JWT", ErrInvalidToken)
	}
	var hdr struct {
		Alg string `json:"alg"`
	}
	if err := decodeSegment(segs[0], &hdr); err != nil {
		return Principal{}, err
	}
	if hdr.Alg != "HS256" {
		return Principal{}, fmt.Errorf("%w: alg %q", ErrInvalidToken, hdr.Alg)
	}
	sig, err := base64.RawURLEncoding.DecodeString(segs[2])
	if err != nil {
		return Principal{}, fmt.Errorf("%w: signature encoding", ErrInvalidToken)
	}
	if !hmac.Equal(mac(v.HMACSecret, segs[0]+"."+segs[1]), sig) {
		return Principal{}, fmt.Errorf("%w: bad signature", ErrInvalidToken)
	}
	var claims map[string]any
	if err := decodeSegment(segs[1], &claims); err != nil {
		return Principal{}, err
	}
	if exp, ok := claims["exp"].(float64); ok && v.now().Unix() >= int64(exp) {
		return Principal{}, fmt.Errorf("%w: expired", ErrInvalidToken)
	}
	tenant, _ := claims[v.TenantClaim].(string)
	role, _ := claims[v.RoleClaim].(string)
	sub, _ := claims["sub"].(string)
	if tenant == "" {
		return Principal{}, fmt.Errorf("%w: missing tenant claim", ErrInvalidToken)
	}
	if role == "" {
		role = RoleViewer
	}
	return Principal{Tenant: tenant, Role: strings.ToLower(role), Subject: sub}, nil
}

// SignHS256 issues an HS256 JWT for claims.
func SignHS256(secret []byte, claims map[string]any) (string, error) {
	hdr, err := json.Marshal(map[string]string{"alg": "HS256", "typ": "JWT"})
	if err != nil {
		return "", err
	}
	body, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	input := base64.RawURLEncoding.EncodeToString(hdr) + "." + base64.RawURLEncoding.EncodeToString(body)
	return input + "." + base64.RawURLEncoding.EncodeToString(mac(secret, input)), nil
}

func mac(secret []byte, input string) []byte {
	h := hmac.New(sha256.New, secret)
	h.Write([]byte(input))
	return h.Sum(nil)
}

func decodeSegment(seg string, v any) error {
	b, err := base64.RawURLEncoding.DecodeString(seg)
	if err != nil {
		return fmt.Errorf("%w: segment encoding", ErrInvalidToken)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return nil
}
