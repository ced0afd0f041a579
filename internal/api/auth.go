// Package api implements the HTTP surface of the fleetroute planning service.
package api

import (
    "net/http"
    "strings"

    "fleetroute/internal/auth"
)

type Principal struct {
    Tenant string
    Role   string // admin, planner, viewer
}

// getPrincipal extracts tenant and role from the bearer token when the
// verifier accepts it. In dev mode the X-Tenant-Id and X-Role headers are
// honoured as a fallback.
func (s *Server) getPrincipal(r *http.Request) (Principal, bool) {
    authz := r.Header.Get("Authorization")
    if strings.HasPrefix(strings.ToLower(authz), "bearer ") && s.Auth != nil {
        tok := strings.TrimSpace(authz[len("Bearer "):])
        pr, err := s.Auth.Verify(tok)
        if err != nil { return Principal{}, false }
        return Principal{Tenant: pr.Tenant, Role: pr.Role}, true
    }
    if s.Auth != nil && s.Auth.Mode != "dev" { return Principal{}, false }
    tenant := r.Header.Get("X-Tenant-Id")
    role := strings.ToLower(r.Header.Get("X-Role"))
    if tenant == "" { tenant = "t_demo" }
    if role == "" { role = auth.RoleAdmin }
    return Principal{Tenant: tenant, Role: role}, true
}

// IsAdmin reports whether the principal has the admin role.
func (p Principal) IsAdmin() bool { return p.Role == auth.RoleAdmin }

// CanPlan reports whether the principal may submit plans.
func (p Principal) CanPlan() bool { return p.IsAdmin() || p.Role == auth.RolePlanner }

// principal writes 401 and returns false when the request carries no
// acceptable identity.
func (s *Server) principal(w http.ResponseWriter, r *http.Request) (Principal, bool) {
    p, ok := s.getPrincipal(r)
    if !ok {
        writeProblem(w, http.StatusUnauthorized, "Unauthorized", "valid bearer token required", r.URL.Path)
        return Principal{}, false
    }
    return p, true
}

func (s *Server) requireAdmin(w http.ResponseWriter, r *http.Request) (Principal, bool) {
    p, ok := s.principal(w, r)
    if !ok { return p, false }
    if !p.IsAdmin() {
        writeProblem(w, http.StatusForbidden, "Forbidden", "admin required", r.URL.Path)
        return p, false
    }
    return p, true
}
