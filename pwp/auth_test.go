package pwp_test

import (
	"context"
	"errors"
	"testing"

	"github.com/xraph/provepool/pwp"
)

func TestAPIKeyAuthenticator(t *testing.T) {
	auth := pwp.NewAPIKeyAuthenticator(pwp.APIKeyEntry{
		Token:    "pk_test",
		Identity: pwp.Identity{Subject: "ci", Scopes: []string{pwp.ScopeProveSubmit}},
	})

	id, err := auth.Authenticate(context.Background(), "pk_test")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if id.Subject != "ci" {
		t.Errorf("subject = %q", id.Subject)
	}
	if !id.HasScope(pwp.ScopeProveSubmit) {
		t.Error("expected prove:submit scope")
	}
	if id.HasScope(pwp.ScopeStatsRead) {
		t.Error("unexpected stats:read scope")
	}

	if _, err := auth.Authenticate(context.Background(), "wrong"); !errors.Is(err, pwp.ErrUnauthorized) {
		t.Errorf("bad token: err = %v, want ErrUnauthorized", err)
	}
}

func TestIdentity_WildcardScope(t *testing.T) {
	id := &pwp.Identity{Subject: "admin", Scopes: []string{pwp.ScopeAll}}
	for _, scope := range []string{pwp.ScopeProveSubmit, pwp.ScopeProveCancel, pwp.ScopeStatsRead} {
		if !id.HasScope(scope) {
			t.Errorf("wildcard must grant %q", scope)
		}
	}
}

func TestRequiredScope(t *testing.T) {
	cases := map[string]string{
		pwp.MethodAuth:        "",
		pwp.MethodProveSubmit: pwp.ScopeProveSubmit,
		pwp.MethodProveCancel: pwp.ScopeProveCancel,
		pwp.MethodPoolStats:   pwp.ScopeStatsRead,
		"unknown.method":      pwp.ScopeAll,
	}
	for method, want := range cases {
		if got := pwp.RequiredScope(method); got != want {
			t.Errorf("RequiredScope(%q) = %q, want %q", method, got, want)
		}
	}
}
