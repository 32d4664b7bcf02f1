//go:build !windows

package security

import "testing"

func TestSaveGetRevokeToken(t *testing.T) {
	t.Setenv("PYBUN_HOME", t.TempDir())

	if got, err := GetToken(); err != nil || got != "" {
		t.Fatalf("GetToken before save = %q, %v, want empty", got, err)
	}

	if err := SaveToken("tok-123"); err != nil {
		t.Fatalf("SaveToken: %v", err)
	}
	got, err := GetToken()
	if err != nil {
		t.Fatalf("GetToken: %v", err)
	}
	if got != "tok-123" {
		t.Fatalf("GetToken = %q, want tok-123", got)
	}

	if err := RevokeToken(); err != nil {
		t.Fatalf("RevokeToken: %v", err)
	}
	if got, err := GetToken(); err != nil || got != "" {
		t.Fatalf("GetToken after revoke = %q, %v, want empty", got, err)
	}
	if err := RevokeToken(); err != nil {
		t.Fatalf("RevokeToken on already-revoked token should be a no-op, got: %v", err)
	}
}
