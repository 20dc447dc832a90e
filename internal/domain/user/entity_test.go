package user

import "testing"

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  B@X.com "); got != "b@x.com" {
		t.Fatalf("expected b@x.com, got %q", got)
	}
}

func TestIsAdmin(t *testing.T) {
	if (&User{Role: RoleBuyer}).IsAdmin() {
		t.Fatal("buyer must not be admin")
	}
	if !(&User{Role: RoleAdmin}).IsAdmin() {
		t.Fatal("admin role not recognised")
	}
}
