package rbac

import "testing"

func TestCan(t *testing.T) {
	cases := []struct {
		name   string
		role   Role
		action Action
		allow  bool
	}{
		{name: "visitor read", role: RoleVisitor, action: ActionRead, allow: true},
		{name: "visitor submit", role: RoleVisitor, action: ActionSubmit, allow: true},
		{name: "visitor write", role: RoleVisitor, action: ActionWrite, allow: false},
		{name: "visitor admin", role: RoleVisitor, action: ActionAdmin, allow: false},
		{name: "admin write", role: RoleAdmin, action: ActionWrite, allow: true},
		{name: "admin admin", role: RoleAdmin, action: ActionAdmin, allow: true},
		{name: "unknown role", role: Role("editor"), action: ActionRead, allow: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Can(tc.role, tc.action); got != tc.allow {
				t.Fatalf("Can(%q, %q) = %v, want %v", tc.role, tc.action, got, tc.allow)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	if Normalize("admin") != RoleAdmin {
		t.Fatal("admin should normalize to admin")
	}
	if Normalize("root") != RoleVisitor {
		t.Fatal("unknown roles fall back to visitor")
	}
}
