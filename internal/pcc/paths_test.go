package pcc

import "testing"

func TestSanitizeBranch(t *testing.T) {
	tests := []struct {
		branch string
		want   string
	}{
		{"main", "main"},
		{"feature/login", "feature_login"},
		{"feature/auth/oauth", "feature_auth_oauth"},
		{`release\2025`, "release_2025"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.branch, func(t *testing.T) {
			if got := SanitizeBranch(tt.branch); got != tt.want {
				t.Errorf("SanitizeBranch(%q) = %q, want %q", tt.branch, got, tt.want)
			}
		})
	}
}

func TestKeyLayout(t *testing.T) {
	if got, want := contentKey("sha256-abc"), "objects/content/sha256-abc"; got != want {
		t.Errorf("contentKey() = %q, want %q", got, want)
	}
	if got, want := snapshotKey("p1", "feature/x", "deadbeef"),
		"projects/p1/branches/feature_x/commits/deadbeef/metadata.json"; got != want {
		t.Errorf("snapshotKey() = %q, want %q", got, want)
	}
	if got, want := latestKey("p1", "main"), "projects/p1/branches/main/latest.json"; got != want {
		t.Errorf("latestKey() = %q, want %q", got, want)
	}
	if got, want := forkKey("p1", "main"), "projects/p1/branches/main/parent_branch.json"; got != want {
		t.Errorf("forkKey() = %q, want %q", got, want)
	}
}
