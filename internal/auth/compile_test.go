package auth

import "testing"

func TestCompilePermissionsSplitsLiteralAndWildcard(t *testing.T) {
	raw := map[string]string{
		"Vehicle.Speed":        "r",
		"Vehicle.Cabin.*":      "rw",
		"Vehicle.Drivetrain.*": "bogus",
	}
	cp, ignored := CompilePermissions(raw, true)

	if _, ok := cp.literal["Vehicle.Speed"]; !ok {
		t.Fatal("expected literal pattern to be compiled")
	}
	if len(cp.wildcard) != 1 {
		t.Fatalf("expected exactly one wildcard pattern, got %d", len(cp.wildcard))
	}
	if len(ignored) != 1 || ignored[0] != "Vehicle.Drivetrain.*=bogus" {
		t.Fatalf("expected bogus permission string to be ignored, got %+v", ignored)
	}
	if !cp.ModifyTree() {
		t.Fatal("expected modifyTree bit to be preserved")
	}
}

func TestParsePermissionString(t *testing.T) {
	tests := []struct {
		in        string
		wantRead  bool
		wantWrite bool
		wantOK    bool
	}{
		{"r", true, false, true},
		{"w", false, true, true},
		{"rw", true, true, true},
		{"wr", true, true, true},
		{"", false, false, false},
		{"rr", false, false, false},
		{"x", false, false, false},
	}
	for _, tt := range tests {
		read, write, ok := parsePermissionString(tt.in)
		if read != tt.wantRead || write != tt.wantWrite || ok != tt.wantOK {
			t.Errorf("parsePermissionString(%q) = (%v,%v,%v), want (%v,%v,%v)",
				tt.in, read, write, ok, tt.wantRead, tt.wantWrite, tt.wantOK)
		}
	}
}

func TestCompileWildcardPatternSpansSegments(t *testing.T) {
	re := compileWildcardPattern("Vehicle.*.Speed")
	if !re.MatchString("Vehicle.Cabin.Front.Speed") {
		t.Fatal("expected * to span multiple segments")
	}
	if re.MatchString("Vehicle.Speed") {
		t.Fatal("pattern requires at least the wildcard's own segment boundary text")
	}
}
