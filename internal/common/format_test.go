package common

import "testing"

func TestTruncate(t *testing.T) {
	tests := []struct {
		id   string
		n    int
		want string
	}{
		{"", 8, "none"},
		{"short", 8, "short"},
		{"0123456789abcdef", 8, "01234567..."},
	}
	for _, tt := range tests {
		if got := Truncate(tt.id, tt.n); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.id, tt.n, got, tt.want)
		}
	}
}

func TestBoxPrefix(t *testing.T) {
	if BoxPrefix(true) == BoxPrefix(false) {
		t.Error("last row prefix should differ from inner row prefix")
	}
}
