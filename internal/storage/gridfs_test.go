package storage

import (
	"strings"
	"testing"
)

func TestKeyFromURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://api.example.com/media/65a1f0c2e4b0a1b2c3d4e5f6", "65a1f0c2e4b0a1b2c3d4e5f6"},
		{"https://api.example.com/media/65a1f0c2e4b0a1b2c3d4e5f6?w=200", "65a1f0c2e4b0a1b2c3d4e5f6"},
		{"65a1f0c2e4b0a1b2c3d4e5f6", "65a1f0c2e4b0a1b2c3d4e5f6"},
	}
	for _, tt := range tests {
		if got := KeyFromURL(tt.in); got != tt.want {
			t.Errorf("KeyFromURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestObjectName(t *testing.T) {
	a, b := ObjectName("../../etc/front.jpg"), ObjectName("front.jpg")
	if a == b {
		t.Error("object names must be unique")
	}
	if !strings.HasSuffix(a, "-front.jpg") || strings.Contains(a, "/") {
		t.Errorf("ObjectName() = %q", a)
	}
}
