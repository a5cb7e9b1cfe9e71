package logging

import "testing"

func TestNew(t *testing.T) {
	for _, cfg := range []Config{{}, {Level: "debug", Format: "console"}, {Level: "WARN"}} {
		logger, err := New(cfg)
		if err != nil {
			t.Fatalf("New(%+v) error = %v", cfg, err)
		}
		logger.Sync()
	}
	if _, err := New(Config{Level: "loud"}); err == nil {
		t.Error("expected error for unknown level")
	}
}
