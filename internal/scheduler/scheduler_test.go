package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"propertyhub/internal/config"
	"propertyhub/internal/models"
)

type fakeRenewer struct {
	calls int
	err   error
}

func (f *fakeRenewer) Renew(ctx context.Context) error {
	f.calls++
	return f.err
}

type fakeSource struct {
	properties []models.Property
}

func (f *fakeSource) FindAllApproved(ctx context.Context) ([]models.Property, error) {
	return f.properties, nil
}

type fakeIndex struct {
	got []models.Property
}

func (f *fakeIndex) ReplaceAll(ctx context.Context, properties []models.Property) error {
	f.got = properties
	return nil
}

func TestParseDailyRunTime(t *testing.T) {
	s := NewScheduler(config.SchedulerConfig{}, time.UTC, nil, nil, nil, zap.NewNop())

	tests := map[string]string{
		"02:00": "0 2 * * *",
		"23:45": "45 23 * * *",
		"3:07":  "7 3 * * *",
		"25:00": "0 2 * * *",
		"noon":  "0 2 * * *",
	}
	for in, want := range tests {
		if got := s.parseDailyRunTime(in); got != want {
			t.Errorf("parseDailyRunTime(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRunReindex(t *testing.T) {
	source := &fakeSource{properties: []models.Property{{ID: 1}, {ID: 2}}}
	index := &fakeIndex{}
	s := NewScheduler(config.SchedulerConfig{}, time.UTC, nil, source, index, zap.NewNop())

	if err := s.RunReindex(context.Background()); err != nil {
		t.Fatalf("RunReindex() error = %v", err)
	}
	if len(index.got) != 2 {
		t.Errorf("indexed %d properties, want 2", len(index.got))
	}
}

func TestRenewTokens(t *testing.T) {
	renewer := &fakeRenewer{err: errors.New("expired")}
	s := NewScheduler(config.SchedulerConfig{}, time.UTC, renewer, nil, nil, zap.NewNop())

	if err := s.RenewTokens(context.Background()); err == nil || renewer.calls != 1 {
		t.Errorf("RenewTokens() error = %v, calls = %d", err, renewer.calls)
	}

	unconfigured := NewScheduler(config.SchedulerConfig{}, time.UTC, nil, nil, nil, zap.NewNop())
	if err := unconfigured.RenewTokens(context.Background()); err == nil {
		t.Error("expected error without a renewer")
	}
	if err := unconfigured.RunReindex(context.Background()); err == nil {
		t.Error("expected error without an index")
	}
}

func TestStartAndStop(t *testing.T) {
	cfg := config.SchedulerConfig{
		TokenRenewalEnabled: true,
		TokenRenewalTime:    "03:00",
		ReindexEnabled:      true,
		ReindexTime:         "04:00",
	}
	s := NewScheduler(cfg, time.UTC, &fakeRenewer{}, &fakeSource{}, &fakeIndex{}, zap.NewNop())
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if got := len(s.cron.Entries()); got != 2 {
		t.Errorf("scheduled %d jobs, want 2", got)
	}
	s.Stop()
}
