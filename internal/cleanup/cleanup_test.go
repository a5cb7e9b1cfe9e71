package cleanup

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"propertyhub/internal/apperr"
	"propertyhub/internal/approval"
	"propertyhub/internal/models"
	"propertyhub/internal/sideeffect"
)

type mockStore struct {
	properties map[uint]*models.Property
	bookings   map[uint]int
	favorites  map[uint]int
	logs       []models.DeleteLog
	deleteErr  error
}

func (m *mockStore) FindPropertyByID(ctx context.Context, id uint) (*models.Property, error) {
	return m.properties[id], nil
}

func (m *mockStore) CountDependents(ctx context.Context, propertyID uint) (int64, int64, error) {
	return int64(m.bookings[propertyID]), int64(m.favorites[propertyID]), nil
}

func (m *mockStore) DeletePropertyCascade(ctx context.Context, entry *models.DeleteLog) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	entry.BookingsRemoved = m.bookings[entry.PropertyID]
	entry.FavoritesRemoved = m.favorites[entry.PropertyID]
	delete(m.properties, entry.PropertyID)
	delete(m.bookings, entry.PropertyID)
	delete(m.favorites, entry.PropertyID)
	m.logs = append(m.logs, *entry)
	return nil
}

func (m *mockStore) FindRecentDeleteLogs(ctx context.Context, limit int) ([]models.DeleteLog, error) {
	return m.logs, nil
}

func (m *mockStore) DeleteStats(ctx context.Context, since time.Time) (*models.DeleteStats, error) {
	return &models.DeleteStats{TotalDeleted: int64(len(m.logs))}, nil
}

type mockStorage struct {
	mu      sync.Mutex
	deleted []string
	fail    map[string]bool
}

func (m *mockStorage) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail[key] {
		return errors.New("storage down")
	}
	m.deleted = append(m.deleted, key)
	return nil
}

type mockIndexer struct {
	mu      sync.Mutex
	deleted []uint
}

func (m *mockIndexer) DeleteProperty(ctx context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, id)
	return nil
}

var admin = &approval.Actor{UserID: 1, Email: "admin@example.com", Admin: true}

func setup(t *testing.T) (*Service, *mockStore, *mockStorage, *mockIndexer, *sideeffect.Runner) {
	t.Helper()
	p := &models.Property{ID: 5, Title: "Casa", Approved: true}
	p.SetImageURLs([]string{"img-a", "img-b"})

	store := &mockStore{
		properties: map[uint]*models.Property{5: p},
		bookings:   map[uint]int{5: 2},
		favorites:  map[uint]int{5: 3},
	}
	storage := &mockStorage{fail: map[string]bool{}}
	indexer := &mockIndexer{}
	runner := sideeffect.NewRunner(zap.NewNop(), time.Second)
	return NewService(store, storage, indexer, runner, zap.NewNop()), store, storage, indexer, runner
}

func TestRemove_DeletesAndCascades(t *testing.T) {
	svc, store, storage, indexer, runner := setup(t)

	res, err := svc.Remove(context.Background(), 5, admin, Options{Reason: models.DeleteReasonSpam})
	if err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	runner.Wait()

	if res.BookingsRemoved != 2 || res.FavoritesRemoved != 3 || res.ImagesRemoved != 2 {
		t.Errorf("result = %+v", res)
	}
	if _, ok := store.properties[5]; ok {
		t.Error("property should be gone")
	}
	if len(store.logs) != 1 || store.logs[0].DeletedBy != admin.UserID || store.logs[0].Reason != models.DeleteReasonSpam {
		t.Errorf("logs = %+v", store.logs)
	}
	if len(storage.deleted) != 2 {
		t.Errorf("deleted images = %v", storage.deleted)
	}
	if len(indexer.deleted) != 1 || indexer.deleted[0] != 5 {
		t.Errorf("search deletes = %v", indexer.deleted)
	}
}

func TestRemove_DryRunChangesNothing(t *testing.T) {
	svc, store, storage, _, runner := setup(t)

	res, err := svc.Remove(context.Background(), 5, admin, Options{DryRun: true})
	if err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	runner.Wait()

	if !res.DryRun || res.BookingsRemoved != 2 || res.FavoritesRemoved != 3 {
		t.Errorf("result = %+v", res)
	}
	if _, ok := store.properties[5]; !ok || len(store.logs) != 0 || len(storage.deleted) != 0 {
		t.Error("dry run must not delete anything")
	}
}

func TestRemove_ImageFailureDoesNotFail(t *testing.T) {
	svc, store, storage, _, runner := setup(t)
	storage.fail["img-a"] = true

	if _, err := svc.Remove(context.Background(), 5, admin, Options{}); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	runner.Wait()

	if len(store.logs) != 1 || store.logs[0].Reason != models.DeleteReasonManual {
		t.Errorf("logs = %+v", store.logs)
	}
	if len(storage.deleted) != 1 || storage.deleted[0] != "img-b" {
		t.Errorf("deleted = %v, want the healthy image only", storage.deleted)
	}
}

func TestRemove_Errors(t *testing.T) {
	svc, store, _, _, _ := setup(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		id      uint
		actor   *approval.Actor
		opts    Options
		wantErr error
	}{
		{"guest", 5, nil, Options{}, apperr.ErrForbidden},
		{"non-admin", 5, &approval.Actor{UserID: 9}, Options{}, apperr.ErrForbidden},
		{"bad reason", 5, admin, Options{Reason: "boredom"}, apperr.ErrValidation},
		{"missing", 99, admin, Options{}, apperr.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Remove(ctx, tt.id, tt.actor, tt.opts); !errors.Is(err, tt.wantErr) {
				t.Errorf("Remove() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	store.deleteErr = errors.New("deadlock")
	if _, err := svc.Remove(ctx, 5, admin, Options{}); err == nil {
		t.Error("expected transaction failure to surface")
	}
}

func TestDeleteLogsAndStats(t *testing.T) {
	svc, _, _, _, runner := setup(t)
	ctx := context.Background()
	svc.Remove(ctx, 5, admin, Options{})
	runner.Wait()

	logs, err := svc.GetRecentDeleteLogs(ctx, 0)
	if err != nil || len(logs) != 1 {
		t.Errorf("GetRecentDeleteLogs() = %v, %v", logs, err)
	}
	stats, err := svc.GetDeleteStats(ctx)
	if err != nil || stats.TotalDeleted != 1 {
		t.Errorf("GetDeleteStats() = %+v, %v", stats, err)
	}
}
