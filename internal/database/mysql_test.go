package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"propertyhub/internal/apperr"
	"propertyhub/internal/models"
)

var errNoServer = errors.New("no database server in tests")

// noConn satisfies gorm.ConnPool; dry runs never reach it
type noConn struct{}

func (noConn) PrepareContext(ctx context.Context, query string) (*sql.Stmt, error) {
	return nil, errNoServer
}

func (noConn) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return nil, errNoServer
}

func (noConn) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return nil, errNoServer
}

func (noConn) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return nil
}

type fakeTx struct {
	noConn
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Commit() error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback() error {
	t.rolledBack = true
	return nil
}

type fakePool struct {
	noConn
	txs []*fakeTx
}

func (p *fakePool) BeginTx(ctx context.Context, opts *sql.TxOptions) (gorm.ConnPool, error) {
	tx := &fakeTx{}
	p.txs = append(p.txs, tx)
	return tx, nil
}

// sqlRecorder is a gorm logger keeping every statement it is shown
type sqlRecorder struct {
	mu         sync.Mutex
	statements []string
}

func (r *sqlRecorder) LogMode(logger.LogLevel) logger.Interface { return r }

func (r *sqlRecorder) Info(context.Context, string, ...interface{}) {}
func (r *sqlRecorder) Warn(context.Context, string, ...interface{}) {}
func (r *sqlRecorder) Error(context.Context, string, ...interface{}) {}

func (r *sqlRecorder) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	stmt, _ := fc()
	r.mu.Lock()
	r.statements = append(r.statements, stmt)
	r.mu.Unlock()
}

func (r *sqlRecorder) find(prefix string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, s := range r.statements {
		if strings.HasPrefix(s, prefix) {
			out = append(out, s)
		}
	}
	return out
}

// newDryRunGormDB builds SQL for the MySQL dialect without executing it
func newDryRunGormDB(t *testing.T) (*GormDB, *fakePool, *sqlRecorder) {
	t.Helper()
	pool := &fakePool{}
	rec := &sqlRecorder{}
	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      pool,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		DryRun:                 true,
		DisableAutomaticPing:   true,
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 rec,
	})
	if err != nil {
		t.Fatalf("gorm.Open() error = %v", err)
	}
	return NewGormDBFromDB(db), pool, rec
}

// onQuery runs fn after every SELECT against table
func onQuery(t *testing.T, gdb *GormDB, table string, fn func(db *gorm.DB)) {
	t.Helper()
	name := "test:" + table
	err := gdb.DB().Callback().Query().After("gorm:query").Register(name, func(db *gorm.DB) {
		if db.Statement.Table == table {
			fn(db)
		}
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}
}

func stayBooking() *models.Booking {
	return &models.Booking{
		PropertyID: 4,
		Email:      "guest@example.com",
		CheckIn:    time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC),
		CheckOut:   time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC),
		Price:      decimal.NewFromInt(200),
	}
}

func TestGormDB_CreateBookingLocksPropertyRow(t *testing.T) {
	gdb, pool, rec := newDryRunGormDB(t)

	if err := gdb.CreateBooking(context.Background(), stayBooking()); err != nil {
		t.Fatalf("CreateBooking() error = %v", err)
	}

	selects := rec.find("SELECT")
	if len(selects) != 2 {
		t.Fatalf("selects = %q, want lock and overlap count", selects)
	}
	if !strings.Contains(selects[0], "`properties`") || !strings.HasSuffix(selects[0], "FOR UPDATE") {
		t.Errorf("lock statement = %q", selects[0])
	}
	if !strings.Contains(selects[1], "count(*)") || !strings.Contains(selects[1], "check_in <") || !strings.Contains(selects[1], "check_out >") {
		t.Errorf("overlap statement = %q", selects[1])
	}
	if inserts := rec.find("INSERT INTO `bookings`"); len(inserts) != 1 {
		t.Errorf("inserts = %q", inserts)
	}
	if len(pool.txs) != 1 || !pool.txs[0].committed {
		t.Errorf("transaction not committed: %+v", pool.txs)
	}
}

func TestGormDB_CreateBookingRejectsOverlap(t *testing.T) {
	gdb, pool, rec := newDryRunGormDB(t)
	onQuery(t, gdb, "bookings", func(db *gorm.DB) {
		db.RowsAffected = 2
	})

	err := gdb.CreateBooking(context.Background(), stayBooking())
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("CreateBooking() error = %v, want ErrConflict", err)
	}
	if inserts := rec.find("INSERT"); len(inserts) != 0 {
		t.Errorf("overlapping booking inserted: %q", inserts)
	}
	if len(pool.txs) != 1 || !pool.txs[0].rolledBack || pool.txs[0].committed {
		t.Errorf("transaction not rolled back: %+v", pool.txs)
	}
}

func TestGormDB_CreateBookingUnknownProperty(t *testing.T) {
	gdb, _, rec := newDryRunGormDB(t)
	onQuery(t, gdb, "properties", func(db *gorm.DB) {
		db.AddError(gorm.ErrRecordNotFound)
	})

	err := gdb.CreateBooking(context.Background(), stayBooking())
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("CreateBooking() error = %v, want ErrNotFound", err)
	}
	if counts := rec.find("SELECT count(*)"); len(counts) != 0 {
		t.Errorf("overlap counted for a missing property: %q", counts)
	}
}

func TestGormDB_SavePropertyLeavesSocialPostID(t *testing.T) {
	gdb, pool, rec := newDryRunGormDB(t)
	lat, lng := -34.6037, -58.3816
	p := &models.Property{
		ID:           9,
		Title:        "Casa del Lago",
		Price:        decimal.NewFromInt(100),
		Type:         models.PropertyTypeHouse,
		Statuses:     models.StatusSet{models.StatusForRent},
		Latitude:     &lat,
		Longitude:    &lng,
		SocialPostID: "stale-post",
		Images:       []models.PropertyImage{{ImageURL: "a.jpg"}, {ImageURL: "b.jpg", SortOrder: 1}},
	}

	if err := gdb.SaveProperty(context.Background(), p); err != nil {
		t.Fatalf("SaveProperty() error = %v", err)
	}

	updates := rec.find("UPDATE `properties`")
	if len(updates) != 1 {
		t.Fatalf("updates = %q", updates)
	}
	if strings.Contains(updates[0], "social_post_id") || strings.Contains(updates[0], "stale-post") {
		t.Errorf("update writes the social post id: %q", updates[0])
	}
	for _, col := range []string{"`title`", "`latitude`", "`longitude`", "`approved`"} {
		if !strings.Contains(updates[0], col) {
			t.Errorf("update misses %s: %q", col, updates[0])
		}
	}
	if deletes := rec.find("DELETE FROM `property_images`"); len(deletes) != 1 {
		t.Errorf("image deletes = %q", deletes)
	}
	if inserts := rec.find("INSERT INTO `property_images`"); len(inserts) != 1 || !strings.Contains(inserts[0], "b.jpg") {
		t.Errorf("image inserts = %q", inserts)
	}
	if len(pool.txs) != 1 || !pool.txs[0].committed {
		t.Errorf("transaction not committed: %+v", pool.txs)
	}
}

func TestTranslate(t *testing.T) {
	other := errors.New("connection reset")
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"nil", nil, nil},
		{"duplicate key", fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey), apperr.ErrConflict},
		{"other", other, other},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translate(tt.in)
			if tt.want == nil {
				if got != nil {
					t.Errorf("translate() = %v, want nil", got)
				}
				return
			}
			if !errors.Is(got, tt.want) {
				t.Errorf("translate() = %v, want %v", got, tt.want)
			}
		})
	}
}
