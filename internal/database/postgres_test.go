package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"propertyhub/internal/apperr"
	"propertyhub/internal/models"
)

// recordedQuery is one statement the fake driver received
type recordedQuery struct {
	query string
	args  []driver.NamedValue
}

// recordingConn answers queries from canned rows and remembers them
type recordingConn struct {
	mu        sync.Mutex
	queries   []recordedQuery
	respond   func(query string) (driver.Rows, error)
	committed int
}

func (c *recordingConn) record(query string, args []driver.NamedValue) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queries = append(c.queries, recordedQuery{query: query, args: args})
}

func (c *recordingConn) find(fragment string) []recordedQuery {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []recordedQuery
	for _, q := range c.queries {
		if strings.Contains(q.query, fragment) {
			out = append(out, q)
		}
	}
	return out
}

func (c *recordingConn) Prepare(query string) (driver.Stmt, error) {
	return nil, errors.New("prepared statements are not supported")
}

func (c *recordingConn) Close() error { return nil }

func (c *recordingConn) Begin() (driver.Tx, error) { return c, nil }

func (c *recordingConn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	return c, nil
}

func (c *recordingConn) Commit() error {
	c.mu.Lock()
	c.committed++
	c.mu.Unlock()
	return nil
}

func (c *recordingConn) Rollback() error { return nil }

func (c *recordingConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	c.record(query, args)
	if c.respond == nil {
		return &cannedRows{}, nil
	}
	return c.respond(query)
}

func (c *recordingConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.record(query, args)
	return driver.RowsAffected(1), nil
}

type recordingConnector struct{ conn *recordingConn }

func (r recordingConnector) Connect(context.Context) (driver.Conn, error) { return r.conn, nil }

func (r recordingConnector) Driver() driver.Driver { return r }

func (r recordingConnector) Open(string) (driver.Conn, error) { return r.conn, nil }

type cannedRows struct {
	columns []string
	values  [][]driver.Value
	next    int
}

func (r *cannedRows) Columns() []string { return r.columns }

func (r *cannedRows) Close() error { return nil }

func (r *cannedRows) Next(dest []driver.Value) error {
	if r.next >= len(r.values) {
		return io.EOF
	}
	copy(dest, r.values[r.next])
	r.next++
	return nil
}

func newRecordingDB(t *testing.T, respond func(query string) (driver.Rows, error)) (*DB, *recordingConn) {
	t.Helper()
	conn := &recordingConn{respond: respond}
	pool := sql.OpenDB(recordingConnector{conn: conn})
	t.Cleanup(func() { pool.Close() })
	return NewDBFromConn(pool), conn
}

var placeholder = regexp.MustCompile(`\$(\d+)`)

// highestPlaceholder returns the largest $N in query
func highestPlaceholder(query string) int {
	highest := 0
	for _, m := range placeholder.FindAllStringSubmatch(query, -1) {
		if n, _ := strconv.Atoi(m[1]); n > highest {
			highest = n
		}
	}
	return highest
}

func TestPqTranslate(t *testing.T) {
	other := errors.New("connection refused")
	tests := []struct {
		name     string
		in       error
		conflict bool
	}{
		{"exclusion violation", &pq.Error{Code: "23P01"}, true},
		{"unique violation", &pq.Error{Code: "23505", Detail: "Key (title)=(Loft) already exists."}, true},
		{"other pq error", &pq.Error{Code: "23503"}, false},
		{"plain error", other, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := pqTranslate(tt.in)
			if errors.Is(got, apperr.ErrConflict) != tt.conflict {
				t.Errorf("pqTranslate() = %v, conflict = %v", got, tt.conflict)
			}
			if !tt.conflict && got != tt.in {
				t.Errorf("pqTranslate() = %v, want unchanged %v", got, tt.in)
			}
		})
	}
	if pqTranslate(nil) != nil {
		t.Error("pqTranslate(nil) should be nil")
	}
}

func TestDB_CreateBookingOverlapIsConflict(t *testing.T) {
	db, conn := newRecordingDB(t, func(query string) (driver.Rows, error) {
		return nil, &pq.Error{Code: "23P01", Message: "conflicting key value violates exclusion constraint"}
	})

	b := stayBooking()
	err := db.CreateBooking(context.Background(), b)
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("CreateBooking() error = %v, want ErrConflict", err)
	}
	inserts := conn.find("INSERT INTO bookings")
	if len(inserts) != 1 {
		t.Fatalf("inserts = %+v", inserts)
	}
	if got := inserts[0].args[3].Value; got != "2024-06-10" {
		t.Errorf("check_in arg = %v, want date only", got)
	}
}

func TestDB_SavePropertyLeavesSocialPostID(t *testing.T) {
	saved := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	db, conn := newRecordingDB(t, func(query string) (driver.Rows, error) {
		return &cannedRows{columns: []string{"updated_at"}, values: [][]driver.Value{{saved}}}, nil
	})
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
		Images:       []models.PropertyImage{{ImageURL: "a.jpg"}},
	}

	if err := db.SaveProperty(context.Background(), p); err != nil {
		t.Fatalf("SaveProperty() error = %v", err)
	}

	updates := conn.find("UPDATE properties SET")
	if len(updates) != 1 {
		t.Fatalf("updates = %+v", updates)
	}
	u := updates[0]
	if strings.Contains(u.query, "social_post_id") {
		t.Errorf("update writes the social post id: %s", u.query)
	}
	for _, arg := range u.args {
		if arg.Value == "stale-post" {
			t.Error("social post id passed as an argument")
		}
	}
	if n := highestPlaceholder(u.query); n != len(u.args) {
		t.Errorf("placeholders = %d, args = %d", n, len(u.args))
	}
	if !p.UpdatedAt.Equal(saved) {
		t.Errorf("UpdatedAt = %v, want %v", p.UpdatedAt, saved)
	}
	if len(conn.find("INSERT INTO property_images")) != 1 || conn.committed != 1 {
		t.Errorf("images not replaced in a committed transaction: %+v", conn.queries)
	}
}

func TestDB_SavePropertyMissingRow(t *testing.T) {
	db, _ := newRecordingDB(t, func(query string) (driver.Rows, error) {
		return &cannedRows{columns: []string{"updated_at"}}, nil
	})
	err := db.SaveProperty(context.Background(), &models.Property{ID: 404, Title: "Gone"})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("SaveProperty() error = %v, want ErrNotFound", err)
	}
}

func TestDB_CreatePropertyBindsEveryColumn(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	db, conn := newRecordingDB(t, func(query string) (driver.Rows, error) {
		return &cannedRows{
			columns: []string{"id", "created_at", "updated_at"},
			values:  [][]driver.Value{{int64(12), now, now}},
		}, nil
	})
	p := &models.Property{
		Title:    "Loft",
		Price:    decimal.NewFromInt(50),
		Type:     models.PropertyTypeApartment,
		Statuses: models.StatusSet{models.StatusForSale},
		Images:   []models.PropertyImage{{ImageURL: "a.jpg"}},
	}

	if err := db.CreateProperty(context.Background(), p); err != nil {
		t.Fatalf("CreateProperty() error = %v", err)
	}
	if p.ID != 12 || p.Images[0].PropertyID != 12 {
		t.Errorf("ids not assigned: %+v", p)
	}
	inserts := conn.find("INSERT INTO properties")
	if len(inserts) != 1 {
		t.Fatalf("inserts = %+v", inserts)
	}
	if n := highestPlaceholder(inserts[0].query); n != len(inserts[0].args) {
		t.Errorf("placeholders = %d, args = %d", n, len(inserts[0].args))
	}
}

func TestDB_FindPropertyByIDScansCoordinates(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	row := []driver.Value{
		int64(3), "Loft", "", "", []byte("150.00"), "apartment", []byte("for_rent,reserved"),
		"", "", "Rosario", int64(2), int64(1), []byte("60.00"), []byte("0.00"), "", false,
		[]byte("-32.9468200"), nil, true, false, "post-1", nil, now, now,
	}
	db, _ := newRecordingDB(t, func(query string) (driver.Rows, error) {
		if strings.Contains(query, "FROM property_images") {
			return &cannedRows{columns: []string{"id", "property_id", "image_url", "sort_order", "created_at"}}, nil
		}
		cols := strings.Split(strings.Join(strings.Fields(propertyColumns), ""), ",")
		return &cannedRows{columns: cols, values: [][]driver.Value{row}}, nil
	})

	p, err := db.FindPropertyByID(context.Background(), 3)
	if err != nil {
		t.Fatalf("FindPropertyByID() error = %v", err)
	}
	if p == nil {
		t.Fatal("FindPropertyByID() = nil")
	}
	if p.Latitude == nil || *p.Latitude != -32.94682 {
		t.Errorf("Latitude = %v", p.Latitude)
	}
	if p.Longitude != nil {
		t.Errorf("Longitude = %v, want nil", *p.Longitude)
	}
	if !p.Statuses.Has(models.StatusReserved) || !p.Price.Equal(decimal.NewFromInt(150)) {
		t.Errorf("scanned property = %+v", p)
	}
}
