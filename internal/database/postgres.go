package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"propertyhub/internal/apperr"
	"propertyhub/internal/models"
)

const (
	pqUniqueViolation    = "23505"
	pqExclusionViolation = "23P01"
)

type DB struct {
	conn *sql.DB
}

func NewDB(host, port, user, password, dbname, sslmode string) (*DB, error) {
	if sslmode == "" {
		sslmode = "disable"
	}
	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbname, sslmode)

	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(); err != nil {
		return nil, err
	}

	return &DB{conn: conn}, nil
}

// NewDBFromConn wraps an open connection pool
func NewDBFromConn(conn *sql.DB) *DB {
	return &DB{conn: conn}
}

func (db *DB) Close() error {
	return db.conn.Close()
}

// InitSchema creates the tables if they don't exist. Overlapping bookings of
// one property are rejected by an exclusion constraint over daterange, whose
// default bounds are half-open like the booking ranges.
func (db *DB) InitSchema() error {
	query := `
	CREATE EXTENSION IF NOT EXISTS btree_gist;

	CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		first_name VARCHAR(100) NOT NULL DEFAULT '',
		last_name VARCHAR(100) NOT NULL DEFAULT '',
		email VARCHAR(255) NOT NULL UNIQUE,
		phone VARCHAR(20) NOT NULL DEFAULT '',
		password_hash VARCHAR(255) NOT NULL,
		admin BOOLEAN NOT NULL DEFAULT FALSE,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS properties (
		id BIGSERIAL PRIMARY KEY,
		title VARCHAR(255) NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		long_description TEXT NOT NULL DEFAULT '',
		price NUMERIC(12, 2) NOT NULL,
		type VARCHAR(30) NOT NULL,
		statuses VARCHAR(255) NOT NULL DEFAULT '',

		address TEXT NOT NULL DEFAULT '',
		neighborhood VARCHAR(255) NOT NULL DEFAULT '',
		city VARCHAR(255) NOT NULL DEFAULT '',
		rooms INTEGER NOT NULL DEFAULT 0,
		bathrooms INTEGER NOT NULL DEFAULT 0,
		area NUMERIC(10, 2) NOT NULL DEFAULT 0,
		lot_size NUMERIC(10, 2) NOT NULL DEFAULT 0,
		year_built VARCHAR(10) NOT NULL DEFAULT '',
		garage BOOLEAN NOT NULL DEFAULT FALSE,
		latitude NUMERIC(10, 7),
		longitude NUMERIC(10, 7),

		pinned BOOLEAN NOT NULL DEFAULT FALSE,
		approved BOOLEAN NOT NULL DEFAULT FALSE,
		social_post_id VARCHAR(128) NOT NULL DEFAULT '',
		created_by_id BIGINT REFERENCES users(id) ON DELETE SET NULL,

		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_properties_created_at ON properties(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_properties_approved ON properties(approved, pinned);
	CREATE INDEX IF NOT EXISTS idx_properties_created_by ON properties(created_by_id);
	ALTER TABLE properties ADD COLUMN IF NOT EXISTS latitude NUMERIC(10, 7);
	ALTER TABLE properties ADD COLUMN IF NOT EXISTS longitude NUMERIC(10, 7);

	CREATE TABLE IF NOT EXISTS property_images (
		id BIGSERIAL PRIMARY KEY,
		property_id BIGINT NOT NULL REFERENCES properties(id) ON DELETE CASCADE,
		image_url VARCHAR(500) NOT NULL,
		sort_order INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_property_images_property ON property_images(property_id);

	CREATE TABLE IF NOT EXISTS bookings (
		id BIGSERIAL PRIMARY KEY,
		property_id BIGINT NOT NULL REFERENCES properties(id) ON DELETE CASCADE,
		user_id BIGINT REFERENCES users(id) ON DELETE SET NULL,
		email VARCHAR(255) NOT NULL,
		check_in DATE NOT NULL,
		check_out DATE NOT NULL,
		price NUMERIC(12, 2) NOT NULL,
		approved BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT bookings_range_valid CHECK (check_in < check_out),
		CONSTRAINT bookings_no_overlap EXCLUDE USING gist (
			property_id WITH =,
			daterange(check_in, check_out) WITH &&
		)
	);

	CREATE INDEX IF NOT EXISTS idx_bookings_user ON bookings(user_id);

	CREATE TABLE IF NOT EXISTS favorites (
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		property_id BIGINT NOT NULL REFERENCES properties(id) ON DELETE CASCADE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (user_id, property_id)
	);

	CREATE INDEX IF NOT EXISTS idx_favorites_property ON favorites(property_id);

	CREATE TABLE IF NOT EXISTS property_changes (
		id BIGSERIAL PRIMARY KEY,
		property_id BIGINT NOT NULL,
		change_type VARCHAR(50) NOT NULL,
		old_value TEXT NOT NULL DEFAULT '',
		new_value TEXT NOT NULL DEFAULT '',
		changed_by BIGINT,
		detected_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_property_changes_property ON property_changes(property_id, detected_at DESC);

	CREATE TABLE IF NOT EXISTS delete_logs (
		id BIGSERIAL PRIMARY KEY,
		property_id BIGINT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		deleted_by BIGINT NOT NULL,
		bookings_removed INTEGER NOT NULL DEFAULT 0,
		favorites_removed INTEGER NOT NULL DEFAULT 0,
		images_removed INTEGER NOT NULL DEFAULT 0,
		reason VARCHAR(50) NOT NULL,
		deleted_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	`
	_, err := db.conn.Exec(query)
	return err
}

// pqTranslate maps constraint violations onto the application's sentinels
func pqTranslate(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqExclusionViolation:
			return fmt.Errorf("%w: dates overlap an existing booking", apperr.ErrConflict)
		case pqUniqueViolation:
			return fmt.Errorf("%w: %s", apperr.ErrConflict, pqErr.Detail)
		}
	}
	return err
}

func (db *DB) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

type scanner interface {
	Scan(dest ...any) error
}

// --- properties ---

const propertyColumns = `
	id, title, description, long_description, price, type, statuses,
	address, neighborhood, city, rooms, bathrooms, area, lot_size, year_built, garage,
	latitude, longitude, pinned, approved, social_post_id, created_by_id, created_at, updated_at`

func scanProperty(row scanner) (*models.Property, error) {
	var p models.Property
	err := row.Scan(
		&p.ID, &p.Title, &p.Description, &p.LongDescription, &p.Price, &p.Type, &p.Statuses,
		&p.Address, &p.Neighborhood, &p.City, &p.Rooms, &p.Bathrooms, &p.Area, &p.LotSize, &p.YearBuilt, &p.Garage,
		&p.Latitude, &p.Longitude, &p.Pinned, &p.Approved, &p.SocialPostID, &p.CreatedByID, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// queryProperties runs a SELECT over propertyColumns and attaches images
func (db *DB) queryProperties(ctx context.Context, tail string, args ...any) ([]models.Property, error) {
	rows, err := db.conn.QueryContext(ctx, "SELECT "+propertyColumns+" FROM properties "+tail, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var properties []models.Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, err
		}
		properties = append(properties, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := db.attachImages(ctx, properties); err != nil {
		return nil, err
	}
	return properties, nil
}

func (db *DB) attachImages(ctx context.Context, properties []models.Property) error {
	if len(properties) == 0 {
		return nil
	}
	ids := make([]int64, len(properties))
	index := make(map[uint]int, len(properties))
	for i, p := range properties {
		ids[i] = int64(p.ID)
		index[p.ID] = i
	}

	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, property_id, image_url, sort_order, created_at
		FROM property_images
		WHERE property_id = ANY($1)
		ORDER BY property_id, sort_order
	`, pq.Array(ids))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var img models.PropertyImage
		if err := rows.Scan(&img.ID, &img.PropertyID, &img.ImageURL, &img.SortOrder, &img.CreatedAt); err != nil {
			return err
		}
		i := index[img.PropertyID]
		properties[i].Images = append(properties[i].Images, img)
	}
	return rows.Err()
}

func (db *DB) findProperty(ctx context.Context, where string, arg any) (*models.Property, error) {
	properties, err := db.queryProperties(ctx, where+" LIMIT 1", arg)
	if err != nil || len(properties) == 0 {
		return nil, err
	}
	return &properties[0], nil
}

// FindPropertyByID retrieves a property and its images
func (db *DB) FindPropertyByID(ctx context.Context, id uint) (*models.Property, error) {
	return db.findProperty(ctx, "WHERE id = $1", id)
}

// FindPropertyByTitle retrieves a property by its unique title
func (db *DB) FindPropertyByTitle(ctx context.Context, title string) (*models.Property, error) {
	return db.findProperty(ctx, "WHERE title = $1", title)
}

func insertImages(ctx context.Context, tx *sql.Tx, propertyID uint, images []models.PropertyImage) error {
	for _, img := range images {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO property_images (property_id, image_url, sort_order) VALUES ($1, $2, $3)`,
			propertyID, img.ImageURL, img.SortOrder); err != nil {
			return err
		}
	}
	return nil
}

// CreateProperty inserts a property together with its images
func (db *DB) CreateProperty(ctx context.Context, p *models.Property) error {
	err := db.inTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO properties (
				title, description, long_description, price, type, statuses,
				address, neighborhood, city, rooms, bathrooms, area, lot_size, year_built, garage,
				latitude, longitude, pinned, approved, social_post_id, created_by_id
			)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
			RETURNING id, created_at, updated_at
		`,
			p.Title, p.Description, p.LongDescription, p.Price, string(p.Type), p.Statuses,
			p.Address, p.Neighborhood, p.City, p.Rooms, p.Bathrooms, p.Area, p.LotSize, p.YearBuilt, p.Garage,
			p.Latitude, p.Longitude, p.Pinned, p.Approved, p.SocialPostID, p.CreatedByID,
		).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return err
		}
		for i := range p.Images {
			p.Images[i].PropertyID = p.ID
		}
		return insertImages(ctx, tx, p.ID, p.Images)
	})
	return pqTranslate(err)
}

// SaveProperty writes every column of p except the social post id, owned by
// SetSocialPostID, and replaces its images in a single transaction
func (db *DB) SaveProperty(ctx context.Context, p *models.Property) error {
	err := db.inTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			UPDATE properties SET
				title = $2, description = $3, long_description = $4, price = $5, type = $6, statuses = $7,
				address = $8, neighborhood = $9, city = $10, rooms = $11, bathrooms = $12, area = $13,
				lot_size = $14, year_built = $15, garage = $16, latitude = $17, longitude = $18,
				pinned = $19, approved = $20, created_by_id = $21,
				updated_at = NOW()
			WHERE id = $1
			RETURNING updated_at
		`,
			p.ID, p.Title, p.Description, p.LongDescription, p.Price, string(p.Type), p.Statuses,
			p.Address, p.Neighborhood, p.City, p.Rooms, p.Bathrooms, p.Area,
			p.LotSize, p.YearBuilt, p.Garage, p.Latitude, p.Longitude,
			p.Pinned, p.Approved, p.CreatedByID,
		).Scan(&p.UpdatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: property %d", apperr.ErrNotFound, p.ID)
		}
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM property_images WHERE property_id = $1`, p.ID); err != nil {
			return err
		}
		return insertImages(ctx, tx, p.ID, p.Images)
	})
	return pqTranslate(err)
}

// SetSocialPostID remembers the feed post mirroring a property
func (db *DB) SetSocialPostID(ctx context.Context, propertyID uint, postID string) error {
	_, err := db.conn.ExecContext(ctx, `UPDATE properties SET social_post_id = $2 WHERE id = $1`, propertyID, postID)
	return err
}

// FindPinnedProperties returns approved pinned listings
func (db *DB) FindPinnedProperties(ctx context.Context) ([]models.Property, error) {
	return db.queryProperties(ctx, "WHERE approved AND pinned ORDER BY created_at DESC")
}

// FindLatestApproved returns the newest approved listings
func (db *DB) FindLatestApproved(ctx context.Context, limit int) ([]models.Property, error) {
	return db.queryProperties(ctx, "WHERE approved ORDER BY created_at DESC LIMIT $1", limit)
}

// FindApprovedByStatus pages through approved listings holding status
func (db *DB) FindApprovedByStatus(ctx context.Context, status models.PropertyStatus, offset, limit int) ([]models.Property, int64, error) {
	const where = "WHERE approved AND $1 = ANY(string_to_array(statuses, ','))"

	var total int64
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM properties "+where, string(status)).Scan(&total); err != nil {
		return nil, 0, err
	}

	properties, err := db.queryProperties(ctx,
		where+" ORDER BY pinned DESC, created_at DESC OFFSET $2 LIMIT $3",
		string(status), offset, limit)
	return properties, total, err
}

// FindPendingProperties returns listings awaiting approval, oldest first
func (db *DB) FindPendingProperties(ctx context.Context) ([]models.Property, error) {
	return db.queryProperties(ctx, "WHERE NOT approved ORDER BY created_at ASC")
}

// FindPropertiesByCreator returns every listing a user created
func (db *DB) FindPropertiesByCreator(ctx context.Context, userID uint) ([]models.Property, error) {
	return db.queryProperties(ctx, "WHERE created_by_id = $1 ORDER BY created_at DESC", userID)
}

// FindAllApproved returns every approved listing for a full reindex
func (db *DB) FindAllApproved(ctx context.Context) ([]models.Property, error) {
	return db.queryProperties(ctx, "WHERE approved ORDER BY pinned DESC, created_at DESC")
}

// --- bookings ---

const bookingColumns = `id, property_id, user_id, email, check_in, check_out, price, approved, created_at`

func (db *DB) queryBookings(ctx context.Context, tail string, args ...any) ([]models.Booking, error) {
	rows, err := db.conn.QueryContext(ctx, "SELECT "+bookingColumns+" FROM bookings "+tail, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []models.Booking
	for rows.Next() {
		var b models.Booking
		if err := rows.Scan(&b.ID, &b.PropertyID, &b.UserID, &b.Email, &b.CheckIn, &b.CheckOut,
			&b.Price, &b.Approved, &b.CreatedAt); err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

// attachBookingProperties loads the property of each booking
func (db *DB) attachBookingProperties(ctx context.Context, bookings []models.Booking) error {
	if len(bookings) == 0 {
		return nil
	}
	seen := make(map[uint]bool)
	var ids []int64
	for _, b := range bookings {
		if !seen[b.PropertyID] {
			seen[b.PropertyID] = true
			ids = append(ids, int64(b.PropertyID))
		}
	}

	properties, err := db.queryProperties(ctx, "WHERE id = ANY($1)", pq.Array(ids))
	if err != nil {
		return err
	}
	byID := make(map[uint]*models.Property, len(properties))
	for i := range properties {
		byID[properties[i].ID] = &properties[i]
	}
	for i := range bookings {
		bookings[i].Property = byID[bookings[i].PropertyID]
	}
	return nil
}

// FindBookingsOverlapping returns bookings of a property intersecting
// the half-open range [checkIn, checkOut)
func (db *DB) FindBookingsOverlapping(ctx context.Context, propertyID uint, checkIn, checkOut time.Time) ([]models.Booking, error) {
	return db.queryBookings(ctx,
		"WHERE property_id = $1 AND check_in < $2 AND check_out > $3 ORDER BY check_in",
		propertyID, sqlDate(checkOut), sqlDate(checkIn))
}

// CreateBooking inserts b; the exclusion constraint rejects an overlapping
// range at commit time even under concurrent requests
func (db *DB) CreateBooking(ctx context.Context, b *models.Booking) error {
	err := db.conn.QueryRowContext(ctx, `
		INSERT INTO bookings (property_id, user_id, email, check_in, check_out, price, approved)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, b.PropertyID, b.UserID, b.Email, sqlDate(b.CheckIn), sqlDate(b.CheckOut), b.Price, b.Approved,
	).Scan(&b.ID, &b.CreatedAt)
	return pqTranslate(err)
}

// FindBookingByID retrieves a booking
func (db *DB) FindBookingByID(ctx context.Context, id uint) (*models.Booking, error) {
	bookings, err := db.queryBookings(ctx, "WHERE id = $1", id)
	if err != nil || len(bookings) == 0 {
		return nil, err
	}
	return &bookings[0], nil
}

// ApproveBooking marks a booking approved
func (db *DB) ApproveBooking(ctx context.Context, id uint) error {
	_, err := db.conn.ExecContext(ctx, `UPDATE bookings SET approved = TRUE WHERE id = $1`, id)
	return err
}

// FindBookingsByUser returns a user's bookings with their property
func (db *DB) FindBookingsByUser(ctx context.Context, userID uint) ([]models.Booking, error) {
	bookings, err := db.queryBookings(ctx, "WHERE user_id = $1 ORDER BY check_in DESC", userID)
	if err != nil {
		return nil, err
	}
	return bookings, db.attachBookingProperties(ctx, bookings)
}

// FindPendingBookings returns bookings awaiting approval, oldest first
func (db *DB) FindPendingBookings(ctx context.Context) ([]models.Booking, error) {
	bookings, err := db.queryBookings(ctx, "WHERE NOT approved ORDER BY created_at ASC")
	if err != nil {
		return nil, err
	}
	return bookings, db.attachBookingProperties(ctx, bookings)
}

// sqlDate renders a calendar day so the server never shifts it by timezone
func sqlDate(t time.Time) string {
	return t.Format("2006-01-02")
}

// --- users ---

const userColumns = `id, first_name, last_name, email, phone, password_hash, admin, is_active, created_at, updated_at`

func (db *DB) findUser(ctx context.Context, where string, arg any) (*models.User, error) {
	var u models.User
	err := db.conn.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users "+where, arg).Scan(
		&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.Phone, &u.PasswordHash,
		&u.Admin, &u.IsActive, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// FindUserByID retrieves an account
func (db *DB) FindUserByID(ctx context.Context, id uint) (*models.User, error) {
	return db.findUser(ctx, "WHERE id = $1", id)
}

// FindUserByEmail retrieves an account by its lowercase email
func (db *DB) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return db.findUser(ctx, "WHERE email = $1", email)
}

// CreateUser inserts an account
func (db *DB) CreateUser(ctx context.Context, u *models.User) error {
	err := db.conn.QueryRowContext(ctx, `
		INSERT INTO users (first_name, last_name, email, phone, password_hash, admin, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`, u.FirstName, u.LastName, u.Email, u.Phone, u.PasswordHash, u.Admin, u.IsActive,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	return pqTranslate(err)
}

// UpdateUser writes every column of an account
func (db *DB) UpdateUser(ctx context.Context, u *models.User) error {
	err := db.conn.QueryRowContext(ctx, `
		UPDATE users SET
			first_name = $2, last_name = $3, email = $4, phone = $5, password_hash = $6,
			admin = $7, is_active = $8, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`, u.ID, u.FirstName, u.LastName, u.Email, u.Phone, u.PasswordHash, u.Admin, u.IsActive,
	).Scan(&u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: user %d", apperr.ErrNotFound, u.ID)
	}
	return pqTranslate(err)
}

// --- favorites ---

// AddFavorite links a user to a property; an existing link is kept
func (db *DB) AddFavorite(ctx context.Context, userID, propertyID uint) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO favorites (user_id, property_id) VALUES ($1, $2)
		ON CONFLICT (user_id, property_id) DO NOTHING
	`, userID, propertyID)
	return err
}

// RemoveFavorite unlinks a user from a property
func (db *DB) RemoveFavorite(ctx context.Context, userID, propertyID uint) error {
	_, err := db.conn.ExecContext(ctx, `DELETE FROM favorites WHERE user_id = $1 AND property_id = $2`, userID, propertyID)
	return err
}

// FindFavoriteProperties returns the properties a user follows
func (db *DB) FindFavoriteProperties(ctx context.Context, userID uint) ([]models.Property, error) {
	return db.queryProperties(ctx, `
		WHERE id IN (SELECT property_id FROM favorites WHERE user_id = $1)
		ORDER BY created_at DESC`, userID)
}

// FindUsersFavoriting returns active users following a property
func (db *DB) FindUsersFavoriting(ctx context.Context, propertyID uint) ([]models.User, error) {
	cols := "u." + strings.ReplaceAll(userColumns, ", ", ", u.")
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+cols+`
		FROM users u
		JOIN favorites f ON f.user_id = u.id
		WHERE f.property_id = $1 AND u.is_active
	`, propertyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.Phone, &u.PasswordHash,
			&u.Admin, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// --- change history ---

// RecordChanges inserts change rows in one transaction
func (db *DB) RecordChanges(ctx context.Context, changes []models.PropertyChange) error {
	if len(changes) == 0 {
		return nil
	}
	return db.inTx(ctx, func(tx *sql.Tx) error {
		for i := range changes {
			c := &changes[i]
			err := tx.QueryRowContext(ctx, `
				INSERT INTO property_changes (property_id, change_type, old_value, new_value, changed_by)
				VALUES ($1, $2, $3, $4, $5)
				RETURNING id, detected_at
			`, c.PropertyID, c.ChangeType, c.OldValue, c.NewValue, c.ChangedBy).Scan(&c.ID, &c.DetectedAt)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (db *DB) queryChanges(ctx context.Context, tail string, args ...any) ([]models.PropertyChange, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, property_id, change_type, old_value, new_value, changed_by, detected_at
		FROM property_changes `+tail, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var changes []models.PropertyChange
	for rows.Next() {
		var c models.PropertyChange
		if err := rows.Scan(&c.ID, &c.PropertyID, &c.ChangeType, &c.OldValue, &c.NewValue, &c.ChangedBy, &c.DetectedAt); err != nil {
			return nil, err
		}
		changes = append(changes, c)
	}
	return changes, rows.Err()
}

// FindChanges returns the latest changes of a property
func (db *DB) FindChanges(ctx context.Context, propertyID uint, limit int) ([]models.PropertyChange, error) {
	return db.queryChanges(ctx, "WHERE property_id = $1 ORDER BY detected_at DESC LIMIT $2", propertyID, limit)
}

// FindRecentChanges returns the latest changes across all properties
func (db *DB) FindRecentChanges(ctx context.Context, limit int) ([]models.PropertyChange, error) {
	return db.queryChanges(ctx, "ORDER BY detected_at DESC LIMIT $1", limit)
}

// --- removal ---

// CountDependents counts the rows a removal would cascade to
func (db *DB) CountDependents(ctx context.Context, propertyID uint) (bookings, favorites int64, err error) {
	err = db.conn.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM bookings WHERE property_id = $1),
			(SELECT COUNT(*) FROM favorites WHERE property_id = $1)
	`, propertyID).Scan(&bookings, &favorites)
	return bookings, favorites, err
}

// DeletePropertyCascade removes a property with its bookings, favorite
// links and images, and writes entry, all in one transaction
func (db *DB) DeletePropertyCascade(ctx context.Context, entry *models.DeleteLog) error {
	return db.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM bookings WHERE property_id = $1`, entry.PropertyID)
		if err != nil {
			return err
		}
		n, _ := res.RowsAffected()
		entry.BookingsRemoved = int(n)

		res, err = tx.ExecContext(ctx, `DELETE FROM favorites WHERE property_id = $1`, entry.PropertyID)
		if err != nil {
			return err
		}
		n, _ = res.RowsAffected()
		entry.FavoritesRemoved = int(n)

		res, err = tx.ExecContext(ctx, `DELETE FROM properties WHERE id = $1`, entry.PropertyID)
		if err != nil {
			return err
		}
		if n, _ = res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: property %d", apperr.ErrNotFound, entry.PropertyID)
		}

		return tx.QueryRowContext(ctx, `
			INSERT INTO delete_logs (property_id, title, deleted_by, bookings_removed, favorites_removed, images_removed, reason)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id, deleted_at
		`, entry.PropertyID, entry.Title, entry.DeletedBy, entry.BookingsRemoved, entry.FavoritesRemoved,
			entry.ImagesRemoved, entry.Reason).Scan(&entry.ID, &entry.DeletedAt)
	})
}

// FindRecentDeleteLogs returns recent delete log entries
func (db *DB) FindRecentDeleteLogs(ctx context.Context, limit int) ([]models.DeleteLog, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, property_id, title, deleted_by, bookings_removed, favorites_removed, images_removed, reason, deleted_at
		FROM delete_logs
		ORDER BY deleted_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.DeleteLog
	for rows.Next() {
		var l models.DeleteLog
		if err := rows.Scan(&l.ID, &l.PropertyID, &l.Title, &l.DeletedBy, &l.BookingsRemoved,
			&l.FavoritesRemoved, &l.ImagesRemoved, &l.Reason, &l.DeletedAt); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// DeleteStats returns statistics about removed properties
func (db *DB) DeleteStats(ctx context.Context, since time.Time) (*models.DeleteStats, error) {
	stats := &models.DeleteStats{ByReason: make(map[string]int64)}

	err := db.conn.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE deleted_at >= $1) FROM delete_logs
	`, since).Scan(&stats.TotalDeleted, &stats.DeletedRecently)
	if err != nil {
		return nil, err
	}

	rows, err := db.conn.QueryContext(ctx, `SELECT reason, COUNT(*) FROM delete_logs GROUP BY reason`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var reason string
		var count int64
		if err := rows.Scan(&reason, &count); err != nil {
			return nil, err
		}
		stats.ByReason[reason] = count
	}
	return stats, rows.Err()
}
