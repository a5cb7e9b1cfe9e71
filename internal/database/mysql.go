package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"propertyhub/internal/apperr"
	"propertyhub/internal/models"
)

type GormDB struct {
	db *gorm.DB
}

func NewGormDB(host, port, user, password, dbname string) (*GormDB, error) {
	// Dates are stored as DATE columns; UTC keeps midnight on the same day
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		user, password, host, port, dbname)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, err
	}

	// Test connection
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, err
	}

	return &GormDB{db: db}, nil
}

// NewGormDBFromDB creates a GormDB wrapper from an existing gorm.DB instance
func NewGormDBFromDB(db *gorm.DB) *GormDB {
	return &GormDB{db: db}
}

// DB returns the underlying gorm.DB instance
func (gdb *GormDB) DB() *gorm.DB {
	return gdb.db
}

func (gdb *GormDB) Close() error {
	sqlDB, err := gdb.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// InitSchema creates tables using GORM AutoMigrate
func (gdb *GormDB) InitSchema() error {
	return gdb.db.AutoMigrate(
		&models.User{},
		&models.Property{},
		&models.PropertyImage{},
		&models.Booking{},
		&models.Favorite{},
		&models.PropertyChange{},
		&models.DeleteLog{},
	)
}

// translate maps driver errors onto the application's sentinels
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", apperr.ErrConflict, err)
	}
	return err
}

// first turns gorm's not-found into a nil result
func first[T any](q *gorm.DB) (*T, error) {
	var out T
	if err := q.First(&out).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}

func withImages(q *gorm.DB) *gorm.DB {
	return q.Preload("Images", func(db *gorm.DB) *gorm.DB {
		return db.Order("sort_order ASC")
	})
}

// approvedListing orders pinned listings first, newest within each group
func approvedListing(q *gorm.DB) *gorm.DB {
	return withImages(q).Where("approved = ?", true).Order("pinned DESC").Order("created_at DESC")
}

// --- properties ---

// FindPropertyByID retrieves a property and its images
func (gdb *GormDB) FindPropertyByID(ctx context.Context, id uint) (*models.Property, error) {
	return first[models.Property](withImages(gdb.db.WithContext(ctx)).Where("id = ?", id))
}

// FindPropertyByTitle retrieves a property by its unique title
func (gdb *GormDB) FindPropertyByTitle(ctx context.Context, title string) (*models.Property, error) {
	return first[models.Property](gdb.db.WithContext(ctx).Where("title = ?", title))
}

// CreateProperty inserts a property together with its images
func (gdb *GormDB) CreateProperty(ctx context.Context, p *models.Property) error {
	return translate(gdb.db.WithContext(ctx).Create(p).Error)
}

// saveImages replaces the image list of a property within a transaction.
// The list is authoritative: an empty list removes every image.
func saveImages(tx *gorm.DB, propertyID uint, images []models.PropertyImage) error {
	if err := tx.Where("property_id = ?", propertyID).Delete(&models.PropertyImage{}).Error; err != nil {
		return err
	}
	if len(images) == 0 {
		return nil
	}

	rows := make([]models.PropertyImage, len(images))
	for i, img := range images {
		rows[i] = models.PropertyImage{PropertyID: propertyID, ImageURL: img.ImageURL, SortOrder: img.SortOrder}
	}
	return tx.Create(&rows).Error
}

// SaveProperty writes every column of p except the social post id, owned by
// SetSocialPostID, and replaces its images in a single transaction
func (gdb *GormDB) SaveProperty(ctx context.Context, p *models.Property) error {
	err := gdb.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations, "SocialPostID").Save(p).Error; err != nil {
			return err
		}
		return saveImages(tx, p.ID, p.Images)
	})
	return translate(err)
}

// SetSocialPostID remembers the feed post mirroring a property
func (gdb *GormDB) SetSocialPostID(ctx context.Context, propertyID uint, postID string) error {
	return gdb.db.WithContext(ctx).Model(&models.Property{}).
		Where("id = ?", propertyID).
		UpdateColumn("social_post_id", postID).Error
}

// FindPinnedProperties returns approved pinned listings
func (gdb *GormDB) FindPinnedProperties(ctx context.Context) ([]models.Property, error) {
	var properties []models.Property
	err := approvedListing(gdb.db.WithContext(ctx)).Where("pinned = ?", true).Find(&properties).Error
	return properties, err
}

// FindLatestApproved returns the newest approved listings
func (gdb *GormDB) FindLatestApproved(ctx context.Context, limit int) ([]models.Property, error) {
	var properties []models.Property
	err := withImages(gdb.db.WithContext(ctx)).
		Where("approved = ?", true).
		Order("created_at DESC").
		Limit(limit).
		Find(&properties).Error
	return properties, err
}

// FindApprovedByStatus pages through approved listings holding status
func (gdb *GormDB) FindApprovedByStatus(ctx context.Context, status models.PropertyStatus, offset, limit int) ([]models.Property, int64, error) {
	byStatus := func(db *gorm.DB) *gorm.DB {
		return db.Where("approved = ? AND FIND_IN_SET(?, statuses) > 0", true, string(status))
	}
	db := gdb.db.WithContext(ctx)

	var total int64
	if err := db.Model(&models.Property{}).Scopes(byStatus).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var properties []models.Property
	err := approvedListing(db.Scopes(byStatus)).Offset(offset).Limit(limit).Find(&properties).Error
	return properties, total, err
}

// FindPendingProperties returns listings awaiting approval, oldest first
func (gdb *GormDB) FindPendingProperties(ctx context.Context) ([]models.Property, error) {
	var properties []models.Property
	err := withImages(gdb.db.WithContext(ctx)).
		Where("approved = ?", false).
		Order("created_at ASC").
		Find(&properties).Error
	return properties, err
}

// FindPropertiesByCreator returns every listing a user created
func (gdb *GormDB) FindPropertiesByCreator(ctx context.Context, userID uint) ([]models.Property, error) {
	var properties []models.Property
	err := withImages(gdb.db.WithContext(ctx)).
		Where("created_by_id = ?", userID).
		Order("created_at DESC").
		Find(&properties).Error
	return properties, err
}

// FindAllApproved returns every approved listing for a full reindex
func (gdb *GormDB) FindAllApproved(ctx context.Context) ([]models.Property, error) {
	var properties []models.Property
	err := approvedListing(gdb.db.WithContext(ctx)).Find(&properties).Error
	return properties, err
}

// --- bookings ---

// FindBookingsOverlapping returns bookings of a property intersecting
// the half-open range [checkIn, checkOut)
func (gdb *GormDB) FindBookingsOverlapping(ctx context.Context, propertyID uint, checkIn, checkOut time.Time) ([]models.Booking, error) {
	var bookings []models.Booking
	err := gdb.db.WithContext(ctx).
		Where("property_id = ? AND check_in < ? AND check_out > ?", propertyID, checkOut, checkIn).
		Order("check_in ASC").
		Find(&bookings).Error
	return bookings, err
}

// CreateBooking locks the property row so concurrent requests for the same
// property serialize, re-checks the range and inserts
func (gdb *GormDB) CreateBooking(ctx context.Context, b *models.Booking) error {
	return gdb.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var property models.Property
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			Where("id = ?", b.PropertyID).
			First(&property).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: property %d", apperr.ErrNotFound, b.PropertyID)
		}
		if err != nil {
			return err
		}

		var overlapping int64
		err = tx.Model(&models.Booking{}).
			Where("property_id = ? AND check_in < ? AND check_out > ?", b.PropertyID, b.CheckOut, b.CheckIn).
			Count(&overlapping).Error
		if err != nil {
			return err
		}
		if overlapping > 0 {
			return fmt.Errorf("%w: property %d is already booked for these dates", apperr.ErrConflict, b.PropertyID)
		}

		return tx.Create(b).Error
	})
}

// FindBookingByID retrieves a booking
func (gdb *GormDB) FindBookingByID(ctx context.Context, id uint) (*models.Booking, error) {
	return first[models.Booking](gdb.db.WithContext(ctx).Where("id = ?", id))
}

// ApproveBooking marks a booking approved
func (gdb *GormDB) ApproveBooking(ctx context.Context, id uint) error {
	return gdb.db.WithContext(ctx).Model(&models.Booking{}).
		Where("id = ?", id).
		Update("approved", true).Error
}

// FindBookingsByUser returns a user's bookings with their property
func (gdb *GormDB) FindBookingsByUser(ctx context.Context, userID uint) ([]models.Booking, error) {
	var bookings []models.Booking
	err := gdb.db.WithContext(ctx).
		Preload("Property").
		Where("user_id = ?", userID).
		Order("check_in DESC").
		Find(&bookings).Error
	return bookings, err
}

// FindPendingBookings returns bookings awaiting approval, oldest first
func (gdb *GormDB) FindPendingBookings(ctx context.Context) ([]models.Booking, error) {
	var bookings []models.Booking
	err := gdb.db.WithContext(ctx).
		Preload("Property").
		Where("approved = ?", false).
		Order("created_at ASC").
		Find(&bookings).Error
	return bookings, err
}

// --- users ---

// FindUserByID retrieves an account
func (gdb *GormDB) FindUserByID(ctx context.Context, id uint) (*models.User, error) {
	return first[models.User](gdb.db.WithContext(ctx).Where("id = ?", id))
}

// FindUserByEmail retrieves an account by its lowercase email
func (gdb *GormDB) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return first[models.User](gdb.db.WithContext(ctx).Where("email = ?", email))
}

// CreateUser inserts an account
func (gdb *GormDB) CreateUser(ctx context.Context, u *models.User) error {
	return translate(gdb.db.WithContext(ctx).Create(u).Error)
}

// UpdateUser writes every column of an account
func (gdb *GormDB) UpdateUser(ctx context.Context, u *models.User) error {
	return translate(gdb.db.WithContext(ctx).Save(u).Error)
}

// --- favorites ---

// AddFavorite links a user to a property; an existing link is kept
func (gdb *GormDB) AddFavorite(ctx context.Context, userID, propertyID uint) error {
	return gdb.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.Favorite{UserID: userID, PropertyID: propertyID}).Error
}

// RemoveFavorite unlinks a user from a property
func (gdb *GormDB) RemoveFavorite(ctx context.Context, userID, propertyID uint) error {
	return gdb.db.WithContext(ctx).
		Where("user_id = ? AND property_id = ?", userID, propertyID).
		Delete(&models.Favorite{}).Error
}

// FindFavoriteProperties returns the properties a user follows
func (gdb *GormDB) FindFavoriteProperties(ctx context.Context, userID uint) ([]models.Property, error) {
	var properties []models.Property
	err := withImages(gdb.db.WithContext(ctx)).
		Joins("JOIN favorites ON favorites.property_id = properties.id").
		Where("favorites.user_id = ?", userID).
		Order("favorites.created_at DESC").
		Find(&properties).Error
	return properties, err
}

// FindUsersFavoriting returns active users following a property
func (gdb *GormDB) FindUsersFavoriting(ctx context.Context, propertyID uint) ([]models.User, error) {
	var users []models.User
	err := gdb.db.WithContext(ctx).
		Joins("JOIN favorites ON favorites.user_id = users.id").
		Where("favorites.property_id = ? AND users.is_active = ?", propertyID, true).
		Find(&users).Error
	return users, err
}

// --- change history ---

// RecordChanges inserts change rows in one batch
func (gdb *GormDB) RecordChanges(ctx context.Context, changes []models.PropertyChange) error {
	if len(changes) == 0 {
		return nil
	}
	return gdb.db.WithContext(ctx).Create(&changes).Error
}

// FindChanges returns the latest changes of a property
func (gdb *GormDB) FindChanges(ctx context.Context, propertyID uint, limit int) ([]models.PropertyChange, error) {
	var changes []models.PropertyChange
	err := gdb.db.WithContext(ctx).
		Where("property_id = ?", propertyID).
		Order("detected_at DESC").
		Limit(limit).
		Find(&changes).Error
	return changes, err
}

// FindRecentChanges returns the latest changes across all properties
func (gdb *GormDB) FindRecentChanges(ctx context.Context, limit int) ([]models.PropertyChange, error) {
	var changes []models.PropertyChange
	err := gdb.db.WithContext(ctx).Order("detected_at DESC").Limit(limit).Find(&changes).Error
	return changes, err
}

// --- removal ---

// CountDependents counts the rows a removal would cascade to
func (gdb *GormDB) CountDependents(ctx context.Context, propertyID uint) (bookings, favorites int64, err error) {
	db := gdb.db.WithContext(ctx)
	if err = db.Model(&models.Booking{}).Where("property_id = ?", propertyID).Count(&bookings).Error; err != nil {
		return 0, 0, err
	}
	err = db.Model(&models.Favorite{}).Where("property_id = ?", propertyID).Count(&favorites).Error
	return bookings, favorites, err
}

// DeletePropertyCascade removes a property with its bookings, favorite
// links and images, and writes entry, all in one transaction
func (gdb *GormDB) DeletePropertyCascade(ctx context.Context, entry *models.DeleteLog) error {
	return gdb.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("property_id = ?", entry.PropertyID).Delete(&models.Booking{})
		if res.Error != nil {
			return res.Error
		}
		entry.BookingsRemoved = int(res.RowsAffected)

		res = tx.Where("property_id = ?", entry.PropertyID).Delete(&models.Favorite{})
		if res.Error != nil {
			return res.Error
		}
		entry.FavoritesRemoved = int(res.RowsAffected)

		if err := tx.Where("property_id = ?", entry.PropertyID).Delete(&models.PropertyImage{}).Error; err != nil {
			return err
		}

		res = tx.Where("id = ?", entry.PropertyID).Delete(&models.Property{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: property %d", apperr.ErrNotFound, entry.PropertyID)
		}

		return tx.Create(entry).Error
	})
}

// FindRecentDeleteLogs returns recent delete log entries
func (gdb *GormDB) FindRecentDeleteLogs(ctx context.Context, limit int) ([]models.DeleteLog, error) {
	var logs []models.DeleteLog
	err := gdb.db.WithContext(ctx).Order("deleted_at DESC").Limit(limit).Find(&logs).Error
	return logs, err
}

// DeleteStats returns statistics about removed properties
func (gdb *GormDB) DeleteStats(ctx context.Context, since time.Time) (*models.DeleteStats, error) {
	db := gdb.db.WithContext(ctx)
	stats := &models.DeleteStats{ByReason: make(map[string]int64)}

	if err := db.Model(&models.DeleteLog{}).Count(&stats.TotalDeleted).Error; err != nil {
		return nil, err
	}

	var reasonCounts []struct {
		Reason string
		Count  int64
	}
	if err := db.Model(&models.DeleteLog{}).
		Select("reason, count(*) as count").
		Group("reason").
		Scan(&reasonCounts).Error; err != nil {
		return nil, err
	}
	for _, rc := range reasonCounts {
		stats.ByReason[rc.Reason] = rc.Count
	}

	if err := db.Model(&models.DeleteLog{}).
		Where("deleted_at >= ?", since).
		Count(&stats.DeletedRecently).Error; err != nil {
		return nil, err
	}
	return stats, nil
}
