package models

import "time"

// DeleteLog records a property removed by an administrator
type DeleteLog struct {
	ID               uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	PropertyID       uint      `gorm:"not null;index" json:"property_id"`
	Title            string    `gorm:"type:text" json:"title"`
	DeletedBy        uint      `gorm:"not null" json:"deleted_by"`
	BookingsRemoved  int       `gorm:"not null;default:0" json:"bookings_removed"`
	FavoritesRemoved int       `gorm:"not null;default:0" json:"favorites_removed"`
	ImagesRemoved    int       `gorm:"not null;default:0" json:"images_removed"`
	Reason           string    `gorm:"type:varchar(50);not null" json:"reason"`
	DeletedAt        time.Time `gorm:"type:datetime;not null;autoCreateTime;index" json:"deleted_at"`
}

// TableName specifies the table name
func (DeleteLog) TableName() string {
	return "delete_logs"
}

// DeleteReason constants
const (
	DeleteReasonManual    = "manual_deletion"
	DeleteReasonDuplicate = "duplicate"
	DeleteReasonSpam      = "spam"
)

// DeleteStats summarises administrator removals
type DeleteStats struct {
	TotalDeleted    int64            `json:"total_deleted"`
	ByReason        map[string]int64 `json:"by_reason"`
	DeletedRecently int64            `json:"deleted_recently"`
}
