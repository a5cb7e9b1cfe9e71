package models

import "time"

// PropertyChange is one field changed by a listing update
type PropertyChange struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	PropertyID uint      `gorm:"not null;index" json:"property_id"`
	ChangeType string    `gorm:"type:varchar(50);not null" json:"change_type"`
	OldValue   string    `gorm:"type:text" json:"old_value,omitempty"`
	NewValue   string    `gorm:"type:text" json:"new_value,omitempty"`
	ChangedBy  *uint     `json:"changed_by,omitempty"`
	DetectedAt time.Time `gorm:"type:datetime;not null;autoCreateTime;index" json:"detected_at"`
}

// TableName specifies the table name
func (PropertyChange) TableName() string {
	return "property_changes"
}

// ChangeType constants
const (
	ChangeTypeTitle       = "title_changed"
	ChangeTypeDescription = "description_changed"
	ChangeTypePrice       = "price_changed"
	ChangeTypeStatus      = "status_changed"
	ChangeTypeApproved    = "approval_changed"
	ChangeTypeImage       = "images_changed"
	ChangeTypePinned      = "pinned_changed"
)
