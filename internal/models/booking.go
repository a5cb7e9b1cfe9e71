package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Booking is a rental reservation over the half-open range [CheckIn, CheckOut)
type Booking struct {
	ID         uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	PropertyID uint            `gorm:"not null;index:idx_booking_range,priority:1" json:"property_id"`
	UserID     *uint           `gorm:"index" json:"user_id,omitempty"`
	Email      string          `gorm:"type:varchar(255);not null" json:"email"`
	CheckIn    time.Time       `gorm:"type:date;not null;index:idx_booking_range,priority:2" json:"check_in"`
	CheckOut   time.Time       `gorm:"type:date;not null;index:idx_booking_range,priority:3" json:"check_out"`
	Price      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	Approved   bool            `gorm:"not null;default:false;index" json:"approved"`
	CreatedAt  time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`

	Property *Property `gorm:"foreignKey:PropertyID;constraint:OnDelete:CASCADE" json:"property,omitempty"`
}

// TableName specifies the table name
func (Booking) TableName() string {
	return "bookings"
}

// IsPending reports whether the booking still awaits admin approval
func (b *Booking) IsPending() bool {
	return !b.Approved
}
