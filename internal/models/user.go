package models

import "time"

// User is an account. Admin is the only trust signal used for approvals.
type User struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	FirstName    string    `gorm:"type:varchar(100)" json:"first_name"`
	LastName     string    `gorm:"type:varchar(100)" json:"last_name"`
	Email        string    `gorm:"type:varchar(255);not null;uniqueIndex" json:"email"`
	Phone        string    `gorm:"type:varchar(20)" json:"phone,omitempty"`
	PasswordHash string    `gorm:"type:varchar(255);not null" json:"-"`
	Admin        bool      `gorm:"not null;default:false" json:"admin"`
	IsActive     bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName specifies the table name
func (User) TableName() string {
	return "users"
}

// Favorite links a user to a property they follow
type Favorite struct {
	UserID     uint      `gorm:"primaryKey" json:"user_id"`
	PropertyID uint      `gorm:"primaryKey;index" json:"property_id"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName specifies the table name
func (Favorite) TableName() string {
	return "favorites"
}
