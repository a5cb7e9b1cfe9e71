package models

import (
	"sort"
	"time"
)

// PropertyImage is one stored image reference of a property
type PropertyImage struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	PropertyID uint      `gorm:"not null;index" json:"-"`
	ImageURL   string    `gorm:"type:varchar(500);not null" json:"url"`
	SortOrder  int       `gorm:"not null;default:0" json:"sort_order"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"-"`
}

// TableName specifies the table name for PropertyImage
func (PropertyImage) TableName() string {
	return "property_images"
}

// SortedImages returns a copy of images ordered by SortOrder
func SortedImages(images []PropertyImage) []PropertyImage {
	out := append([]PropertyImage(nil), images...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SortOrder < out[j].SortOrder
	})
	return out
}
