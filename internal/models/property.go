package models

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Property struct {
	// Basic listing data
	ID              uint            `gorm:"primaryKey;autoIncrement" json:"id"`
	Title           string          `gorm:"type:varchar(255);not null;uniqueIndex" json:"title"`
	Description     string          `gorm:"type:text" json:"description"`
	LongDescription string          `gorm:"type:text" json:"long_description,omitempty"`
	Price           decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	Type            PropertyType    `gorm:"type:varchar(30);not null;index" json:"type"`
	Statuses        StatusSet       `gorm:"type:varchar(255);not null;default:''" json:"status"`

	// Attributes
	Address      string  `gorm:"type:text" json:"address,omitempty"`
	Neighborhood string  `gorm:"type:varchar(255)" json:"neighborhood,omitempty"`
	City         string  `gorm:"type:varchar(255);index" json:"city,omitempty"`
	Rooms        int     `gorm:"type:int" json:"rooms"`
	Bathrooms    int     `gorm:"type:int" json:"bathrooms"`
	Area         float64 `gorm:"type:decimal(10,2)" json:"area"`
	LotSize      float64 `gorm:"type:decimal(10,2)" json:"lot_size"`
	YearBuilt    string  `gorm:"type:varchar(10)" json:"year_built,omitempty"`
	Garage       bool    `gorm:"not null;default:false" json:"garage"`

	// Map position; nil until the listing is geocoded
	Latitude  *float64 `gorm:"type:decimal(10,7)" json:"latitude,omitempty"`
	Longitude *float64 `gorm:"type:decimal(10,7)" json:"longitude,omitempty"`

	// Editorial flags
	Pinned   bool `gorm:"not null;default:false;index" json:"pinned"`
	Approved bool `gorm:"not null;default:false;index" json:"approved"`

	// External feed post mirroring this listing; empty for legacy rows
	SocialPostID string `gorm:"type:varchar(128)" json:"-"`

	Images      []PropertyImage `gorm:"foreignKey:PropertyID;constraint:OnDelete:CASCADE" json:"images"`
	CreatedByID *uint           `gorm:"index" json:"created_by_id,omitempty"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index:idx_property_created_at,sort:desc" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// PropertyType is the enumerated category of a listing
type PropertyType string

const (
	PropertyTypeHouse      PropertyType = "house"
	PropertyTypeApartment  PropertyType = "apartment"
	PropertyTypeLand       PropertyType = "land"
	PropertyTypeCommercial PropertyType = "commercial"
	PropertyTypeCountry    PropertyType = "country_house"
)

// Valid reports whether t is a known property type
func (t PropertyType) Valid() bool {
	switch t {
	case PropertyTypeHouse, PropertyTypeApartment, PropertyTypeLand, PropertyTypeCommercial, PropertyTypeCountry:
		return true
	}
	return false
}

// PropertyStatus is a lifecycle status; several may hold at once
type PropertyStatus string

const (
	StatusForSale           PropertyStatus = "for_sale"
	StatusForRent           PropertyStatus = "for_rent"
	StatusSold              PropertyStatus = "sold"
	StatusRented            PropertyStatus = "rented"
	StatusUnderConstruction PropertyStatus = "under_construction"
	StatusReserved          PropertyStatus = "reserved"
)

// Valid reports whether s is a known lifecycle status
func (s PropertyStatus) Valid() bool {
	switch s {
	case StatusForSale, StatusForRent, StatusSold, StatusRented, StatusUnderConstruction, StatusReserved:
		return true
	}
	return false
}

// StatusSet is stored as a comma separated column
type StatusSet []PropertyStatus

// Has reports whether the set contains s
func (ss StatusSet) Has(s PropertyStatus) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

// Validate rejects unknown statuses
func (ss StatusSet) Validate() error {
	for _, s := range ss {
		if !s.Valid() {
			return fmt.Errorf("invalid property status: %q", s)
		}
	}
	return nil
}

// Value implements driver.Valuer
func (ss StatusSet) Value() (driver.Value, error) {
	parts := make([]string, 0, len(ss))
	for _, s := range ss {
		parts = append(parts, string(s))
	}
	return strings.Join(parts, ","), nil
}

// Scan implements sql.Scanner
func (ss *StatusSet) Scan(src interface{}) error {
	var raw string
	switch v := src.(type) {
	case nil:
		*ss = nil
		return nil
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("unsupported status set type %T", src)
	}

	*ss = nil
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*ss = append(*ss, PropertyStatus(part))
		}
	}
	return nil
}

// TableName explicitly names the table
func (Property) TableName() string {
	return "properties"
}

// IsRentable reports whether the property currently accepts bookings
func (p *Property) IsRentable() bool {
	return p.Statuses.Has(StatusForRent)
}

// SocialMessage is the body mirrored to the social feed
func (p *Property) SocialMessage() string {
	return p.Title + "\n" + p.Description
}

// ImageURLs returns the image references in display order
func (p *Property) ImageURLs() []string {
	urls := make([]string, 0, len(p.Images))
	for _, img := range SortedImages(p.Images) {
		urls = append(urls, img.ImageURL)
	}
	return urls
}

// SetImageURLs replaces the image list, preserving the given order
func (p *Property) SetImageURLs(urls []string) {
	images := make([]PropertyImage, 0, len(urls))
	for i, u := range urls {
		images = append(images, PropertyImage{PropertyID: p.ID, ImageURL: u, SortOrder: i})
	}
	p.Images = images
}

// Clone returns a deep copy so callers can mutate without aliasing the original
func (p *Property) Clone() *Property {
	c := *p
	c.Statuses = append(StatusSet(nil), p.Statuses...)
	c.Images = append([]PropertyImage(nil), p.Images...)
	if p.CreatedByID != nil {
		id := *p.CreatedByID
		c.CreatedByID = &id
	}
	c.Latitude = cloneFloat(p.Latitude)
	c.Longitude = cloneFloat(p.Longitude)
	return &c
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
