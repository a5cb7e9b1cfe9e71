package listing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"propertyhub/internal/apperr"
	"propertyhub/internal/models"
)

// Patch is a partial listing update. Nil fields are left as they are.
type Patch struct {
	Title           *string              `json:"title"`
	Description     *string              `json:"description"`
	LongDescription *string              `json:"long_description"`
	Price           *decimal.Decimal     `json:"price"`
	Type            *models.PropertyType `json:"type"`
	Statuses        *models.StatusSet    `json:"status"`
	Address         *string              `json:"address"`
	Neighborhood    *string              `json:"neighborhood"`
	City            *string              `json:"city"`
	Rooms           *int                 `json:"rooms"`
	Bathrooms       *int                 `json:"bathrooms"`
	Area            *float64             `json:"area"`
	LotSize         *float64             `json:"lot_size"`
	YearBuilt       *string              `json:"year_built"`
	Garage          *bool                `json:"garage"`
	Latitude        *float64             `json:"latitude"`
	Longitude       *float64             `json:"longitude"`
	Pinned          *bool                `json:"pinned"`
	Approved        *bool                `json:"approved"`
}

// Draft is a new listing submission
type Draft struct {
	Title           string              `json:"title"`
	Description     string              `json:"description"`
	LongDescription string              `json:"long_description"`
	Price           decimal.Decimal     `json:"price"`
	Type            models.PropertyType `json:"type"`
	Statuses        models.StatusSet    `json:"status"`
	Address         string              `json:"address"`
	Neighborhood    string              `json:"neighborhood"`
	City            string              `json:"city"`
	Rooms           int                 `json:"rooms"`
	Bathrooms       int                 `json:"bathrooms"`
	Area            float64             `json:"area"`
	LotSize         float64             `json:"lot_size"`
	YearBuilt       string              `json:"year_built"`
	Garage          bool                `json:"garage"`
	Latitude        *float64            `json:"latitude"`
	Longitude       *float64            `json:"longitude"`
	Approved        *bool               `json:"approved"`
}

// Upload is an image received with a listing request
type Upload struct {
	Name string
	Data []byte
}

// TouchesAdminFields reports whether the patch sets editorial flags
func (p Patch) TouchesAdminFields() bool {
	return p.Pinned != nil
}

func (p Patch) apply(dst *models.Property) {
	if p.Title != nil {
		dst.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		dst.Description = *p.Description
	}
	if p.LongDescription != nil {
		dst.LongDescription = *p.LongDescription
	}
	if p.Price != nil {
		dst.Price = *p.Price
	}
	if p.Type != nil {
		dst.Type = *p.Type
	}
	if p.Statuses != nil {
		dst.Statuses = append(models.StatusSet(nil), (*p.Statuses)...)
	}
	if p.Address != nil {
		dst.Address = *p.Address
	}
	if p.Neighborhood != nil {
		dst.Neighborhood = *p.Neighborhood
	}
	if p.City != nil {
		dst.City = *p.City
	}
	if p.Rooms != nil {
		dst.Rooms = *p.Rooms
	}
	if p.Bathrooms != nil {
		dst.Bathrooms = *p.Bathrooms
	}
	if p.Area != nil {
		dst.Area = *p.Area
	}
	if p.LotSize != nil {
		dst.LotSize = *p.LotSize
	}
	if p.YearBuilt != nil {
		dst.YearBuilt = *p.YearBuilt
	}
	if p.Garage != nil {
		dst.Garage = *p.Garage
	}
	if p.Latitude != nil {
		lat := *p.Latitude
		dst.Latitude = &lat
	}
	if p.Longitude != nil {
		lng := *p.Longitude
		dst.Longitude = &lng
	}
	if p.Pinned != nil {
		dst.Pinned = *p.Pinned
	}
}

func (d Draft) property() *models.Property {
	return &models.Property{
		Title:           strings.TrimSpace(d.Title),
		Description:     d.Description,
		LongDescription: d.LongDescription,
		Price:           d.Price,
		Type:            d.Type,
		Statuses:        append(models.StatusSet(nil), d.Statuses...),
		Address:         d.Address,
		Neighborhood:    d.Neighborhood,
		City:            d.City,
		Rooms:           d.Rooms,
		Bathrooms:       d.Bathrooms,
		Area:            d.Area,
		LotSize:         d.LotSize,
		YearBuilt:       d.YearBuilt,
		Garage:          d.Garage,
		Latitude:        d.Latitude,
		Longitude:       d.Longitude,
	}
}

func validate(p *models.Property) error {
	if p.Title == "" {
		return fmt.Errorf("%w: title is required", apperr.ErrValidation)
	}
	if !p.Type.Valid() {
		return fmt.Errorf("%w: invalid property type %q", apperr.ErrValidation, p.Type)
	}
	if err := p.Statuses.Validate(); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrValidation, err)
	}
	if p.Price.IsNegative() {
		return fmt.Errorf("%w: price must not be negative", apperr.ErrValidation)
	}
	if (p.Latitude == nil) != (p.Longitude == nil) {
		return fmt.Errorf("%w: latitude and longitude go together", apperr.ErrValidation)
	}
	if p.Latitude != nil && (*p.Latitude < -90 || *p.Latitude > 90) {
		return fmt.Errorf("%w: latitude out of range", apperr.ErrValidation)
	}
	if p.Longitude != nil && (*p.Longitude < -180 || *p.Longitude > 180) {
		return fmt.Errorf("%w: longitude out of range", apperr.ErrValidation)
	}
	return nil
}
