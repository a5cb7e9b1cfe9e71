package search

import (
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"propertyhub/internal/models"
)

func TestFilterParams_Filter(t *testing.T) {
	minPrice, maxPrice := 50.0, 120.5
	rooms := 2

	tests := []struct {
		name   string
		params FilterParams
		want   string
	}{
		{"empty", FilterParams{Query: "casa"}, ""},
		{"type and status", FilterParams{Type: "house", Status: "for_rent"}, `type = "house" AND statuses = "for_rent"`},
		{"price range", FilterParams{MinPrice: &minPrice, MaxPrice: &maxPrice}, "price >= 50 AND price <= 120.5"},
		{"rooms and city", FilterParams{City: `San "Rafael"`, MinRooms: &rooms}, `city = "San \"Rafael\"" AND rooms >= 2`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.params.Filter(); got != tt.want {
				t.Errorf("Filter() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFilterParams_Sort(t *testing.T) {
	if got := (FilterParams{SortBy: "price_desc"}).Sort(); !reflect.DeepEqual(got, []string{"price:desc"}) {
		t.Errorf("Sort() = %v", got)
	}
	if got := (FilterParams{SortBy: "bogus"}).Sort(); !reflect.DeepEqual(got, []string{"pinned:desc"}) {
		t.Errorf("Sort() fallback = %v", got)
	}
}

func TestNewDocument(t *testing.T) {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	p := &models.Property{
		ID:        7,
		Title:     "Casa",
		Price:     decimal.RequireFromString("89.90"),
		Type:      models.PropertyTypeHouse,
		Statuses:  models.StatusSet{models.StatusForRent, models.StatusForSale},
		CreatedAt: created,
	}
	p.SetImageURLs([]string{"a.jpg", "b.jpg"})

	doc := NewDocument(p)
	if doc.ID != 7 || doc.Price != 89.9 || doc.Type != "house" {
		t.Errorf("NewDocument() = %+v", doc)
	}
	if !reflect.DeepEqual(doc.Statuses, []string{"for_rent", "for_sale"}) {
		t.Errorf("Statuses = %v", doc.Statuses)
	}
	if doc.ImageURL != "a.jpg" || doc.CreatedAt != created.Unix() {
		t.Errorf("ImageURL = %q, CreatedAt = %d", doc.ImageURL, doc.CreatedAt)
	}
	if doc.Geo != nil {
		t.Errorf("Geo = %+v, want nil without coordinates", doc.Geo)
	}

	lat, lng := -34.6, -58.4
	p.Latitude, p.Longitude = &lat, &lng
	if geo := NewDocument(p).Geo; geo == nil || geo.Lat != lat || geo.Lng != lng {
		t.Errorf("Geo = %+v", geo)
	}
}

func TestDecodeHits(t *testing.T) {
	hits := []interface{}{
		map[string]interface{}{"id": float64(3), "title": "Depto", "price": 10.5},
		map[string]interface{}{"title": "no id"},
		"garbage",
	}

	docs := decodeHits(hits)
	if len(docs) != 1 || docs[0].ID != 3 || docs[0].Title != "Depto" {
		t.Errorf("decodeHits() = %+v", docs)
	}
}
