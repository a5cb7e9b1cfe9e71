package search

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/meilisearch/meilisearch-go"

	"propertyhub/internal/models"
)

const defaultIndex = "properties"

// Document is the indexed form of an approved listing
type Document struct {
	ID           uint      `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Type         string    `json:"type"`
	Statuses     []string  `json:"statuses"`
	Address      string    `json:"address"`
	Neighborhood string    `json:"neighborhood"`
	City         string    `json:"city"`
	Price        float64   `json:"price"`
	Rooms        int       `json:"rooms"`
	Bathrooms    int       `json:"bathrooms"`
	Area         float64   `json:"area"`
	Garage       bool      `json:"garage"`
	Pinned       bool      `json:"pinned"`
	ImageURL     string    `json:"image_url,omitempty"`
	CreatedAt    int64     `json:"created_at"`
	Geo          *GeoPoint `json:"_geo,omitempty"`
}

// GeoPoint is the reserved geosearch field of a document
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// NewDocument flattens a property for indexing
func NewDocument(p *models.Property) Document {
	statuses := make([]string, len(p.Statuses))
	for i, s := range p.Statuses {
		statuses[i] = string(s)
	}
	doc := Document{
		ID:           p.ID,
		Title:        p.Title,
		Description:  p.Description,
		Type:         string(p.Type),
		Statuses:     statuses,
		Address:      p.Address,
		Neighborhood: p.Neighborhood,
		City:         p.City,
		Price:        p.Price.InexactFloat64(),
		Rooms:        p.Rooms,
		Bathrooms:    p.Bathrooms,
		Area:         p.Area,
		Garage:       p.Garage,
		Pinned:       p.Pinned,
		CreatedAt:    p.CreatedAt.Unix(),
	}
	if urls := p.ImageURLs(); len(urls) > 0 {
		doc.ImageURL = urls[0]
	}
	if p.Latitude != nil && p.Longitude != nil {
		doc.Geo = &GeoPoint{Lat: *p.Latitude, Lng: *p.Longitude}
	}
	return doc
}

type SearchClient struct {
	client *meilisearch.Client
	index  string
}

func NewSearchClient(host, apiKey string) *SearchClient {
	client := meilisearch.NewClient(meilisearch.ClientConfig{
		Host:   host,
		APIKey: apiKey,
	})

	return &SearchClient{
		client: client,
		index:  defaultIndex,
	}
}

// InitIndex initializes the Meilisearch index
func (s *SearchClient) InitIndex() error {
	// Create index if it doesn't exist
	_, err := s.client.CreateIndex(&meilisearch.IndexConfig{
		Uid:        s.index,
		PrimaryKey: "id",
	})
	// Ignore error if index already exists
	if err != nil && err.Error() != "index already exists" {
		return err
	}

	idx := s.client.Index(s.index)

	// Configure searchable attributes
	if _, err := idx.UpdateSearchableAttributes(&[]string{
		"title",
		"description",
		"address",
		"neighborhood",
		"city",
	}); err != nil {
		return err
	}

	// Configure filterable attributes
	if _, err := idx.UpdateFilterableAttributes(&[]string{
		"id",
		"type",
		"statuses",
		"city",
		"price",
		"rooms",
		"garage",
		"_geo",
	}); err != nil {
		return err
	}

	// Configure sortable attributes
	_, err = idx.UpdateSortableAttributes(&[]string{
		"price",
		"area",
		"pinned",
		"created_at",
		"_geo",
	})
	return err
}

// IndexProperty adds or replaces a single listing. The client library has
// no context support; ctx only cancels before the request starts.
func (s *SearchClient) IndexProperty(ctx context.Context, p *models.Property) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.client.Index(s.index).AddDocuments([]Document{NewDocument(p)})
	return err
}

// IndexProperties indexes multiple listings
func (s *SearchClient) IndexProperties(ctx context.Context, properties []models.Property) error {
	if len(properties) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	docs := make([]Document, len(properties))
	for i := range properties {
		docs[i] = NewDocument(&properties[i])
	}
	_, err := s.client.Index(s.index).AddDocuments(docs)
	return err
}

// DeleteProperty removes a listing from the index
func (s *SearchClient) DeleteProperty(ctx context.Context, id uint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.client.Index(s.index).DeleteDocument(strconv.FormatUint(uint64(id), 10))
	return err
}

// ReplaceAll clears the index and loads properties
func (s *SearchClient) ReplaceAll(ctx context.Context, properties []models.Property) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.client.Index(s.index).DeleteAllDocuments(); err != nil {
		return err
	}
	return s.IndexProperties(ctx, properties)
}

// Result is one page of search hits
type Result struct {
	Hits           []Document `json:"hits"`
	TotalHits      int64      `json:"total_hits"`
	ProcessingTime int64      `json:"processing_time_ms"`
}

// Search performs a filtered full-text query
func (s *SearchClient) Search(ctx context.Context, params FilterParams) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if params.Limit == 0 {
		params.Limit = 20
	}

	searchReq := &meilisearch.SearchRequest{
		Limit:  params.Limit,
		Offset: params.Offset,
		Sort:   params.Sort(),
	}
	if filter := params.Filter(); filter != "" {
		searchReq.Filter = filter
	}

	searchRes, err := s.client.Index(s.index).Search(params.Query, searchReq)
	if err != nil {
		return nil, err
	}

	return &Result{
		Hits:           decodeHits(searchRes.Hits),
		TotalHits:      searchRes.EstimatedTotalHits,
		ProcessingTime: searchRes.ProcessingTimeMs,
	}, nil
}

// decodeHits converts raw hits into documents, skipping malformed ones
func decodeHits(hits []interface{}) []Document {
	docs := make([]Document, 0, len(hits))
	for _, hit := range hits {
		hitJSON, err := json.Marshal(hit)
		if err != nil {
			continue
		}
		var doc Document
		if err := json.Unmarshal(hitJSON, &doc); err != nil || doc.ID == 0 {
			continue
		}
		docs = append(docs, doc)
	}
	return docs
}
