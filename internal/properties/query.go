// Package properties serves the read side of listings: detail, home page,
// status filters and search.
package properties

import (
	"context"
	"fmt"

	"propertyhub/internal/apperr"
	"propertyhub/internal/approval"
	"propertyhub/internal/models"
	"propertyhub/internal/search"
)

// Store is the listing read persistence. FindPropertyByID returns nil when
// nothing matches.
type Store interface {
	FindPropertyByID(ctx context.Context, id uint) (*models.Property, error)
	FindPinnedProperties(ctx context.Context) ([]models.Property, error)
	FindLatestApproved(ctx context.Context, limit int) ([]models.Property, error)
	FindApprovedByStatus(ctx context.Context, status models.PropertyStatus, offset, limit int) ([]models.Property, int64, error)
	FindPendingProperties(ctx context.Context) ([]models.Property, error)
	FindPropertiesByCreator(ctx context.Context, userID uint) ([]models.Property, error)
}

// Searcher runs full-text queries over approved listings
type Searcher interface {
	Search(ctx context.Context, params search.FilterParams) (*search.Result, error)
}

// Home is the landing page content
type Home struct {
	Pinned []models.Property `json:"pinned"`
	Latest []models.Property `json:"latest"`
}

// Page is one page of a filtered listing
type Page struct {
	Properties []models.Property `json:"properties"`
	Page       int               `json:"page"`
	PageSize   int               `json:"page_size"`
	Total      int64             `json:"total"`
	TotalPages int               `json:"total_pages"`
}

// Query answers listing reads
type Query struct {
	store    Store
	searcher Searcher
	pageSize int
}

// NewQuery creates a read service. searcher may be nil when search is not
// configured.
func NewQuery(store Store, searcher Searcher, pageSize int) *Query {
	if pageSize <= 0 {
		pageSize = 10
	}
	return &Query{store: store, searcher: searcher, pageSize: pageSize}
}

// Get returns a listing. Pending listings are visible to their creator and
// to administrators only; everyone else gets ErrNotFound.
func (q *Query) Get(ctx context.Context, id uint, actor *approval.Actor) (*models.Property, error) {
	p, err := q.store.FindPropertyByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load property %d: %w", id, err)
	}
	if p == nil || !canView(p, actor) {
		return nil, fmt.Errorf("%w: property %d", apperr.ErrNotFound, id)
	}
	return p, nil
}

func canView(p *models.Property, actor *approval.Actor) bool {
	if p.Approved || approval.Decide(actor) {
		return true
	}
	return actor != nil && p.CreatedByID != nil && *p.CreatedByID == actor.UserID
}

// Home returns pinned listings and the latest approved ones not already pinned
func (q *Query) Home(ctx context.Context) (*Home, error) {
	pinned, err := q.store.FindPinnedProperties(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load pinned properties: %w", err)
	}
	latest, err := q.store.FindLatestApproved(ctx, q.pageSize+len(pinned))
	if err != nil {
		return nil, fmt.Errorf("failed to load latest properties: %w", err)
	}

	isPinned := make(map[uint]bool, len(pinned))
	for _, p := range pinned {
		isPinned[p.ID] = true
	}
	home := &Home{Pinned: pinned, Latest: make([]models.Property, 0, q.pageSize)}
	for _, p := range latest {
		if !isPinned[p.ID] && len(home.Latest) < q.pageSize {
			home.Latest = append(home.Latest, p)
		}
	}
	return home, nil
}

// ByStatus returns one page of approved listings holding status. Pages
// start at 1.
func (q *Query) ByStatus(ctx context.Context, status models.PropertyStatus, page int) (*Page, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: invalid property status %q", apperr.ErrValidation, status)
	}
	if page < 1 {
		page = 1
	}

	properties, total, err := q.store.FindApprovedByStatus(ctx, status, (page-1)*q.pageSize, q.pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to filter properties: %w", err)
	}
	return &Page{
		Properties: properties,
		Page:       page,
		PageSize:   q.pageSize,
		Total:      total,
		TotalPages: int((total + int64(q.pageSize) - 1) / int64(q.pageSize)),
	}, nil
}

// Pending lists listings awaiting approval. Administrators only.
func (q *Query) Pending(ctx context.Context, actor *approval.Actor) ([]models.Property, error) {
	if !approval.Decide(actor) {
		return nil, fmt.Errorf("%w: only administrators can review pending listings", apperr.ErrForbidden)
	}
	properties, err := q.store.FindPendingProperties(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending properties: %w", err)
	}
	return properties, nil
}

// CreatedBy lists every listing the actor created, approved or not
func (q *Query) CreatedBy(ctx context.Context, actor *approval.Actor) ([]models.Property, error) {
	if actor == nil {
		return nil, apperr.ErrUnauthorized
	}
	properties, err := q.store.FindPropertiesByCreator(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load properties of user %d: %w", actor.UserID, err)
	}
	return properties, nil
}

// Search runs a full-text query
func (q *Query) Search(ctx context.Context, params search.FilterParams) (*search.Result, error) {
	if q.searcher == nil {
		return nil, fmt.Errorf("%w: search is not configured", apperr.ErrExternal)
	}
	if params.Limit <= 0 {
		params.Limit = int64(q.pageSize)
	}
	res, err := q.searcher.Search(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%w: search failed: %v", apperr.ErrExternal, err)
	}
	return res, nil
}
