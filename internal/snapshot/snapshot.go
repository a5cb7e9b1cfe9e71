package snapshot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"propertyhub/internal/models"
)

// Store persists and reads listing change history
type Store interface {
	RecordChanges(ctx context.Context, changes []models.PropertyChange) error
	FindChanges(ctx context.Context, propertyID uint, limit int) ([]models.PropertyChange, error)
	FindRecentChanges(ctx context.Context, limit int) ([]models.PropertyChange, error)
}

// Service handles property change history
type Service struct {
	store Store
}

// NewService creates a new snapshot service
func NewService(store Store) *Service {
	return &Service{store: store}
}

// DetectChanges compares the state of a listing before and after an update
func DetectChanges(old, updated *models.Property, changedBy *uint) []models.PropertyChange {
	now := time.Now()
	changes := []models.PropertyChange{}
	add := func(changeType, oldVal, newVal string) {
		changes = append(changes, models.PropertyChange{
			PropertyID: updated.ID,
			ChangeType: changeType,
			OldValue:   oldVal,
			NewValue:   newVal,
			ChangedBy:  changedBy,
			DetectedAt: now,
		})
	}

	if old.Title != updated.Title {
		add(models.ChangeTypeTitle, old.Title, updated.Title)
	}
	if old.Description != updated.Description {
		add(models.ChangeTypeDescription, old.Description, updated.Description)
	}
	if !old.Price.Equal(updated.Price) {
		add(models.ChangeTypePrice, old.Price.StringFixed(2), updated.Price.StringFixed(2))
	}
	if oldStatus, newStatus := statusString(old.Statuses), statusString(updated.Statuses); oldStatus != newStatus {
		add(models.ChangeTypeStatus, oldStatus, newStatus)
	}
	if old.Approved != updated.Approved {
		add(models.ChangeTypeApproved, fmt.Sprintf("%t", old.Approved), fmt.Sprintf("%t", updated.Approved))
	}
	if old.Pinned != updated.Pinned {
		add(models.ChangeTypePinned, fmt.Sprintf("%t", old.Pinned), fmt.Sprintf("%t", updated.Pinned))
	}
	if !sameImages(old.ImageURLs(), updated.ImageURLs()) {
		add(models.ChangeTypeImage, fmt.Sprintf("%d images", len(old.Images)), fmt.Sprintf("%d images", len(updated.Images)))
	}

	return changes
}

// Summary renders changes as human readable lines for notifications
func Summary(changes []models.PropertyChange) string {
	lines := make([]string, 0, len(changes))
	for _, c := range changes {
		switch c.ChangeType {
		case models.ChangeTypePrice:
			lines = append(lines, fmt.Sprintf("Price: %s -> %s", c.OldValue, c.NewValue))
		case models.ChangeTypeStatus:
			lines = append(lines, fmt.Sprintf("Status: %s -> %s", c.OldValue, c.NewValue))
		case models.ChangeTypeTitle:
			lines = append(lines, fmt.Sprintf("Title: %s", c.NewValue))
		case models.ChangeTypeDescription:
			lines = append(lines, "Description updated")
		case models.ChangeTypeImage:
			lines = append(lines, "Photos updated")
		}
	}
	return strings.Join(lines, "\n")
}

// Record saves detected changes
func (s *Service) Record(ctx context.Context, changes []models.PropertyChange) error {
	if len(changes) == 0 {
		return nil
	}
	return s.store.RecordChanges(ctx, changes)
}

// GetPropertyHistory retrieves the change history of one property, newest first
func (s *Service) GetPropertyHistory(ctx context.Context, propertyID uint, limit int) ([]models.PropertyChange, error) {
	return s.store.FindChanges(ctx, propertyID, limit)
}

// GetRecentChanges retrieves recent property changes
func (s *Service) GetRecentChanges(ctx context.Context, limit int) ([]models.PropertyChange, error) {
	return s.store.FindRecentChanges(ctx, limit)
}

func statusString(ss models.StatusSet) string {
	v, _ := ss.Value()
	return v.(string)
}

func sameImages(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
