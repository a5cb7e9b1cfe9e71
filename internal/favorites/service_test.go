package favorites

import (
	"context"
	"errors"
	"testing"

	"propertyhub/internal/apperr"
	"propertyhub/internal/approval"
	"propertyhub/internal/models"
)

type link struct{ user, property uint }

type mockStore struct {
	properties map[uint]*models.Property
	links      map[link]bool
}

func (m *mockStore) FindPropertyByID(ctx context.Context, id uint) (*models.Property, error) {
	return m.properties[id], nil
}

func (m *mockStore) AddFavorite(ctx context.Context, userID, propertyID uint) error {
	m.links[link{userID, propertyID}] = true
	return nil
}

func (m *mockStore) RemoveFavorite(ctx context.Context, userID, propertyID uint) error {
	delete(m.links, link{userID, propertyID})
	return nil
}

func (m *mockStore) FindFavoriteProperties(ctx context.Context, userID uint) ([]models.Property, error) {
	var out []models.Property
	for l := range m.links {
		if l.user == userID {
			out = append(out, *m.properties[l.property])
		}
	}
	return out, nil
}

func TestFavorites(t *testing.T) {
	store := &mockStore{
		properties: map[uint]*models.Property{
			1: {ID: 1, Title: "Casa", Approved: true},
			2: {ID: 2, Title: "Pendiente"},
		},
		links: map[link]bool{},
	}
	svc := NewService(store)
	ctx := context.Background()
	user := &approval.Actor{UserID: 5}

	if err := svc.Add(ctx, nil, 1); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("guest Add() error = %v", err)
	}
	if err := svc.Add(ctx, user, 2); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unapproved Add() error = %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := svc.Add(ctx, user, 1); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}

	list, err := svc.List(ctx, user)
	if err != nil || len(list) != 1 {
		t.Fatalf("List() = %v, %v", list, err)
	}

	if err := svc.Remove(ctx, user, 1); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if list, _ := svc.List(ctx, user); len(list) != 0 {
		t.Errorf("List() after Remove = %v", list)
	}
}
