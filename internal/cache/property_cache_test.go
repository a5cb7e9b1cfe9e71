package cache

import (
	"testing"
	"time"

	"propertyhub/internal/models"
)

func TestPropertyCache(t *testing.T) {
	c := NewPropertyCache(10, time.Minute)
	defer c.Stop()

	c.Set(&models.Property{ID: 1, Title: "Casa"})
	got, ok := c.Get(1)
	if !ok || got.Title != "Casa" {
		t.Fatalf("Get() = %+v, %v", got, ok)
	}

	got.Title = "mutated"
	again, _ := c.Get(1)
	if again.Title != "Casa" {
		t.Error("cached value must not alias returned copies")
	}

	c.Invalidate(1)
	if _, ok := c.Get(1); ok {
		t.Error("Get() after Invalidate should miss")
	}
}

func TestPropertyCache_KeysAndExpiry(t *testing.T) {
	c := NewPropertyCache(10, 20*time.Millisecond)
	defer c.Stop()

	c.Set(&models.Property{ID: 1, Title: "one"})
	c.Set(&models.Property{ID: 11, Title: "eleven"})
	if got, ok := c.Get(11); !ok || got.Title != "eleven" {
		t.Fatalf("Get(11) = %+v, %v", got, ok)
	}
	if got, ok := c.Get(1); !ok || got.Title != "one" {
		t.Fatalf("Get(1) = %+v, %v", got, ok)
	}

	time.Sleep(40 * time.Millisecond)
	if _, ok := c.Get(1); ok {
		t.Error("expired entry should miss")
	}
}
