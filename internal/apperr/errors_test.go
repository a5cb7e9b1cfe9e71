package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", fmt.Errorf("%w: check-in must be before check-out", ErrValidation), http.StatusBadRequest},
		{"not found", fmt.Errorf("%w: property 4", ErrNotFound), http.StatusNotFound},
		{"conflict", fmt.Errorf("%w: dates taken", ErrConflict), http.StatusConflict},
		{"forbidden", ErrForbidden, http.StatusForbidden},
		{"unauthorized", ErrUnauthorized, http.StatusUnauthorized},
		{"external", ErrExternal, http.StatusBadGateway},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatus(tt.err); got != tt.want {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPublicHidesInternalErrors(t *testing.T) {
	if got := Public(errors.New("dial tcp 10.0.0.3:3306: refused")); got != "internal server error" {
		t.Errorf("expected generic message, got %q", got)
	}

	err := fmt.Errorf("%w: property 9", ErrNotFound)
	if got := Public(err); got != err.Error() {
		t.Errorf("expected %q, got %q", err.Error(), got)
	}
}
