package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestIsMatchesByCode(t *testing.T) {
	err := Conflict("answer already submitted")
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict to match sentinel")
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatalf("conflict should not match not found")
	}

	wrapped := fmt.Errorf("submit: %w", err)
	if !errors.Is(wrapped, ErrConflict) {
		t.Fatalf("expected wrapped conflict to match sentinel")
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{NotFound("game not found"), http.StatusNotFound},
		{Forbidden("only the host can start the game"), http.StatusForbidden},
		{InvalidState("game is not waiting"), http.StatusConflict},
		{Conflict("request already exists"), http.StatusConflict},
		{InvalidInput("invalid option"), http.StatusBadRequest},
		{Unauthorized("invalid credentials"), http.StatusUnauthorized},
		{Internal(errors.New("connection refused")), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := HTTPStatus(tc.err); got != tc.want {
			t.Fatalf("HTTPStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestPublicMessageHidesInternalCause(t *testing.T) {
	err := Internal(errors.New("pq: password authentication failed"))
	if got := PublicMessage(err); got != "internal server error" {
		t.Fatalf("expected generic message, got %q", got)
	}
	if !errors.Is(err, ErrInternal) {
		t.Fatalf("expected internal sentinel match")
	}
	if got := PublicMessage(NotFound("game not found")); got != "game not found" {
		t.Fatalf("expected domain message, got %q", got)
	}
}
