package faults

import (
	"errors"
	"fmt"
	"testing"
)

func TestNotFoundUnwrapsToSentinel(t *testing.T) {
	err := NotFound("entity", "abc")
	if !IsNotFound(err) {
		t.Error("Expected IsNotFound to match")
	}
	if !errors.Is(err, ErrNotFound) {
		t.Error("Expected errors.Is against the sentinel to match")
	}

	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.Kind != "entity" || nf.ID != "abc" {
		t.Errorf("Expected the typed error to carry kind and id, got %+v", nf)
	}
}

func TestWrappedErrorsStillMatch(t *testing.T) {
	err := fmt.Errorf("outer context: %w", Conflict("already deleted"))
	if !IsConflict(err) {
		t.Error("Expected a wrapped conflict to still match")
	}
	if IsNotFound(err) {
		t.Error("Expected a conflict not to match IsNotFound")
	}
}

func TestForbiddenMessageOmitsTarget(t *testing.T) {
	err := Forbidden("write")
	if !IsForbidden(err) {
		t.Error("Expected IsForbidden to match")
	}
	if err.Error() != "forbidden: write permission required" {
		t.Errorf("Unexpected message: %q", err.Error())
	}

	if Forbidden("").Error() != "forbidden" {
		t.Errorf("Unexpected bare message: %q", Forbidden("").Error())
	}
}

func TestValidationCarriesAllErrors(t *testing.T) {
	err := Validation([]string{"user ghost does not exist", "group nogroup does not exist"})
	if !IsValidation(err) {
		t.Error("Expected IsValidation to match")
	}

	var ve *ValidationError
	if !errors.As(err, &ve) || len(ve.Errors) != 2 {
		t.Errorf("Expected both messages preserved, got %+v", ve)
	}
}
