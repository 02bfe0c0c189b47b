package tenancy

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/smtech/caterer-api/internal/apperr"
)

func TestCheckAllowsSameTenant(t *testing.T) {
	id := uuid.New()
	if err := Check(id, id); err != nil {
		t.Fatalf("Check same tenant: %v", err)
	}
}

func TestCheckRejectsCrossTenant(t *testing.T) {
	err := Check(uuid.New(), uuid.New())
	var unauthorized *apperr.Unauthorized
	if !errors.As(err, &unauthorized) {
		t.Fatalf("Check cross tenant: err = %v, want *apperr.Unauthorized", err)
	}
}
