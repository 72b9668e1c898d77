package types

import (
	"encoding/hex"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestNewOrgIDSource_ObjectID(t *testing.T) {
	src, err := NewOrgIDSource(OrgIDObjectID)
	if err != nil {
		t.Fatalf("NewOrgIDSource failed: %v", err)
	}

	id, err := src.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if len(id) != 24 {
		t.Errorf("ObjectID should be 24 hex chars, got %q", id)
	}
	if _, err := hex.DecodeString(id); err != nil {
		t.Errorf("ObjectID should be hex: %v", err)
	}
}

func TestNewOrgIDSource_DefaultsToObjectID(t *testing.T) {
	src, err := NewOrgIDSource("")
	if err != nil {
		t.Fatalf("NewOrgIDSource failed: %v", err)
	}
	id, _ := src.Next()
	if len(id) != 24 {
		t.Errorf("empty scheme should use ObjectIDs, got %q", id)
	}
}

func TestNewOrgIDSource_ULID(t *testing.T) {
	src, err := NewOrgIDSource(OrgIDULID)
	if err != nil {
		t.Fatalf("NewOrgIDSource failed: %v", err)
	}

	first, _ := src.Next()
	second, _ := src.Next()
	if len(first) != 26 {
		t.Errorf("ULID should be 26 chars, got %q", first)
	}
	if first >= second {
		t.Errorf("ULIDs should sort in generation order: %s >= %s", first, second)
	}
}

func TestNewOrgIDSource_UUID(t *testing.T) {
	src, err := NewOrgIDSource(OrgIDUUID)
	if err != nil {
		t.Fatalf("NewOrgIDSource failed: %v", err)
	}
	id, _ := src.Next()
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("expected a valid UUID, got %q: %v", id, err)
	}
}

func TestNewOrgIDSource_Unknown(t *testing.T) {
	_, err := NewOrgIDSource("snowflake")
	if !errors.Is(err, ErrUnknownOrgIDScheme) {
		t.Errorf("expected ErrUnknownOrgIDScheme, got %v", err)
	}
}

func TestOrgIDSource_Unique(t *testing.T) {
	for _, scheme := range []string{OrgIDObjectID, OrgIDULID, OrgIDUUID} {
		src, _ := NewOrgIDSource(scheme)
		seen := make(map[string]bool)
		for i := 0; i < 1000; i++ {
			id, err := src.Next()
			if err != nil {
				t.Fatalf("%s: Next failed: %v", scheme, err)
			}
			if seen[id] {
				t.Fatalf("%s: duplicate id %s", scheme, id)
			}
			seen[id] = true
		}
	}
}
