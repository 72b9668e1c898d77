package types

import (
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Organization ID schemes.
const (
	OrgIDObjectID = "objectid"
	OrgIDULID     = "ulid"
	OrgIDUUID     = "uuid"
)

// OrgIDSource allocates fresh organization identifiers.
type OrgIDSource interface {
	Next() (string, error)
}

// NewOrgIDSource returns the source for the named scheme.
func NewOrgIDSource(scheme string) (OrgIDSource, error) {
	switch scheme {
	case OrgIDObjectID, "":
		return objectIDSource{}, nil
	case OrgIDULID:
		return &ulidSource{gen: NewULIDGenerator()}, nil
	case OrgIDUUID:
		return uuidSource{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOrgIDScheme, scheme)
	}
}

// objectIDSource yields 24-character hex Mongo ObjectIDs.
type objectIDSource struct{}

func (objectIDSource) Next() (string, error) {
	return primitive.NewObjectID().Hex(), nil
}

type ulidSource struct {
	gen *ULIDGenerator
}

func (s *ulidSource) Next() (string, error) {
	u, err := s.gen.Generate()
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

type uuidSource struct{}

func (uuidSource) Next() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
