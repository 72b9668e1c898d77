// Package layout defines the two competing storage layouts for the
// organization/user membership relation and how each is written and queried.
package layout

import (
	"context"
	"fmt"

	bencherr "github.com/arkilian/membench/internal/errors"
	"github.com/arkilian/membench/internal/storage"
	"github.com/arkilian/membench/pkg/types"
)

// Default namespaces and document path.
const (
	DefaultFlatNamespace     = "test_kv"
	DefaultDocumentNamespace = "test_json"
	DefaultDocumentPath      = "$"
)

// Layout is one way of answering "does user T belong to organization O".
type Layout interface {
	// Name is the key namespace, used as the layout's label in reports.
	Name() string

	// Description is a short human-readable summary of the lookup.
	Description() string

	// Verify issues exactly one storage call and reports whether the stored
	// data agrees with rec.
	Verify(ctx context.Context, a storage.Adapter, rec types.UserRecord) (bool, error)

	// Mismatch describes a failed Verify of rec.
	Mismatch(rec types.UserRecord) *bencherr.BenchError
}

// FlatKV maps namespace:token to the owning organization ID.
type FlatKV struct {
	Namespace string
}

// Name returns the namespace.
func (f FlatKV) Name() string { return f.Namespace }

// Description summarizes the lookup.
func (f FlatKV) Description() string { return "Plain Key-Value" }

// Key returns the storage key for token.
func (f FlatKV) Key(token string) string {
	return f.Namespace + ":" + token
}

// Write stores one user.
func (f FlatKV) Write(ctx context.Context, a storage.Adapter, token, orgID string) error {
	return a.SetScalar(ctx, f.Key(token), orgID)
}

// Verify succeeds iff the stored value equals rec.OrgID byte for byte.
func (f FlatKV) Verify(ctx context.Context, a storage.Adapter, rec types.UserRecord) (bool, error) {
	v, found, err := a.GetScalar(ctx, f.Key(rec.Token))
	if err != nil {
		return false, err
	}
	return found && v == rec.OrgID, nil
}

// Mismatch reports that the key does not hold rec.OrgID.
func (f FlatKV) Mismatch(rec types.UserRecord) *bencherr.BenchError {
	key := f.Key(rec.Token)
	return bencherr.NewMismatchError(bencherr.CodeValueMismatch,
		fmt.Sprintf("%s does not hold %s", key, rec.OrgID)).
		WithDetails(map[string]interface{}{"layout": f.Name(), "key": key})
}

// DocumentArray maps namespace:orgId to an array of member tokens.
type DocumentArray struct {
	Namespace string
	Path      string
}

// Name returns the namespace.
func (d DocumentArray) Name() string { return d.Namespace }

// Description summarizes the lookup.
func (d DocumentArray) Description() string { return "ARRINDEX in JSON array" }

// Key returns the storage key for an organization.
func (d DocumentArray) Key(orgID string) string {
	return d.Namespace + ":" + orgID
}

// Write stores the whole member array of one organization.
func (d DocumentArray) Write(ctx context.Context, a storage.Adapter, org types.Organization) error {
	return a.SetDocumentArray(ctx, d.Key(org.ID), d.Path, org.Tokens)
}

// Verify succeeds iff rec.Token is an element of the organization's array.
func (d DocumentArray) Verify(ctx context.Context, a storage.Adapter, rec types.UserRecord) (bool, error) {
	idx, err := a.FindInDocumentArray(ctx, d.Key(rec.OrgID), d.Path, rec.Token)
	if err != nil {
		return false, err
	}
	return idx != storage.NotFound, nil
}

// Mismatch reports that rec.Token is missing from the organization's array.
func (d DocumentArray) Mismatch(rec types.UserRecord) *bencherr.BenchError {
	key := d.Key(rec.OrgID)
	return bencherr.NewMismatchError(bencherr.CodeNotMember,
		fmt.Sprintf("%s not found in %s", rec.Token, key)).
		WithDetails(map[string]interface{}{"layout": d.Name(), "key": key, "path": d.Path})
}

// Set holds the layouts enabled for a run. A nil field means disabled.
type Set struct {
	Flat     *FlatKV
	Document *DocumentArray
}

// NewSet builds a Set from enable flags and namespaces.
func NewSet(flatEnabled bool, flatNamespace string, docEnabled bool, docNamespace, docPath string) Set {
	var s Set
	if flatEnabled {
		s.Flat = &FlatKV{Namespace: flatNamespace}
	}
	if docEnabled {
		s.Document = &DocumentArray{Namespace: docNamespace, Path: docPath}
	}
	return s
}

// Enabled returns the enabled layouts in a stable order: flat first.
func (s Set) Enabled() []Layout {
	var out []Layout
	if s.Flat != nil {
		out = append(out, *s.Flat)
	}
	if s.Document != nil {
		out = append(out, *s.Document)
	}
	return out
}

// Any reports whether at least one layout is enabled.
func (s Set) Any() bool {
	return s.Flat != nil || s.Document != nil
}
