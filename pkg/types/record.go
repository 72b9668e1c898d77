// Package types holds the records shared between the generation and
// benchmark phases.
package types

import (
	"fmt"
	"sync/atomic"
)

// Organization is an opaque identifier together with the tokens of the users
// it owns. It is never modified after generation.
type Organization struct {
	ID     string
	Tokens []string
}

// UserRecord pairs a user token with the organization that owns it.
type UserRecord struct {
	Token string
	OrgID string
}

// Dataset limits. They keep every count and product used during generation
// well inside int range and the index within memory.
const (
	// MaxUsersPerOrg bounds SizeRange.Max.
	MaxUsersPerOrg = 1 << 20
	// MaxRecords bounds the worst-case index size, organizations * Max.
	MaxRecords = 1 << 27
	// MaxOrganizations bounds the organization count on its own, since an
	// empty range makes the record bound vacuous.
	MaxOrganizations = 1 << 24
)

// SizeRange is an inclusive [Min, Max] bound on users per organization.
type SizeRange struct {
	Min int `json:"min" yaml:"min"`
	Max int `json:"max" yaml:"max"`
}

// Validate rejects negative, inverted or oversized ranges.
func (r SizeRange) Validate() error {
	if r.Min < 0 {
		return fmt.Errorf("users per org min must be >= 0, got %d", r.Min)
	}
	if r.Min > r.Max {
		return fmt.Errorf("users per org min (%d) exceeds max (%d)", r.Min, r.Max)
	}
	if r.Max > MaxUsersPerOrg {
		return fmt.Errorf("users per org max must be <= %d, got %d", MaxUsersPerOrg, r.Max)
	}
	return nil
}

// ValidateDataset checks that orgCount organizations drawn from r cannot
// produce more than MaxRecords records.
func ValidateDataset(orgCount int, r SizeRange) error {
	if orgCount < 0 {
		return fmt.Errorf("organization count must be >= 0, got %d", orgCount)
	}
	if orgCount > MaxOrganizations {
		return fmt.Errorf("organization count must be <= %d, got %d", MaxOrganizations, orgCount)
	}
	if err := r.Validate(); err != nil {
		return err
	}
	if r.Max > 0 && orgCount > MaxRecords/r.Max {
		return fmt.Errorf("%d organizations of up to %d users exceed the %d record limit",
			orgCount, r.Max, MaxRecords)
	}
	return nil
}

// Contains reports whether n lies within the range.
func (r SizeRange) Contains(n int) bool {
	return n >= r.Min && n <= r.Max
}

// SampleIndex is the in-memory ground truth of every generated record.
//
// It has a single writer (the generator) until Freeze is called, after which
// it is read-only. The phase boundary is what makes unsynchronized reads
// safe; the frozen flag only turns a violation of it into an error.
type SampleIndex struct {
	records []UserRecord
	frozen  atomic.Bool
}

// NewSampleIndex creates an empty index with room for capacity records.
func NewSampleIndex(capacity int) *SampleIndex {
	if capacity < 0 {
		capacity = 0
	}
	return &SampleIndex{records: make([]UserRecord, 0, capacity)}
}

// Append adds a record. It fails once the index has been frozen.
func (s *SampleIndex) Append(rec UserRecord) error {
	if s.frozen.Load() {
		return ErrIndexFrozen
	}
	s.records = append(s.records, rec)
	return nil
}

// Freeze ends the write phase.
func (s *SampleIndex) Freeze() {
	s.frozen.Store(true)
}

// Frozen reports whether Freeze has been called.
func (s *SampleIndex) Frozen() bool {
	return s.frozen.Load()
}

// Len returns the number of records.
func (s *SampleIndex) Len() int {
	return len(s.records)
}

// At returns the i-th record.
func (s *SampleIndex) At(i int) UserRecord {
	return s.records[i]
}

// Records returns a copy of all records in insertion order.
func (s *SampleIndex) Records() []UserRecord {
	out := make([]UserRecord, len(s.records))
	copy(out, s.records)
	return out
}
