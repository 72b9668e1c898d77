package types

import (
	"errors"
	"math"
	"testing"
)

func TestSizeRange_Validate(t *testing.T) {
	tests := []struct {
		name    string
		r       SizeRange
		wantErr bool
	}{
		{"fixed", SizeRange{Min: 3, Max: 3}, false},
		{"default", SizeRange{Min: 100, Max: 1000}, false},
		{"zero", SizeRange{Min: 0, Max: 0}, false},
		{"negative min", SizeRange{Min: -1, Max: 3}, true},
		{"inverted", SizeRange{Min: 5, Max: 4}, true},
		{"at limit", SizeRange{Min: 0, Max: MaxUsersPerOrg}, false},
		{"above limit", SizeRange{Min: 0, Max: MaxUsersPerOrg + 1}, true},
		{"max int", SizeRange{Min: 0, Max: math.MaxInt}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.r.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateDataset(t *testing.T) {
	tests := []struct {
		name     string
		orgCount int
		r        SizeRange
		wantErr  bool
	}{
		{"defaults", 10, SizeRange{Min: 100, Max: 1000}, false},
		{"no orgs", 0, SizeRange{Min: 1, Max: MaxUsersPerOrg}, false},
		{"empty orgs at limit", MaxOrganizations, SizeRange{Min: 0, Max: 0}, false},
		{"empty orgs over limit", math.MaxInt, SizeRange{Min: 0, Max: 0}, true},
		{"exactly at limit", MaxRecords / 1024, SizeRange{Min: 1024, Max: 1024}, false},
		{"one org over limit", MaxRecords/1024 + 1, SizeRange{Min: 1024, Max: 1024}, true},
		{"product overflows int", 1 << 40, SizeRange{Min: 1 << 20, Max: 1 << 20}, true},
		{"negative orgs", -1, SizeRange{Min: 1, Max: 2}, true},
		{"bad range", 1, SizeRange{Min: 0, Max: math.MaxInt}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDataset(tt.orgCount, tt.r)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateDataset() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSizeRange_Contains(t *testing.T) {
	r := SizeRange{Min: 100, Max: 1000}
	if !r.Contains(100) || !r.Contains(1000) {
		t.Error("bounds should be inclusive")
	}
	if r.Contains(99) || r.Contains(1001) {
		t.Error("values outside the range should not be contained")
	}
}

func TestSampleIndex_AppendAndRead(t *testing.T) {
	idx := NewSampleIndex(2)
	recs := []UserRecord{
		{Token: "aa", OrgID: "org1"},
		{Token: "bb", OrgID: "org1"},
		{Token: "cc", OrgID: "org2"},
	}
	for _, r := range recs {
		if err := idx.Append(r); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	if idx.Len() != 3 {
		t.Fatalf("Len = %d, want 3", idx.Len())
	}
	for i, r := range recs {
		if idx.At(i) != r {
			t.Errorf("At(%d) = %+v, want %+v", i, idx.At(i), r)
		}
	}
}

func TestSampleIndex_FreezeRejectsWrites(t *testing.T) {
	idx := NewSampleIndex(0)
	if err := idx.Append(UserRecord{Token: "aa", OrgID: "org"}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	idx.Freeze()
	if !idx.Frozen() {
		t.Fatal("expected index to be frozen")
	}

	err := idx.Append(UserRecord{Token: "bb", OrgID: "org"})
	if !errors.Is(err, ErrIndexFrozen) {
		t.Errorf("expected ErrIndexFrozen, got %v", err)
	}
	if idx.Len() != 1 {
		t.Errorf("frozen index should not grow, Len = %d", idx.Len())
	}
}

func TestSampleIndex_RecordsIsCopy(t *testing.T) {
	idx := NewSampleIndex(1)
	_ = idx.Append(UserRecord{Token: "aa", OrgID: "org"})

	out := idx.Records()
	out[0].OrgID = "changed"

	if idx.At(0).OrgID != "org" {
		t.Error("Records should return a copy")
	}
}
