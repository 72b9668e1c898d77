package generator

import (
	"context"
	"fmt"

	bencherr "github.com/arkilian/membench/internal/errors"
	"github.com/arkilian/membench/internal/layout"
	"github.com/arkilian/membench/internal/storage"
	"github.com/arkilian/membench/pkg/types"
)

// maxFailures caps how many mismatches Verify keeps in full.
const maxFailures = 10

// VerifyResult counts records that failed the read-back check, per layout.
// Failures holds the first few mismatches as MISMATCH errors.
type VerifyResult struct {
	Checked    int
	Mismatches map[string]int
	Failures   []error
}

// OK reports whether every record verified in every layout.
func (r *VerifyResult) OK() bool {
	for _, n := range r.Mismatches {
		if n > 0 {
			return false
		}
	}
	return true
}

// Verify reads every record in index back through each enabled layout.
// Mismatches are counted; a failed read aborts with a read error.
func Verify(ctx context.Context, a storage.Adapter, layouts layout.Set, index *types.SampleIndex) (*VerifyResult, error) {
	enabled := layouts.Enabled()
	result := &VerifyResult{Mismatches: make(map[string]int, len(enabled))}
	for _, l := range enabled {
		result.Mismatches[l.Name()] = 0
	}

	for i := 0; i < index.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec := index.At(i)
		for _, l := range enabled {
			ok, err := l.Verify(ctx, a, rec)
			if err != nil {
				return nil, bencherr.NewReadError(fmt.Sprintf("verify %s failed", l.Name()), err).
					WithDetails(map[string]interface{}{"record": i})
			}
			if !ok {
				result.Mismatches[l.Name()]++
				if len(result.Failures) < maxFailures {
					result.Failures = append(result.Failures,
						l.Mismatch(rec).WithDetail("record", i))
				}
			}
		}
		result.Checked++
	}
	return result, nil
}
