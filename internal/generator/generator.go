// Package generator builds the synthetic membership dataset and persists it
// into the enabled storage layouts.
package generator

import (
	"context"
	"fmt"
	"log"
	"math/rand/v2"
	"time"

	bencherr "github.com/arkilian/membench/internal/errors"
	"github.com/arkilian/membench/internal/layout"
	"github.com/arkilian/membench/internal/storage"
	"github.com/arkilian/membench/internal/token"
	"github.com/arkilian/membench/pkg/types"
)

// preallocLimit caps up-front slice capacity; larger datasets grow on append.
const preallocLimit = 1 << 16

// Tokenizer turns a seed into an opaque token.
type Tokenizer interface {
	Tokenize(seed string) string
}

// Options configures a Generator.
type Options struct {
	// Layouts selects which layouts receive writes.
	Layouts layout.Set
	// Rand draws per-organization user counts. Nil uses a time-seeded source.
	Rand *rand.Rand
	// Logger receives one progress line per organization. Nil uses log.Default().
	Logger *log.Logger
}

// Summary describes a completed generation.
type Summary struct {
	Organizations  int
	Users          int
	ScalarWrites   int64
	DocumentWrites int64
	PerOrgUsers    []int
	Elapsed        time.Duration
}

// Generator writes organizations and their users through a storage adapter.
type Generator struct {
	adapter   storage.Adapter
	tokenizer Tokenizer
	ids       types.OrgIDSource
	layouts   layout.Set
	rng       *rand.Rand
	logger    *log.Logger
}

// New creates a Generator.
func New(adapter storage.Adapter, tokenizer Tokenizer, ids types.OrgIDSource, opts Options) *Generator {
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Generator{
		adapter:   adapter,
		tokenizer: tokenizer,
		ids:       ids,
		layouts:   opts.Layouts,
		rng:       rng,
		logger:    logger,
	}
}

// Generate creates orgCount organizations, each with a user count drawn
// uniformly from sizes, and returns the frozen sample index.
//
// Every record is appended to the index whether or not any layout is enabled.
// The first failed write aborts generation; records already written stay in
// storage.
func (g *Generator) Generate(ctx context.Context, orgCount int, sizes types.SizeRange) (*types.SampleIndex, *Summary, error) {
	if err := types.ValidateDataset(orgCount, sizes); err != nil {
		return nil, nil, bencherr.NewValidationError(bencherr.CodeInvalidRange, err.Error())
	}

	start := time.Now()
	index := types.NewSampleIndex(min(orgCount*sizes.Min, preallocLimit))
	summary := &Summary{PerOrgUsers: make([]int, 0, min(orgCount, preallocLimit))}

	for i := 0; i < orgCount; i++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		orgID, err := g.ids.Next()
		if err != nil {
			return nil, nil, bencherr.NewInternalError("failed to allocate organization id", err)
		}
		userCount := sizes.Min + g.rng.IntN(sizes.Max-sizes.Min+1)

		org := types.Organization{ID: orgID, Tokens: make([]string, userCount)}
		for j := 0; j < userCount; j++ {
			tok := g.tokenizer.Tokenize(token.Seed(i, j))
			org.Tokens[j] = tok

			if err := index.Append(types.UserRecord{Token: tok, OrgID: orgID}); err != nil {
				return nil, nil, bencherr.NewInternalError("sample index rejected record", err)
			}

			if g.layouts.Flat != nil {
				if err := g.layouts.Flat.Write(ctx, g.adapter, tok, orgID); err != nil {
					return nil, nil, writeError(g.layouts.Flat.Name(), g.layouts.Flat.Key(tok), i, j, err)
				}
				summary.ScalarWrites++
			}
		}

		if g.layouts.Document != nil {
			if err := g.layouts.Document.Write(ctx, g.adapter, org); err != nil {
				return nil, nil, writeError(g.layouts.Document.Name(), g.layouts.Document.Key(orgID), i, -1, err)
			}
			summary.DocumentWrites++
		}

		summary.Organizations++
		summary.Users += userCount
		summary.PerOrgUsers = append(summary.PerOrgUsers, userCount)
		g.logger.Printf("Organization %s with %d users added (%d/%d)", orgID, userCount, i+1, orgCount)
	}

	index.Freeze()
	summary.Elapsed = time.Since(start)
	return index, summary, nil
}

func writeError(layoutName, key string, org, user int, cause error) error {
	details := map[string]interface{}{
		"layout": layoutName,
		"key":    key,
		"org":    org,
	}
	if user >= 0 {
		details["user"] = user
	}
	return bencherr.NewWriteError(fmt.Sprintf("write to %s failed", layoutName), cause).WithDetails(details)
}
