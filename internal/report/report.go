// Package report renders generation and benchmark outcomes.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/arkilian/membench/internal/bench"
	bencherr "github.com/arkilian/membench/internal/errors"
	"github.com/arkilian/membench/internal/generator"
)

// Format selects the output encoding.
type Format string

// Supported formats.
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ParseFormat validates a format name. The empty string means text.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatText, "":
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", bencherr.NewValidationError(bencherr.CodeInvalidConfig,
			fmt.Sprintf("unknown report format %q", s))
	}
}

// Report collects everything a run produced. Sections left nil are omitted.
type Report struct {
	RunID     string
	StartedAt time.Time
	Backend   string

	Generation   *generator.Summary
	Verification *generator.VerifyResult
	Benchmark    *bench.Results
}

// New creates a Report with a fresh run ID.
func New(backend string) *Report {
	return &Report{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Backend:   backend,
	}
}

// Write renders r to w in the given format.
func Write(w io.Writer, format Format, r *Report) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, r)
	case FormatText, "":
		return writeText(w, r)
	default:
		return bencherr.NewValidationError(bencherr.CodeInvalidConfig,
			fmt.Sprintf("unknown report format %q", format))
	}
}

// Millis formats d as milliseconds with five fractional digits.
func Millis(d time.Duration) string {
	return fmt.Sprintf("%.5f", float64(d)/float64(time.Millisecond))
}

func writeText(w io.Writer, r *Report) error {
	var b strings.Builder

	if g := r.Generation; g != nil {
		b.WriteString("-- Data creation complete. --\n")
		fmt.Fprintf(&b, "Created users count: %d\n", g.Users)
		fmt.Fprintf(&b, "Created organizations count: %d\n", g.Organizations)
	}

	if v := r.Verification; v != nil {
		fmt.Fprintf(&b, "Verified records: %d\n", v.Checked)
		for _, name := range sortedKeys(v.Mismatches) {
			fmt.Fprintf(&b, "Verification mismatches for %s: %d\n", name, v.Mismatches[name])
		}
	}

	if res := r.Benchmark; res != nil {
		b.WriteString("-- Finish! --\n")
		fmt.Fprintf(&b, "Tests count: %d\n", res.Samples)
		for _, l := range res.Layouts {
			if !l.Stats.HasSamples() {
				fmt.Fprintf(&b, "Average time for %s (%s): no samples\n", l.Name, l.Description)
				continue
			}
			fmt.Fprintf(&b, "Average time for %s (%s): %.5f ms\n", l.Name, l.Description, l.Stats.MeanMillis)
			fmt.Fprintf(&b, "  min %s / p50 %s / p95 %s / p99 %s / max %s ms, mismatches: %d\n",
				Millis(l.Stats.Min), Millis(l.Stats.P50), Millis(l.Stats.P95),
				Millis(l.Stats.P99), Millis(l.Stats.Max), l.Stats.Mismatches)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

type jsonReport struct {
	RunID        string          `json:"run_id"`
	StartedAt    time.Time       `json:"started_at"`
	Backend      string          `json:"backend,omitempty"`
	Generation   *jsonGeneration `json:"generation,omitempty"`
	Verification *jsonVerify     `json:"verification,omitempty"`
	Benchmark    *jsonBenchmark  `json:"benchmark,omitempty"`
}

type jsonGeneration struct {
	Organizations  int   `json:"organizations"`
	Users          int   `json:"users"`
	ScalarWrites   int64 `json:"scalar_writes"`
	DocumentWrites int64 `json:"document_writes"`
	ElapsedMillis  int64 `json:"elapsed_ms"`
}

type jsonVerify struct {
	Checked    int            `json:"checked"`
	Mismatches map[string]int `json:"mismatches"`
}

type jsonBenchmark struct {
	Requested     int          `json:"requested"`
	Samples       int          `json:"samples"`
	ElapsedMillis int64        `json:"elapsed_ms"`
	Layouts       []jsonLayout `json:"layouts"`
}

type jsonLayout struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Count       int      `json:"count"`
	MeanMillis  *float64 `json:"mean_ms"`
	MinMillis   float64  `json:"min_ms"`
	P50Millis   float64  `json:"p50_ms"`
	P95Millis   float64  `json:"p95_ms"`
	P99Millis   float64  `json:"p99_ms"`
	MaxMillis   float64  `json:"max_ms"`
	Mismatches  int64    `json:"mismatches"`
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func writeJSON(w io.Writer, r *Report) error {
	out := jsonReport{
		RunID:     r.RunID,
		StartedAt: r.StartedAt,
		Backend:   r.Backend,
	}
	if g := r.Generation; g != nil {
		out.Generation = &jsonGeneration{
			Organizations:  g.Organizations,
			Users:          g.Users,
			ScalarWrites:   g.ScalarWrites,
			DocumentWrites: g.DocumentWrites,
			ElapsedMillis:  g.Elapsed.Milliseconds(),
		}
	}
	if v := r.Verification; v != nil {
		out.Verification = &jsonVerify{Checked: v.Checked, Mismatches: v.Mismatches}
	}
	if res := r.Benchmark; res != nil {
		jb := &jsonBenchmark{
			Requested:     res.Requested,
			Samples:       res.Samples,
			ElapsedMillis: res.Elapsed.Milliseconds(),
			Layouts:       make([]jsonLayout, 0, len(res.Layouts)),
		}
		for _, l := range res.Layouts {
			jl := jsonLayout{
				Name:        l.Name,
				Description: l.Description,
				Count:       l.Stats.Count,
				MinMillis:   ms(l.Stats.Min),
				P50Millis:   ms(l.Stats.P50),
				P95Millis:   ms(l.Stats.P95),
				P99Millis:   ms(l.Stats.P99),
				MaxMillis:   ms(l.Stats.Max),
				Mismatches:  l.Stats.Mismatches,
			}
			if l.Stats.HasSamples() {
				mean := l.Stats.MeanMillis
				jl.MeanMillis = &mean
			}
			jb.Layouts = append(jb.Layouts, jl)
		}
		out.Benchmark = jb
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
