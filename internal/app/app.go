// Package app runs one benchmark job: connect, generate, verify, benchmark,
// report, disconnect.
package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/arkilian/membench/internal/bench"
	"github.com/arkilian/membench/internal/config"
	bencherr "github.com/arkilian/membench/internal/errors"
	"github.com/arkilian/membench/internal/generator"
	"github.com/arkilian/membench/internal/report"
	"github.com/arkilian/membench/internal/storage"
	"github.com/arkilian/membench/internal/token"
	"github.com/arkilian/membench/pkg/types"
)

// Stream ids mixed into the PCG seed so generation and sampling draw from
// independent sequences.
const (
	generateStream = 1
	sampleStream   = 2
)

// AdapterFactory opens a storage adapter for a URL.
type AdapterFactory func(rawURL string, opts storage.Options) (storage.Adapter, error)

// Option configures an App.
type Option func(*App)

// WithOutput sets where the report is written. Defaults to os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(a *App) { a.out = w }
}

// WithLogger sets the progress logger. Defaults to log.Default().
func WithLogger(l *log.Logger) Option {
	return func(a *App) { a.logger = l }
}

// WithAdapterFactory replaces storage.Open.
func WithAdapterFactory(f AdapterFactory) Option {
	return func(a *App) { a.open = f }
}

// WithTokenizer replaces the per-run obfuscator.
func WithTokenizer(t generator.Tokenizer) Option {
	return func(a *App) { a.tokenizer = t }
}

// App manages the lifecycle of one job.
type App struct {
	cfg       *config.Config
	out       io.Writer
	logger    *log.Logger
	open      AdapterFactory
	tokenizer generator.Tokenizer

	mu      sync.Mutex
	running bool
}

// New creates a new App with the given configuration.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	a := &App{
		cfg:    cfg,
		out:    os.Stdout,
		logger: log.Default(),
		open:   storage.Open,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Run generates the dataset, optionally verifies it, benchmarks every
// enabled layout and writes the report.
func (a *App) Run(ctx context.Context) (*report.Report, error) {
	return a.execute(ctx, true)
}

// Generate generates (and optionally verifies) the dataset and writes a
// report without a benchmark section.
func (a *App) Generate(ctx context.Context) (*report.Report, error) {
	return a.execute(ctx, false)
}

func (a *App) execute(ctx context.Context, benchmark bool) (rep *report.Report, err error) {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return nil, fmt.Errorf("app is already running")
	}
	a.running = true
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		a.running = false
		a.mu.Unlock()
	}()

	format, err := report.ParseFormat(a.cfg.Report.Format)
	if err != nil {
		return nil, err
	}

	tokenizer := a.tokenizer
	if tokenizer == nil {
		obf, err := token.NewObfuscator()
		if err != nil {
			return nil, bencherr.NewInternalError("failed to initialize tokenizer", err)
		}
		tokenizer = obf
	}

	ids, err := types.NewOrgIDSource(a.cfg.Generate.OrgIDScheme)
	if err != nil {
		return nil, bencherr.NewValidationError(bencherr.CodeInvalidConfig, err.Error())
	}

	seed := a.cfg.Bench.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	adapter, err := a.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := adapter.Close(); cerr != nil {
			a.logger.Printf("Storage close error: %v", cerr)
			if err == nil {
				err = bencherr.NewConnectionError(bencherr.CodeSessionLost, "failed to close storage", cerr)
				rep = nil
			}
		}
	}()

	layouts := a.cfg.LayoutSet()
	rep = report.New(backendName(a.cfg.Storage.URL))

	gen := generator.New(adapter, tokenizer, ids, generator.Options{
		Layouts: layouts,
		Rand:    rand.New(rand.NewPCG(seed, generateStream)),
		Logger:  a.logger,
	})
	index, summary, err := gen.Generate(ctx, a.cfg.Generate.Organizations, a.cfg.Generate.UsersPerOrg)
	if err != nil {
		a.logger.Printf("Error during data creation: %v", err)
		return nil, err
	}
	a.logger.Printf("-- Data creation complete. -- %d users in %d organizations (%v)",
		summary.Users, summary.Organizations, summary.Elapsed)
	rep.Generation = summary

	if a.cfg.Generate.Verify {
		result, err := generator.Verify(ctx, adapter, layouts, index)
		if err != nil {
			a.logger.Printf("Error during verification: %v", err)
			return nil, err
		}
		if !result.OK() {
			a.logger.Printf("Verification found mismatches: %v", result.Mismatches)
			for _, f := range result.Failures {
				a.logger.Printf("Mismatch: %v", f)
			}
		}
		rep.Verification = result
	}

	if benchmark {
		runner := bench.NewRunner(adapter, bench.Options{
			Layouts: layouts,
			Rand:    rand.New(rand.NewPCG(seed, sampleStream)),
			Logger:  a.logger,
		})
		results, err := runner.Run(ctx, a.cfg.Bench.Samples, index)
		if err != nil {
			a.logger.Printf("Error during benchmark: %v", err)
			return nil, err
		}
		rep.Benchmark = results
	}

	if err := report.Write(a.out, format, rep); err != nil {
		return nil, bencherr.NewInternalError("failed to write report", err)
	}
	return rep, nil
}

// connect opens the configured backend behind the retry decorator and
// connects it.
func (a *App) connect(ctx context.Context) (storage.Adapter, error) {
	inner, err := a.open(a.cfg.Storage.URL, storage.Options{S3: a.cfg.Storage.S3})
	if err != nil {
		return nil, err
	}
	adapter := storage.WithRetry(inner, a.cfg.Storage.Retry, a.logger)
	if err := adapter.Connect(ctx); err != nil {
		a.logger.Printf("Failed to connect to %s: %v", redact(a.cfg.Storage.URL), err)
		adapter.Close()
		return nil, err
	}
	a.logger.Printf("Storage connected: %s", redact(a.cfg.Storage.URL))
	return adapter, nil
}

func backendName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Scheme
}

func redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid url>"
	}
	return u.Redacted()
}
