// Package importer loads products in bulk from JSON-lines files.
//
// Each line is one product object:
//
//	{"code":"A1","name":"Teclado","price":12.5,"available":true,"image":"<base64>"}
//
// Files ending in .gz are decompressed. Files are parsed concurrently and
// written by a single goroutine. To skip a database round trip for most new
// products, the codes already in the catalogue go into a bloom filter first:
// a miss means the product is new and is inserted right away, while a hit is
// checked with FindByCode.
package importer

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/productos/internal/domain/product"
	"github.com/xenking/productos/internal/storage/postgres"
)

const (
	minFilterCapacity = 1024
	filterFPR         = 0.01
	maxLineBytes      = 16 << 20
	progressEvery     = 10_000
)

// Stats counts what happened to the records of an import.
type Stats struct {
	Read     int
	Inserted int
	Updated  int
	Skipped  int
	Failed   int
}

// record is one parsed line, or the reason it could not be parsed.
type record struct {
	source  string
	line    int
	product product.Product
	err     error
}

// Importer writes parsed records to a product repository.
type Importer struct {
	repo   product.Repository
	lg     *zap.Logger
	update bool
}

// Option configures an Importer.
type Option func(i *Importer)

// WithLogger sets the logger.
func WithLogger(lg *zap.Logger) Option {
	return func(i *Importer) { i.lg = lg }
}

// WithUpdate makes records whose code already exists overwrite the stored
// product instead of being skipped.
func WithUpdate(update bool) Option {
	return func(i *Importer) { i.update = update }
}

// New creates an Importer.
func New(repo product.Repository, opts ...Option) *Importer {
	i := &Importer{repo: repo, lg: zap.NewNop()}
	for _, o := range opts {
		o(i)
	}
	return i
}

// Import reads all sources concurrently. Malformed lines and products the
// database rejects are counted as failed; I/O errors and connection
// failures abort the import.
func (i *Importer) Import(ctx context.Context, sources ...Source) (Stats, error) {
	filter, err := i.existingCodes(ctx)
	if err != nil {
		return Stats{}, errors.Wrap(err, "load existing codes")
	}

	records := make(chan record, 256)
	var stats Stats

	g, gctx := errgroup.WithContext(ctx)
	parsers, pctx := errgroup.WithContext(gctx)
	for _, src := range sources {
		parsers.Go(func() error {
			return parseSource(pctx, src, records)
		})
	}
	g.Go(func() error {
		defer close(records)
		return parsers.Wait()
	})
	g.Go(func() error {
		for rec := range records {
			if err := i.write(gctx, filter, rec, &stats); err != nil {
				return err
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return stats, err
	}
	i.lg.Info("Import complete",
		zap.Int("read", stats.Read),
		zap.Int("inserted", stats.Inserted),
		zap.Int("updated", stats.Updated),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
	)
	return stats, nil
}

// CodeLister is implemented by repositories that can list product codes
// without loading the products.
type CodeLister interface {
	Codes(ctx context.Context) ([]string, error)
}

func (i *Importer) existingCodes(ctx context.Context) (*bloom.BloomFilter, error) {
	var codes []string
	if cl, ok := i.repo.(CodeLister); ok {
		var err error
		if codes, err = cl.Codes(ctx); err != nil {
			return nil, err
		}
	} else {
		existing, err := i.repo.List(ctx)
		if err != nil {
			return nil, err
		}
		codes = make([]string, len(existing))
		for n, p := range existing {
			codes[n] = p.Code
		}
	}

	capacity := uint(2 * len(codes))
	if capacity < minFilterCapacity {
		capacity = minFilterCapacity
	}
	filter := bloom.NewWithEstimates(capacity, filterFPR)
	for _, code := range codes {
		filter.AddString(code)
	}
	i.lg.Debug("Existing codes loaded", zap.Int("count", len(codes)))
	return filter, nil
}

// write stores one record. Only connection failures are returned.
func (i *Importer) write(ctx context.Context, filter *bloom.BloomFilter, rec record, stats *Stats) error {
	stats.Read++
	if stats.Read%progressEvery == 0 {
		i.lg.Info("Import progress", zap.Int("records", stats.Read))
	}

	lg := i.lg.With(zap.String("source", rec.source), zap.Int("line", rec.line))
	if rec.err != nil {
		stats.Failed++
		lg.Warn("Skipping malformed record", zap.Error(rec.err))
		return nil
	}
	p := rec.product

	if filter.TestString(p.Code) {
		_, err := i.repo.FindByCode(ctx, p.Code)
		switch {
		case err == nil:
			return i.existing(ctx, lg, p, stats)
		case errors.Is(err, product.ErrNotFound):
			lg.Debug("Bloom filter false positive", zap.String("code", p.Code))
		case postgres.IsConnectionError(err):
			return err
		default:
			stats.Failed++
			lg.Warn("Lookup failed", zap.String("code", p.Code), zap.Error(err))
			return nil
		}
	}

	err := i.repo.Insert(ctx, p)
	switch {
	case err == nil:
		filter.AddString(p.Code)
		stats.Inserted++
	case errors.Is(err, product.ErrConflict):
		filter.AddString(p.Code)
		stats.Skipped++
	case postgres.IsConnectionError(err):
		return err
	default:
		stats.Failed++
		lg.Warn("Insert failed", zap.String("code", p.Code), zap.Error(err))
	}
	return nil
}

func (i *Importer) existing(ctx context.Context, lg *zap.Logger, p product.Product, stats *Stats) error {
	if !i.update {
		stats.Skipped++
		return nil
	}
	err := i.repo.Update(ctx, p)
	switch {
	case err == nil:
		stats.Updated++
	case postgres.IsConnectionError(err):
		return err
	default:
		stats.Failed++
		lg.Warn("Update failed", zap.String("code", p.Code), zap.Error(err))
	}
	return nil
}

// Source is a named stream of JSON lines. Names ending in .gz are
// decompressed.
type Source struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// FileSources checks that every path exists and returns a Source for each.
func FileSources(paths ...string) ([]Source, error) {
	sources := make([]Source, 0, len(paths))
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			return nil, errors.Wrapf(err, "check file %s", path)
		}
		sources = append(sources, FileSource(path))
	}
	return sources, nil
}

// FileSource reads the file at path.
func FileSource(path string) Source {
	return Source{Name: path, Open: func() (io.ReadCloser, error) { return os.Open(path) }}
}

// BytesSource reads data held in memory.
func BytesSource(name string, data []byte) Source {
	return Source{Name: name, Open: func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}}
}

// parseSource streams src line by line into out.
func parseSource(ctx context.Context, src Source, out chan<- record) error {
	rc, err := src.Open()
	if err != nil {
		return errors.Wrapf(err, "open %s", src.Name)
	}
	defer func() { _ = rc.Close() }()

	var r io.Reader = rc
	if strings.HasSuffix(src.Name, ".gz") {
		gz, err := pgzip.NewReader(rc)
		if err != nil {
			return errors.Wrapf(err, "create gzip reader for %s", src.Name)
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64<<10), maxLineBytes)
	line := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line++
		text := scanner.Bytes()
		if len(bytes.TrimSpace(text)) == 0 {
			continue
		}
		rec := record{source: src.Name, line: line}
		rec.product, rec.err = decodeLine(text)

		select {
		case out <- rec:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", src.Name)
	}
	return nil
}
