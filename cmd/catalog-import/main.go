// Command catalog-import loads products from JSON-lines files, optionally
// gzip-compressed, into the catalogue.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/productos/db"
	"github.com/xenking/productos/internal/app"
	"github.com/xenking/productos/internal/importer"
	"github.com/xenking/productos/internal/storage/postgres"
)

func main() {
	var (
		configFile string
		update     bool
		seed       bool
		verbose    bool
	)
	flag.StringVar(&configFile, "config", "", "path to YAML config file")
	flag.BoolVar(&update, "update", false, "overwrite products whose code already exists")
	flag.BoolVar(&seed, "seed", false, "also import the bundled sample products")
	flag.BoolVar(&verbose, "v", false, "verbose logging")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: catalog-import [-config FILE] [-update] [-seed] [-v] [FILE...]\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 && !seed {
		flag.Usage()
		os.Exit(2)
	}

	lg := app.NewCLILogger(verbose)
	defer func() { _ = lg.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	sources, err := importer.FileSources(flag.Args()...)
	if err != nil {
		lg.Error("Import failed", zap.Error(err))
		os.Exit(1)
	}
	if seed {
		sources = append(sources, importer.BytesSource("seed/products.jsonl", db.SeedProducts))
	}

	stats, err := run(ctx, lg, configFile, update, sources)
	if err != nil {
		lg.Error("Import failed", zap.Error(err))
		os.Exit(1)
	}
	fmt.Printf("read %d, inserted %d, updated %d, skipped %d, failed %d\n",
		stats.Read, stats.Inserted, stats.Updated, stats.Skipped, stats.Failed)
}

func run(ctx context.Context, lg *zap.Logger, configFile string, update bool, sources []importer.Source) (importer.Stats, error) {
	opts := app.LoadOptions{}
	if configFile != "" {
		opts.Files = []string{configFile}
	}
	cfg, err := app.LoadConfig(opts)
	if err != nil {
		return importer.Stats{}, err
	}

	provider := postgres.NewProvider(cfg.Database, lg.Named("postgres"))
	defer provider.Close()

	if err := postgres.RunMigrations(ctx, provider); err != nil {
		return importer.Stats{}, errors.Wrap(err, "run migrations")
	}

	repo := postgres.NewProductRepository(provider, postgres.WithLogger(lg.Named("products")))
	return importer.New(repo,
		importer.WithLogger(lg.Named("import")),
		importer.WithUpdate(update),
	).Import(ctx, sources...)
}
