// Command catalog-ingest loads a bulk catalog export into the products table.
// The export is one or more gzipped NDJSON files, one product per line, as
// produced by the merchandising system's nightly dump. Files are decompressed
// and ingested in parallel; rows are upserted, so re-running a partial ingest
// is safe.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/giftkart/storefront/internal/domain/product"
	"github.com/giftkart/storefront/internal/storage/postgres"
)

const (
	batchSize     = 500
	progressEvery = 100_000
	// maxLine bounds a single NDJSON record; anything larger is a corrupt dump.
	maxLine = 1 << 20
)

type productLine struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Category  string `json:"category"`
	Price     int64  `json:"price"`
	Available bool   `json:"available"`
}

func main() {
	var (
		dataDir     string
		databaseURL string
		workers     int
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing catalog-*.ndjson.gz files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&workers, "workers", 3, "number of files ingested in parallel")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, databaseURL, workers); err != nil {
		slog.Error("ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string, workers int) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "catalog-*.ndjson.gz"))
	if err != nil {
		return errors.Wrap(err, "glob data dir")
	}
	if len(files) == 0 {
		return errors.Errorf("no catalog files found in %s", dataDir)
	}

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	repo := postgres.NewProductRepository(pool)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, file := range files {
		g.Go(func() error {
			n, err := ingestFile(ctx, repo, file)
			if err != nil {
				return errors.Wrapf(err, "ingest %s", file)
			}
			slog.Info("file ingested", slog.String("file", file), slog.Int("products", n))
			return nil
		})
	}
	return g.Wait()
}

func ingestFile(ctx context.Context, repo *postgres.ProductRepository, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.Wrap(err, "open file")
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return 0, errors.Wrap(err, "open gzip reader")
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 64*1024), maxLine)

	var (
		batch []product.Product
		total int
	)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		var line productLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			return total, errors.Wrapf(err, "parse line %d", total+1)
		}
		if line.ID == "" || line.Price < 0 {
			return total, errors.Errorf("invalid product at line %d", total+1)
		}

		batch = append(batch, product.Product{
			ID:        line.ID,
			Name:      line.Name,
			Category:  line.Category,
			Price:     line.Price,
			Available: line.Available,
		})
		total++

		if len(batch) >= batchSize {
			if err := repo.Upsert(ctx, batch); err != nil {
				return total, err
			}
			batch = batch[:0]
		}
		if total%progressEvery == 0 {
			slog.Info("progress", slog.String("file", path), slog.Int("products", total))
		}
	}
	if err := scanner.Err(); err != nil {
		return total, errors.Wrap(err, "scan file")
	}

	if len(batch) > 0 {
		if err := repo.Upsert(ctx, batch); err != nil {
			return total, err
		}
	}
	return total, nil
}
