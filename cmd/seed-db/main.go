// Command seed-db loads the catalog from a JSON file and provisions the
// storefront and back-office API keys. Intended for local development and
// fresh deployments; every write is an upsert, so re-running is safe.
package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/giftkart/storefront/internal/domain/account"
	"github.com/giftkart/storefront/internal/domain/product"
	"github.com/giftkart/storefront/internal/storage/postgres"
)

type productJSON struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Category  string `json:"category"`
	Price     int64  `json:"price"`
	Available *bool  `json:"available,omitempty"`
}

func main() {
	var (
		databaseURL  string
		productsFile string
		customerKey  string
		adminKey     string
		pepper       string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&customerKey, "customer-key", "", "storefront API key to seed (or STOREFRONT_SEED_CUSTOMER_KEY env)")
	flag.StringVar(&adminKey, "admin-key", "", "back-office API key to seed (or STOREFRONT_SEED_ADMIN_KEY env)")
	flag.StringVar(&pepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or STOREFRONT_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if customerKey == "" {
		customerKey = os.Getenv("STOREFRONT_SEED_CUSTOMER_KEY")
	}
	if adminKey == "" {
		adminKey = os.Getenv("STOREFRONT_SEED_ADMIN_KEY")
	}
	if customerKey == "" || adminKey == "" {
		slog.Error("API keys are required: set --customer-key and --admin-key")
		os.Exit(1)
	}
	if pepper == "" {
		pepper = os.Getenv("STOREFRONT_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, customerKey, adminKey, pepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, customerKey, adminKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, pool, productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if err := seedAPIKey(ctx, pool, customerKey, pepper, "owner-dev", "Dev storefront key",
		[]string{account.ScopeStorefront}); err != nil {
		return errors.Wrap(err, "seed customer key")
	}
	if err := seedAPIKey(ctx, pool, adminKey, pepper, "owner-backoffice", "Dev back-office key",
		[]string{account.ScopeStorefront, account.ScopeAdmin}); err != nil {
		return errors.Wrap(err, "seed admin key")
	}

	return nil
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var raw []productJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	products := make([]product.Product, len(raw))
	for i, p := range raw {
		available := true
		if p.Available != nil {
			available = *p.Available
		}
		products[i] = product.Product{
			ID:        p.ID,
			Name:      p.Name,
			Category:  p.Category,
			Price:     p.Price,
			Available: available,
		}
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	if err := postgres.NewProductRepository(pool).Upsert(ctx, products); err != nil {
		return err
	}
	return nil
}

const upsertAPIKeySQL = `INSERT INTO api_keys (key_hash, name, owner_id, scopes, active)
	VALUES ($1, $2, $3, $4, TRUE)
	ON CONFLICT (key_hash) DO UPDATE SET
		name = EXCLUDED.name,
		owner_id = EXCLUDED.owner_id,
		scopes = EXCLUDED.scopes,
		active = TRUE`

func seedAPIKey(ctx context.Context, pool *pgxpool.Pool, rawKey, pepper, ownerID, name string, scopes []string) error {
	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(rawKey))
	keyHash := hex.EncodeToString(mac.Sum(nil))

	if _, err := pool.Exec(ctx, upsertAPIKeySQL, keyHash, name, ownerID, scopes); err != nil {
		return errors.Wrapf(err, "upsert api key %q", name)
	}

	slog.Info("upserted API key", slog.String("name", name), slog.String("owner", ownerID))
	return nil
}
