package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domain "github.com/dmaier/listify/pkg/types"
)

const defaultPoolSize = 10

// PostgresStore implements Store using pgxpool (connection-pooled PostgreSQL).
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore with connection pooling.
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	cfg.MaxConns = defaultPoolSize

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Close gracefully shuts down the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping verifies the database connection is alive.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate applies pending SQL schema migrations.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	return RunMigrations(ctx, s.pool)
}

// AppendProduct inserts a new product and fills the generated fields.
func (s *PostgresStore) AppendProduct(ctx context.Context, p *domain.Product) error {
	args := pgx.NamedArgs{
		"title":            p.Title,
		"description":      p.Description,
		"price":            p.Price,
		"cost":             p.Cost,
		"image_filename":   p.ImageFilename,
		"predicted_margin": p.PredictedMargin,
	}

	err := s.pool.QueryRow(ctx, queryInsertProduct, args).Scan(
		&p.ID, &p.Version, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting product: %w", err)
	}
	return nil
}

// GetProduct retrieves a product by id.
func (s *PostgresStore) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	p := &domain.Product{}
	err := scanProduct(s.pool.QueryRow(ctx, queryGetProduct, id), p)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying product %d: %w", id, err)
	}
	return p, nil
}

// ListProducts returns all products in insertion order.
func (s *PostgresStore) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.pool.Query(ctx, queryListProducts)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := scanProduct(rows, &p); err != nil {
			return nil, fmt.Errorf("scanning product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating products: %w", err)
	}
	return products, nil
}

// SetPublishState applies the publish-state mutation with an optimistic
// version check. Zero rows affected means either the product is gone or
// another writer bumped the version first.
func (s *PostgresStore) SetPublishState(
	ctx context.Context,
	id int64,
	provider domain.Provider,
	listingID string,
	version int,
) error {
	query := querySetEtsyState
	if provider == domain.ProviderEbay {
		query = querySetEbayState
	}

	tag, err := s.pool.Exec(ctx, query, id, listingID, version)
	if err != nil {
		return fmt.Errorf("updating publish state: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := s.pool.QueryRow(ctx, queryProductExists, id).Scan(&exists); err != nil {
		return fmt.Errorf("checking product %d: %w", id, err)
	}
	if !exists {
		return domain.ErrItemNotFound
	}
	return ErrVersionConflict
}

// CountProducts returns catalog aggregates.
func (s *PostgresStore) CountProducts(ctx context.Context) (*CatalogCounts, error) {
	c := &CatalogCounts{}
	err := s.pool.QueryRow(ctx, queryCountProducts).Scan(
		&c.Total, &c.PublishedEbay, &c.PublishedEtsy,
	)
	if err != nil {
		return nil, fmt.Errorf("counting products: %w", err)
	}
	return c, nil
}

// rowScanner abstracts pgx.Row and pgx.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner, p *domain.Product) error {
	return row.Scan(
		&p.ID, &p.Title, &p.Description, &p.Price, &p.Cost,
		&p.ImageFilename, &p.PredictedMargin,
		&p.Ebay.Published, &p.Ebay.ListingID,
		&p.Etsy.Published, &p.Etsy.ListingID,
		&p.Version, &p.CreatedAt, &p.UpdatedAt,
	)
}
