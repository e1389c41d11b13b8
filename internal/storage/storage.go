// Package storage is the sqlx persistence collaborator for the crawl sinks
// and the price-control worklist.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/daechan-jo/auto-store-services-coupang/internal/browser"
	"github.com/daechan-jo/auto-store-services-coupang/internal/jobs"
)

// Storage handles the product snapshot tables and the price-update worklist
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

func NewStorage(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
	}
}

const insertComparisonQuery = `
	INSERT INTO comparison_products (store, job_id, seller_product_id, product_code, winner, price, shipping_cost)
	VALUES (:store, :job_id, :seller_product_id, :product_code, :winner, :price, :shipping_cost)
`

const insertInventoryQuery = `
	INSERT INTO inventory_products (store, job_id, seller_product_id, product_code, winner, price, shipping_cost)
	VALUES (:store, :job_id, :seller_product_id, :product_code, :winner, :price, :shipping_cost)
	ON CONFLICT (store, seller_product_id) DO UPDATE
	SET job_id = EXCLUDED.job_id,
	    product_code = EXCLUDED.product_code,
	    winner = EXCLUDED.winner,
	    price = EXCLUDED.price,
	    shipping_cost = EXCLUDED.shipping_cost,
	    updated_at = NOW()
`

// snapshotRow is the named-exec shape of one crawled product row
type snapshotRow struct {
	Store           string `db:"store"`
	JobID           string `db:"job_id"`
	SellerProductID int64  `db:"seller_product_id"`
	ProductCode     string `db:"product_code"`
	Winner          bool   `db:"winner"`
	Price           int64  `db:"price"`
	ShippingCost    int64  `db:"shipping_cost"`
}

func snapshotRows(store, jobID string, products []browser.ProductSnapshot) []snapshotRow {
	rows := make([]snapshotRow, 0, len(products))
	for _, p := range products {
		rows = append(rows, snapshotRow{
			Store:           store,
			JobID:           jobID,
			SellerProductID: p.SellerProductID,
			ProductCode:     p.ProductCode,
			Winner:          p.Winner,
			Price:           p.Price,
			ShippingCost:    p.ShippingCost,
		})
	}
	return rows
}

// SaveComparisonProducts appends one crawled page to the comparison table
func (s *Storage) SaveComparisonProducts(ctx context.Context, store, jobID string, products []browser.ProductSnapshot) error {
	if len(products) == 0 {
		return nil
	}
	_, err := s.db.NamedExecContext(ctx, insertComparisonQuery, snapshotRows(store, jobID, products))
	if err != nil {
		return fmt.Errorf("failed to save comparison products: %w", err)
	}
	s.logger.Info("comparison products saved",
		slog.String("store", store),
		slog.String("job_id", jobID),
		slog.Int("count", len(products)),
	)
	return nil
}

// SaveInventoryProducts upserts one crawled page into the inventory table
func (s *Storage) SaveInventoryProducts(ctx context.Context, store, jobID string, products []browser.ProductSnapshot) error {
	if len(products) == 0 {
		return nil
	}
	_, err := s.db.NamedExecContext(ctx, insertInventoryQuery, snapshotRows(store, jobID, products))
	if err != nil {
		return fmt.Errorf("failed to save inventory products: %w", err)
	}
	s.logger.Info("inventory products saved",
		slog.String("store", store),
		slog.String("job_id", jobID),
		slog.Int("count", len(products)),
	)
	return nil
}

// DeleteComparisonProducts clears every comparison row for a store
func (s *Storage) DeleteComparisonProducts(ctx context.Context, store string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM comparison_products WHERE store = $1`, store)
	if err != nil {
		return 0, fmt.Errorf("failed to delete comparison products: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	s.logger.Info("comparison products cleared",
		slog.String("store", store),
		slog.Int64("deleted", deleted),
	)
	return deleted, nil
}

// CountComparisonProducts returns the number of comparison rows for a store
func (s *Storage) CountComparisonProducts(ctx context.Context, store string) (int64, error) {
	var count int64
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM comparison_products WHERE store = $1`, store)
	if err != nil {
		return 0, fmt.Errorf("failed to count comparison products: %w", err)
	}
	return count, nil
}

// SaveUpdateItems stores a price-update worklist keyed by job id
func (s *Storage) SaveUpdateItems(ctx context.Context, items []jobs.PriceUpdateItem) error {
	if len(items) == 0 {
		return nil
	}
	query := `
		INSERT INTO update_items (vendor_item_id, new_price, current_price, winner_price, seller_price, job_id, status)
		VALUES (:vendor_item_id, :new_price, :current_price, :winner_price, :seller_price, :job_id, 'PENDING')
	`
	if _, err := s.db.NamedExecContext(ctx, query, items); err != nil {
		return fmt.Errorf("failed to save update items: %w", err)
	}
	s.logger.Info("update items saved",
		slog.String("job_id", items[0].JobID),
		slog.Int("count", len(items)),
	)
	return nil
}

// UpdateItemsByJobID loads the price-update worklist for one job
func (s *Storage) UpdateItemsByJobID(ctx context.Context, jobID string) ([]jobs.PriceUpdateItem, error) {
	query := `
		SELECT vendor_item_id, new_price, current_price, winner_price, seller_price, job_id, status
		FROM update_items
		WHERE job_id = $1
		ORDER BY vendor_item_id
	`
	var items []jobs.PriceUpdateItem
	if err := s.db.SelectContext(ctx, &items, query, jobID); err != nil {
		return nil, fmt.Errorf("failed to load update items: %w", err)
	}
	return items, nil
}
