package postgres

import (
	"context"

	"github.com/teranga-app/api/internal/domain"
)

type productCatalog struct {
	provider *Provider
}

func (r *productCatalog) Snapshot(ctx context.Context, productID string) (domain.ProductSnapshot, error) {
	var snapshot domain.ProductSnapshot
	err := r.provider.querier(ctx).QueryRowContext(ctx,
		`SELECT id, name, sku, price FROM products WHERE id = $1`,
		productID).Scan(&snapshot.ID, &snapshot.Name, &snapshot.SKU, &snapshot.Price)
	if err != nil {
		return domain.ProductSnapshot{}, classify("snapshot product", err)
	}
	return snapshot, nil
}
