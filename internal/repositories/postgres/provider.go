package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/teranga-app/api/internal/platform/database"
	"github.com/teranga-app/api/internal/repositories"
)

type txContextKey struct{}

// querier is satisfied by both *sql.DB and *sql.Tx so repository methods run
// identically inside and outside a unit of work.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Provider implements repositories.Registry on top of PostgreSQL.
type Provider struct {
	db *sql.DB

	orders       *orderRepository
	orderItems   *orderItemRepository
	transactions *transactionRepository
	products     *productCatalog
	health       *healthRepository
}

// NewProvider wires the repository set around an open connection pool.
func NewProvider(db *sql.DB) *Provider {
	p := &Provider{db: db}
	p.orders = &orderRepository{provider: p}
	p.orderItems = &orderItemRepository{provider: p}
	p.transactions = &transactionRepository{provider: p}
	p.products = &productCatalog{provider: p}
	p.health = &healthRepository{provider: p}
	return p
}

var _ repositories.Registry = (*Provider)(nil)

// Close releases the underlying connection pool.
func (p *Provider) Close(_ context.Context) error {
	return p.db.Close()
}

func (p *Provider) Orders() repositories.OrderRepository             { return p.orders }
func (p *Provider) OrderItems() repositories.OrderItemRepository     { return p.orderItems }
func (p *Provider) Transactions() repositories.TransactionRepository { return p.transactions }
func (p *Provider) Products() repositories.ProductCatalog            { return p.products }
func (p *Provider) Health() repositories.HealthRepository            { return p.health }

// RunInTx executes fn within a single transaction. Repository calls made with
// the derived context join the transaction automatically. Nested calls reuse
// the outer transaction.
func (p *Provider) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txContextKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}
	return database.WithRetry(ctx, p.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		return fn(context.WithValue(ctx, txContextKey{}, tx))
	})
}

// querier resolves the active transaction from the context, falling back to
// the pool for standalone reads.
func (p *Provider) querier(ctx context.Context) querier {
	if tx, ok := ctx.Value(txContextKey{}).(*sql.Tx); ok {
		return tx
	}
	return p.db
}

func classify(op string, err error) repositories.RepositoryError {
	msg := fmt.Sprintf("postgres: %s", op)
	switch {
	case database.IsNoRows(err):
		return repositories.NewNotFound(msg, err)
	case database.IsUniqueViolation(err):
		return repositories.NewConflict(msg, err)
	case database.IsRetryable(err):
		return repositories.NewUnavailable(msg, err)
	default:
		return repositories.NewUnknown(msg, err)
	}
}

type healthRepository struct {
	provider *Provider
}

func (r *healthRepository) Ping(ctx context.Context) error {
	if err := r.provider.db.PingContext(ctx); err != nil {
		return repositories.NewUnavailable("postgres: ping", err)
	}
	return nil
}
