//go:build integration

package integration

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/teranga-app/api/internal/repositories"
	"github.com/teranga-app/api/internal/repositories/postgres"
	"github.com/teranga-app/api/internal/services"
)

func newOrderService(t *testing.T, provider *postgres.Provider) services.OrderService {
	svc, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:       provider.Orders(),
		Items:        provider.OrderItems(),
		Transactions: provider.Transactions(),
		Products:     provider.Products(),
		UnitOfWork:   provider,
	})
	if err != nil {
		t.Fatalf("New order service: %v", err)
	}
	return svc
}

func seedProduct(t *testing.T, db *sql.DB, id, name, sku string, price int64) {
	_, err := db.Exec(
		`INSERT INTO products (id, name, sku, price) VALUES ($1, $2, $3, $4)`,
		id, name, sku, price,
	)
	if err != nil {
		t.Fatalf("Seed product %s: %v", id, err)
	}
}

func TestCreateOrderPersistsDerivedTotals(t *testing.T) {
	db, provider, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	svc := newOrderService(t, provider)
	actor := services.Actor{ID: "usr_client", Role: "client"}

	seedProduct(t, db, "prd_cement", "Cement bag", "CEM-50", 2000)
	seedProduct(t, db, "prd_sand", "Sand bag", "SND-25", 1500)

	cement := "prd_cement"
	sand := "prd_sand"
	order, err := svc.Create(ctx, actor, services.CreateOrderCommand{
		Tax:      "500",
		Shipping: "1000",
		Items: []services.CreateOrderItemCommand{
			{ProductID: &cement, Quantity: 3},
			{ProductID: &sand, Quantity: 2},
		},
	})
	if err != nil {
		t.Fatalf("Create order: %v", err)
	}

	if !strings.HasPrefix(order.Code, "CMD-") {
		t.Errorf("Code = %q, want CMD- prefix", order.Code)
	}
	if !order.Subtotal.Equal(decimal.NewFromInt(9000)) {
		t.Errorf("Subtotal = %s, want 9000", order.Subtotal)
	}
	if !order.Total.Equal(decimal.NewFromInt(10500)) {
		t.Errorf("Total = %s, want 10500", order.Total)
	}
	if order.Currency != "XOF" {
		t.Errorf("Currency = %q, want XOF", order.Currency)
	}

	stored, err := svc.Get(ctx, actor, order.ID)
	if err != nil {
		t.Fatalf("Get order: %v", err)
	}
	if len(stored.Items) != 2 {
		t.Fatalf("len(Items) = %d, want 2", len(stored.Items))
	}
	if !stored.Total.Equal(order.Total) {
		t.Errorf("Stored total = %s, want %s", stored.Total, order.Total)
	}
}

func TestDeliveredOrderRecordsSettlementExpense(t *testing.T) {
	db, provider, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	svc := newOrderService(t, provider)
	client := services.Actor{ID: "usr_client", Role: "client"}
	admin := services.Actor{ID: "usr_admin", Role: "admin"}

	seedProduct(t, db, "prd_cement", "Cement bag", "CEM-50", 2000)

	cement := "prd_cement"
	order, err := svc.Create(ctx, client, services.CreateOrderCommand{
		Tax:      500,
		Shipping: 1000,
		Items:    []services.CreateOrderItemCommand{{ProductID: &cement, Quantity: 3}},
	})
	if err != nil {
		t.Fatalf("Create order: %v", err)
	}

	delivered := "delivered"
	updated, err := svc.Update(ctx, admin, services.UpdateOrderCommand{
		OrderID: order.ID,
		Status:  &delivered,
	})
	if err != nil {
		t.Fatalf("Update order: %v", err)
	}
	if string(updated.PaymentStatus) != "paid" {
		t.Errorf("PaymentStatus = %q, want paid", updated.PaymentStatus)
	}

	txn, err := provider.Transactions().FindAutomatic(ctx, order.ID, client.ID, "expense")
	if err != nil {
		t.Fatalf("Find settlement transaction: %v", err)
	}
	if !txn.Amount.Equal(updated.Total) {
		t.Errorf("Settlement amount = %s, want %s", txn.Amount, updated.Total)
	}
	if string(txn.Status) != "completed" {
		t.Errorf("Settlement status = %q, want completed", txn.Status)
	}

	// A second settling update must reuse the existing ledger entry.
	paid := "paid"
	if _, err := svc.Update(ctx, admin, services.UpdateOrderCommand{OrderID: order.ID, Status: &paid}); err != nil {
		t.Fatalf("Second update: %v", err)
	}

	var count int
	if err := db.QueryRow(
		`SELECT COUNT(*) FROM transactions WHERE order_id = $1 AND type = 'expense'`, order.ID,
	).Scan(&count); err != nil {
		t.Fatalf("Count transactions: %v", err)
	}
	if count != 1 {
		t.Errorf("Settlement transaction count = %d, want 1", count)
	}
}

func TestOrderCodeCollisionSurfacesConflict(t *testing.T) {
	db, provider, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	svc, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:       provider.Orders(),
		Items:        provider.OrderItems(),
		Transactions: provider.Transactions(),
		Products:     provider.Products(),
		UnitOfWork:   provider,
		CodeRandom:   func() int { return 1234 },
	})
	if err != nil {
		t.Fatalf("New order service: %v", err)
	}
	actor := services.Actor{ID: "usr_client", Role: "client"}

	seedProduct(t, db, "prd_cement", "Cement bag", "CEM-50", 2000)
	cement := "prd_cement"
	cmd := services.CreateOrderCommand{
		Items: []services.CreateOrderItemCommand{{ProductID: &cement, Quantity: 1}},
	}

	if _, err := svc.Create(ctx, actor, cmd); err != nil {
		t.Fatalf("First create: %v", err)
	}
	if _, err := svc.Create(ctx, actor, cmd); err == nil {
		t.Fatal("Second create with the same code should conflict")
	}
}

func TestDeleteOrderCascadesItems(t *testing.T) {
	db, provider, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	svc := newOrderService(t, provider)
	actor := services.Actor{ID: "usr_client", Role: "client"}

	seedProduct(t, db, "prd_cement", "Cement bag", "CEM-50", 2000)
	cement := "prd_cement"
	order, err := svc.Create(ctx, actor, services.CreateOrderCommand{
		Items: []services.CreateOrderItemCommand{{ProductID: &cement, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("Create order: %v", err)
	}

	if err := svc.Delete(ctx, actor, order.ID); err != nil {
		t.Fatalf("Delete order: %v", err)
	}

	if _, err := provider.Orders().FindByID(ctx, order.ID); !repositories.IsNotFound(err) {
		t.Errorf("FindByID after delete = %v, want not-found", err)
	}

	var count int
	if err := db.QueryRow(
		`SELECT COUNT(*) FROM order_items WHERE order_id = $1`, order.ID,
	).Scan(&count); err != nil {
		t.Fatalf("Count items: %v", err)
	}
	if count != 0 {
		t.Errorf("Orphaned items = %d, want 0", count)
	}
}
