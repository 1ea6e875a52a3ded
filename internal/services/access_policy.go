package services

import (
	"github.com/teranga-app/api/internal/domain"
	"github.com/teranga-app/api/internal/platform/auth"
)

// The access gate is a set of pure predicates evaluated by both services
// before touching storage. Read access never reveals more than existence.

func (a Actor) isAdmin() bool {
	return a.Role == auth.RoleAdmin
}

func (a Actor) isStaff() bool {
	return a.Role == auth.RoleAdmin || a.Role == auth.RoleAgent
}

// canReadOrder allows staff to read any order and clients their own.
func canReadOrder(actor Actor, order domain.Order) bool {
	if actor.isStaff() {
		return true
	}
	return order.UserID == actor.ID
}

// canWriteOrder allows admins always. Clients may mutate only their own
// orders and only while the lifecycle has not advanced past processing.
// Agents have read-only access to orders.
func canWriteOrder(actor Actor, order domain.Order) bool {
	if actor.isAdmin() {
		return true
	}
	if actor.Role != auth.RoleClient {
		return false
	}
	return order.UserID == actor.ID && domain.IsClientMutable(order.Status)
}

// canDeleteOrder mirrors canWriteOrder; the delivered-item guard is a
// separate conflict check applied after this predicate passes.
func canDeleteOrder(actor Actor, order domain.Order) bool {
	return canWriteOrder(actor, order)
}

// canReadTransaction allows admins any entry and owners their own.
func canReadTransaction(actor Actor, txn domain.Transaction) bool {
	if actor.isAdmin() {
		return true
	}
	return txn.UserID == actor.ID
}

// canWriteTransaction allows admins full access. Owners may mutate their own
// entries only while still pending.
func canWriteTransaction(actor Actor, txn domain.Transaction) bool {
	if actor.isAdmin() {
		return true
	}
	return txn.UserID == actor.ID && txn.Status == domain.TransactionStatusPending
}
