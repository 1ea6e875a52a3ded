package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"strings"
	"testing"

	"github.com/lib/pq"
)

// stubDriver hands out connections whose transactions commit and roll back
// without touching a real server, so retry behaviour can be exercised in-process.
type stubDriver struct{}

func (stubDriver) Open(string) (driver.Conn, error) { return stubConn{}, nil }

type stubConn struct{}

func (stubConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not supported") }
func (stubConn) Close() error                        { return nil }
func (stubConn) Begin() (driver.Tx, error)           { return stubTx{}, nil }

func (stubConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	return stubTx{}, nil
}

type stubTx struct{}

func (stubTx) Commit() error   { return nil }
func (stubTx) Rollback() error { return nil }

func init() {
	sql.Register("stub", stubDriver{})
}

func openStubDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("stub", "")
	if err != nil {
		t.Fatalf("open stub db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestWithRetryStopsAfterMaxRetries(t *testing.T) {
	db := openStubDB(t)

	opts := DefaultTxOptions()
	opts.MaxRetries = 2

	attempts := 0
	serialization := &pq.Error{Code: "40001", Message: "could not serialize access"}

	err := WithRetry(context.Background(), db, opts, func(*sql.Tx) error {
		attempts++
		return serialization
	})
	if err == nil {
		t.Fatal("expected an error after exhausting retries")
	}
	if !strings.Contains(err.Error(), "max retries (2) exceeded") {
		t.Fatalf("unexpected error: %v", err)
	}
	if !errors.Is(err, serialization) {
		t.Fatalf("expected the last attempt's error to be wrapped, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts (initial plus 2 retries), got %d", attempts)
	}
}

func TestWithRetryReturnsPermanentErrorImmediately(t *testing.T) {
	db := openStubDB(t)

	attempts := 0
	unique := &pq.Error{Code: "23505", Message: "duplicate key value"}

	err := WithRetry(context.Background(), db, DefaultTxOptions(), func(*sql.Tx) error {
		attempts++
		return unique
	})
	if !errors.Is(err, unique) {
		t.Fatalf("expected the permanent error back, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("permanent errors must not retry, got %d attempts", attempts)
	}
}

func TestWithRetryRecoversAfterTransientFailure(t *testing.T) {
	db := openStubDB(t)

	attempts := 0
	err := WithRetry(context.Background(), db, DefaultTxOptions(), func(*sql.Tx) error {
		attempts++
		if attempts == 1 {
			return &pq.Error{Code: "40P01", Message: "deadlock detected"}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithRetry: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected the second attempt to succeed, got %d attempts", attempts)
	}
}

func TestWithRetryHonoursContextCancellation(t *testing.T) {
	db := openStubDB(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WithRetry(ctx, db, DefaultTxOptions(), func(*sql.Tx) error {
		t.Fatal("fn must not run once the context is cancelled")
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestClassifyErrorBuckets(t *testing.T) {
	cases := []struct {
		code string
		want ErrorClass
	}{
		{"40001", ErrorClassSerialization},
		{"40P01", ErrorClassDeadlock},
		{"55P03", ErrorClassTransient},
		{"23505", ErrorClassPermanent},
	}
	for _, tc := range cases {
		got := ClassifyError(&pq.Error{Code: pq.ErrorCode(tc.code)})
		if got != tc.want {
			t.Fatalf("code %s: got class %d, want %d", tc.code, got, tc.want)
		}
	}
	if ClassifyError(errors.New("plain")) != ErrorClassPermanent {
		t.Fatal("unknown errors must classify as permanent")
	}
}
