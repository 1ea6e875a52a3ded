package idempotency

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps records in process memory. It suits a single-instance
// deployment and tests; a shared store is needed once the API scales out.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
}

// NewMemoryStore constructs an empty memory-backed idempotency store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

// Begin implements Store.
func (s *MemoryStore) Begin(_ context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Claim, error) {
	now = now.UTC()
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := recordID(key)
	record, ok := s.records[id]
	if !ok || recordExpired(record, now) {
		record = Record{
			Key:         key,
			Fingerprint: fingerprint,
			CreatedAt:   now,
			UpdatedAt:   now,
			ExpiresAt:   now.Add(ttl),
		}
		s.records[id] = record
		return Claim{Outcome: OutcomeNew, Record: record}, nil
	}
	if record.Fingerprint != fingerprint {
		return Claim{}, ErrFingerprintMismatch
	}
	if record.Completed {
		return Claim{Outcome: OutcomeReplay, Record: record}, nil
	}
	return Claim{Outcome: OutcomeInFlight, Record: record}, nil
}

// Complete implements Store.
func (s *MemoryStore) Complete(_ context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error {
	now = now.UTC()
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := recordID(key)
	record, ok := s.records[id]
	if ok && record.Fingerprint != fingerprint {
		return ErrFingerprintMismatch
	}
	if !ok {
		record = Record{Key: key, Fingerprint: fingerprint, CreatedAt: now}
	}

	record.Completed = true
	record.Response = Response{
		Status:  resp.Status,
		Headers: storableHeaders(resp.Headers),
	}
	if len(resp.Body) > 0 {
		record.Response.Body = append([]byte(nil), resp.Body...)
	}
	record.UpdatedAt = now
	record.ExpiresAt = now.Add(ttl)
	s.records[id] = record
	return nil
}

// Forget drops the claim so a subsequent attempt may retry.
func (s *MemoryStore) Forget(_ context.Context, key, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, recordID(key))
	return nil
}

// Prune implements Store.
func (s *MemoryStore) Prune(_ context.Context, now time.Time, limit int) (int, error) {
	now = now.UTC()
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 || limit > len(s.records) {
		limit = len(s.records)
	}

	removed := 0
	for id, record := range s.records {
		if !recordExpired(record, now) {
			continue
		}
		delete(s.records, id)
		removed++
		if removed >= limit {
			break
		}
	}
	return removed, nil
}

func recordExpired(record Record, now time.Time) bool {
	return !record.ExpiresAt.IsZero() && !now.Before(record.ExpiresAt)
}
