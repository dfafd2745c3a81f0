// Package inmemory is a process-local transaction store. It backs the default
// "memory" storage backend and the service tests.
package inmemory

import (
	"context"
	"sync"
	"time"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/commerce-analytics/internal/domain"
	"github.com/dvloznov/commerce-analytics/internal/repository"
)

// Store keeps the latest batch and quality snapshot in memory.
// It is safe for concurrent use; data is lost on restart.
type Store struct {
	mu      sync.RWMutex
	txs     []domain.CanonicalTransaction
	quality *domain.QualitySummary
	now     func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{now: time.Now}
}

// ClearTransactions implements repository.TransactionWriter.
func (s *Store) ClearTransactions(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs = nil
	return nil
}

// InsertTransactions implements repository.TransactionWriter.
func (s *Store) InsertTransactions(ctx context.Context, recs []domain.CanonicalTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs = append(s.txs, copyRecords(recs)...)
	return nil
}

// ReplaceQualitySummary implements repository.TransactionWriter.
func (s *Store) ReplaceQualitySummary(ctx context.Context, stats domain.BatchQualityStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quality = &domain.QualitySummary{Stats: stats, UpdatedAt: s.now().UTC()}
	return nil
}

// ReplaceBatch implements repository.BatchReplacer. Readers see either the
// previous batch or the new one, never a mix.
func (s *Store) ReplaceBatch(ctx context.Context, recs []domain.CanonicalTransaction, stats domain.BatchQualityStats) error {
	fresh := copyRecords(recs)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs = fresh
	s.quality = &domain.QualitySummary{Stats: stats, UpdatedAt: s.now().UTC()}
	return nil
}

// LatestQualitySummary implements repository.QualityReader.
func (s *Store) LatestQualitySummary(ctx context.Context) (*domain.QualitySummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.quality == nil {
		return nil, repository.ErrNoQualitySummary
	}
	summary := *s.quality
	for i := range s.txs {
		if !s.txs[i].UTCInstant.IsZero() {
			summary.ProcessedRecords++
		}
	}
	return &summary, nil
}

// CompletedSales implements repository.SalesReader.
func (s *Store) CompletedSales(ctx context.Context, from, to civil.Date) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Sale
	for i := range s.txs {
		tx := &s.txs[i]
		if tx.Status != domain.StatusCompleted || tx.UTCInstant.IsZero() {
			continue
		}
		d := civil.DateOf(tx.UTCInstant.UTC())
		if d.Before(from) || d.After(to) {
			continue
		}
		out = append(out, domain.Sale{Instant: tx.UTCInstant, Amount: tx.Amount})
	}
	return out, nil
}

// CountTransactions implements repository.Repository.
func (s *Store) CountTransactions(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.txs), nil
}

// Ping implements repository.Repository.
func (s *Store) Ping(ctx context.Context) error {
	return nil
}

// Close implements repository.Repository.
func (s *Store) Close() error {
	return nil
}

func copyRecords(recs []domain.CanonicalTransaction) []domain.CanonicalTransaction {
	out := make([]domain.CanonicalTransaction, len(recs))
	for i, r := range recs {
		r.Issues = r.Issues.Clone()
		out[i] = r
	}
	return out
}

var (
	_ repository.Repository    = (*Store)(nil)
	_ repository.BatchReplacer = (*Store)(nil)
)
