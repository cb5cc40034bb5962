package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fastpay-sz/payment-orchestrator/internal/model"
)

// In-memory counterparts of the pgx repositories. They back unit tests and
// the no-database demo mode, and enforce the same contracts: read-your-writes
// transaction reads, append-only ledger, atomic per-token QR consumption.

type MemoryTransactionStore struct {
	mu   sync.RWMutex
	txns map[string]model.Transaction
}

func NewMemoryTransactionStore() *MemoryTransactionStore {
	return &MemoryTransactionStore{txns: make(map[string]model.Transaction)}
}

func (s *MemoryTransactionStore) Create(ctx context.Context, txn *model.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txns[txn.ID] = cloneTransaction(txn)
	return nil
}

func (s *MemoryTransactionStore) Get(ctx context.Context, id string) (*model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	txn, ok := s.txns[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneTransaction(&txn)
	return &out, nil
}

func (s *MemoryTransactionStore) Update(ctx context.Context, txn *model.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.txns[txn.ID]; !ok {
		return ErrNotFound
	}
	s.txns[txn.ID] = cloneTransaction(txn)
	return nil
}

func (s *MemoryTransactionStore) DailyTotal(ctx context.Context, customerID, merchantID string, asOf time.Time) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := decimal.Zero
	cutoff := asOf.Add(-24 * time.Hour)
	for _, txn := range s.txns {
		if txn.CustomerID != customerID || txn.MerchantID != merchantID {
			continue
		}
		if txn.Status == model.StatusBlocked {
			continue
		}
		if txn.CreatedAt.Before(cutoff) || !txn.CreatedAt.Before(asOf) {
			continue
		}
		total = total.Add(txn.Amount)
	}
	return total, nil
}

func (s *MemoryTransactionStore) Summary(ctx context.Context) (*model.AnalyticsSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	summary := &model.AnalyticsSummary{
		SettledVolume: decimal.Zero,
		ByStatus:      map[string]int{},
		ByRail:        map[string]int{},
		RiskBands:     map[string]int{},
	}
	for _, txn := range s.txns {
		summary.Accumulate(txn.Status, txn.Rail, txn.RiskDecision, txn.Amount)
	}
	return summary, nil
}

func cloneTransaction(txn *model.Transaction) model.Transaction {
	out := *txn
	out.RiskFactors = append([]string(nil), txn.RiskFactors...)
	if txn.SettledAt != nil {
		t := *txn.SettledAt
		out.SettledAt = &t
	}
	return out
}

type MemoryLedgerStore struct {
	mu      sync.RWMutex
	entries []model.LedgerEntry
}

func NewMemoryLedgerStore() *MemoryLedgerStore {
	return &MemoryLedgerStore{}
}

func (s *MemoryLedgerStore) Append(ctx context.Context, entry *model.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, *entry)
	return nil
}

func (s *MemoryLedgerStore) ByTransaction(ctx context.Context, txnID string) ([]*model.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.LedgerEntry
	for i := range s.entries {
		if s.entries[i].TransactionID == txnID {
			e := s.entries[i]
			out = append(out, &e)
		}
	}
	sortEntries(out)
	return out, nil
}

func (s *MemoryLedgerStore) List(ctx context.Context, filter model.LedgerFilter) ([]*model.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.LedgerEntry
	for i := range s.entries {
		e := s.entries[i]
		if filter.From != nil && e.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !e.CreatedAt.Before(*filter.To) {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		if filter.Rail != "" && e.Rail != filter.Rail {
			continue
		}
		out = append(out, &e)
	}
	sortEntries(out)
	return out, nil
}

func sortEntries(entries []*model.LedgerEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
}

// MemoryTokenStore keeps one mutex per token so consumption of unrelated
// tokens never contends on a shared lock.
type MemoryTokenStore struct {
	mu     sync.RWMutex
	tokens map[string]*memoryToken
}

type memoryToken struct {
	mu    sync.Mutex
	token model.QRToken
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{tokens: make(map[string]*memoryToken)}
}

func (s *MemoryTokenStore) Insert(ctx context.Context, token *model.QRToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token.ID] = &memoryToken{token: cloneToken(token)}
	return nil
}

func (s *MemoryTokenStore) Get(ctx context.Context, tokenID string) (*model.QRToken, error) {
	s.mu.RLock()
	entry, ok := s.tokens[tokenID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	out := cloneToken(&entry.token)
	return &out, nil
}

func (s *MemoryTokenStore) ConsumeIfUsable(ctx context.Context, tokenID string, now time.Time) (bool, error) {
	s.mu.RLock()
	entry, ok := s.tokens[tokenID]
	s.mu.RUnlock()
	if !ok {
		return false, ErrNotFound
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	t := &entry.token
	if !t.Active || t.UsageCount >= t.UsageLimit {
		return false, nil
	}
	if t.ExpiresAt != nil && !now.Before(*t.ExpiresAt) {
		return false, nil
	}
	t.UsageCount++
	if t.UsageCount >= t.UsageLimit {
		t.Active = false
	}
	return true, nil
}

func cloneToken(token *model.QRToken) model.QRToken {
	out := *token
	if token.Amount != nil {
		amount := *token.Amount
		out.Amount = &amount
	}
	if token.ExpiresAt != nil {
		t := *token.ExpiresAt
		out.ExpiresAt = &t
	}
	return out
}

// MemoryMerchantResolver serves the merchant gate without a database.
type MemoryMerchantResolver struct {
	mu        sync.RWMutex
	merchants map[string]model.Merchant
}

func NewMemoryMerchantResolver(merchants ...model.Merchant) *MemoryMerchantResolver {
	r := &MemoryMerchantResolver{merchants: make(map[string]model.Merchant)}
	for _, m := range merchants {
		r.merchants[m.ID] = m
	}
	return r
}

func (r *MemoryMerchantResolver) Put(m model.Merchant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.merchants[m.ID] = m
}

func (r *MemoryMerchantResolver) Resolve(ctx context.Context, merchantID string) (*model.Merchant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.merchants[merchantID]
	if !ok {
		return nil, ErrNotFound
	}
	return &m, nil
}
