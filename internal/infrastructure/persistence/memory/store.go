// Package memory provides an in-process ledger and record store. It backs
// local runs and tests with the same transactional contract as the GORM
// implementation: per-entry exclusive locks held until the file transaction
// ends, and staged writes that become visible only on commit.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	appcert "github.com/afp/backend/internal/application/certification"
	"github.com/afp/backend/internal/domain/certification"
	"github.com/afp/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

type recordKey struct {
	source string
	row    int
}

// Store holds both ledgers and both audit tables in memory
type Store struct {
	lockTimeout time.Duration
	now         func() time.Time

	mu         sync.RWMutex
	pos        map[string]certification.POLimit
	categories map[string]certification.CategoryLimit
	processed  map[recordKey]certification.ProcessedRecord
	raw        map[recordKey]certification.RawRecord
	nextID     uint64

	locksMu sync.Mutex
	locks   map[string]chan struct{}
}

// NewStore creates an empty store. A positive lockTimeout bounds every
// entry lock wait.
func NewStore(lockTimeout time.Duration) *Store {
	return &Store{
		lockTimeout: lockTimeout,
		now:         time.Now,
		pos:         make(map[string]certification.POLimit),
		categories:  make(map[string]certification.CategoryLimit),
		processed:   make(map[recordKey]certification.ProcessedRecord),
		raw:         make(map[recordKey]certification.RawRecord),
		locks:       make(map[string]chan struct{}),
	}
}

func (s *Store) entryLock(key string) chan struct{} {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	ch, ok := s.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[key] = ch
	}
	return ch
}

func (s *Store) acquire(ctx context.Context, key string) error {
	ch := s.entryLock(key)
	select {
	case ch <- struct{}{}:
		return nil
	default:
	}

	var expired <-chan time.Time
	if s.lockTimeout > 0 {
		timer := time.NewTimer(s.lockTimeout)
		defer timer.Stop()
		expired = timer.C
	}
	select {
	case ch <- struct{}{}:
		return nil
	case <-expired:
		return fmt.Errorf("%w: waited %s for %s", certification.ErrLockTimeout, s.lockTimeout, key)
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", certification.ErrLockTimeout, ctx.Err())
	}
}

func (s *Store) release(key string) {
	<-s.entryLock(key)
}

// Execute runs fn against a transaction view of the store. Staged writes are
// applied atomically when fn returns nil and dropped otherwise.
func (s *Store) Execute(ctx context.Context, fn func(repos appcert.TransactionalRepositories) error) error {
	tx := newTx(s)
	defer tx.releaseAll()

	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.commit(tx)
	return nil
}

func (s *Store) commit(tx *memTx) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()

	for id, delta := range tx.poDeltas {
		po := s.pos[id]
		po.TotalClaimed = po.TotalClaimed.Add(delta)
		po.UpdatedAt = now
		s.pos[id] = po
	}
	for id, delta := range tx.categoryDeltas {
		c := s.categories[id]
		c.TotalClaimed = c.TotalClaimed.Add(delta)
		c.UpdatedAt = now
		s.categories[id] = c
	}
	for _, key := range tx.rawOrder {
		rec := tx.raw[key]
		if existing, ok := s.raw[key]; ok {
			rec.ID = existing.ID
		} else {
			s.nextID++
			rec.ID = s.nextID
		}
		s.raw[key] = rec
	}
	for _, key := range tx.processedOrder {
		rec := tx.processed[key]
		if existing, ok := s.processed[key]; ok {
			rec.ID = existing.ID
		} else {
			s.nextID++
			rec.ID = s.nextID
		}
		s.processed[key] = rec
	}
}

// UpsertPOs inserts or overwrites PO entries
func (s *Store) UpsertPOs(_ context.Context, entries []certification.POLimit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for _, e := range entries {
		e.UpdatedAt = now
		s.pos[e.PO] = e
	}
	return nil
}

// UpsertCategories inserts or overwrites category entries
func (s *Store) UpsertCategories(_ context.Context, entries []certification.CategoryLimit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for _, e := range entries {
		e.UpdatedAt = now
		s.categories[e.CategoryID] = e
	}
	return nil
}

// ListPOs returns PO entries ordered by id
func (s *Store) ListPOs(_ context.Context, filter certification.LedgerFilter) ([]certification.POLimit, error) {
	s.mu.RLock()
	out := make([]certification.POLimit, 0, len(s.pos))
	for _, po := range s.pos {
		out = append(out, po)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].PO < out[j].PO })
	return window(out, filter), nil
}

// ListCategories returns category entries ordered by id
func (s *Store) ListCategories(_ context.Context, filter certification.LedgerFilter) ([]certification.CategoryLimit, error) {
	s.mu.RLock()
	out := make([]certification.CategoryLimit, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CategoryID < out[j].CategoryID })
	return window(out, filter), nil
}

// FindPO returns one PO entry, or shared.ErrNotFound
func (s *Store) FindPO(_ context.Context, id string) (*certification.POLimit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	po, ok := s.pos[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &po, nil
}

// FindCategory returns one category entry, or shared.ErrNotFound
func (s *Store) FindCategory(_ context.Context, id string) (*certification.CategoryLimit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.categories[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &c, nil
}

// ListProcessed returns committed processed records newest first
func (s *Store) ListProcessed(_ context.Context, filter certification.RecordFilter) ([]certification.ProcessedRecord, error) {
	s.mu.RLock()
	out := make([]certification.ProcessedRecord, 0, len(s.processed))
	for _, rec := range s.processed {
		if filter.Outcome != nil && rec.Certification != *filter.Outcome {
			continue
		}
		if filter.SourceBlob != "" && rec.SourceBlob != filter.SourceBlob {
			continue
		}
		out = append(out, rec)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return limit(out, filter.Limit), nil
}

// ListRaw returns committed raw records newest first
func (s *Store) ListRaw(_ context.Context, filter certification.RecordFilter) ([]certification.RawRecord, error) {
	s.mu.RLock()
	out := make([]certification.RawRecord, 0, len(s.raw))
	for _, rec := range s.raw {
		if filter.SourceBlob != "" && rec.SourceBlob != filter.SourceBlob {
			continue
		}
		out = append(out, rec)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return limit(out, filter.Limit), nil
}

func window[T any](items []T, f certification.LedgerFilter) []T {
	if f.Offset > 0 {
		if f.Offset >= len(items) {
			return items[:0]
		}
		items = items[f.Offset:]
	}
	return limit(items, f.Limit)
}

func limit[T any](items []T, n int) []T {
	if n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}

var (
	_ appcert.TransactionScope       = (*Store)(nil)
	_ certification.LedgerRepository = (*Store)(nil)
	_ certification.RecordReader     = (*Store)(nil)
)

// memTx is the view of the store inside one Execute call
type memTx struct {
	store *Store
	held  map[string]struct{}
	order []string

	poDeltas       map[string]decimal.Decimal
	categoryDeltas map[string]decimal.Decimal

	raw            map[recordKey]certification.RawRecord
	rawOrder       []recordKey
	processed      map[recordKey]certification.ProcessedRecord
	processedOrder []recordKey
}

func newTx(s *Store) *memTx {
	return &memTx{
		store:          s,
		held:           make(map[string]struct{}),
		poDeltas:       make(map[string]decimal.Decimal),
		categoryDeltas: make(map[string]decimal.Decimal),
		raw:            make(map[recordKey]certification.RawRecord),
		processed:      make(map[recordKey]certification.ProcessedRecord),
	}
}

func (tx *memTx) Ledgers() certification.LedgerLocker { return tx }
func (tx *memTx) Records() certification.RecordWriter { return tx }

func (tx *memTx) lock(ctx context.Context, key string) error {
	if _, ok := tx.held[key]; ok {
		return nil
	}
	if err := tx.store.acquire(ctx, key); err != nil {
		return err
	}
	tx.held[key] = struct{}{}
	tx.order = append(tx.order, key)
	return nil
}

func (tx *memTx) releaseAll() {
	for i := len(tx.order) - 1; i >= 0; i-- {
		tx.store.release(tx.order[i])
	}
	tx.order = nil
	tx.held = nil
}

func (tx *memTx) LockPO(ctx context.Context, id string) (certification.Balance, bool, error) {
	if err := tx.lock(ctx, "po:"+id); err != nil {
		return certification.Balance{}, false, err
	}
	tx.store.mu.RLock()
	po, ok := tx.store.pos[id]
	tx.store.mu.RUnlock()
	if !ok {
		return certification.Balance{}, false, nil
	}
	bal := po.Balance()
	if d, ok := tx.poDeltas[id]; ok {
		bal.Claimed = bal.Claimed.Add(d)
	}
	return bal, true, nil
}

func (tx *memTx) LockCategory(ctx context.Context, id string) (certification.Balance, bool, error) {
	if err := tx.lock(ctx, "category:"+id); err != nil {
		return certification.Balance{}, false, err
	}
	tx.store.mu.RLock()
	c, ok := tx.store.categories[id]
	tx.store.mu.RUnlock()
	if !ok {
		return certification.Balance{}, false, nil
	}
	bal := c.Balance()
	if d, ok := tx.categoryDeltas[id]; ok {
		bal.Claimed = bal.Claimed.Add(d)
	}
	return bal, true, nil
}

func (tx *memTx) ApplyPO(_ context.Context, id string, delta decimal.Decimal) error {
	if _, ok := tx.held["po:"+id]; !ok {
		return fmt.Errorf("PO %q: %w", id, certification.ErrLedgerNotLocked)
	}
	if delta.IsNegative() {
		return certification.ErrNegativeDelta
	}
	tx.poDeltas[id] = tx.poDeltas[id].Add(delta)
	return nil
}

func (tx *memTx) ApplyCategory(_ context.Context, id string, delta decimal.Decimal) error {
	if _, ok := tx.held["category:"+id]; !ok {
		return fmt.Errorf("category %q: %w", id, certification.ErrLedgerNotLocked)
	}
	if delta.IsNegative() {
		return certification.ErrNegativeDelta
	}
	tx.categoryDeltas[id] = tx.categoryDeltas[id].Add(delta)
	return nil
}

func (tx *memTx) UpsertRaw(_ context.Context, rec *certification.RawRecord) error {
	key := recordKey{rec.SourceBlob, rec.RowNumber}
	if _, ok := tx.raw[key]; !ok {
		tx.rawOrder = append(tx.rawOrder, key)
	}
	tx.raw[key] = *rec
	return nil
}

func (tx *memTx) UpsertProcessed(_ context.Context, rec *certification.ProcessedRecord) (*certification.ProcessedRecord, error) {
	key := recordKey{rec.SourceBlob, rec.RowNumber}
	var previous *certification.ProcessedRecord
	if staged, ok := tx.processed[key]; ok {
		previous = &staged
	} else {
		tx.store.mu.RLock()
		committed, ok := tx.store.processed[key]
		tx.store.mu.RUnlock()
		if ok {
			previous = &committed
		}
		tx.processedOrder = append(tx.processedOrder, key)
	}
	tx.processed[key] = *rec
	return previous, nil
}
