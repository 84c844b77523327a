package content

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/c360/marketsearch/errors"
)

// Filter narrows a Query to matching records. Empty fields match all.
type Filter struct {
	// Symbols restricts results to records tagged with any of these
	// symbols. Matching is case-insensitive.
	Symbols []string

	// Types restricts results to the given content types.
	Types []Type

	// From and To bound the record CreatedAt timestamp (inclusive).
	From *time.Time
	To   *time.Time
}

// Store persists content records and serves exact pre-filtering for
// similarity search.
type Store interface {
	// Query returns records matching the filter. Returned slices are
	// copies; callers may mutate them freely.
	Query(ctx context.Context, filter Filter) ([]Record, error)

	// Get returns a record by ID.
	Get(ctx context.Context, id string) (Record, bool, error)

	// Upsert inserts or updates a record keyed by fingerprint within a
	// symbol. An existing record keeps its ID; text-identical upserts
	// refresh metadata and UpdatedAt only. Returns the stored record.
	Upsert(ctx context.Context, record Record) (Record, error)

	// Delete removes a record by ID. Returns ErrNotFound when absent.
	Delete(ctx context.Context, id string) error

	// GetByFingerprint looks up a record by symbol and fingerprint.
	GetByFingerprint(ctx context.Context, symbol, fingerprint string) (Record, bool, error)
}

// MemoryStore is an in-process Store backed by a map. It serves tests,
// the demo binary, and deployments without an external database.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record          // by ID
	byFP    map[fingerprintKey]string  // (symbol, fingerprint) -> ID
	now     func() time.Time
}

type fingerprintKey struct {
	symbol      string
	fingerprint string
}

// NewMemoryStore creates an empty in-memory content store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]Record),
		byFP:    make(map[fingerprintKey]string),
		now:     time.Now,
	}
}

// Query returns copies of all records matching the filter.
func (s *MemoryStore) Query(ctx context.Context, filter Filter) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	symbols := make(map[string]struct{}, len(filter.Symbols))
	for _, sym := range filter.Symbols {
		symbols[strings.ToUpper(sym)] = struct{}{}
	}
	types := make(map[Type]struct{}, len(filter.Types))
	for _, t := range filter.Types {
		types[t] = struct{}{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	for _, record := range s.records {
		if len(symbols) > 0 {
			if _, ok := symbols[strings.ToUpper(record.Symbol)]; !ok {
				continue
			}
		}
		if len(types) > 0 {
			if _, ok := types[record.Type]; !ok {
				continue
			}
		}
		if filter.From != nil && record.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && record.CreatedAt.After(*filter.To) {
			continue
		}
		out = append(out, cloneRecord(record))
	}
	return out, nil
}

// Get returns a copy of a record by ID.
func (s *MemoryStore) Get(ctx context.Context, id string) (Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	record, exists := s.records[id]
	if !exists {
		return Record{}, false, nil
	}
	return cloneRecord(record), true, nil
}

// Upsert stores a record, deduplicating by (symbol, fingerprint).
func (s *MemoryStore) Upsert(ctx context.Context, record Record) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	if err := record.Validate(); err != nil {
		return Record{}, err
	}

	if record.Fingerprint == "" {
		record.Fingerprint = Fingerprint(record.Text)
	}
	key := fingerprintKey{symbol: strings.ToUpper(record.Symbol), fingerprint: record.Fingerprint}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, exists := s.byFP[key]; exists {
		existing := s.records[id]
		existing.Metadata = cloneMetadata(record.Metadata)
		existing.UpdatedAt = now
		s.records[id] = existing
		return cloneRecord(existing), nil
	}

	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	record.CreatedAt = now
	record.UpdatedAt = now
	record.Metadata = cloneMetadata(record.Metadata)
	s.records[record.ID] = record
	s.byFP[key] = record.ID
	return cloneRecord(record), nil
}

// Delete removes a record by ID.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record, exists := s.records[id]
	if !exists {
		return errors.WrapInvalid(errors.ErrNotFound, "content", "Delete", "record "+id)
	}
	delete(s.records, id)
	delete(s.byFP, fingerprintKey{symbol: strings.ToUpper(record.Symbol), fingerprint: record.Fingerprint})
	return nil
}

// GetByFingerprint looks up a record by symbol and fingerprint.
func (s *MemoryStore) GetByFingerprint(ctx context.Context, symbol, fingerprint string) (Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.byFP[fingerprintKey{symbol: strings.ToUpper(symbol), fingerprint: fingerprint}]
	if !exists {
		return Record{}, false, nil
	}
	return cloneRecord(s.records[id]), true, nil
}

// Size returns the number of stored records.
func (s *MemoryStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func cloneRecord(r Record) Record {
	r.Metadata = cloneMetadata(r.Metadata)
	return r
}

func cloneMetadata(m Metadata) Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
