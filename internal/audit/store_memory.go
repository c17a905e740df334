package audit

import (
	"context"
	"sync"

	id "othello/pkg/domain"
)

// InMemoryStore keeps audit records in memory. Used in tests and when no
// database is configured.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[id.UserID][]*Record
	seq     map[id.UserID]uint64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		records: make(map[id.UserID][]*Record),
		seq:     make(map[id.UserID]uint64),
	}
}

func (s *InMemoryStore) Append(_ context.Context, record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq[record.UserID]++
	copyRecord := *record
	copyRecord.Seq = s.seq[record.UserID]
	s.records[record.UserID] = append(s.records[record.UserID], &copyRecord)
	record.Seq = copyRecord.Seq
	return nil
}

func (s *InMemoryStore) ListByUser(_ context.Context, userID id.UserID, filter *Filter) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*Record
	records := s.records[userID]
	// Newest-first: records are appended in seq order, so walk backwards.
	for i := len(records) - 1; i >= 0; i-- {
		record := records[i]
		if filter != nil {
			if filter.Kind != nil && record.Kind != *filter.Kind {
				continue
			}
			if filter.Since != nil && record.Timestamp.Before(*filter.Since) {
				continue
			}
		}
		copyRecord := *record
		matched = append(matched, &copyRecord)
	}

	if filter != nil {
		matched = paginate(matched, filter.Offset, filter.Limit)
	}
	return matched, nil
}

func (s *InMemoryStore) CountByUser(_ context.Context, userID id.UserID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records[userID]), nil
}

func (s *InMemoryStore) DeleteByUser(_ context.Context, userID id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, userID)
	delete(s.seq, userID)
	return nil
}

func paginate(records []*Record, offset, limit int) []*Record {
	if offset > 0 {
		if offset >= len(records) {
			return nil
		}
		records = records[offset:]
	}
	if limit > 0 && limit < len(records) {
		records = records[:limit]
	}
	return records
}
