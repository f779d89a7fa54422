package kb

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/signalsfoundry/astrometry-normalizer/core"
)

var (
	// ErrDatasetNotFound is returned when a dataset ID is unknown.
	ErrDatasetNotFound = errors.New("dataset not found")
	// ErrNilTable is returned when Put is given no table.
	ErrNilTable = errors.New("dataset table is nil")
)

// EventType indicates what kind of change happened in the store.
type EventType int

const (
	EventDatasetStored EventType = iota
	EventDatasetDeleted
)

func (e EventType) String() string {
	switch e {
	case EventDatasetStored:
		return "stored"
	case EventDatasetDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Event is emitted to subscribers after a dataset is stored or deleted.
type Event struct {
	Type    EventType
	Dataset Dataset
	Count   int // datasets held after the change
}

// Dataset is a named, normalized observation table. The table is read-only
// once stored.
type Dataset struct {
	ID        string
	Name      string
	CreatedAt time.Time
	Table     *core.CanonicalTable
}

// DatasetStore is an in-memory, thread-safe store for normalized datasets.
// Events reach subscribers in the order the changes were applied.
type DatasetStore struct {
	mu sync.RWMutex

	// writeMu orders a change together with its notifications.
	writeMu sync.Mutex

	datasets map[string]*Dataset
	now      func() time.Time

	subs   map[int]func(Event)
	nextID int
}

// NewDatasetStore constructs an empty store.
func NewDatasetStore() *DatasetStore {
	return &DatasetStore{
		datasets: make(map[string]*Dataset),
		now:      time.Now,
		subs:     make(map[int]func(Event)),
	}
}

// Put stores table under a fresh ID and returns the stored dataset.
func (s *DatasetStore) Put(name string, table *core.CanonicalTable) (*Dataset, error) {
	if table == nil {
		return nil, ErrNilTable
	}
	name = strings.TrimSpace(name)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	ds := &Dataset{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedAt: s.now().UTC(),
		Table:     table,
	}
	s.datasets[ds.ID] = ds
	event := Event{Type: EventDatasetStored, Dataset: *ds, Count: len(s.datasets)}
	subs := s.snapshotSubs()
	s.mu.Unlock()

	notify(subs, event)
	return ds, nil
}

// Get returns the dataset with the given ID.
func (s *DatasetStore) Get(id string) (*Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ds, ok := s.datasets[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrDatasetNotFound, id)
	}
	return ds, nil
}

// List returns a snapshot of all datasets ordered by creation time, then ID.
func (s *DatasetStore) List() []*Dataset {
	s.mu.RLock()
	res := make([]*Dataset, 0, len(s.datasets))
	for _, ds := range s.datasets {
		res = append(res, ds)
	}
	s.mu.RUnlock()

	sort.Slice(res, func(i, j int) bool {
		if !res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].CreatedAt.Before(res[j].CreatedAt)
		}
		return res[i].ID < res[j].ID
	})
	return res
}

// Delete removes the dataset with the given ID.
func (s *DatasetStore) Delete(id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	ds, ok := s.datasets[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrDatasetNotFound, id)
	}
	delete(s.datasets, id)
	event := Event{Type: EventDatasetDeleted, Dataset: *ds, Count: len(s.datasets)}
	subs := s.snapshotSubs()
	s.mu.Unlock()

	notify(subs, event)
	return nil
}

// Len returns the number of stored datasets.
func (s *DatasetStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.datasets)
}

// Subscribe registers a callback for store events. It returns an unsubscribe
// function. Callbacks may read the store but must not call Put or Delete.
func (s *DatasetStore) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// snapshotSubs must be called with s.mu held.
func (s *DatasetStore) snapshotSubs() []func(Event) {
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		out = append(out, s.subs[id])
	}
	return out
}

// Subscribers run outside mu so they may read the store.
func notify(subs []func(Event), e Event) {
	for _, sub := range subs {
		sub(e)
	}
}
