package kb

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/signalsfoundry/astrometry-normalizer/core"
	"github.com/signalsfoundry/astrometry-normalizer/model"
)

func sampleTable(t *testing.T) *core.CanonicalTable {
	t.Helper()
	in := core.NewTable(1)
	for name, v := range map[string]float64{
		model.ColEpoch: 51544.5,
		model.ColRV:    12.5,
	} {
		if err := in.AddColumn(name, core.ColumnOf(v)); err != nil {
			t.Fatalf("AddColumn(%s): %v", name, err)
		}
	}
	out, err := core.Normalize(in)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	return out
}

func TestPutAndGetDataset(t *testing.T) {
	store := NewDatasetStore()
	ds, err := store.Put("  hr8799e ", sampleTable(t))
	if err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if ds.ID == "" {
		t.Fatalf("Put returned empty ID")
	}
	if ds.Name != "hr8799e" {
		t.Fatalf("Name = %q, want trimmed %q", ds.Name, "hr8799e")
	}

	got, err := store.Get(ds.ID)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.Table.Len() != 1 {
		t.Fatalf("stored table has %d rows, want 1", got.Table.Len())
	}
}

func TestPutNilTable(t *testing.T) {
	store := NewDatasetStore()
	if _, err := store.Put("x", nil); !errors.Is(err, ErrNilTable) {
		t.Fatalf("Put(nil) error = %v, want ErrNilTable", err)
	}
}

func TestGetAndDeleteUnknown(t *testing.T) {
	store := NewDatasetStore()
	if _, err := store.Get("missing"); !errors.Is(err, ErrDatasetNotFound) {
		t.Fatalf("Get error = %v, want ErrDatasetNotFound", err)
	}
	if err := store.Delete("missing"); !errors.Is(err, ErrDatasetNotFound) {
		t.Fatalf("Delete error = %v, want ErrDatasetNotFound", err)
	}
}

func TestListOrderedByCreation(t *testing.T) {
	store := NewDatasetStore()
	base := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	store.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	table := sampleTable(t)
	for i := range 3 {
		if _, err := store.Put(fmt.Sprintf("ds-%d", i), table); err != nil {
			t.Fatalf("Put error: %v", err)
		}
	}

	list := store.List()
	if len(list) != 3 {
		t.Fatalf("List returned %d datasets, want 3", len(list))
	}
	for i, ds := range list {
		if want := fmt.Sprintf("ds-%d", i); ds.Name != want {
			t.Fatalf("List()[%d].Name = %q, want %q", i, ds.Name, want)
		}
	}
}

func TestSubscribeReceivesEvents(t *testing.T) {
	store := NewDatasetStore()

	var events []Event
	unsubscribe := store.Subscribe(func(e Event) {
		events = append(events, e)
	})

	ds, err := store.Put("a", sampleTable(t))
	if err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if err := store.Delete(ds.ID); err != nil {
		t.Fatalf("Delete error: %v", err)
	}

	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Type != EventDatasetStored || events[0].Count != 1 {
		t.Fatalf("first event = %+v, want stored with count 1", events[0])
	}
	if events[1].Type != EventDatasetDeleted || events[1].Count != 0 {
		t.Fatalf("second event = %+v, want deleted with count 0", events[1])
	}

	unsubscribe()
	if _, err := store.Put("b", sampleTable(t)); err != nil {
		t.Fatalf("Put error: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("unsubscribed callback still invoked; got %d events", len(events))
	}
}

func TestConcurrentPut(t *testing.T) {
	store := NewDatasetStore()
	table := sampleTable(t)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := store.Put(fmt.Sprintf("ds-%d", i), table); err != nil {
				t.Errorf("Put error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if store.Len() != 20 {
		t.Fatalf("Len = %d, want 20", store.Len())
	}
}

func TestEventsFollowChangeOrder(t *testing.T) {
	store := NewDatasetStore()
	table := sampleTable(t)

	// Callbacks are serialized by the store, so no lock is needed here.
	var events []Event
	store.Subscribe(func(e Event) { events = append(events, e) })

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ds, err := store.Put(fmt.Sprintf("ds-%d", i), table)
			if err != nil {
				t.Errorf("Put error: %v", err)
				return
			}
			if i%2 == 0 {
				if err := store.Delete(ds.ID); err != nil {
					t.Errorf("Delete error: %v", err)
				}
			}
		}(i)
	}
	wg.Wait()

	if len(events) != 75 {
		t.Fatalf("got %d events, want 75", len(events))
	}
	prev := 0
	for i, e := range events {
		want := prev + 1
		if e.Type == EventDatasetDeleted {
			want = prev - 1
		}
		if e.Count != want {
			t.Fatalf("event %d (%s) count = %d, want %d", i, e.Type, e.Count, want)
		}
		prev = e.Count
	}
	if prev != store.Len() {
		t.Fatalf("last event count = %d, store holds %d", prev, store.Len())
	}
}
