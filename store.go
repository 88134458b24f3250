package signalcycle

import (
	"slices"
	"sync"

	"github.com/samber/lo"
)

// Store holds the display state of every signal, keyed by id
type Store struct {
	signals map[int]Signal
	mutex   sync.RWMutex
}

// NewStore creates a store seeded with the given signals
func NewStore(seed ...Signal) *Store {
	s := &Store{
		signals: make(map[int]Signal, len(seed)),
	}
	for _, sig := range seed {
		s.signals[sig.ID] = sig
	}
	return s
}

// NewRosterStore creates a store holding the fixed four-signal roster
func NewRosterStore() *Store {
	return NewStore(Roster...)
}

// Update merges the non-nil fields of update into the signal with the given id.
// An unknown id starts from a zero record carrying that id.
func (s *Store) Update(id int, update SignalUpdate) Signal {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	current, ok := s.signals[id]
	if !ok {
		current = Signal{ID: id}
	}
	merged := update.Apply(current)
	merged.ID = id
	s.signals[id] = merged
	return merged
}

// UpdateMany merges several updates under one lock
func (s *Store) UpdateMany(updates map[int]SignalUpdate) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for id, update := range updates {
		current, ok := s.signals[id]
		if !ok {
			current = Signal{ID: id}
		}
		merged := update.Apply(current)
		merged.ID = id
		s.signals[id] = merged
	}
}

// Get returns the signal with the given id
func (s *Store) Get(id int) (Signal, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	sig, ok := s.signals[id]
	if !ok {
		return Signal{}, NewNotFoundError(id)
	}
	return sig, nil
}

// Has reports whether the id is known
func (s *Store) Has(id int) bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	_, ok := s.signals[id]
	return ok
}

// TotalVehicles sums the vehicle counts of all signals
func (s *Store) TotalVehicles() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return lo.SumBy(lo.Values(s.signals), func(sig Signal) int {
		return sig.VehicleCount
	})
}

// HasEmergency reports whether any signal has an ambulance waiting
func (s *Store) HasEmergency() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return lo.SomeBy(lo.Values(s.signals), func(sig Signal) bool {
		return sig.AmbulanceDetected
	})
}

// IDs returns the signal ids in ascending order
func (s *Store) IDs() []int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	ids := lo.Keys(s.signals)
	slices.Sort(ids)
	return ids
}

// Len returns the number of signals
func (s *Store) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.signals)
}

// Snapshot returns a copy of every signal ordered by id
func (s *Store) Snapshot() []Signal {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	out := lo.Values(s.signals)
	slices.SortFunc(out, func(a, b Signal) int {
		return a.ID - b.ID
	})
	return out
}

// SetStatuses gives the active signal activeStatus and every other signal
// othersStatus in a single write. An active id of zero applies othersStatus to all.
func (s *Store) SetStatuses(active int, activeStatus, othersStatus Status) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for id, sig := range s.signals {
		if id == active {
			sig.Status = activeStatus
		} else {
			sig.Status = othersStatus
		}
		s.signals[id] = sig
	}
}
