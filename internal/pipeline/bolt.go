package pipeline

import (
	"encoding/json"
	"fmt"
	"sort"

	"go.etcd.io/bbolt"
)

var (
	bucketEvents     = []byte("events")
	bucketMarkers    = []byte("markers")
	bucketUserEvents = []byte("user_events")
)

// EventStore persists events, photo entries and completion markers in a
// bolt database. All read-modify-write cycles run inside a single write
// transaction, which is what makes concurrent photo writes and redundant
// completion evaluation safe.
type EventStore struct {
	db *bbolt.DB
}

// OpenEventStore opens (or creates) the event database at path.
func OpenEventStore(path string) (*EventStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("opening event store: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketEvents, bucketMarkers, bucketUserEvents} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("creating bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &EventStore{db: db}, nil
}

// Close closes the underlying database file.
func (s *EventStore) Close() error {
	return s.db.Close()
}

func userEventKey(userID, eventID string) []byte {
	k := make([]byte, 0, len(userID)+len(eventID)+1)
	k = append(k, userID...)
	k = append(k, 0)
	return append(k, eventID...)
}

// Put writes an event.
func (s *EventStore) Put(event *Event) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return putEvent(tx, event)
	})
}

func putEvent(tx *bbolt.Tx, event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	if err := tx.Bucket(bucketEvents).Put([]byte(event.ID), data); err != nil {
		return err
	}
	return tx.Bucket(bucketUserEvents).Put(userEventKey(event.UserID, event.ID), nil)
}

func getEvent(tx *bbolt.Tx, eventID string) (*Event, error) {
	data := tx.Bucket(bucketEvents).Get([]byte(eventID))
	if data == nil {
		return nil, nil
	}
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("decoding event: %w", err)
	}
	return &event, nil
}

// Get returns an event by ID, or nil if absent.
func (s *EventStore) Get(eventID string) (*Event, error) {
	var event *Event
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		event, err = getEvent(tx, eventID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return event, nil
}

// Update applies fn to the event inside one write transaction. fn sees
// the current state and its mutations are committed atomically, so
// concurrent photo writes and completion checks cannot lose updates.
// fn receives nil when the event does not exist.
func (s *EventStore) Update(eventID string, fn func(tx *bbolt.Tx, event *Event) error) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		event, err := getEvent(tx, eventID)
		if err != nil {
			return err
		}
		return fn(tx, event)
	})
}

// ListByUser returns a user's events ordered by creation time.
func (s *EventStore) ListByUser(userID string) ([]Event, error) {
	events := []Event{}
	prefix := append([]byte(userID), 0)

	err := s.db.View(func(tx *bbolt.Tx) error {
		eventsBucket := tx.Bucket(bucketEvents)
		c := tx.Bucket(bucketUserEvents).Cursor()

		for k, _ := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, _ = c.Next() {
			data := eventsBucket.Get(k[len(prefix):])
			if data == nil {
				continue
			}
			var event Event
			if err := json.Unmarshal(data, &event); err != nil {
				return fmt.Errorf("decoding event: %w", err)
			}
			events = append(events, event)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(events, func(i, j int) bool {
		return events[i].CreatedAt.Before(events[j].CreatedAt)
	})
	return events, nil
}

// All returns every event, used by the staleness reports.
func (s *EventStore) All() ([]Event, error) {
	events := []Event{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketEvents).ForEach(func(_, v []byte) error {
			var event Event
			if err := json.Unmarshal(v, &event); err != nil {
				return fmt.Errorf("decoding event: %w", err)
			}
			events = append(events, event)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// Delete removes an event, its user listing entry and its marker.
func (s *EventStore) Delete(userID, eventID string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketEvents).Delete([]byte(eventID)); err != nil {
			return err
		}
		if err := tx.Bucket(bucketUserEvents).Delete(userEventKey(userID, eventID)); err != nil {
			return err
		}
		return tx.Bucket(bucketMarkers).Delete([]byte(eventID))
	})
}

// putMarkerIfAbsent writes the completion marker unless one already
// exists, making the exactly-once write idempotent under redundant
// completion evaluation.
func putMarkerIfAbsent(tx *bbolt.Tx, marker *CompletionMarker) error {
	markers := tx.Bucket(bucketMarkers)
	if markers.Get([]byte(marker.EventID)) != nil {
		return nil
	}
	data, err := json.Marshal(marker)
	if err != nil {
		return fmt.Errorf("encoding marker: %w", err)
	}
	return markers.Put([]byte(marker.EventID), data)
}

// Marker returns the completion marker for an event, or nil if the event
// has not completed.
func (s *EventStore) Marker(eventID string) (*CompletionMarker, error) {
	var marker *CompletionMarker
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketMarkers).Get([]byte(eventID))
		if data == nil {
			return nil
		}
		marker = &CompletionMarker{}
		if err := json.Unmarshal(data, marker); err != nil {
			return fmt.Errorf("decoding marker: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return marker, nil
}

// MarkerIDs returns the set of event IDs that have completion markers.
func (s *EventStore) MarkerIDs() (map[string]bool, error) {
	ids := make(map[string]bool)
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketMarkers).ForEach(func(k, _ []byte) error {
			ids[string(k)] = true
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func hasPrefix(k, prefix []byte) bool {
	if len(k) < len(prefix) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}
