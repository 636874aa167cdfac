package pipeline

import "time"

// lastActivity is the reference time for staleness classification: the
// newest photo write, falling back to event creation for empty events.
func lastActivity(event *Event) time.Time {
	if last, ok := event.LastPhotoWrite(); ok {
		return last
	}
	return event.CreatedAt
}

// StuckEvents returns events without a completion marker whose last
// activity is strictly older than the stuck threshold. The boundary is
// exclusive: an event idle for exactly the threshold is not stuck yet.
// Classification is advisory; retrying belongs to an external operator.
func (m *Manager) StuckEvents(now time.Time) ([]Event, error) {
	events, err := m.events.All()
	if err != nil {
		return nil, err
	}
	completed, err := m.events.MarkerIDs()
	if err != nil {
		return nil, err
	}

	stuck := []Event{}
	for _, event := range events {
		if completed[event.ID] {
			continue
		}
		if now.Sub(lastActivity(&event)) > m.opts.StuckAfter {
			stuck = append(stuck, event)
		}
	}
	return stuck, nil
}

// RecentlyActive returns events without a completion marker whose last
// activity is strictly newer than the recent threshold, used for
// liveness dashboards.
func (m *Manager) RecentlyActive(now time.Time) ([]Event, error) {
	events, err := m.events.All()
	if err != nil {
		return nil, err
	}
	completed, err := m.events.MarkerIDs()
	if err != nil {
		return nil, err
	}

	recent := []Event{}
	for _, event := range events {
		if completed[event.ID] {
			continue
		}
		if now.Sub(lastActivity(&event)) < m.opts.RecentWithin {
			recent = append(recent, event)
		}
	}
	return recent, nil
}
