package analytics

import (
	"context"
	"sort"
	"time"

	"promptguard/internal/storage"
)

type Service struct {
	store *storage.Store
}

func New(store *storage.Store) *Service {
	return &Service{store: store}
}

type Report struct {
	Total   int
	ByLevel map[string]int
	ByEvent map[string]int
}

func (s *Service) Report(ctx context.Context, guildID string, since time.Time) (Report, error) {
	events, err := s.store.ListSecurityEvents(ctx, guildID, since)
	if err != nil {
		return Report{}, err
	}

	report := Report{ByLevel: make(map[string]int), ByEvent: make(map[string]int)}
	for _, event := range events {
		report.Total++
		report.ByLevel[event.Level]++
		report.ByEvent[event.Event]++
	}
	return report, nil
}

type EventCount struct {
	Event string
	Count int
}

// TopEvents returns the n most frequent event types, ties broken by name.
func (r Report) TopEvents(n int) []EventCount {
	counts := make([]EventCount, 0, len(r.ByEvent))
	for event, count := range r.ByEvent {
		counts = append(counts, EventCount{Event: event, Count: count})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Event < counts[j].Event
	})
	if len(counts) > n {
		counts = counts[:n]
	}
	return counts
}
