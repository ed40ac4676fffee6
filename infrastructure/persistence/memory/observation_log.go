package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"watchtower-backend/application/ports"
	"watchtower-backend/domain/core/valueobjects"
)

type pricePoint struct {
	price      float64
	observedAt time.Time
}

// ObservationLog is an in-memory price history store for tests and local
// runs.
type ObservationLog struct {
	mu     sync.RWMutex
	points map[string][]pricePoint
}

// NewObservationLog creates an empty in-memory observation log.
func NewObservationLog() *ObservationLog {
	return &ObservationLog{
		points: make(map[string][]pricePoint),
	}
}

// Append records one price observation for the entry.
func (l *ObservationLog) Append(_ context.Context, key valueobjects.CanonicalURL, price float64, observedAt time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.points[key.String()] = append(l.points[key.String()], pricePoint{
		price:      price,
		observedAt: observedAt.UTC(),
	})
	return nil
}

// Series returns bucketed price history for the entry. Each bucket carries
// the average of the prices observed inside it.
func (l *ObservationLog) Series(_ context.Context, key valueobjects.CanonicalURL, rng ports.SeriesRange) ([]ports.PricePoint, error) {
	window, bucket := rng.Window()
	since := time.Now().Add(-window)

	l.mu.RLock()
	raw := l.points[key.String()]
	recent := make([]pricePoint, 0, len(raw))
	for _, p := range raw {
		if p.observedAt.After(since) {
			recent = append(recent, p)
		}
	}
	l.mu.RUnlock()

	type bucketAgg struct {
		sum   float64
		count int
	}
	buckets := make(map[int64]*bucketAgg)
	for _, p := range recent {
		start := p.observedAt.Truncate(bucket).Unix()
		agg, ok := buckets[start]
		if !ok {
			agg = &bucketAgg{}
			buckets[start] = agg
		}
		agg.sum += p.price
		agg.count++
	}

	starts := make([]int64, 0, len(buckets))
	for start := range buckets {
		starts = append(starts, start)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i] < starts[j] })

	out := make([]ports.PricePoint, 0, len(starts))
	for _, start := range starts {
		agg := buckets[start]
		out = append(out, ports.PricePoint{
			Timestamp: time.Unix(start, 0).UTC(),
			Price:     agg.sum / float64(agg.count),
		})
	}
	return out, nil
}
