package queue

import (
	"context"
	"hash/fnv"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/carebridge/identity-core/internal/pkg/metrics"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
)

// PrincipalRefresher re-resolves every live session of a principal.
type PrincipalRefresher interface {
	RefreshPrincipal(ctx context.Context, principalID string) int
}

// RefreshDispatcher routes principal refreshes to a fixed set of workers
// using consistent hashing on the principal id, so refreshes of one
// principal run in the order they were enqueued.
type RefreshDispatcher struct {
	workers   []chan string
	refresher PrincipalRefresher
	log       zerolog.Logger
}

// NewRefreshDispatcher creates a dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewRefreshDispatcher(numWorkers int, refresher PrincipalRefresher, log zerolog.Logger) *RefreshDispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &RefreshDispatcher{
		workers:   make([]chan string, numWorkers),
		refresher: refresher,
		log:       log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan string, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled.
func (d *RefreshDispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		go d.runWorker(ctx, i, ch)
	}
}

// Enqueue schedules a refresh of principalID. It never blocks and reports
// false when the worker's buffer is full.
func (d *RefreshDispatcher) Enqueue(principalID string) bool {
	i := d.shardIndex(principalID)
	select {
	case d.workers[i] <- principalID:
		metrics.RefreshQueueDepth.WithLabelValues(strconv.Itoa(i)).Inc()
		return true
	default:
		return false
	}
}

// shardIndex maps a principal id deterministically to a worker index.
func (d *RefreshDispatcher) shardIndex(principalID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(principalID))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *RefreshDispatcher) runWorker(ctx context.Context, id int, ch <-chan string) {
	depth := metrics.RefreshQueueDepth.WithLabelValues(strconv.Itoa(id))
	for {
		select {
		case <-ctx.Done():
			return
		case principalID, ok := <-ch:
			if !ok {
				return
			}
			depth.Dec()
			n := d.refresher.RefreshPrincipal(ctx, principalID)
			d.log.Debug().
				Str("principal_id", principalID).
				Int("sessions", n).
				Int("worker_id", id).
				Msg("principal sessions refreshed")
		}
	}
}
