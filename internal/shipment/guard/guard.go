package guard

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrBusy is returned when another transition for the same shipment is in flight.
var ErrBusy = errors.New("guard: shipment transition already in progress")

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0`)

// Guard allows at most one status transition per shipment at a time. The in-process
// set covers a single instance; the Redis lock covers several instances sharing Redis.
type Guard struct {
	rdb *redis.Client
	ttl time.Duration

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// New returns a guard. rdb may be nil, in which case only the local set is used.
func New(rdb *redis.Client, ttl time.Duration) *Guard {
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	return &Guard{rdb: rdb, ttl: ttl, inFlight: make(map[string]struct{})}
}

func lockKey(shipmentID string) string {
	return "shipment:" + shipmentID + ":transition"
}

// Acquire claims the shipment. The returned release func must be called exactly once.
func (g *Guard) Acquire(ctx context.Context, shipmentID string) (func(), error) {
	g.mu.Lock()
	if _, busy := g.inFlight[shipmentID]; busy {
		g.mu.Unlock()
		return nil, ErrBusy
	}
	g.inFlight[shipmentID] = struct{}{}
	g.mu.Unlock()

	releaseLocal := func() {
		g.mu.Lock()
		delete(g.inFlight, shipmentID)
		g.mu.Unlock()
	}

	if g.rdb == nil {
		return releaseLocal, nil
	}

	token := uuid.NewString()
	ok, err := g.rdb.SetNX(ctx, lockKey(shipmentID), token, g.ttl).Result()
	if err != nil {
		releaseLocal()
		return nil, err
	}
	if !ok {
		releaseLocal()
		return nil, ErrBusy
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = releaseScript.Run(ctx, g.rdb, []string{lockKey(shipmentID)}, token).Err()
			releaseLocal()
		})
	}, nil
}
