package checkout

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// Cooldown limits payment-resource minting to one per window per order.
// Each order gets a single-token limiter; a mint spends the token and the
// remaining cooldown is the time until it refills.
type Cooldown struct {
	mu       sync.Mutex
	window   time.Duration
	limiters *lru.Cache[string, *rate.Limiter]
}

func NewCooldown(window time.Duration, size int) *Cooldown {
	if size <= 0 {
		size = 1024
	}
	cache, err := lru.New[string, *rate.Limiter](size)
	if err != nil {
		// only fails on a non-positive size
		panic("failed to create cooldown cache: " + err.Error())
	}
	return &Cooldown{
		window:   window,
		limiters: cache,
	}
}

// Remaining returns how long the order must wait before minting again.
func (c *Cooldown) Remaining(orderID string, now time.Time) time.Duration {
	if c.window <= 0 {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	lim, ok := c.limiters.Get(orderID)
	if !ok {
		return 0
	}
	tokens := lim.TokensAt(now)
	if tokens >= 1 {
		return 0
	}
	// limiter math is float based; drop sub-millisecond noise
	remaining := time.Duration((1 - tokens) * float64(c.window)).Round(time.Millisecond)
	if remaining <= 0 {
		return 0
	}
	return remaining
}

// Mark records a successful mint at now.
func (c *Cooldown) Mark(orderID string, now time.Time) {
	if c.window <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	lim, ok := c.limiters.Get(orderID)
	if !ok {
		lim = rate.NewLimiter(rate.Every(c.window), 1)
		c.limiters.Add(orderID, lim)
	}
	lim.AllowN(now, 1)
}
