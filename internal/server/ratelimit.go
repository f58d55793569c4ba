package server

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/quizmind/mcqa-go/internal/logging"
)

// Every accepted answer request costs a generation call, so the default
// budget is deliberately tight. Raise Config.RateLimit for deployments
// that front a local model.
const (
	// defaultRateLimit is the sustained requests/second allowed per client.
	defaultRateLimit = 2
	// defaultRateBurst is how far a client may spike above the sustained rate.
	defaultRateBurst = 5

	// clientIdleTTL is how long a client's bucket survives without traffic.
	clientIdleTTL = 3 * time.Minute
	// sweepInterval is how often idle clients are dropped from the map.
	sweepInterval = time.Minute
)

// client is the throttle state for one remote address.
type client struct {
	bucket *rate.Limiter
	seen   time.Time
}

// throttle applies a per-client token bucket to the answer endpoint. A
// background sweeper drops buckets for idle clients so the map stays
// proportional to active traffic, not to every address ever seen.
type throttle struct {
	mu      sync.Mutex
	clients map[string]*client

	limit rate.Limit
	burst int
	log   *slog.Logger
}

// newThrottle builds a throttle and starts its sweeper. The returned stop
// function ends the sweeper goroutine; call it on shutdown.
func newThrottle(rps float64, burst int, log *slog.Logger) (*throttle, func()) {
	t := &throttle{
		clients: make(map[string]*client),
		limit:   rate.Limit(rps),
		burst:   burst,
		log:     log,
	}

	done := make(chan struct{})
	go t.sweepLoop(done)

	return t, func() { close(done) }
}

// admit reports whether addr may proceed now. When the bucket is empty it
// returns the wait until the next token becomes available instead.
func (t *throttle) admit(addr string) (time.Duration, bool) {
	t.mu.Lock()
	c, ok := t.clients[addr]
	if !ok {
		c = &client{bucket: rate.NewLimiter(t.limit, t.burst)}
		t.clients[addr] = c
	}
	c.seen = time.Now()
	t.mu.Unlock()

	// Reserve instead of Allow: a denied reservation carries the delay the
	// client should back off for, which becomes the Retry-After header.
	res := c.bucket.Reserve()
	if !res.OK() {
		return time.Second, false
	}
	if d := res.Delay(); d > 0 {
		res.Cancel()
		return d, false
	}
	return 0, true
}

// middleware rejects requests over the per-client budget with 429 and a
// Retry-After hint derived from that client's bucket.
func (t *throttle) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		addr := remoteHost(r)
		wait, ok := t.admit(addr)
		if !ok {
			secs := int(math.Ceil(wait.Seconds()))
			if secs < 1 {
				secs = 1
			}
			logging.FromContext(r.Context()).Warn("client throttled",
				slog.String("client", addr),
				slog.String("path", r.URL.Path),
				slog.Int("retry_after", secs),
			)
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			writeJSONError(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// sweepLoop drops idle clients once per sweepInterval until done is closed.
func (t *throttle) sweepLoop(done <-chan struct{}) {
	tick := time.NewTicker(sweepInterval)
	defer tick.Stop()

	for {
		select {
		case <-done:
			return
		case <-tick.C:
			if n := t.sweep(time.Now().Add(-clientIdleTTL)); n > 0 {
				t.log.Debug("idle clients swept", slog.Int("count", n))
			}
		}
	}
}

// sweep removes clients last seen before cutoff and reports how many went.
func (t *throttle) sweep(cutoff time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	var n int
	for addr, c := range t.clients {
		if c.seen.Before(cutoff) {
			delete(t.clients, addr)
			n++
		}
	}
	return n
}

// remoteHost strips the port from RemoteAddr. X-Forwarded-For is ignored:
// the default deployment binds to loopback with no proxy in front.
func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
