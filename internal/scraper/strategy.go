package scraper

import (
	"math/rand"
	"time"
)

// Strategy supplies the randomized parts of the session's behavior so the
// pacing and retry machinery itself stays deterministic under test.
type Strategy interface {
	// HumanDelay returns the post-navigation delay drawn from [min, max].
	HumanDelay(min, max time.Duration) time.Duration
	// NextIdentity returns the user agent to report after a rotation.
	NextIdentity() string
}

// Clock abstracts time for the pacing window and blocking waits.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type realClock struct{}

func (realClock) Now() time.Time        { return time.Now() }
func (realClock) Sleep(d time.Duration) { time.Sleep(d) }

// RealClock returns a Clock backed by the system clock.
func RealClock() Clock { return realClock{} }

var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/120.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15",
}

// RandomStrategy draws humanizing delays uniformly and rotates through a pool
// of browser user agents in random order.
type RandomStrategy struct {
	rng    *rand.Rand
	agents []string
}

// NewRandomStrategy returns a strategy seeded from the system clock. An empty
// agents slice falls back to the built-in pool.
func NewRandomStrategy(agents []string) *RandomStrategy {
	if len(agents) == 0 {
		agents = defaultUserAgents
	}
	return &RandomStrategy{
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		agents: agents,
	}
}

func (s *RandomStrategy) HumanDelay(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(s.rng.Int63n(int64(max-min)))
}

func (s *RandomStrategy) NextIdentity() string {
	return s.agents[s.rng.Intn(len(s.agents))]
}
