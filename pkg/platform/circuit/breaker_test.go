package circuit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type BreakerSuite struct {
	suite.Suite
	clock time.Time
}

func TestBreakerSuite(t *testing.T) {
	suite.Run(t, new(BreakerSuite))
}

func (s *BreakerSuite) SetupTest() {
	s.clock = time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
}

func (s *BreakerSuite) newBreaker(opts ...Option) *Breaker {
	base := []Option{
		WithFailureThreshold(3),
		WithSuccessThreshold(2),
		WithCooldown(time.Minute),
		WithClock(func() time.Time { return s.clock }),
	}
	return New("wallet-provider", append(base, opts...)...)
}

func (s *BreakerSuite) trip(b *Breaker) {
	for !b.IsOpen() {
		b.RecordFailure()
	}
}

// =============================================================================
// Opening
// =============================================================================

func (s *BreakerSuite) TestStartsClosed() {
	b := s.newBreaker()
	s.Equal("wallet-provider", b.Name())
	s.Equal(StateClosed, b.State())
	s.True(b.Allow())
}

func (s *BreakerSuite) TestOpensOnConsecutiveFailures() {
	b := s.newBreaker()

	for range 2 {
		fallback, change := b.RecordFailure()
		s.False(fallback)
		s.False(change.Opened)
	}
	fallback, change := b.RecordFailure()
	s.True(fallback)
	s.True(change.Opened)
	s.Equal(StateOpen, b.State())

	s.Run("further failures report no transition", func() {
		fallback, change := b.RecordFailure()
		s.True(fallback)
		s.Equal(StateChange{}, change)
	})
}

func (s *BreakerSuite) TestInterleavedSuccessKeepsItClosed() {
	b := s.newBreaker()
	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()
	s.False(b.IsOpen())
}

// =============================================================================
// Cooldown and recovery
// =============================================================================

func (s *BreakerSuite) TestCooldownGatesProbes() {
	b := s.newBreaker()
	s.trip(b)
	s.False(b.Allow())

	s.clock = s.clock.Add(59 * time.Second)
	s.False(b.Allow())

	s.clock = s.clock.Add(time.Second)
	s.True(b.Allow())

	s.Run("failed trial call restarts the cooldown", func() {
		b.RecordFailure()
		s.False(b.Allow())
		s.clock = s.clock.Add(time.Minute)
		s.True(b.Allow())
	})
}

func (s *BreakerSuite) TestClosesAfterConsecutiveSuccesses() {
	b := s.newBreaker()
	s.trip(b)

	primary, change := b.RecordSuccess()
	s.False(primary)
	s.False(change.Closed)

	s.Run("a failure between trial calls resets progress", func() {
		b.RecordFailure()
		primary, _ := b.RecordSuccess()
		s.False(primary)
		s.True(b.IsOpen())
	})

	primary, change = b.RecordSuccess()
	s.True(primary)
	s.True(change.Closed)
	s.True(b.Allow())
}

func (s *BreakerSuite) TestReset() {
	b := s.newBreaker()
	s.trip(b)
	b.Reset()
	s.Equal(StateClosed, b.State())

	b.RecordFailure()
	b.RecordFailure()
	s.False(b.IsOpen(), "reset clears the failure count")
}

func (s *BreakerSuite) TestConcurrentFailuresOpenOnce() {
	b := New("wallet-provider", WithFailureThreshold(10))
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		opened int
	)
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, change := b.RecordFailure(); change.Opened {
				mu.Lock()
				opened++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	s.Equal(1, opened)
	s.True(b.IsOpen())
}
