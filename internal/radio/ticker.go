package radio

import (
	"sync"
	"time"
)

// tickSource synthesizes advertising events at the current interval.
type tickSource struct {
	mu      sync.Mutex
	fn      func()
	stop    chan struct{}
	done    chan struct{}
	running bool
}

func (s *tickSource) setHandler(fn func()) {
	s.mu.Lock()
	s.fn = fn
	s.mu.Unlock()
}

func (s *tickSource) fire() {
	s.mu.Lock()
	fn := s.fn
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// start (re)starts ticking every d.
func (s *tickSource) start(d time.Duration) {
	s.halt()

	stop := make(chan struct{})
	done := make(chan struct{})
	s.mu.Lock()
	s.stop, s.done, s.running = stop, done, true
	s.mu.Unlock()

	go func() {
		defer close(done)
		t := time.NewTicker(d)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				s.fire()
			}
		}
	}()
}

func (s *tickSource) halt() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	stop, done := s.stop, s.done
	s.running = false
	s.mu.Unlock()

	close(stop)
	<-done
}
