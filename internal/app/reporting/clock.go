package reporting

import "time"

// ticker is the subset of time.Ticker the polling loop needs.
type ticker interface {
	C() <-chan time.Time
	Stop()
}

// clock supplies wall time and interval tickers. Tests substitute a manual
// implementation to advance polling intervals deterministically.
type clock interface {
	Now() time.Time
	NewTicker(d time.Duration) ticker
}

// realClock is a real implementation of the clock interface.
type realClock struct{}

// Now returns the current time.
func (realClock) Now() time.Time { return time.Now().UTC() }

// NewTicker returns a ticker backed by time.Ticker.
func (realClock) NewTicker(d time.Duration) ticker { return &realTicker{t: time.NewTicker(d)} }

type realTicker struct{ t *time.Ticker }

func (r *realTicker) C() <-chan time.Time { return r.t.C }
func (r *realTicker) Stop()               { r.t.Stop() }
