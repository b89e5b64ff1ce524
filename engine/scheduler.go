package engine

import (
	"context"
	"sync"
	"time"
)

// Scheduler fires fn every d until the returned cancel func is called.
// cancel must not return while fn is still running, and fn must not run after cancel returns.
type Scheduler interface {
	Every(d time.Duration, fn func()) (cancel func())
}

// TickerScheduler is the default Scheduler, one time.Ticker goroutine per call
var TickerScheduler Scheduler = tickerScheduler{}

type tickerScheduler struct{}

func (tickerScheduler) Every(d time.Duration, fn func()) func() {
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		tick := time.NewTicker(d)
		defer tick.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tick.C:
			}
			select {
			case <-ctx.Done():
				return
			default:
			}
			fn()
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			wg.Wait()
		})
	}
}
