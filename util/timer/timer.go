package timer

import "time"

// SetInterval calls f every duration until the returned function is called.
func SetInterval(duration time.Duration, f func()) (stop func()) {
	t := time.NewTicker(duration)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-t.C:
				f()
			case <-done:
				return
			}
		}
	}()

	return func() {
		t.Stop()
		close(done)
	}
}
