package timer

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSetInterval(t *testing.T) {
	var calls atomic.Int32
	stop := SetInterval(5*time.Millisecond, func() { calls.Add(1) })

	require.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, time.Millisecond)
	stop()

	n := calls.Load()
	time.Sleep(20 * time.Millisecond)
	require.LessOrEqual(t, calls.Load(), n+1)
}
