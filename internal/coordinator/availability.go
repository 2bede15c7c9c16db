package coordinator

import "sync/atomic"

const (
	shadowUnknown int32 = iota
	shadowUp
	shadowDown
)

// Availability is the two-state reachability flag. The shadow remembers the
// previous outcome so transitions are reported once; it never gates
// behaviour. The zero value is unavailable with no history.
type Availability struct {
	available atomic.Bool
	previous  atomic.Int32
}

func (a *Availability) Available() bool {
	return a.available.Load()
}

// MarkUp records a successful cycle. It reports true only when the previous
// cycle had failed, so the first success after startup is not a recovery.
func (a *Availability) MarkUp() bool {
	a.available.Store(true)
	return a.previous.Swap(shadowUp) == shadowDown
}

// MarkDown records a failed cycle. It reports true on the first failure
// since the last success, including a failure on the very first cycle.
func (a *Availability) MarkDown() bool {
	a.available.Store(false)
	return a.previous.Swap(shadowDown) != shadowDown
}
