package node

import "time"

// ActivityPolicy decides between polling the modem and entering light
// sleep, based on how recently a wake edge arrived. Comparisons use
// whole seconds, matching the resolution of the latched edge time.
type ActivityPolicy struct {
	window int64
}

// NewActivityPolicy returns a policy with the given activity window.
func NewActivityPolicy(window time.Duration) ActivityPolicy {
	return ActivityPolicy{window: int64(window / time.Second)}
}

// ShouldPoll reports whether the loop is inside the activity window. A
// pending edge always polls.
func (p ActivityPolicy) ShouldPoll(pending bool, nowUnix, edgeUnix int64) bool {
	return pending || nowUnix < edgeUnix+p.window
}

// ShouldSleep reports whether the loop is past the activity window.
// Both comparisons are strict, so on the exact boundary second the
// loop neither polls nor sleeps and simply idles through the pass.
func (p ActivityPolicy) ShouldSleep(pending bool, nowUnix, edgeUnix int64) bool {
	return !pending && nowUnix > edgeUnix+p.window
}
