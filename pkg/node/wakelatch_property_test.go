//go:build property
// +build property

// Property-based tests for the wake latch and the activity policy.
package node_test

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/uasnet/uanode.go/pkg/node"
)

// TestWakeLatchLastEdgeWins verifies the latch always holds the newest
// edge no matter how many arrive.
func TestWakeLatchLastEdgeWins(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("latch holds the newest edge", prop.ForAll(
		func(edges []int64) bool {
			var l node.WakeLatch
			for _, e := range edges {
				l.Edge(node.Timestamp{
					Unix:   e,
					Millis: uint32(e & 0x3fffffff),
					Micros: uint32((e * 7) & 0x3fffffff),
				})
			}
			if len(edges) == 0 {
				return !l.Pending() && l.Last() == node.Timestamp{}
			}
			last := edges[len(edges)-1]
			got := l.Last()
			return got.Unix == last &&
				got.Millis == uint32(last&0x3fffffff) &&
				got.Micros == uint32((last*7)&0x3fffffff)
		},
		gen.SliceOf(gen.Int64Range(0, 1<<40)),
	))

	properties.Property("take consumes one arrival", prop.ForAll(
		func(edges []int64) bool {
			var l node.WakeLatch
			for _, e := range edges {
				l.Edge(node.Timestamp{Unix: e})
			}
			if len(edges) == 0 {
				return !l.Take()
			}
			return l.Take() && !l.Take() && !l.Pending()
		},
		gen.SliceOf(gen.Int64Range(0, 1<<40)),
	))

	properties.TestingRun(t)
}

// TestActivityPolicyExclusive verifies polling and sleeping are never
// both chosen for the same instant.
func TestActivityPolicyExclusive(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	policy := node.NewActivityPolicy(30 * time.Second)

	properties.Property("poll and sleep are mutually exclusive", prop.ForAll(
		func(pending bool, now, edge int64) bool {
			return !(policy.ShouldPoll(pending, now, edge) &&
				policy.ShouldSleep(pending, now, edge))
		},
		gen.Bool(),
		gen.Int64Range(0, 1<<34),
		gen.Int64Range(0, 1<<34),
	))

	properties.Property("a pending edge always polls and never sleeps", prop.ForAll(
		func(now, edge int64) bool {
			return policy.ShouldPoll(true, now, edge) &&
				!policy.ShouldSleep(true, now, edge)
		},
		gen.Int64Range(0, 1<<34),
		gen.Int64Range(0, 1<<34),
	))

	properties.TestingRun(t)
}
