package framecache

import (
	"fmt"
	"strings"
)

// EvictionPolicy chooses the slot a cache miss overwrites.
type EvictionPolicy uint8

const (
	// EvictFreezeLast fills slots in order and then keeps overwriting the
	// last slot. The first capacity-1 frames stay resident.
	EvictFreezeLast EvictionPolicy = iota
	// EvictRoundRobin fills slots in order and wraps to the first slot.
	EvictRoundRobin
)

// String returns the config name of the policy.
func (p EvictionPolicy) String() string {
	switch p {
	case EvictFreezeLast:
		return "freeze_last"
	case EvictRoundRobin:
		return "round_robin"
	default:
		return fmt.Sprintf("Unknown(%d)", p)
	}
}

// ParseEvictionPolicy parses a config name. Empty selects EvictFreezeLast.
func ParseEvictionPolicy(s string) (EvictionPolicy, error) {
	switch strings.ToLower(s) {
	case "", "freeze_last":
		return EvictFreezeLast, nil
	case "round_robin":
		return EvictRoundRobin, nil
	}
	return 0, fmt.Errorf("unknown eviction policy %q", s)
}

// next returns the cursor after writing slot cursor.
func (p EvictionPolicy) next(cursor, capacity int) int {
	if p == EvictRoundRobin {
		return (cursor + 1) % capacity
	}
	return min(cursor+1, capacity-1)
}
