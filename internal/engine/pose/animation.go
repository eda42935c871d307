package pose

import (
	"github.com/Faultbox/mldeformer/internal/assets"
	"github.com/Faultbox/mldeformer/pkg/math"
)

// keySpan finds the keys surrounding t in a sorted key list of length n.
// time(i) returns the time of key i. Before the first key and after the last
// the nearest key is held (prev == next).
func keySpan(n int, t float32, time func(int) float32) (prev, next int, alpha float32) {
	for i := 0; i < n; i++ {
		if time(i) > t {
			next = i
			break
		}
		prev = i
		next = i
	}
	if prev == next || next == 0 {
		return next, next, 0
	}

	t0, t1 := time(prev), time(next)
	if t1 != t0 {
		alpha = (t - t0) / (t1 - t0)
	}
	return prev, next, alpha
}

// InterpolateTransformKeys samples a bone track at time t.
func InterpolateTransformKeys(keys []assets.TransformKey, t float32, fallback math.Transform) math.Transform {
	if len(keys) == 0 {
		return fallback
	}
	if len(keys) == 1 {
		return keys[0].Transform
	}

	prev, next, alpha := keySpan(len(keys), t, func(i int) float32 { return keys[i].Time })
	if prev == next {
		return keys[prev].Transform
	}
	return keys[prev].Transform.Lerp(keys[next].Transform, alpha)
}

// InterpolateCurveKeys samples a curve at time t. Empty curves are zero.
func InterpolateCurveKeys(keys []assets.CurveKey, t float32) float32 {
	if len(keys) == 0 {
		return 0
	}
	if len(keys) == 1 {
		return keys[0].Value
	}

	prev, next, alpha := keySpan(len(keys), t, func(i int) float32 { return keys[i].Time })
	if prev == next {
		return keys[prev].Value
	}
	k0, k1 := keys[prev], keys[next]
	return k0.Value + alpha*(k1.Value-k0.Value)
}

// HasAnimation checks if a sequence has any bone or curve motion.
// Tracks with only 1 keyframe are static poses, not animations.
func HasAnimation(anim *assets.AnimSequence) bool {
	if anim == nil || anim.Duration <= 0 {
		return false
	}
	for i := range anim.BoneTracks {
		if len(anim.BoneTracks[i].Keys) > 1 {
			return true
		}
	}
	for i := range anim.Curves {
		if len(anim.Curves[i].Keys) > 1 {
			return true
		}
	}
	return false
}
