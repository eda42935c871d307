package pose

import (
	stdmath "math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/mldeformer/internal/assets"
	"github.com/Faultbox/mldeformer/pkg/math"
)

const eps = 1e-4

func translated(x, y, z float32) math.Transform {
	t := math.TransformIdentity()
	t.Translation = math.Vec3{X: x, Y: y, Z: z}
	return t
}

func chain() *assets.Skeleton {
	return &assets.Skeleton{Bones: []assets.Bone{
		{Name: "root", Parent: -1, Bind: translated(0, 0, 0)},
		{Name: "mid", Parent: 0, Bind: translated(0, 1, 0)},
		{Name: "tip", Parent: 1, Bind: translated(0, 1, 0)},
	}}
}

func assertVec(t *testing.T, want, got math.Vec3) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, eps, "x")
	assert.InDelta(t, want.Y, got.Y, eps, "y")
	assert.InDelta(t, want.Z, got.Z, eps, "z")
}

func TestInterpolateCurveKeys(t *testing.T) {
	keys := []assets.CurveKey{{Time: 1, Value: 2}, {Time: 3, Value: 6}}

	tests := []struct {
		name string
		time float32
		want float32
	}{
		{"before first key holds", 0, 2},
		{"on first key", 1, 2},
		{"midway", 2, 4},
		{"on last key", 3, 6},
		{"after last key holds", 10, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, InterpolateCurveKeys(keys, tt.time), eps)
		})
	}

	assert.Zero(t, InterpolateCurveKeys(nil, 1))
	assert.Equal(t, float32(7), InterpolateCurveKeys([]assets.CurveKey{{Time: 5, Value: 7}}, 0))
}

func TestInterpolateTransformKeys(t *testing.T) {
	end := translated(2, 0, 0)
	end.Rotation = math.QuatFromAxisAngle(math.Vec3{Z: 1}, stdmath.Pi/2)
	keys := []assets.TransformKey{
		{Time: 0, Transform: math.TransformIdentity()},
		{Time: 1, Transform: end},
	}

	mid := InterpolateTransformKeys(keys, 0.5, math.TransformIdentity())
	assertVec(t, math.Vec3{X: 1}, mid.Translation)
	want := math.QuatFromAxisAngle(math.Vec3{Z: 1}, stdmath.Pi/4)
	assert.InDelta(t, 1, stdmath.Abs(float64(mid.Rotation.Dot(want))), eps)

	fallback := translated(9, 9, 9)
	assert.Equal(t, fallback, InterpolateTransformKeys(nil, 0.5, fallback))
	assert.Equal(t, end, InterpolateTransformKeys(keys, 4, fallback))
}

func TestBindPose(t *testing.T) {
	p := BindPose(chain())

	require.Len(t, p.Component, 3)
	assertVec(t, math.Vec3{Y: 2}, p.Component[2].Translation())
	assertVec(t, math.Vec3{Y: 1}, p.Component[1].Translation())
}

func TestInverseBindMatrices(t *testing.T) {
	skel := chain()
	bind := BindPose(skel)
	inv := InverseBindMatrices(skel)

	for i := range inv {
		m := bind.Component[i].Mul(inv[i])
		id := math.Identity()
		for k := range m {
			assert.InDelta(t, id[k], m[k], eps, "bone %d element %d", i, k)
		}
	}

	skel.Bones[0].Bind.Scale = math.Vec3{}
	inv = InverseBindMatrices(skel)
	assert.Equal(t, math.Identity(), inv[0])
}

func TestEvaluatorHierarchy(t *testing.T) {
	skel := chain()
	bent := translated(0, 1, 0)
	bent.Rotation = math.QuatFromAxisAngle(math.Vec3{Z: 1}, stdmath.Pi/2)
	anim := &assets.AnimSequence{
		Duration: 1,
		BoneTracks: []assets.BoneTrack{
			{Bone: "mid", Keys: []assets.TransformKey{{Time: 0, Transform: translated(0, 1, 0)}, {Time: 1, Transform: bent}}},
			{Bone: "ghost", Keys: []assets.TransformKey{{Time: 0, Transform: translated(5, 5, 5)}}},
		},
		Curves: []assets.CurveTrack{{Name: "c", Keys: []assets.CurveKey{{Time: 0, Value: 0}, {Time: 1, Value: 1}}}},
	}

	e := NewEvaluator(skel, anim)
	assert.Equal(t, 1, e.NumAnimatedBones())

	p := New(len(skel.Bones))
	e.Evaluate(1, p)

	// mid rotates 90 degrees about Z, so the tip swings from +Y to -X.
	assertVec(t, math.Vec3{Y: 1}, p.Component[1].Translation())
	assertVec(t, math.Vec3{X: -1, Y: 1}, p.Component[2].Translation())
	assert.Equal(t, skel.Bones[2].Bind, p.Local[2])

	out := make([]float32, 1)
	e.EvaluateCurves(0.25, []int{0}, out)
	assert.InDelta(t, 0.25, out[0], eps)
}

func TestHasAnimation(t *testing.T) {
	assert.False(t, HasAnimation(nil))
	assert.False(t, HasAnimation(&assets.AnimSequence{Duration: 1}))
	assert.True(t, HasAnimation(&assets.AnimSequence{
		Duration: 1,
		Curves:   []assets.CurveTrack{{Keys: []assets.CurveKey{{}, {Time: 1}}}},
	}))
}
