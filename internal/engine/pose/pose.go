// Package pose evaluates animation sequences into bone transforms.
package pose

import (
	"github.com/Faultbox/mldeformer/internal/assets"
	"github.com/Faultbox/mldeformer/pkg/math"
)

// Pose holds bone transforms for one point in time.
type Pose struct {
	// Local is each bone's transform relative to its parent.
	Local []math.Transform
	// Component is each bone's transform relative to the mesh root.
	Component []math.Mat4
}

// New allocates a pose for numBones bones.
func New(numBones int) *Pose {
	return &Pose{
		Local:     make([]math.Transform, numBones),
		Component: make([]math.Mat4, numBones),
	}
}

// BindPose returns the skeleton's rest pose.
func BindPose(skel *assets.Skeleton) *Pose {
	p := New(len(skel.Bones))
	for i := range skel.Bones {
		p.Local[i] = skel.Bones[i].Bind
	}
	p.BuildComponentSpace(skel)
	return p
}

// BuildComponentSpace fills Component from Local. Parents precede children,
// so one forward pass is enough.
func (p *Pose) BuildComponentSpace(skel *assets.Skeleton) {
	for i := range skel.Bones {
		local := p.Local[i].Matrix()
		if parent := skel.Bones[i].Parent; parent >= 0 {
			p.Component[i] = p.Component[parent].Mul(local)
		} else {
			p.Component[i] = local
		}
	}
}

// InverseBindMatrices returns the inverse of each bone's bind-pose component
// matrix. Bones with a degenerate bind (zero scale) get the identity.
func InverseBindMatrices(skel *assets.Skeleton) []math.Mat4 {
	bind := BindPose(skel)
	inv := make([]math.Mat4, len(skel.Bones))
	for i, m := range bind.Component {
		if mi, ok := m.Inverse(); ok {
			inv[i] = mi
		} else {
			inv[i] = math.Identity()
		}
	}
	return inv
}

// Evaluator samples one animation sequence on one skeleton.
type Evaluator struct {
	skel *assets.Skeleton
	anim *assets.AnimSequence
	// track index per bone, -1 when the bone holds its bind transform
	tracks []int
}

// NewEvaluator binds anim's tracks to skel's bones by name. Tracks for bones
// the skeleton lacks are ignored.
func NewEvaluator(skel *assets.Skeleton, anim *assets.AnimSequence) *Evaluator {
	e := &Evaluator{
		skel:   skel,
		anim:   anim,
		tracks: make([]int, len(skel.Bones)),
	}
	for i := range e.tracks {
		e.tracks[i] = -1
	}
	for t := range anim.BoneTracks {
		if b := skel.BoneIndex(anim.BoneTracks[t].Bone); b >= 0 {
			e.tracks[b] = t
		}
	}
	return e
}

// NumAnimatedBones returns how many bones have a track.
func (e *Evaluator) NumAnimatedBones() int {
	n := 0
	for _, t := range e.tracks {
		if t >= 0 {
			n++
		}
	}
	return n
}

// Evaluate writes the pose at time t into p.
func (e *Evaluator) Evaluate(t float32, p *Pose) {
	for i := range e.skel.Bones {
		bind := e.skel.Bones[i].Bind
		if track := e.tracks[i]; track >= 0 {
			p.Local[i] = InterpolateTransformKeys(e.anim.BoneTracks[track].Keys, t, bind)
		} else {
			p.Local[i] = bind
		}
	}
	p.BuildComponentSpace(e.skel)
}

// EvaluateCurves writes the value of each selected curve at time t into out.
func (e *Evaluator) EvaluateCurves(t float32, curves []int, out []float32) {
	for i, c := range curves {
		out[i] = InterpolateCurveKeys(e.anim.Curves[c].Keys, t)
	}
}
