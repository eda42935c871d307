package sampler

import (
	"github.com/Faultbox/mldeformer/internal/assets"
	"github.com/Faultbox/mldeformer/internal/engine/pose"
	"github.com/Faultbox/mldeformer/internal/engine/skin"
	"github.com/Faultbox/mldeformer/pkg/math"
)

// sourceProxy is a hidden posed instance of the skeletal mesh.
type sourceProxy struct {
	mesh      *assets.SkeletalMesh
	evaluator *pose.Evaluator
	pose      *pose.Pose
	invBind   []math.Mat4
}

func newSourceProxy(mesh *assets.SkeletalMesh, anim *assets.AnimSequence) *sourceProxy {
	skel := &mesh.Skeleton
	return &sourceProxy{
		mesh:      mesh,
		evaluator: pose.NewEvaluator(skel, anim),
		pose:      pose.New(len(skel.Bones)),
		invBind:   pose.InverseBindMatrices(skel),
	}
}

// tick poses the skeleton at time t and writes skinning matrices and skinned
// positions into data.
func (p *sourceProxy) tick(t float32, data *Data) {
	p.evaluator.Evaluate(t, p.pose)
	skin.SkinningMatrices(p.pose.Component, p.invBind, data.BoneMatrices)
	skin.SkinPositions(p.mesh, data.BoneMatrices, data.SkinnedPositions)
}

func (p *sourceProxy) memUsage() int {
	return len(p.pose.Local)*(vec3Bytes*2+16) + len(p.pose.Component)*mat4Bytes + len(p.invBind)*mat4Bytes
}

// targetProxy plays back the geometry cache and keeps the sampled positions
// of every track a mapping uses.
type targetProxy struct {
	cache     *assets.GeometryCache
	positions [][]math.Vec3 // per track; nil for unused tracks
}

func newTargetProxy(gc *assets.GeometryCache, mappings []MeshMapping) *targetProxy {
	p := &targetProxy{
		cache:     gc,
		positions: make([][]math.Vec3, len(gc.Tracks)),
	}
	for i := range mappings {
		track := mappings[i].TrackIndex
		if p.positions[track] == nil {
			p.positions[track] = make([]math.Vec3, gc.Tracks[track].NumVertices())
		}
	}
	return p
}

// tick samples every used track at time t and maps it into source space.
func (p *targetProxy) tick(t float32, alignment math.Transform) {
	identity := alignment == math.TransformIdentity()
	for track, buf := range p.positions {
		if buf == nil {
			continue
		}
		p.cache.SamplePositions(track, t, buf)
		if identity {
			continue
		}
		for i := range buf {
			buf[i] = alignment.TransformPoint(buf[i])
		}
	}
}

func (p *targetProxy) memUsage() int {
	n := 0
	for _, buf := range p.positions {
		n += len(buf) * vec3Bytes
	}
	return n
}
