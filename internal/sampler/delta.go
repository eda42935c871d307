package sampler

import (
	"github.com/Faultbox/mldeformer/internal/assets"
	"github.com/Faultbox/mldeformer/internal/engine/skin"
	"github.com/Faultbox/mldeformer/pkg/math"
)

// deltaFunc computes the deltas of one mapped sub-mesh. target holds the
// aligned target positions of the mapping's track.
type deltaFunc func(s *Sampler, m *MeshMapping, target []math.Vec3)

func deltaFuncFor(mode assets.DeltaMode) deltaFunc {
	if mode == assets.DeltaModePostSkinning {
		return postSkinningDeltas
	}
	return preSkinningDeltas
}

// postSkinningDeltas: aligned target - skinned source.
func postSkinningDeltas(s *Sampler, m *MeshMapping, target []math.Vec3) {
	for v, t := range m.SourceToTarget {
		if t == NoCorrespondence {
			continue
		}
		g := m.VertexOffset + v
		s.storeDelta(g, target[t].Sub(s.data.SkinnedPositions[g]))
	}
}

// preSkinningDeltas maps the aligned target back into bind pose through the
// inverse of the vertex's blended skinning matrix and subtracts the bind
// position.
func preSkinningDeltas(s *Sampler, m *MeshMapping, target []math.Vec3) {
	sm := &s.asset.SkeletalMesh.SubMeshes[m.MeshIndex]
	for v, t := range m.SourceToTarget {
		if t == NoCorrespondence {
			continue
		}
		blended := skin.BlendedTransform(sm.Influences[v], s.data.BoneMatrices)
		inv, ok := blended.Inverse()
		if !ok {
			s.data.SingularVertices++
			continue
		}
		s.storeDelta(m.VertexOffset+v, inv.TransformPoint(target[t]).Sub(sm.Positions[v]))
	}
}

// storeDelta writes delta for imported vertex g, zeroing it when longer than
// the cutoff.
func (s *Sampler) storeDelta(g int, delta math.Vec3) {
	if s.cutoffSq > 0 && delta.LengthSquared() > s.cutoffSq {
		return
	}
	s.data.setDelta(g, delta)
}
