// Package skin implements linear blend skinning.
package skin

import (
	"github.com/Faultbox/mldeformer/internal/assets"
	"github.com/Faultbox/mldeformer/pkg/math"
)

// SkinningMatrices writes component[b] * invBind[b] for every bone into out.
func SkinningMatrices(component, invBind, out []math.Mat4) {
	if len(component) != len(invBind) || len(out) < len(component) {
		panic("skin: matrix slice length mismatch")
	}
	for b := range component {
		out[b] = component[b].Mul(invBind[b])
	}
}

// BlendedTransform returns the weight-normalized sum of the influencing
// skinning matrices. A vertex whose weights sum to zero gets the zero matrix,
// which has no inverse.
func BlendedTransform(influences []assets.Influence, matrices []math.Mat4) math.Mat4 {
	var total float32
	for _, in := range influences {
		total += in.Weight
	}
	if total <= 0 {
		return math.Mat4{}
	}

	var m math.Mat4
	for _, in := range influences {
		m = m.Add(matrices[in.Bone].MulScalar(in.Weight / total))
	}
	return m
}

// SkinVertex returns the skinned position of p. Vertices without weight keep
// their bind position.
func SkinVertex(p math.Vec3, influences []assets.Influence, matrices []math.Mat4) math.Vec3 {
	var total float32
	for _, in := range influences {
		total += in.Weight
	}
	if total <= 0 {
		return p
	}

	var out math.Vec3
	for _, in := range influences {
		out = out.Add(matrices[in.Bone].TransformPoint(p).Scale(in.Weight / total))
	}
	return out
}

// SkinPositions skins every imported vertex of mesh into out, which must hold
// mesh.NumImportedVertices() entries.
func SkinPositions(mesh *assets.SkeletalMesh, matrices []math.Mat4, out []math.Vec3) {
	if len(out) < mesh.NumImportedVertices() {
		panic("skin: output buffer too small")
	}
	i := 0
	for m := range mesh.SubMeshes {
		sm := &mesh.SubMeshes[m]
		for v, p := range sm.Positions {
			out[i] = SkinVertex(p, sm.Influences[v], matrices)
			i++
		}
	}
}
