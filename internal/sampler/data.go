package sampler

import "github.com/Faultbox/mldeformer/pkg/math"

// Byte sizes of the element types held in sampler buffers.
const (
	vec3Bytes  = 12
	mat4Bytes  = 64
	floatBytes = 4
	int32Bytes = 4
)

// Data holds the results of the most recent Update. Every buffer is
// overwritten by the next call.
type Data struct {
	// FrameIndex and SampleTime identify the sampled frame.
	FrameIndex int
	SampleTime float32

	// SkinnedPositions are the linear-blend-skinned imported source vertices.
	SkinnedPositions []math.Vec3
	// BoneMatrices are the skinning matrices (pose * inverse bind) per bone.
	BoneMatrices []math.Mat4
	// VertexDeltas holds 3 floats per imported vertex.
	VertexDeltas []float32
	// BoneRotations holds a parent-relative quaternion (x, y, z, w) per
	// included bone.
	BoneRotations []float32
	// CurveValues holds one value per included curve.
	CurveValues []float32
	// DebugVectors holds aligned target positions per imported vertex. Empty
	// unless debug vectors are enabled.
	DebugVectors []math.Vec3

	// SingularVertices counts pre-skinning vertices whose blended skinning
	// matrix had no inverse. Their delta is left at zero.
	SingularVertices int
}

func (d *Data) allocate(numVertices, numSkinBones, numBones, numCurves int, debug bool) {
	d.FrameIndex = -1
	d.SkinnedPositions = make([]math.Vec3, numVertices)
	d.BoneMatrices = make([]math.Mat4, numSkinBones)
	d.VertexDeltas = make([]float32, numVertices*3)
	d.BoneRotations = make([]float32, numBones*4)
	d.CurveValues = make([]float32, numCurves)
	d.DebugVectors = nil
	if debug {
		d.DebugVectors = make([]math.Vec3, numVertices)
	}
}

// Delta returns the delta of imported vertex v.
func (d *Data) Delta(v int) math.Vec3 {
	return math.Vec3{X: d.VertexDeltas[v*3], Y: d.VertexDeltas[v*3+1], Z: d.VertexDeltas[v*3+2]}
}

func (d *Data) setDelta(v int, delta math.Vec3) {
	d.VertexDeltas[v*3] = delta.X
	d.VertexDeltas[v*3+1] = delta.Y
	d.VertexDeltas[v*3+2] = delta.Z
}

// CalcMemUsageInBytes returns the size of all buffers.
func (d *Data) CalcMemUsageInBytes() int {
	return len(d.SkinnedPositions)*vec3Bytes +
		len(d.BoneMatrices)*mat4Bytes +
		(len(d.VertexDeltas)+len(d.BoneRotations)+len(d.CurveValues))*floatBytes +
		len(d.DebugVectors)*vec3Bytes
}
