package framecache

import "github.com/Faultbox/mldeformer/internal/sampler"

// TrainingFrame is the cached training data of one animation frame.
type TrainingFrame struct {
	// AnimFrameIndex is -1 while the frame is empty.
	AnimFrameIndex int
	VertexDeltas   []float32 // 3 per vertex
	BoneRotations  []float32 // 4 per bone (x, y, z, w)
	CurveValues    []float32
}

// NewTrainingFrame returns an empty frame.
func NewTrainingFrame() TrainingFrame {
	return TrainingFrame{AnimFrameIndex: -1}
}

// InitFromSamplerItem copies the sampler's latest results into f, reusing
// f's buffers when they are large enough.
func (f *TrainingFrame) InitFromSamplerItem(data *sampler.Data, frame int) {
	if data == nil {
		panic("framecache: InitFromSamplerItem with nil data")
	}
	f.AnimFrameIndex = frame
	f.VertexDeltas = append(f.VertexDeltas[:0], data.VertexDeltas...)
	f.BoneRotations = append(f.BoneRotations[:0], data.BoneRotations...)
	f.CurveValues = append(f.CurveValues[:0], data.CurveValues...)
}

// Clear empties the frame.
func (f *TrainingFrame) Clear() {
	f.AnimFrameIndex = -1
	f.VertexDeltas = nil
	f.BoneRotations = nil
	f.CurveValues = nil
}

// IsEmpty reports whether the frame holds data.
func (f *TrainingFrame) IsEmpty() bool {
	return f.AnimFrameIndex < 0
}

// CalcMemUsageInBytes returns the size of the frame's buffers.
func (f *TrainingFrame) CalcMemUsageInBytes() int {
	return (len(f.VertexDeltas) + len(f.BoneRotations) + len(f.CurveValues)) * 4
}
