package assets

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Faultbox/mldeformer/pkg/math"
)

// Asset validation errors.
var (
	ErrMissingSkeletalMesh  = errors.New("asset has no skeletal mesh")
	ErrMissingGeometryCache = errors.New("asset has no geometry cache")
	ErrMissingAnimation     = errors.New("asset has no animation sequence")
	ErrInvalidRig           = errors.New("invalid rig")
)

// DeltaMode selects the space vertex deltas are computed in.
type DeltaMode uint8

const (
	// DeltaModePreSkinning maps the target back into bind pose through the
	// inverse of each vertex's blended skinning matrix.
	DeltaModePreSkinning DeltaMode = iota
	// DeltaModePostSkinning subtracts the skinned source from the target.
	DeltaModePostSkinning
)

// String returns the config name of the mode.
func (m DeltaMode) String() string {
	switch m {
	case DeltaModePreSkinning:
		return "pre_skinning"
	case DeltaModePostSkinning:
		return "post_skinning"
	default:
		return fmt.Sprintf("Unknown(%d)", m)
	}
}

// ParseDeltaMode parses a config name.
func ParseDeltaMode(s string) (DeltaMode, error) {
	switch strings.ToLower(s) {
	case "pre_skinning", "pre":
		return DeltaModePreSkinning, nil
	case "post_skinning", "post":
		return DeltaModePostSkinning, nil
	}
	return 0, fmt.Errorf("unknown delta mode %q", s)
}

// Bone is one joint of a skeleton with its bind-pose local transform.
type Bone struct {
	Name   string
	Parent int // -1 for roots
	Bind   math.Transform
}

// Skeleton is a bone hierarchy. Parents always precede their children.
type Skeleton struct {
	Bones []Bone
}

// BoneIndex returns the index of the named bone, or -1.
func (s *Skeleton) BoneIndex(name string) int {
	for i := range s.Bones {
		if s.Bones[i].Name == name {
			return i
		}
	}
	return -1
}

// Influence is one bone weight of a skinned vertex.
type Influence struct {
	Bone   int
	Weight float32
}

// SubMesh is one imported mesh of a skeletal mesh.
type SubMesh struct {
	Name       string
	Positions  []math.Vec3   // bind pose, component space
	Influences [][]Influence // one list per vertex
}

// SkeletalMesh is the bone-driven source mesh.
type SkeletalMesh struct {
	Name      string
	Skeleton  Skeleton
	SubMeshes []SubMesh
}

// NumImportedVertices returns the vertex count across all sub-meshes.
func (m *SkeletalMesh) NumImportedVertices() int {
	total := 0
	for i := range m.SubMeshes {
		total += len(m.SubMeshes[i].Positions)
	}
	return total
}

// VertexOffsets returns the imported vertex index of each sub-mesh's first vertex.
func (m *SkeletalMesh) VertexOffsets() []int {
	offsets := make([]int, len(m.SubMeshes))
	offset := 0
	for i := range m.SubMeshes {
		offsets[i] = offset
		offset += len(m.SubMeshes[i].Positions)
	}
	return offsets
}

// Validate checks the bone hierarchy and skin weights.
func (m *SkeletalMesh) Validate() error {
	bones := m.Skeleton.Bones
	for i, b := range bones {
		if b.Parent >= i || b.Parent < -1 {
			return fmt.Errorf("%w: bone %q parent %d does not precede it", ErrInvalidRig, b.Name, b.Parent)
		}
	}
	for i := range m.SubMeshes {
		sm := &m.SubMeshes[i]
		if len(sm.Influences) != len(sm.Positions) {
			return fmt.Errorf("%w: mesh %q has %d influence lists for %d vertices",
				ErrInvalidRig, sm.Name, len(sm.Influences), len(sm.Positions))
		}
		for v, infl := range sm.Influences {
			for _, in := range infl {
				if in.Bone < 0 || in.Bone >= len(bones) {
					return fmt.Errorf("%w: mesh %q vertex %d references bone %d",
						ErrInvalidRig, sm.Name, v, in.Bone)
				}
			}
		}
	}
	return nil
}

// TransformKey is a bone-local transform at a point in time.
type TransformKey struct {
	Time      float32
	Transform math.Transform
}

// BoneTrack animates one bone. Keys are sorted by time.
type BoneTrack struct {
	Bone string
	Keys []TransformKey
}

// CurveKey is a curve value at a point in time.
type CurveKey struct {
	Time  float32
	Value float32
}

// CurveTrack animates one shape-control value. Keys are sorted by time.
type CurveTrack struct {
	Name string
	Keys []CurveKey
}

// AnimSequence drives the skeletal mesh.
type AnimSequence struct {
	Name       string
	FrameRate  float32
	Duration   float32 // seconds
	BoneTracks []BoneTrack
	Curves     []CurveTrack
}

// CurveIndex returns the index of the named curve, or -1.
func (a *AnimSequence) CurveIndex(name string) int {
	for i := range a.Curves {
		if a.Curves[i].Name == name {
			return i
		}
	}
	return -1
}

// Asset bundles everything the sampler needs for one training setup.
type Asset struct {
	Name          string
	SkeletalMesh  *SkeletalMesh
	GeometryCache *GeometryCache
	Anim          *AnimSequence

	// Alignment maps target (geometry cache) space into source space.
	Alignment math.Transform
	// DeltaCutoffLength zeroes deltas longer than this. Zero or less disables it.
	DeltaCutoffLength float32
	DeltaMode         DeltaMode

	// Empty include lists select all bones or curves.
	BoneIncludeList  []string
	CurveIncludeList []string
}

// Validate reports every missing part.
func (a *Asset) Validate() error {
	var errs []error
	if a.SkeletalMesh == nil {
		errs = append(errs, ErrMissingSkeletalMesh)
	}
	if a.GeometryCache == nil {
		errs = append(errs, ErrMissingGeometryCache)
	}
	if a.Anim == nil {
		errs = append(errs, ErrMissingAnimation)
	}
	return errors.Join(errs...)
}

// NumTrainingFrames returns the number of frames in the training range.
func (a *Asset) NumTrainingFrames() int {
	if a.GeometryCache == nil {
		return 0
	}
	return a.GeometryCache.NumFrames
}
