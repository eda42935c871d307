// Package sampler poses a skeletal mesh and a geometry cache at one frame and
// computes the training inputs and vertex deltas between them.
package sampler

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Faultbox/mldeformer/internal/assets"
	"github.com/Faultbox/mldeformer/internal/engine/pose"
	"github.com/Faultbox/mldeformer/internal/logger"
)

// noCopy makes go vet's copylocks check flag copies of a Sampler. The
// proxies point into sampler-owned buffers, so a copy would share them.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Settings configures a Sampler.
type Settings struct {
	Asset *assets.Asset
	// DebugVectors fills Data.DebugVectors with aligned target positions.
	DebugVectors bool
	// Logger defaults to the package logger named "sampler".
	Logger *zap.Logger
}

// Sampler computes per-frame training data for one asset. It is not safe for
// concurrent use and must not be copied after Init.
type Sampler struct {
	noCopy noCopy

	id  uuid.UUID
	log *zap.Logger

	asset  *assets.Asset
	source *sourceProxy
	target *targetProxy

	mappings    []MeshMapping
	failedNames []string
	bones       []int // skeleton indices feeding BoneRotations
	curves      []int // animation curve indices feeding CurveValues

	deltaMode     assets.DeltaMode
	computeDeltas deltaFunc
	cutoffSq      float32
	debugVectors  bool

	data Data
}

// New creates and initializes a sampler.
func New(settings Settings) (*Sampler, error) {
	s := &Sampler{}
	if err := s.Init(settings); err != nil {
		return nil, err
	}
	return s, nil
}

// Init attaches the proxies and builds the mesh mappings. Sub-meshes without
// a matching geometry-cache track do not fail Init; see
// FailedImportedMeshNames. It returns an error only when the asset lacks a
// required part.
func (s *Sampler) Init(settings Settings) error {
	a := settings.Asset
	if a == nil {
		panic("sampler: Init with nil asset")
	}
	if err := a.Validate(); err != nil {
		return fmt.Errorf("sampler init: %w", err)
	}

	s.Close()
	s.id = uuid.New()
	s.log = settings.Logger
	if s.log == nil {
		s.log = logger.Named("sampler")
	}
	s.log = s.log.With(zap.String("sampler", s.id.String()))

	s.asset = a
	s.mappings, s.failedNames = buildMeshMappings(a.SkeletalMesh, a.GeometryCache)
	s.source = newSourceProxy(a.SkeletalMesh, a.Anim)
	s.target = newTargetProxy(a.GeometryCache, s.mappings)
	s.bones = selectBones(&a.SkeletalMesh.Skeleton, a.BoneIncludeList)
	s.curves = selectCurves(a.Anim, a.CurveIncludeList)

	s.deltaMode = a.DeltaMode
	s.computeDeltas = deltaFuncFor(a.DeltaMode)
	s.cutoffSq = 0
	if a.DeltaCutoffLength > 0 {
		s.cutoffSq = a.DeltaCutoffLength * a.DeltaCutoffLength
	}
	s.debugVectors = settings.DebugVectors

	s.data.allocate(a.SkeletalMesh.NumImportedVertices(), len(a.SkeletalMesh.Skeleton.Bones),
		len(s.bones), len(s.curves), s.debugVectors)

	s.log.Info("Sampler initialized",
		zap.String("asset", a.Name),
		zap.Stringer("delta_mode", s.deltaMode),
		zap.Int("vertices", s.NumImportedVertices()),
		zap.Int("bones", s.NumBones()),
		zap.Int("curves", s.NumCurves()),
		zap.Int("mappings", len(s.mappings)),
		zap.Int("animated_bones", s.source.evaluator.NumAnimatedBones()))
	if len(s.failedNames) > 0 {
		s.log.Warn("Imported meshes without a geometry cache track",
			zap.Strings("meshes", s.failedNames))
	}
	switch {
	case !pose.HasAnimation(a.Anim):
		s.log.Warn("Animation has no motion, every frame samples the same pose",
			zap.String("anim", a.Anim.Name))
	case s.source.evaluator.NumAnimatedBones() == 0:
		s.log.Warn("No animation track matches a skeleton bone",
			zap.String("anim", a.Anim.Name))
	}
	return nil
}

// selectBones returns the skeleton indices named by include, or every bone
// when include is empty. Unknown names are skipped.
func selectBones(skel *assets.Skeleton, include []string) []int {
	if len(include) == 0 {
		all := make([]int, len(skel.Bones))
		for i := range all {
			all[i] = i
		}
		return all
	}
	var out []int
	for _, name := range include {
		if i := skel.BoneIndex(name); i >= 0 {
			out = append(out, i)
		}
	}
	return out
}

func selectCurves(anim *assets.AnimSequence, include []string) []int {
	if len(include) == 0 {
		all := make([]int, len(anim.Curves))
		for i := range all {
			all[i] = i
		}
		return all
	}
	var out []int
	for _, name := range include {
		if i := anim.CurveIndex(name); i >= 0 {
			out = append(out, i)
		}
	}
	return out
}

// IsInitialized reports whether Init succeeded and Close has not been called.
func (s *Sampler) IsInitialized() bool {
	return s.source != nil
}

// Update samples both meshes at frameIndex and recomputes all of Data.
func (s *Sampler) Update(frameIndex int) {
	if !s.IsInitialized() {
		panic("sampler: Update before Init")
	}

	gc := s.asset.GeometryCache
	frameIndex = gc.ClampFrame(frameIndex)
	t := gc.FrameToTime(frameIndex)
	d := &s.data
	d.FrameIndex = frameIndex
	d.SampleTime = t

	s.source.tick(t, d)
	s.target.tick(t, s.asset.Alignment)

	clear(d.VertexDeltas)
	d.SingularVertices = 0
	for i := range s.mappings {
		m := &s.mappings[i]
		s.computeDeltas(s, m, s.target.positions[m.TrackIndex])
	}
	if s.debugVectors {
		s.fillDebugVectors()
	}

	for i, b := range s.bones {
		q := s.source.pose.Local[b].Rotation.Normalize()
		r := d.BoneRotations[i*4 : i*4+4]
		r[0], r[1], r[2], r[3] = q.X, q.Y, q.Z, q.W
	}
	s.source.evaluator.EvaluateCurves(t, s.curves, d.CurveValues)

	if d.SingularVertices > 0 {
		s.log.Debug("Singular skinning transforms",
			zap.Int("frame", frameIndex),
			zap.Int("vertices", d.SingularVertices))
	}
}

// fillDebugVectors stores the aligned target position of each mapped vertex.
// Unmapped vertices get their skinned position.
func (s *Sampler) fillDebugVectors() {
	d := &s.data
	copy(d.DebugVectors, d.SkinnedPositions)
	for i := range s.mappings {
		m := &s.mappings[i]
		target := s.target.positions[m.TrackIndex]
		for v, t := range m.SourceToTarget {
			if t != NoCorrespondence {
				d.DebugVectors[m.VertexOffset+v] = target[t]
			}
		}
	}
}

// Data returns the results of the last Update. The buffers are reused.
func (s *Sampler) Data() *Data { return &s.data }

// ID identifies the sampler in logs.
func (s *Sampler) ID() uuid.UUID { return s.id }

// Asset returns the sampled asset.
func (s *Sampler) Asset() *assets.Asset { return s.asset }

// DeltaMode returns the mode fixed at Init.
func (s *Sampler) DeltaMode() assets.DeltaMode { return s.deltaMode }

// NumImportedVertices returns the source vertex count across all sub-meshes.
func (s *Sampler) NumImportedVertices() int { return len(s.data.SkinnedPositions) }

// NumBones returns the number of bones feeding BoneRotations.
func (s *Sampler) NumBones() int { return len(s.bones) }

// NumCurves returns the number of curves feeding CurveValues.
func (s *Sampler) NumCurves() int { return len(s.curves) }

// NumMeshMappings returns the number of matched sub-meshes.
func (s *Sampler) NumMeshMappings() int { return len(s.mappings) }

// MeshMappings returns the mappings built at Init. Callers must not modify them.
func (s *Sampler) MeshMappings() []MeshMapping { return s.mappings }

// FailedImportedMeshNames returns sub-meshes that had no matching track.
func (s *Sampler) FailedImportedMeshNames() []string { return s.failedNames }

// NumFrames returns the number of frames in the geometry cache.
func (s *Sampler) NumFrames() int {
	if s.asset == nil {
		return 0
	}
	return s.asset.NumTrainingFrames()
}

// CalcMemUsageInBytes estimates the memory held by the sampler's buffers,
// mappings and proxies.
func (s *Sampler) CalcMemUsageInBytes() int {
	n := s.data.CalcMemUsageInBytes()
	for i := range s.mappings {
		n += len(s.mappings[i].SourceToTarget) * int32Bytes
	}
	if s.source != nil {
		n += s.source.memUsage()
	}
	if s.target != nil {
		n += s.target.memUsage()
	}
	return n
}

// Close releases both proxies. The sampler can be initialized again.
func (s *Sampler) Close() {
	s.source = nil
	s.target = nil
}
