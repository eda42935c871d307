// Package synth builds a procedural bending-cylinder rig and a matching
// geometry cache.
package synth

import (
	"fmt"

	"github.com/chewxy/math32"

	"github.com/Faultbox/mldeformer/internal/assets"
	"github.com/Faultbox/mldeformer/internal/engine/pose"
	"github.com/Faultbox/mldeformer/internal/engine/skin"
	"github.com/Faultbox/mldeformer/pkg/math"
)

// Names used by the generated rig.
const (
	BodyMeshName  = "Body"
	BodyTrackName = "body" // differs in case from the mesh on purpose
	CapMeshName   = "Cap"
	BulgeCurve    = "bulge"
)

// Options controls the generated rig.
type Options struct {
	Name      string
	Bones     int // chain length
	Rings     int // vertex rings along the chain, plus one
	Segments  int // vertices per ring
	Radius    float32
	Length    float32
	Frames    int
	FrameRate float32
	// BendAngle is each joint's rotation about Z on the last frame, in radians.
	BendAngle float32
	// BulgeAmplitude scales the radial offset the bulge curve adds to the target.
	BulgeAmplitude float32
	// TargetOffset moves the geometry cache away from the rig. The asset's
	// alignment undoes it.
	TargetOffset math.Vec3
	// ReverseTrack stores the track vertices in reverse order with imported
	// vertex numbers.
	ReverseTrack bool
	// CapMesh adds a sub-mesh the geometry cache has no track for.
	CapMesh bool

	DeltaMode         assets.DeltaMode
	DeltaCutoffLength float32
}

// DefaultOptions returns a small rig suitable for tests.
func DefaultOptions() Options {
	return Options{
		Name:           "bending_cylinder",
		Bones:          3,
		Rings:          6,
		Segments:       8,
		Radius:         0.5,
		Length:         3,
		Frames:         10,
		FrameRate:      30,
		BendAngle:      0.6,
		BulgeAmplitude: 0.1,
		ReverseTrack:   true,
	}
}

func (o Options) validate() error {
	if o.Bones < 1 || o.Rings < 1 || o.Segments < 3 || o.Frames < 1 || o.FrameRate <= 0 {
		return fmt.Errorf("synth: invalid options %+v", o)
	}
	return nil
}

func (o Options) duration() float32 {
	return float32(o.Frames-1) / o.FrameRate
}

// BulgeWeight returns the bulge curve value on frame.
func (o Options) BulgeWeight(frame int) float32 {
	if o.Frames <= 1 {
		return 0
	}
	return float32(frame) / float32(o.Frames-1)
}

// BulgeOffset returns the bind-space offset the target adds to a body vertex
// at bind position p on frame. It equals the pre-skinning delta of that vertex.
func (o Options) BulgeOffset(p math.Vec3, frame int) math.Vec3 {
	radial := math.Vec3{X: p.X, Z: p.Z}.Normalize()
	return radial.Scale(o.BulgeAmplitude * o.BulgeWeight(frame))
}

// Build generates the asset.
func Build(o Options) (*assets.Asset, error) {
	if err := o.validate(); err != nil {
		return nil, err
	}

	mesh := buildMesh(o)
	anim := buildAnim(o)
	gc := buildTarget(o, mesh, anim)

	align := math.TransformIdentity()
	align.Translation = o.TargetOffset
	return &assets.Asset{
		Name:              o.Name,
		SkeletalMesh:      mesh,
		GeometryCache:     gc,
		Anim:              anim,
		Alignment:         align,
		DeltaCutoffLength: o.DeltaCutoffLength,
		DeltaMode:         o.DeltaMode,
	}, nil
}

// Write builds the asset and saves it into dir, returning the manifest path.
func Write(dir string, o Options) (string, error) {
	a, err := Build(o)
	if err != nil {
		return "", err
	}
	return assets.Save(dir, a)
}

func boneName(i int) string {
	return fmt.Sprintf("bone_%02d", i)
}

func buildMesh(o Options) *assets.SkeletalMesh {
	segLen := o.Length / float32(o.Bones)

	mesh := &assets.SkeletalMesh{Name: o.Name}
	for i := 0; i < o.Bones; i++ {
		bind := math.TransformIdentity()
		parent := i - 1
		if i > 0 {
			bind.Translation = math.Vec3{Y: segLen}
		}
		mesh.Skeleton.Bones = append(mesh.Skeleton.Bones, assets.Bone{Name: boneName(i), Parent: parent, Bind: bind})
	}

	body := assets.SubMesh{Name: BodyMeshName}
	for r := 0; r <= o.Rings; r++ {
		y := o.Length * float32(r) / float32(o.Rings)
		infl := ringInfluences(y/segLen, o.Bones)
		for s := 0; s < o.Segments; s++ {
			angle := 2 * math32.Pi * float32(s) / float32(o.Segments)
			body.Positions = append(body.Positions, math.Vec3{
				X: o.Radius * math32.Cos(angle),
				Y: y,
				Z: o.Radius * math32.Sin(angle),
			})
			body.Influences = append(body.Influences, infl)
		}
	}
	mesh.SubMeshes = append(mesh.SubMeshes, body)

	if o.CapMesh {
		tip := []assets.Influence{{Bone: o.Bones - 1, Weight: 1}}
		mesh.SubMeshes = append(mesh.SubMeshes, assets.SubMesh{
			Name:       CapMeshName,
			Positions:  []math.Vec3{{Y: o.Length}, {X: 0.1, Y: o.Length}, {Z: 0.1, Y: o.Length}},
			Influences: [][]assets.Influence{tip, tip, tip},
		})
	}
	return mesh
}

// ringInfluences weights a ring at chain parameter u to the two nearest bones.
func ringInfluences(u float32, bones int) []assets.Influence {
	b := int(math32.Floor(u))
	if b >= bones-1 {
		return []assets.Influence{{Bone: bones - 1, Weight: 1}}
	}
	frac := u - float32(b)
	if frac == 0 {
		return []assets.Influence{{Bone: b, Weight: 1}}
	}
	return []assets.Influence{
		{Bone: b, Weight: 1 - frac},
		{Bone: b + 1, Weight: frac},
	}
}

func buildAnim(o Options) *assets.AnimSequence {
	dur := o.duration()
	anim := &assets.AnimSequence{
		Name:      o.Name + "_bend",
		FrameRate: o.FrameRate,
		Duration:  dur,
		Curves: []assets.CurveTrack{{
			Name: BulgeCurve,
			Keys: []assets.CurveKey{{Time: 0, Value: 0}, {Time: dur, Value: 1}},
		}},
	}

	segLen := o.Length / float32(o.Bones)
	for i := 1; i < o.Bones; i++ {
		rest := math.TransformIdentity()
		rest.Translation = math.Vec3{Y: segLen}
		bent := rest
		bent.Rotation = math.QuatFromAxisAngle(math.Vec3{Z: 1}, o.BendAngle)
		anim.BoneTracks = append(anim.BoneTracks, assets.BoneTrack{
			Bone: boneName(i),
			Keys: []assets.TransformKey{{Time: 0, Transform: rest}, {Time: dur, Transform: bent}},
		})
	}
	return anim
}

// buildTarget skins the bind mesh plus the bulge offset on every frame.
func buildTarget(o Options, mesh *assets.SkeletalMesh, anim *assets.AnimSequence) *assets.GeometryCache {
	gc := &assets.GeometryCache{
		Name:      o.Name + "_target",
		FrameRate: o.FrameRate,
		NumFrames: o.Frames,
	}

	skel := &mesh.Skeleton
	eval := pose.NewEvaluator(skel, anim)
	p := pose.New(len(skel.Bones))
	invBind := pose.InverseBindMatrices(skel)
	matrices := make([]math.Mat4, len(skel.Bones))

	body := &mesh.SubMeshes[0]
	n := len(body.Positions)
	track := assets.GeometryTrack{Name: BodyTrackName, Frames: make([][]math.Vec3, o.Frames)}
	if o.ReverseTrack {
		track.ImportedVertexNumbers = make([]int32, n)
		for i := range track.ImportedVertexNumbers {
			track.ImportedVertexNumbers[i] = int32(n - 1 - i)
		}
	}

	for f := 0; f < o.Frames; f++ {
		eval.Evaluate(gc.FrameToTime(f), p)
		skin.SkinningMatrices(p.Component, invBind, matrices)

		frame := make([]math.Vec3, n)
		for v, bind := range body.Positions {
			displaced := bind.Add(o.BulgeOffset(bind, f))
			posed := skin.SkinVertex(displaced, body.Influences[v], matrices).Sub(o.TargetOffset)
			slot := v
			if o.ReverseTrack {
				slot = n - 1 - v
			}
			frame[slot] = posed
		}
		track.Frames[f] = frame
	}
	gc.Tracks = append(gc.Tracks, track)
	return gc
}
