package assets

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/Faultbox/mldeformer/pkg/formats"
	"github.com/Faultbox/mldeformer/pkg/math"
)

// Default file names written by Save.
const (
	ManifestFileName      = "deformer.yaml"
	RigFileName           = "rig.yaml"
	GeometryCacheFileName = "target.mdvc"
)

// Manifest is the on-disk description of an Asset.
type Manifest struct {
	Name              string        `yaml:"name"`
	Rig               string        `yaml:"rig"`            // relative to the manifest
	GeometryCache     string        `yaml:"geometry_cache"` // relative to the manifest
	Alignment         transformFile `yaml:"alignment"`
	DeltaCutoffLength float32       `yaml:"delta_cutoff_length"`
	DeltaMode         string        `yaml:"delta_mode"`
	BoneIncludeList   []string      `yaml:"bone_include_list,omitempty"`
	CurveIncludeList  []string      `yaml:"curve_include_list,omitempty"`
}

type transformFile struct {
	Translation [3]float32 `yaml:"translation"`
	Rotation    [4]float32 `yaml:"rotation"` // x, y, z, w
	Scale       [3]float32 `yaml:"scale"`
}

func (t transformFile) transform() math.Transform {
	tr := math.Transform{
		Translation: math.V3(t.Translation),
		Rotation:    math.Quat{X: t.Rotation[0], Y: t.Rotation[1], Z: t.Rotation[2], W: t.Rotation[3]},
		Scale:       math.V3(t.Scale),
	}
	// Omitted fields decode as zero; treat them as identity.
	if tr.Rotation == (math.Quat{}) {
		tr.Rotation = math.QuatIdentity()
	}
	if tr.Scale == (math.Vec3{}) {
		tr.Scale = math.Vec3{X: 1, Y: 1, Z: 1}
	}
	tr.Rotation = tr.Rotation.Normalize()
	return tr
}

func newTransformFile(t math.Transform) transformFile {
	return transformFile{
		Translation: t.Translation.Array(),
		Rotation:    t.Rotation.Array(),
		Scale:       t.Scale.Array(),
	}
}

type rigFile struct {
	Name      string     `yaml:"name"`
	Bones     []boneFile `yaml:"bones"`
	Meshes    []meshFile `yaml:"meshes"`
	Animation animFile   `yaml:"animation"`
}

type boneFile struct {
	Name   string        `yaml:"name"`
	Parent string        `yaml:"parent,omitempty"`
	Bind   transformFile `yaml:"bind"`
}

type meshFile struct {
	Name       string         `yaml:"name"`
	Positions  [][3]float32   `yaml:"positions"`
	Influences [][]weightFile `yaml:"influences"`
}

type weightFile struct {
	Bone   string  `yaml:"bone"`
	Weight float32 `yaml:"weight"`
}

type animFile struct {
	Name      string      `yaml:"name"`
	FrameRate float32     `yaml:"frame_rate"`
	Duration  float32     `yaml:"duration"`
	Tracks    []trackFile `yaml:"tracks"`
	Curves    []curveFile `yaml:"curves,omitempty"`
}

type trackFile struct {
	Bone string         `yaml:"bone"`
	Keys []trackKeyFile `yaml:"keys"`
}

type trackKeyFile struct {
	Time          float32 `yaml:"time"`
	transformFile `yaml:",inline"`
}

type curveFile struct {
	Name string     `yaml:"name"`
	Keys []CurveKey `yaml:"keys"`
}

// LoadManifest reads a manifest and everything it references.
func LoadManifest(path string) (*Asset, error) {
	var m Manifest
	if err := readYAML(path, &m); err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	dir := filepath.Dir(path)

	a := &Asset{
		Name:              m.Name,
		Alignment:         m.Alignment.transform(),
		DeltaCutoffLength: m.DeltaCutoffLength,
		BoneIncludeList:   m.BoneIncludeList,
		CurveIncludeList:  m.CurveIncludeList,
	}
	if m.DeltaMode != "" {
		mode, err := ParseDeltaMode(m.DeltaMode)
		if err != nil {
			return nil, fmt.Errorf("manifest %s: %w", path, err)
		}
		a.DeltaMode = mode
	}

	// Missing parts are left nil; the cache reports them through Validate.
	if m.Rig != "" {
		mesh, anim, err := loadRig(resolve(dir, m.Rig))
		if err != nil {
			return nil, err
		}
		a.SkeletalMesh = mesh
		a.Anim = anim
	}
	if m.GeometryCache != "" {
		gcPath := resolve(dir, m.GeometryCache)
		vc, err := formats.ParseVertexCacheFile(gcPath)
		if err != nil {
			return nil, fmt.Errorf("geometry cache %s: %w", gcPath, err)
		}
		a.GeometryCache = GeometryCacheFromVCache(filepath.Base(gcPath), vc)
	}

	return a, nil
}

func loadRig(path string) (*SkeletalMesh, *AnimSequence, error) {
	var rf rigFile
	if err := readYAML(path, &rf); err != nil {
		return nil, nil, fmt.Errorf("reading rig: %w", err)
	}

	mesh := &SkeletalMesh{Name: rf.Name}
	boneIndex := make(map[string]int, len(rf.Bones))
	for i, bf := range rf.Bones {
		parent := -1
		if bf.Parent != "" {
			p, ok := boneIndex[bf.Parent]
			if !ok {
				return nil, nil, fmt.Errorf("%w: bone %q: parent %q must be listed before it", ErrInvalidRig, bf.Name, bf.Parent)
			}
			parent = p
		}
		boneIndex[bf.Name] = i
		mesh.Skeleton.Bones = append(mesh.Skeleton.Bones, Bone{
			Name:   bf.Name,
			Parent: parent,
			Bind:   bf.Bind.transform(),
		})
	}

	for _, mf := range rf.Meshes {
		sm := SubMesh{
			Name:       mf.Name,
			Positions:  make([]math.Vec3, len(mf.Positions)),
			Influences: make([][]Influence, len(mf.Influences)),
		}
		for v, p := range mf.Positions {
			sm.Positions[v] = math.V3(p)
		}
		for v, weights := range mf.Influences {
			for _, w := range weights {
				b, ok := boneIndex[w.Bone]
				if !ok {
					return nil, nil, fmt.Errorf("%w: mesh %q vertex %d: unknown bone %q", ErrInvalidRig, mf.Name, v, w.Bone)
				}
				sm.Influences[v] = append(sm.Influences[v], Influence{Bone: b, Weight: w.Weight})
			}
		}
		mesh.SubMeshes = append(mesh.SubMeshes, sm)
	}
	if err := mesh.Validate(); err != nil {
		return nil, nil, err
	}

	anim := &AnimSequence{
		Name:      rf.Animation.Name,
		FrameRate: rf.Animation.FrameRate,
		Duration:  rf.Animation.Duration,
	}
	for _, tf := range rf.Animation.Tracks {
		track := BoneTrack{Bone: tf.Bone, Keys: make([]TransformKey, len(tf.Keys))}
		for k, key := range tf.Keys {
			track.Keys[k] = TransformKey{Time: key.Time, Transform: key.transform()}
		}
		anim.BoneTracks = append(anim.BoneTracks, track)
	}
	for _, cf := range rf.Animation.Curves {
		anim.Curves = append(anim.Curves, CurveTrack{Name: cf.Name, Keys: cf.Keys})
	}

	return mesh, anim, nil
}

// Save writes a manifest, rig and geometry cache for a into dir and returns
// the manifest path.
func Save(dir string, a *Asset) (string, error) {
	if err := a.Validate(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	m := Manifest{
		Name:              a.Name,
		Rig:               RigFileName,
		GeometryCache:     GeometryCacheFileName,
		Alignment:         newTransformFile(a.Alignment),
		DeltaCutoffLength: a.DeltaCutoffLength,
		DeltaMode:         a.DeltaMode.String(),
		BoneIncludeList:   a.BoneIncludeList,
		CurveIncludeList:  a.CurveIncludeList,
	}

	if err := writeYAML(filepath.Join(dir, RigFileName), newRigFile(a.SkeletalMesh, a.Anim)); err != nil {
		return "", err
	}
	if err := formats.WriteVertexCacheFile(filepath.Join(dir, GeometryCacheFileName), a.GeometryCache.VCache()); err != nil {
		return "", err
	}
	manifestPath := filepath.Join(dir, ManifestFileName)
	if err := writeYAML(manifestPath, &m); err != nil {
		return "", err
	}
	return manifestPath, nil
}

func newRigFile(mesh *SkeletalMesh, anim *AnimSequence) *rigFile {
	bones := mesh.Skeleton.Bones
	rf := &rigFile{Name: mesh.Name}
	for _, b := range bones {
		bf := boneFile{Name: b.Name, Bind: newTransformFile(b.Bind)}
		if b.Parent >= 0 {
			bf.Parent = bones[b.Parent].Name
		}
		rf.Bones = append(rf.Bones, bf)
	}
	for i := range mesh.SubMeshes {
		sm := &mesh.SubMeshes[i]
		mf := meshFile{
			Name:       sm.Name,
			Positions:  make([][3]float32, len(sm.Positions)),
			Influences: make([][]weightFile, len(sm.Influences)),
		}
		for v, p := range sm.Positions {
			mf.Positions[v] = p.Array()
		}
		for v, infl := range sm.Influences {
			for _, in := range infl {
				mf.Influences[v] = append(mf.Influences[v], weightFile{Bone: bones[in.Bone].Name, Weight: in.Weight})
			}
		}
		rf.Meshes = append(rf.Meshes, mf)
	}

	rf.Animation = animFile{Name: anim.Name, FrameRate: anim.FrameRate, Duration: anim.Duration}
	for _, track := range anim.BoneTracks {
		tf := trackFile{Bone: track.Bone}
		for _, key := range track.Keys {
			tf.Keys = append(tf.Keys, trackKeyFile{Time: key.Time, transformFile: newTransformFile(key.Transform)})
		}
		rf.Animation.Tracks = append(rf.Animation.Tracks, tf)
	}
	for _, curve := range anim.Curves {
		rf.Animation.Curves = append(rf.Animation.Curves, curveFile{Name: curve.Name, Keys: curve.Keys})
	}
	return rf
}

func resolve(dir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

func readYAML(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, v)
}

func writeYAML(path string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
