package assets

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Faultbox/mldeformer/pkg/math"
)

// makeTestAsset builds a two-bone rig with one sub-mesh of three vertices.
func makeTestAsset() *Asset {
	root := math.TransformIdentity()
	child := math.TransformIdentity()
	child.Translation = math.Vec3{Y: 1}

	mesh := &SkeletalMesh{
		Name: "rig",
		Skeleton: Skeleton{Bones: []Bone{
			{Name: "root", Parent: -1, Bind: root},
			{Name: "tip", Parent: 0, Bind: child},
		}},
		SubMeshes: []SubMesh{{
			Name:      "Body",
			Positions: []math.Vec3{{X: 0}, {X: 1, Y: 1}, {X: 0, Y: 2}},
			Influences: [][]Influence{
				{{Bone: 0, Weight: 1}},
				{{Bone: 0, Weight: 0.5}, {Bone: 1, Weight: 0.5}},
				{{Bone: 1, Weight: 1}},
			},
		}},
	}

	bent := child
	bent.Rotation = math.QuatFromAxisAngle(math.Vec3{Z: 1}, 0.5)
	anim := &AnimSequence{
		Name:      "bend",
		FrameRate: 10,
		Duration:  0.2,
		BoneTracks: []BoneTrack{{
			Bone: "tip",
			Keys: []TransformKey{{Time: 0, Transform: child}, {Time: 0.2, Transform: bent}},
		}},
		Curves: []CurveTrack{{Name: "bulge", Keys: []CurveKey{{Time: 0, Value: 0}, {Time: 0.2, Value: 1}}}},
	}

	frames := make([][]math.Vec3, 3)
	for f := range frames {
		frames[f] = []math.Vec3{{X: float32(f)}, {X: 1, Y: 1}, {Y: 2}}
	}
	gc := &GeometryCache{
		Name:      "target",
		FrameRate: 10,
		NumFrames: 3,
		Tracks:    []GeometryTrack{{Name: "body", Frames: frames}},
	}

	align := math.TransformIdentity()
	align.Translation = math.Vec3{Z: 2}
	return &Asset{
		Name:              "test",
		SkeletalMesh:      mesh,
		GeometryCache:     gc,
		Anim:              anim,
		Alignment:         align,
		DeltaCutoffLength: 5,
		DeltaMode:         DeltaModePostSkinning,
		CurveIncludeList:  []string{"bulge"},
	}
}

func TestAssetValidate(t *testing.T) {
	a := makeTestAsset()
	if err := a.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	empty := &Asset{}
	err := empty.Validate()
	for _, want := range []error{ErrMissingSkeletalMesh, ErrMissingGeometryCache, ErrMissingAnimation} {
		if !errors.Is(err, want) {
			t.Errorf("Validate() = %v, want it to wrap %v", err, want)
		}
	}
	if empty.NumTrainingFrames() != 0 {
		t.Errorf("NumTrainingFrames() = %d, want 0", empty.NumTrainingFrames())
	}
}

func TestSkeletalMeshValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(m *SkeletalMesh)
	}{
		{"parent after child", func(m *SkeletalMesh) { m.Skeleton.Bones[0].Parent = 1 }},
		{"missing influences", func(m *SkeletalMesh) { m.SubMeshes[0].Influences = m.SubMeshes[0].Influences[:2] }},
		{"bone out of range", func(m *SkeletalMesh) { m.SubMeshes[0].Influences[0][0].Bone = 7 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := makeTestAsset().SkeletalMesh
			tt.mutate(m)
			if err := m.Validate(); !errors.Is(err, ErrInvalidRig) {
				t.Errorf("Validate() = %v, want %v", err, ErrInvalidRig)
			}
		})
	}
}

func TestVertexOffsets(t *testing.T) {
	m := makeTestAsset().SkeletalMesh
	m.SubMeshes = append(m.SubMeshes, SubMesh{Name: "Extra", Positions: make([]math.Vec3, 4), Influences: make([][]Influence, 4)})

	offsets := m.VertexOffsets()
	if len(offsets) != 2 || offsets[0] != 0 || offsets[1] != 3 {
		t.Errorf("VertexOffsets() = %v, want [0 3]", offsets)
	}
	if got := m.NumImportedVertices(); got != 7 {
		t.Errorf("NumImportedVertices() = %d, want 7", got)
	}
}

func TestParseDeltaMode(t *testing.T) {
	tests := []struct {
		in      string
		want    DeltaMode
		wantErr bool
	}{
		{"pre_skinning", DeltaModePreSkinning, false},
		{"POST_SKINNING", DeltaModePostSkinning, false},
		{"post", DeltaModePostSkinning, false},
		{"sideways", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseDeltaMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDeltaMode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDeltaMode(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestGeometryCacheTime(t *testing.T) {
	g := &GeometryCache{FrameRate: 30, StartTime: 1, NumFrames: 31}

	if got := g.FrameToTime(15); got != 1.5 {
		t.Errorf("FrameToTime(15) = %v, want 1.5", got)
	}
	tests := []struct {
		time float32
		want int
	}{
		{1, 0},
		{1.5, 15},
		{1.51, 15},
		{0, 0},
		{5, 30},
	}
	for _, tt := range tests {
		if got := g.TimeToFrame(tt.time); got != tt.want {
			t.Errorf("TimeToFrame(%v) = %d, want %d", tt.time, got, tt.want)
		}
	}
}

func TestGeometryCacheDuration(t *testing.T) {
	tests := []struct {
		g    GeometryCache
		want float32
	}{
		{GeometryCache{FrameRate: 30, NumFrames: 31}, 1},
		{GeometryCache{FrameRate: 0, NumFrames: 31}, 0},
		{GeometryCache{FrameRate: 24, NumFrames: 0}, 0},
	}

	for _, tt := range tests {
		if got := tt.g.Duration(); got != tt.want {
			t.Errorf("Duration(%v fps, %d frames) = %v, want %v", tt.g.FrameRate, tt.g.NumFrames, got, tt.want)
		}
	}
}

func TestSamplePositions(t *testing.T) {
	g := makeTestAsset().GeometryCache
	out := make([]math.Vec3, 3)

	tests := []struct {
		time  float32
		wantX float32
	}{
		{0, 0},
		{0.1, 1},
		{0.15, 1.5},
		{0.10000001, 1},
		{-1, 0},
		{9, 2},
	}
	for _, tt := range tests {
		g.SamplePositions(0, tt.time, out)
		if d := out[0].X - tt.wantX; d > 1e-4 || d < -1e-4 {
			t.Errorf("SamplePositions(t=%v) x = %v, want %v", tt.time, out[0].X, tt.wantX)
		}
		if out[2] != (math.Vec3{Y: 2}) {
			t.Errorf("SamplePositions(t=%v) static vertex moved to %v", tt.time, out[2])
		}
	}
}

func TestSaveAndLoadManifest(t *testing.T) {
	want := makeTestAsset()
	path, err := Save(t.TempDir(), want)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest failed: %v", err)
	}
	if err := got.Validate(); err != nil {
		t.Fatalf("loaded asset invalid: %v", err)
	}

	if got.DeltaMode != DeltaModePostSkinning {
		t.Errorf("DeltaMode = %v, want post_skinning", got.DeltaMode)
	}
	if got.DeltaCutoffLength != 5 {
		t.Errorf("DeltaCutoffLength = %v, want 5", got.DeltaCutoffLength)
	}
	if got.Alignment.Translation != (math.Vec3{Z: 2}) {
		t.Errorf("Alignment translation = %v, want (0, 0, 2)", got.Alignment.Translation)
	}
	if len(got.CurveIncludeList) != 1 || got.CurveIncludeList[0] != "bulge" {
		t.Errorf("CurveIncludeList = %v, want [bulge]", got.CurveIncludeList)
	}

	bones := got.SkeletalMesh.Skeleton.Bones
	if len(bones) != 2 || bones[1].Parent != 0 || bones[1].Bind.Translation != (math.Vec3{Y: 1}) {
		t.Errorf("bones = %+v", bones)
	}
	sm := got.SkeletalMesh.SubMeshes[0]
	if sm.Name != "Body" || len(sm.Positions) != 3 || sm.Influences[1][1].Bone != 1 {
		t.Errorf("sub-mesh = %+v", sm)
	}

	if len(got.Anim.BoneTracks) != 1 || len(got.Anim.BoneTracks[0].Keys) != 2 {
		t.Fatalf("bone tracks = %+v", got.Anim.BoneTracks)
	}
	if got.Anim.CurveIndex("bulge") != 0 || got.Anim.Curves[0].Keys[1].Value != 1 {
		t.Errorf("curves = %+v", got.Anim.Curves)
	}

	gc := got.GeometryCache
	if gc.NumFrames != 3 || gc.TrackIndex("body") != 0 || gc.Tracks[0].Frames[2][0] != (math.Vec3{X: 2}) {
		t.Errorf("geometry cache = %+v", gc)
	}
}

func TestLoadManifestPartial(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ManifestFileName)
	if err := os.WriteFile(path, []byte("name: partial\ndelta_mode: pre\n"), 0644); err != nil {
		t.Fatal(err)
	}

	a, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest failed: %v", err)
	}
	if !errors.Is(a.Validate(), ErrMissingSkeletalMesh) {
		t.Errorf("Validate() = %v, want missing skeletal mesh", a.Validate())
	}
	if a.Alignment != math.TransformIdentity() {
		t.Errorf("default alignment = %+v, want identity", a.Alignment)
	}
}

func TestLoadManifestErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := LoadManifest(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing manifest")
	}

	bad := filepath.Join(dir, "bad.yaml")
	os.WriteFile(bad, []byte("delta_mode: sideways\n"), 0644)
	if _, err := LoadManifest(bad); err == nil {
		t.Error("expected error for unknown delta mode")
	}

	rig := filepath.Join(dir, "rig.yaml")
	os.WriteFile(rig, []byte("bones:\n  - name: a\n    parent: b\n  - name: b\n"), 0644)
	orphan := filepath.Join(dir, "orphan.yaml")
	os.WriteFile(orphan, []byte("rig: rig.yaml\n"), 0644)
	if _, err := LoadManifest(orphan); !errors.Is(err, ErrInvalidRig) {
		t.Errorf("LoadManifest() = %v, want %v", err, ErrInvalidRig)
	}
}

func TestManagerCaching(t *testing.T) {
	path, err := Save(t.TempDir(), makeTestAsset())
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	m := NewManager()
	defer m.Close()

	first, err := m.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	second, _ := m.Load(path)
	if first != second {
		t.Error("second Load should return the cached asset")
	}
	if hits, misses := m.Stats(); hits != 1 || misses != 1 {
		t.Errorf("Stats() = (%d, %d), want (1, 1)", hits, misses)
	}

	m.Invalidate(path)
	third, _ := m.Load(path)
	if third == first {
		t.Error("Load after Invalidate should re-read the manifest")
	}
}
