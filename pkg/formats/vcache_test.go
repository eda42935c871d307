package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"path/filepath"
	"testing"
)

func makeTestVCache() *VCache {
	return &VCache{
		FrameRate:  30,
		StartTime:  0.5,
		FrameCount: 2,
		Tracks: []VCacheTrack{
			{
				Name: "body",
				Frames: [][][3]float32{
					{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
					{{0, 0, 1}, {1, 0, 1}, {0, 1, 1}},
				},
			},
			{
				Name:                  "head",
				ImportedVertexNumbers: []int32{1, 0},
				Frames: [][][3]float32{
					{{5, 5, 5}, {6, 6, 6}},
					{{7, 7, 7}, {8, 8, 8}},
				},
			},
		},
	}
}

func encodeVCache(t *testing.T, vc *VCache) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := WriteVertexCache(&buf, vc); err != nil {
		t.Fatalf("WriteVertexCache failed: %v", err)
	}
	return buf.Bytes()
}

func trackByName(vc *VCache, name string) *VCacheTrack {
	for i := range vc.Tracks {
		if vc.Tracks[i].Name == name {
			return &vc.Tracks[i]
		}
	}
	return nil
}

func TestParseVertexCache_MagicValidation(t *testing.T) {
	valid := encodeVCache(t, makeTestVCache())
	bad := append([]byte("XXXX"), valid[4:]...)

	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{"valid magic", valid, nil},
		{"invalid magic", bad, ErrInvalidVCacheMagic},
		{"empty data", []byte{}, ErrTruncatedVCacheData},
		{"truncated header", []byte{'M', 'D', 'V'}, ErrTruncatedVCacheData},
		{"truncated body", valid[:len(valid)-7], ErrTruncatedVCacheData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseVertexCache(tt.data)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("got error %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseVertexCache_Version(t *testing.T) {
	data := encodeVCache(t, makeTestVCache())
	data[4] = 2

	_, err := ParseVertexCache(data)
	if !errors.Is(err, ErrUnsupportedVCacheVersion) {
		t.Errorf("got error %v, want %v", err, ErrUnsupportedVCacheVersion)
	}
}

// emptyTracksVCache encodes a header followed by tracks that declare no
// vertices and no vertex numbers.
func emptyTracksVCache(frameCount int32, trackCount int) []byte {
	var buf bytes.Buffer
	buf.WriteString(vcacheMagic)
	buf.WriteByte(CurrentVCacheVersion.Major)
	buf.WriteByte(CurrentVCacheVersion.Minor)
	binary.Write(&buf, binary.LittleEndian, float32(30))
	binary.Write(&buf, binary.LittleEndian, float32(0))
	binary.Write(&buf, binary.LittleEndian, frameCount)
	binary.Write(&buf, binary.LittleEndian, int32(trackCount))
	for i := 0; i < trackCount; i++ {
		buf.Write(make([]byte, vcacheNameLen))
		binary.Write(&buf, binary.LittleEndian, int32(0))
		buf.WriteByte(0)
	}
	return buf.Bytes()
}

func TestParseVertexCache_InvalidCounts(t *testing.T) {
	negativeFrames := encodeVCache(t, makeTestVCache())
	// frame count lives after magic(4) + version(2) + rate(4) + start(4)
	binary.LittleEndian.PutUint32(negativeFrames[14:], uint32(0xFFFFFFFF))

	tooManyTracks := encodeVCache(t, makeTestVCache())
	binary.LittleEndian.PutUint32(tooManyTracks[18:], uint32(vcacheMaxTracks+1))

	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{"negative frame count", negativeFrames, ErrInvalidVCacheCount},
		{"too many tracks", tooManyTracks, ErrInvalidVCacheCount},
		{"frames without vertices", emptyTracksVCache(vcacheMaxFrames, 64), ErrInvalidVCacheCount},
		{"empty tracks without frames", emptyTracksVCache(0, 2), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vc, err := ParseVertexCache(tt.data)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if len(vc.Tracks) != 2 {
					t.Errorf("track count = %d, want 2", len(vc.Tracks))
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("got error %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseVertexCache_Structure(t *testing.T) {
	want := makeTestVCache()
	vc, err := ParseVertexCache(encodeVCache(t, want))
	if err != nil {
		t.Fatalf("ParseVertexCache failed: %v", err)
	}

	if vc.Version != CurrentVCacheVersion {
		t.Errorf("version = %s, want %s", vc.Version, CurrentVCacheVersion)
	}
	if vc.FrameRate != 30 || vc.StartTime != 0.5 || vc.FrameCount != 2 {
		t.Errorf("header = (%v, %v, %v), want (30, 0.5, 2)", vc.FrameRate, vc.StartTime, vc.FrameCount)
	}
	if len(vc.Tracks) != 2 {
		t.Fatalf("track count = %d, want 2", len(vc.Tracks))
	}

	body := trackByName(vc, "body")
	if body == nil {
		t.Fatal("body track not found")
	}
	if body.ImportedVertexNumbers != nil {
		t.Errorf("body should have no vertex numbers, got %v", body.ImportedVertexNumbers)
	}
	if body.Frames[1][2] != [3]float32{0, 1, 1} {
		t.Errorf("body frame 1 vertex 2 = %v, want (0, 1, 1)", body.Frames[1][2])
	}

	head := trackByName(vc, "head")
	if head == nil {
		t.Fatal("head track not found")
	}
	if len(head.ImportedVertexNumbers) != 2 || head.ImportedVertexNumbers[0] != 1 {
		t.Errorf("head vertex numbers = %v, want [1 0]", head.ImportedVertexNumbers)
	}

	if got := body.VertexCount() + head.VertexCount(); got != 5 {
		t.Errorf("total vertex count = %d, want 5", got)
	}
}

func TestWriteVertexCache_Mismatch(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(vc *VCache)
	}{
		{"frame count", func(vc *VCache) { vc.FrameCount = 3 }},
		{"ragged frame", func(vc *VCache) { vc.Tracks[0].Frames[1] = vc.Tracks[0].Frames[1][:2] }},
		{"no vertices", func(vc *VCache) { vc.Tracks[0].Frames = [][][3]float32{{}, {}} }},
		{"vertex numbers", func(vc *VCache) { vc.Tracks[1].ImportedVertexNumbers = []int32{0} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vc := makeTestVCache()
			tt.mutate(vc)
			var buf bytes.Buffer
			if err := WriteVertexCache(&buf, vc); !errors.Is(err, ErrInvalidVCacheCount) {
				t.Errorf("got error %v, want %v", err, ErrInvalidVCacheCount)
			}
		})
	}
}

func TestVertexCacheFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "target.mdvc")
	if err := WriteVertexCacheFile(path, makeTestVCache()); err != nil {
		t.Fatalf("WriteVertexCacheFile failed: %v", err)
	}

	vc, err := ParseVertexCacheFile(path)
	if err != nil {
		t.Fatalf("ParseVertexCacheFile failed: %v", err)
	}
	if len(vc.Tracks) != 2 {
		t.Errorf("track count = %d, want 2", len(vc.Tracks))
	}

	if _, err := ParseVertexCacheFile(filepath.Join(t.TempDir(), "missing.mdvc")); err == nil {
		t.Error("expected error for missing file")
	}
}
