// MDVC (vertex cache) format: per-frame vertex positions of a geometry cache.
package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// MDVC format errors.
var (
	ErrInvalidVCacheMagic       = errors.New("invalid vertex cache magic: expected 'MDVC'")
	ErrUnsupportedVCacheVersion = errors.New("unsupported vertex cache version")
	ErrTruncatedVCacheData      = errors.New("truncated vertex cache data")
	ErrInvalidVCacheCount       = errors.New("invalid vertex cache count")
)

const (
	vcacheMagic       = "MDVC"
	vcacheNameLen     = 64
	vcacheMaxFrames   = 1 << 20
	vcacheMaxTracks   = 4096
	vcacheMaxVertices = 1 << 24
)

// VCacheVersion represents the vertex cache file version.
type VCacheVersion struct {
	Major uint8
	Minor uint8
}

// String returns the version as "Major.Minor".
func (v VCacheVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// CurrentVCacheVersion is written by WriteVertexCache.
var CurrentVCacheVersion = VCacheVersion{Major: 1, Minor: 0}

// VCacheTrack is one animated mesh of the cache.
type VCacheTrack struct {
	Name string
	// ImportedVertexNumbers maps each track vertex to the source mesh
	// vertex it was exported from. Empty means identity order.
	ImportedVertexNumbers []int32
	// Frames holds FrameCount position arrays of equal length.
	Frames [][][3]float32
}

// VertexCount returns the number of vertices per frame.
func (t *VCacheTrack) VertexCount() int {
	if len(t.Frames) == 0 {
		return len(t.ImportedVertexNumbers)
	}
	return len(t.Frames[0])
}

// VCache represents a parsed MDVC file.
type VCache struct {
	Version    VCacheVersion
	FrameRate  float32 // frames per second
	StartTime  float32 // seconds
	FrameCount int32
	Tracks     []VCacheTrack
}

// ParseVertexCache parses MDVC data from a byte slice.
func ParseVertexCache(data []byte) (*VCache, error) {
	if len(data) < 22 {
		return nil, ErrTruncatedVCacheData
	}

	r := bytes.NewReader(data)

	magic := make([]byte, 4)
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, ErrTruncatedVCacheData
	}
	if string(magic) != vcacheMagic {
		return nil, ErrInvalidVCacheMagic
	}

	vc := &VCache{}
	binary.Read(r, binary.LittleEndian, &vc.Version.Major)
	binary.Read(r, binary.LittleEndian, &vc.Version.Minor)

	if vc.Version.Major != CurrentVCacheVersion.Major {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedVCacheVersion, vc.Version)
	}

	binary.Read(r, binary.LittleEndian, &vc.FrameRate)
	binary.Read(r, binary.LittleEndian, &vc.StartTime)
	binary.Read(r, binary.LittleEndian, &vc.FrameCount)

	var trackCount int32
	if err := binary.Read(r, binary.LittleEndian, &trackCount); err != nil {
		return nil, ErrTruncatedVCacheData
	}

	if vc.FrameCount < 0 || vc.FrameCount > vcacheMaxFrames {
		return nil, fmt.Errorf("%w: frame count %d", ErrInvalidVCacheCount, vc.FrameCount)
	}
	if trackCount < 0 || trackCount > vcacheMaxTracks {
		return nil, fmt.Errorf("%w: track count %d", ErrInvalidVCacheCount, trackCount)
	}

	vc.Tracks = make([]VCacheTrack, trackCount)
	for i := int32(0); i < trackCount; i++ {
		if err := parseVCacheTrack(r, vc.FrameCount, &vc.Tracks[i]); err != nil {
			return nil, fmt.Errorf("parsing track %d: %w", i, err)
		}
	}

	return vc, nil
}

// parseVCacheTrack parses a single track from the reader.
func parseVCacheTrack(r *bytes.Reader, frameCount int32, track *VCacheTrack) error {
	if r.Len() < vcacheNameLen+5 {
		return ErrTruncatedVCacheData
	}
	track.Name = readString(r, vcacheNameLen)

	var vertexCount int32
	binary.Read(r, binary.LittleEndian, &vertexCount)
	if vertexCount < 0 || vertexCount > vcacheMaxVertices {
		return fmt.Errorf("%w: vertex count %d", ErrInvalidVCacheCount, vertexCount)
	}
	// Empty frames carry no bytes, so the size check below cannot bound them.
	if vertexCount == 0 && frameCount > 0 {
		return fmt.Errorf("%w: %d frames of 0 vertices", ErrInvalidVCacheCount, frameCount)
	}

	var hasNumbers uint8
	binary.Read(r, binary.LittleEndian, &hasNumbers)

	if hasNumbers != 0 {
		if r.Len() < int(vertexCount)*4 {
			return ErrTruncatedVCacheData
		}
		track.ImportedVertexNumbers = make([]int32, vertexCount)
		binary.Read(r, binary.LittleEndian, track.ImportedVertexNumbers)
	}

	// Positions are 12 bytes per vertex per frame.
	if int64(r.Len()) < int64(frameCount)*int64(vertexCount)*12 {
		return ErrTruncatedVCacheData
	}
	track.Frames = make([][][3]float32, frameCount)
	for f := int32(0); f < frameCount; f++ {
		track.Frames[f] = make([][3]float32, vertexCount)
		binary.Read(r, binary.LittleEndian, track.Frames[f])
	}
	return nil
}

// ParseVertexCacheFile parses an MDVC file from disk.
func ParseVertexCacheFile(path string) (*VCache, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading vertex cache file: %w", err)
	}
	return ParseVertexCache(data)
}

// WriteVertexCache encodes vc in the current MDVC version.
func WriteVertexCache(w io.Writer, vc *VCache) error {
	var buf bytes.Buffer
	buf.WriteString(vcacheMagic)
	buf.WriteByte(CurrentVCacheVersion.Major)
	buf.WriteByte(CurrentVCacheVersion.Minor)
	binary.Write(&buf, binary.LittleEndian, vc.FrameRate)
	binary.Write(&buf, binary.LittleEndian, vc.StartTime)
	binary.Write(&buf, binary.LittleEndian, vc.FrameCount)
	binary.Write(&buf, binary.LittleEndian, int32(len(vc.Tracks)))

	for i := range vc.Tracks {
		track := &vc.Tracks[i]
		if int32(len(track.Frames)) != vc.FrameCount {
			return fmt.Errorf("track %q: %w: has %d frames, header says %d",
				track.Name, ErrInvalidVCacheCount, len(track.Frames), vc.FrameCount)
		}
		if len(track.Name) >= vcacheNameLen {
			return fmt.Errorf("track %q: name longer than %d bytes", track.Name, vcacheNameLen-1)
		}
		vertexCount := track.VertexCount()
		if vertexCount == 0 && vc.FrameCount > 0 {
			return fmt.Errorf("track %q: %w: no vertices", track.Name, ErrInvalidVCacheCount)
		}

		name := make([]byte, vcacheNameLen)
		copy(name, track.Name)
		buf.Write(name)
		binary.Write(&buf, binary.LittleEndian, int32(vertexCount))

		if len(track.ImportedVertexNumbers) > 0 {
			if len(track.ImportedVertexNumbers) != vertexCount {
				return fmt.Errorf("track %q: %w: %d vertex numbers for %d vertices",
					track.Name, ErrInvalidVCacheCount, len(track.ImportedVertexNumbers), vertexCount)
			}
			buf.WriteByte(1)
			binary.Write(&buf, binary.LittleEndian, track.ImportedVertexNumbers)
		} else {
			buf.WriteByte(0)
		}

		for f, frame := range track.Frames {
			if len(frame) != vertexCount {
				return fmt.Errorf("track %q frame %d: %w: %d vertices, want %d",
					track.Name, f, ErrInvalidVCacheCount, len(frame), vertexCount)
			}
			binary.Write(&buf, binary.LittleEndian, frame)
		}
	}

	_, err := w.Write(buf.Bytes())
	return err
}

// WriteVertexCacheFile writes vc to path.
func WriteVertexCacheFile(path string, vc *VCache) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating vertex cache file: %w", err)
	}
	if err := WriteVertexCache(f, vc); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// readString reads a fixed-length null-terminated string from a reader.
func readString(r *bytes.Reader, length int) string {
	buf := make([]byte, length)
	r.Read(buf)
	for i, b := range buf {
		if b == 0 {
			return string(buf[:i])
		}
	}
	return string(buf)
}
