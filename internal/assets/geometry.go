package assets

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/mldeformer/pkg/formats"
	"github.com/Faultbox/mldeformer/pkg/math"
)

// GeometryTrack is one animated mesh of a geometry cache.
type GeometryTrack struct {
	Name string
	// ImportedVertexNumbers maps track vertices to source sub-mesh vertices.
	// Empty means the orders match.
	ImportedVertexNumbers []int32
	Frames                [][]math.Vec3
}

// NumVertices returns the vertex count of the track.
func (t *GeometryTrack) NumVertices() int {
	if len(t.Frames) == 0 {
		return len(t.ImportedVertexNumbers)
	}
	return len(t.Frames[0])
}

// GeometryCache is the vertex-cache target mesh.
type GeometryCache struct {
	Name      string
	FrameRate float32
	StartTime float32
	NumFrames int
	Tracks    []GeometryTrack
}

// FrameToTime converts a frame index to a playback time in seconds.
func (g *GeometryCache) FrameToTime(frame int) float32 {
	if g.FrameRate <= 0 {
		return g.StartTime
	}
	return g.StartTime + float32(frame)/g.FrameRate
}

// TimeToFrame converts a playback time to the nearest frame index.
func (g *GeometryCache) TimeToFrame(t float32) int {
	if g.NumFrames == 0 || g.FrameRate <= 0 {
		return 0
	}
	frame := int(math32.Floor((t-g.StartTime)*g.FrameRate + 0.5))
	return g.ClampFrame(frame)
}

// Duration returns the playback length in seconds.
func (g *GeometryCache) Duration() float32 {
	if g.FrameRate <= 0 || g.NumFrames == 0 {
		return 0
	}
	return float32(g.NumFrames-1) / g.FrameRate
}

// ClampFrame clamps frame into [0, NumFrames).
func (g *GeometryCache) ClampFrame(frame int) int {
	if frame >= g.NumFrames {
		frame = g.NumFrames - 1
	}
	if frame < 0 {
		frame = 0
	}
	return frame
}

// frameSnap is how close a fractional frame must be to an integer to be
// treated as that exact frame.
const frameSnap = 1e-4

// SamplePositions writes the positions of track at time t into out,
// interpolating linearly between the two nearest frames.
func (g *GeometryCache) SamplePositions(track int, t float32, out []math.Vec3) {
	tr := &g.Tracks[track]
	if len(tr.Frames) == 0 {
		return
	}
	f := float32(0)
	if g.FrameRate > 0 {
		f = (t - g.StartTime) * g.FrameRate
	}
	last := len(tr.Frames) - 1
	if f <= 0 {
		copy(out, tr.Frames[0])
		return
	}
	if f >= float32(last) {
		copy(out, tr.Frames[last])
		return
	}
	lo := math32.Floor(f)
	alpha := f - lo
	i := int(lo)
	if alpha < frameSnap {
		copy(out, tr.Frames[i])
		return
	}
	if alpha > 1-frameSnap {
		copy(out, tr.Frames[i+1])
		return
	}
	a, b := tr.Frames[i], tr.Frames[i+1]
	n := min(len(out), len(a), len(b))
	for v := 0; v < n; v++ {
		out[v] = a[v].Lerp(b[v], alpha)
	}
}

// TrackIndex returns the index of the named track, or -1.
func (g *GeometryCache) TrackIndex(name string) int {
	for i := range g.Tracks {
		if g.Tracks[i].Name == name {
			return i
		}
	}
	return -1
}

// GeometryCacheFromVCache converts a parsed MDVC file.
func GeometryCacheFromVCache(name string, vc *formats.VCache) *GeometryCache {
	g := &GeometryCache{
		Name:      name,
		FrameRate: vc.FrameRate,
		StartTime: vc.StartTime,
		NumFrames: int(vc.FrameCount),
		Tracks:    make([]GeometryTrack, len(vc.Tracks)),
	}
	for i := range vc.Tracks {
		src := &vc.Tracks[i]
		dst := &g.Tracks[i]
		dst.Name = src.Name
		dst.ImportedVertexNumbers = src.ImportedVertexNumbers
		dst.Frames = make([][]math.Vec3, len(src.Frames))
		for f, frame := range src.Frames {
			dst.Frames[f] = make([]math.Vec3, len(frame))
			for v, p := range frame {
				dst.Frames[f][v] = math.V3(p)
			}
		}
	}
	return g
}

// VCache converts the cache to its file representation.
func (g *GeometryCache) VCache() *formats.VCache {
	vc := &formats.VCache{
		Version:    formats.CurrentVCacheVersion,
		FrameRate:  g.FrameRate,
		StartTime:  g.StartTime,
		FrameCount: int32(g.NumFrames),
		Tracks:     make([]formats.VCacheTrack, len(g.Tracks)),
	}
	for i := range g.Tracks {
		src := &g.Tracks[i]
		dst := &vc.Tracks[i]
		dst.Name = src.Name
		dst.ImportedVertexNumbers = src.ImportedVertexNumbers
		dst.Frames = make([][][3]float32, len(src.Frames))
		for f, frame := range src.Frames {
			dst.Frames[f] = make([][3]float32, len(frame))
			for v, p := range frame {
				dst.Frames[f][v] = p.Array()
			}
		}
	}
	return vc
}
