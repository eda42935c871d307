package sampler

import (
	"strings"

	"github.com/Faultbox/mldeformer/internal/assets"
)

// NoCorrespondence marks a source vertex without a target vertex.
const NoCorrespondence = -1

// MeshMapping pairs one source sub-mesh with one geometry-cache track.
type MeshMapping struct {
	MeshIndex  int
	TrackIndex int
	MeshName   string
	TrackName  string
	// VertexOffset is the imported vertex index of the sub-mesh's first vertex.
	VertexOffset int
	// SourceToTarget maps sub-mesh vertices to track vertices, or NoCorrespondence.
	SourceToTarget []int32
}

// NumMappedVertices returns how many source vertices have a target vertex.
func (m *MeshMapping) NumMappedVertices() int {
	n := 0
	for _, t := range m.SourceToTarget {
		if t != NoCorrespondence {
			n++
		}
	}
	return n
}

// buildMeshMappings matches sub-meshes to tracks by name and returns the
// mappings plus the names of sub-meshes that had no track.
func buildMeshMappings(mesh *assets.SkeletalMesh, gc *assets.GeometryCache) ([]MeshMapping, []string) {
	var mappings []MeshMapping
	var failed []string

	offsets := mesh.VertexOffsets()
	for i := range mesh.SubMeshes {
		sm := &mesh.SubMeshes[i]
		track := findTrack(gc, sm.Name)
		if track < 0 {
			failed = append(failed, sm.Name)
			continue
		}
		tr := &gc.Tracks[track]
		mappings = append(mappings, MeshMapping{
			MeshIndex:      i,
			TrackIndex:     track,
			MeshName:       sm.Name,
			TrackName:      tr.Name,
			VertexOffset:   offsets[i],
			SourceToTarget: vertexTable(len(sm.Positions), tr),
		})
	}
	return mappings, failed
}

// findTrack matches exactly first, then ignoring case.
func findTrack(gc *assets.GeometryCache, name string) int {
	if i := gc.TrackIndex(name); i >= 0 {
		return i
	}
	for i := range gc.Tracks {
		if strings.EqualFold(gc.Tracks[i].Name, name) {
			return i
		}
	}
	return -1
}

// vertexTable builds the source-to-target table for one pair. With imported
// vertex numbers the first track vertex naming a source vertex wins; without
// them vertex orders are assumed to match.
func vertexTable(numSource int, tr *assets.GeometryTrack) []int32 {
	table := make([]int32, numSource)
	for i := range table {
		table[i] = NoCorrespondence
	}

	numTarget := tr.NumVertices()
	if len(tr.ImportedVertexNumbers) == 0 {
		for i := 0; i < min(numSource, numTarget); i++ {
			table[i] = int32(i)
		}
		return table
	}

	for t, src := range tr.ImportedVertexNumbers {
		if t >= numTarget {
			break
		}
		if src < 0 || int(src) >= numSource || table[src] != NoCorrespondence {
			continue
		}
		table[src] = int32(t)
	}
	return table
}
