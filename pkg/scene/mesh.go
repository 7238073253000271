// Package scene builds the merged, semantically labelled triangle mesh that is
// handed to the acoustic solver and the PLY encoder.
package scene

import (
	"errors"
	"fmt"
	gomath "math"

	"github.com/Faultbox/acoustic-scene/pkg/math"
)

// Merge errors.
var (
	ErrEmptyInput     = errors.New("no sub-meshes to merge")
	ErrInvalidSubMesh = errors.New("invalid sub-mesh")
	ErrInvalidMesh    = errors.New("invalid mesh")
)

// SubMesh is one geometry buffer of a scene, indexed locally from zero.
type SubMesh struct {
	Name     string
	Vertices []math.Vec3
	Normals  []math.Vec3
	Faces    [][3]uint32
}

// Mesh is a single indexed triangle mesh. Vertex ids are positions in
// Vertices and are shared by Normals and referenced by Faces.
type Mesh struct {
	Vertices []math.Vec3
	Normals  []math.Vec3
	Faces    [][3]uint32
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices)
}

// FaceCount returns the number of triangles.
func (m *Mesh) FaceCount() int {
	return len(m.Faces)
}

// Validate checks that normals parallel vertices and that every face index
// refers to an existing vertex.
func (m *Mesh) Validate() error {
	if len(m.Normals) != len(m.Vertices) {
		return fmt.Errorf("%w: %d normals for %d vertices", ErrInvalidMesh, len(m.Normals), len(m.Vertices))
	}
	if f, idx, ok := firstOutOfRange(m.Faces, len(m.Vertices)); !ok {
		return fmt.Errorf("%w: face %d index %d out of range (vertex count %d)", ErrInvalidMesh, f, idx, len(m.Vertices))
	}
	return nil
}

// Merge concatenates sub-meshes into one mesh. Vertices and normals keep the
// sub-mesh order, and face indices of sub-mesh k are offset by the number of
// vertices in sub-meshes 0..k-1.
//
// Every sub-mesh is checked before anything is built, so a failure never
// yields a partially merged mesh.
func Merge(subs []SubMesh) (*Mesh, error) {
	if len(subs) == 0 {
		return nil, ErrEmptyInput
	}

	var vertexCount, faceCount int
	for i := range subs {
		sub := &subs[i]
		if len(sub.Normals) != len(sub.Vertices) {
			return nil, fmt.Errorf("%w %d (%s): %d normals for %d vertices",
				ErrInvalidSubMesh, i, sub.Name, len(sub.Normals), len(sub.Vertices))
		}
		if f, idx, ok := firstOutOfRange(sub.Faces, len(sub.Vertices)); !ok {
			return nil, fmt.Errorf("%w %d (%s): face %d index %d out of range (vertex count %d)",
				ErrInvalidSubMesh, i, sub.Name, f, idx, len(sub.Vertices))
		}
		vertexCount += len(sub.Vertices)
		faceCount += len(sub.Faces)
	}
	if uint64(vertexCount) > gomath.MaxUint32 {
		return nil, fmt.Errorf("%w: merged vertex count %d exceeds index range", ErrInvalidSubMesh, vertexCount)
	}

	merged := &Mesh{
		Vertices: make([]math.Vec3, 0, vertexCount),
		Normals:  make([]math.Vec3, 0, vertexCount),
		Faces:    make([][3]uint32, 0, faceCount),
	}

	var offset uint32
	for i := range subs {
		sub := &subs[i]
		merged.Vertices = append(merged.Vertices, sub.Vertices...)
		merged.Normals = append(merged.Normals, sub.Normals...)
		for _, face := range sub.Faces {
			merged.Faces = append(merged.Faces, [3]uint32{
				face[0] + offset,
				face[1] + offset,
				face[2] + offset,
			})
		}
		offset += uint32(len(sub.Vertices))
	}

	return merged, nil
}

// FlattenIndices returns the faces as one flat index buffer (three indices
// per triangle), the layout the solver's index upload expects.
func FlattenIndices(m *Mesh) []uint32 {
	indices := make([]uint32, 0, len(m.Faces)*3)
	for _, face := range m.Faces {
		indices = append(indices, face[0], face[1], face[2])
	}
	return indices
}

// firstOutOfRange reports the first face index >= vertexCount.
func firstOutOfRange(faces [][3]uint32, vertexCount int) (face int, index uint32, ok bool) {
	for f, tri := range faces {
		for _, idx := range tri {
			if uint64(idx) >= uint64(vertexCount) {
				return f, idx, false
			}
		}
	}
	return 0, 0, true
}
