// Package formats provides codecs for the scene interchange files.
// PLY (Polygon File Format) codec for semantic scene meshes.
package formats

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	gomath "math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Faultbox/acoustic-scene/pkg/math"
	"github.com/Faultbox/acoustic-scene/pkg/scene"
)

// PLY format errors.
var (
	ErrInvalidPLYMagic      = errors.New("invalid PLY magic: expected 'ply'")
	ErrUnsupportedPLYFormat = errors.New("unsupported PLY layout")
	ErrTruncatedPLYData     = errors.New("truncated PLY data")
	ErrCountMismatch        = errors.New("face/object id count mismatch")
	ErrInvalidPLYIndex      = errors.New("invalid PLY vertex index")
)

// PLYGray is the color written for every vertex; the scene data carries no
// per-vertex color.
var PLYGray = [3]uint8{0x80, 0x80, 0x80}

// InterchangeTransform maps native mesh coordinates to PLY coordinates: a
// -90 degree rotation about X, so that gravity points along -Z as in the
// scene GLB files.
var InterchangeTransform = math.RotateX(math.Radians(-90))

const (
	plyMagic       = "ply"
	plyFormat      = "format binary_little_endian 1.0"
	plyEndHeader   = "end_header"
	plyVertexBytes = 3*4 + 3 // xyz float32 + rgb uchar
)

// plyHeaderTemplate lists the header lines after the magic and format lines.
// %d marks the element counts.
var plyHeaderTemplate = []string{
	"element vertex %d",
	"property float x",
	"property float y",
	"property float z",
	"property uchar red",
	"property uchar green",
	"property uchar blue",
	"element face %d",
	"property list uchar int vertex_indices",
	"property ushort object_id",
}

// PLY holds the four parallel arrays of a semantic PLY file as stored on
// disk: positions are in interchange coordinates.
type PLY struct {
	Positions []math.Vec3
	Colors    [][3]uint8
	Faces     [][]int32
	ObjectIDs []uint16
}

// VertexCount returns the number of vertices.
func (p *PLY) VertexCount() int {
	return len(p.Positions)
}

// FaceCount returns the number of faces.
func (p *PLY) FaceCount() int {
	return len(p.Faces)
}

// Validate checks that the parallel arrays line up and that every face is
// encodable.
func (p *PLY) Validate() error {
	if len(p.Colors) != len(p.Positions) {
		return fmt.Errorf("%w: %d colors for %d vertices", ErrUnsupportedPLYFormat, len(p.Colors), len(p.Positions))
	}
	if len(p.ObjectIDs) != len(p.Faces) {
		return fmt.Errorf("%w: expected %d object ids (one per face), got %d", ErrCountMismatch, len(p.Faces), len(p.ObjectIDs))
	}
	for i, face := range p.Faces {
		if len(face) > gomath.MaxUint8 {
			return fmt.Errorf("%w: face %d has %d vertices", ErrUnsupportedPLYFormat, i, len(face))
		}
		for _, idx := range face {
			if idx < 0 || int(idx) >= len(p.Positions) {
				return fmt.Errorf("%w: face %d index %d (vertex count %d)", ErrInvalidPLYIndex, i, idx, len(p.Positions))
			}
		}
	}
	return nil
}

// ObjectIDCounts returns how many faces carry each object id.
func (p *PLY) ObjectIDCounts() map[uint16]int {
	counts := make(map[uint16]int)
	for _, id := range p.ObjectIDs {
		counts[id]++
	}
	return counts
}

// ToMesh converts the file contents to a triangle mesh in interchange
// coordinates. Normals are zeroed since the file stores none.
func (p *PLY) ToMesh() (*scene.Mesh, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	mesh := &scene.Mesh{
		Vertices: append([]math.Vec3(nil), p.Positions...),
		Normals:  make([]math.Vec3, len(p.Positions)),
		Faces:    make([][3]uint32, len(p.Faces)),
	}
	for i, face := range p.Faces {
		if len(face) != 3 {
			return nil, fmt.Errorf("%w: face %d has %d vertices, expected a triangle", ErrUnsupportedPLYFormat, i, len(face))
		}
		mesh.Faces[i] = [3]uint32{uint32(face[0]), uint32(face[1]), uint32(face[2])}
	}
	return mesh, nil
}

// NewPLY builds the on-disk representation of a mesh: positions are moved
// to interchange coordinates, every vertex is gray and faceIDs are zipped
// with the faces in order. faceIDs must hold exactly one id per face.
func NewPLY(mesh *scene.Mesh, faceIDs []uint16) (*PLY, error) {
	if len(faceIDs) != len(mesh.Faces) {
		return nil, fmt.Errorf("%w: mesh has %d faces, got %d object ids", ErrCountMismatch, len(mesh.Faces), len(faceIDs))
	}
	if len(mesh.Vertices) > gomath.MaxInt32 {
		return nil, fmt.Errorf("%w: %d vertices exceed int32 indices", ErrInvalidPLYIndex, len(mesh.Vertices))
	}

	p := &PLY{
		Positions: make([]math.Vec3, len(mesh.Vertices)),
		Colors:    make([][3]uint8, len(mesh.Vertices)),
		Faces:     make([][]int32, len(mesh.Faces)),
		ObjectIDs: append([]uint16(nil), faceIDs...),
	}

	for i, v := range mesh.Vertices {
		p.Positions[i] = InterchangeTransform.TransformVec3(v)
		p.Colors[i] = PLYGray
	}

	// One backing array for all face lists.
	indices := make([]int32, 3*len(mesh.Faces))
	for i, face := range mesh.Faces {
		list := indices[3*i : 3*i+3 : 3*i+3]
		for j, idx := range face {
			if uint64(idx) >= uint64(len(mesh.Vertices)) {
				return nil, fmt.Errorf("%w: face %d index %d (vertex count %d)", ErrInvalidPLYIndex, i, idx, len(mesh.Vertices))
			}
			list[j] = int32(idx)
		}
		p.Faces[i] = list
	}

	return p, nil
}

// EncodePLY writes mesh and its per-face object ids as a binary little
// endian PLY. Nothing is written if the arguments are inconsistent.
func EncodePLY(w io.Writer, mesh *scene.Mesh, faceIDs []uint16) error {
	p, err := NewPLY(mesh, faceIDs)
	if err != nil {
		return err
	}
	return WritePLY(w, p)
}

// MarshalPLY returns the PLY encoding of mesh and faceIDs.
func MarshalPLY(mesh *scene.Mesh, faceIDs []uint16) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodePLY(&buf, mesh, faceIDs); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WritePLYFile encodes mesh to path. The file is written to a temporary
// name in the same directory and renamed on success, so a failed encode
// never leaves a partial file behind.
func WritePLYFile(path string, mesh *scene.Mesh, faceIDs []uint16) error {
	p, err := NewPLY(mesh, faceIDs)
	if err != nil {
		return err
	}
	return SavePLY(path, p)
}

// SavePLY writes p to path atomically.
func SavePLY(path string, p *PLY) error {
	if err := p.Validate(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating PLY file: %w", err)
	}
	tmpName := tmp.Name()

	if err := WritePLY(tmp, p); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing PLY file: %w", err)
	}
	// CreateTemp opens the file 0600.
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing PLY file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("writing PLY file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("writing PLY file: %w", err)
	}
	return nil
}

// WritePLY writes p as-is, without any coordinate transform.
func WritePLY(w io.Writer, p *PLY) error {
	if err := p.Validate(); err != nil {
		return err
	}

	bw := bufio.NewWriter(w)

	// Header
	bw.WriteString(plyMagic + "\n")
	bw.WriteString(plyFormat + "\n")
	for _, line := range plyHeaderTemplate {
		switch line {
		case "element vertex %d":
			fmt.Fprintf(bw, line+"\n", len(p.Positions))
		case "element face %d":
			fmt.Fprintf(bw, line+"\n", len(p.Faces))
		default:
			bw.WriteString(line + "\n")
		}
	}
	bw.WriteString(plyEndHeader + "\n")

	// Vertices: x, y, z float32 then r, g, b
	var rec [plyVertexBytes]byte
	for i, pos := range p.Positions {
		binary.LittleEndian.PutUint32(rec[0:4], gomath.Float32bits(pos.X))
		binary.LittleEndian.PutUint32(rec[4:8], gomath.Float32bits(pos.Y))
		binary.LittleEndian.PutUint32(rec[8:12], gomath.Float32bits(pos.Z))
		copy(rec[12:15], p.Colors[i][:])
		bw.Write(rec[:])
	}

	// Faces: uchar count, count * int32, ushort object id
	var scratch []byte
	for i, face := range p.Faces {
		scratch = append(scratch[:0], byte(len(face)))
		for _, idx := range face {
			scratch = binary.LittleEndian.AppendUint32(scratch, uint32(idx))
		}
		scratch = binary.LittleEndian.AppendUint16(scratch, p.ObjectIDs[i])
		bw.Write(scratch)
	}

	return bw.Flush()
}

// ParsePLY parses a semantic PLY file from raw bytes. Only the layout written
// by WritePLY is accepted.
func ParsePLY(data []byte) (*PLY, error) {
	vertexCount, faceCount, body, err := parsePLYHeader(data)
	if err != nil {
		return nil, err
	}

	// Each vertex needs 15 bytes and each face at least 3.
	if uint64(vertexCount)*plyVertexBytes+uint64(faceCount)*3 > uint64(len(body)) {
		return nil, fmt.Errorf("%w: %d vertices and %d faces declared, %d bytes of payload",
			ErrTruncatedPLYData, vertexCount, faceCount, len(body))
	}

	p := &PLY{
		Positions: make([]math.Vec3, vertexCount),
		Colors:    make([][3]uint8, vertexCount),
		Faces:     make([][]int32, faceCount),
		ObjectIDs: make([]uint16, faceCount),
	}

	r := bytes.NewReader(body)

	for i := 0; i < vertexCount; i++ {
		if err := binary.Read(r, binary.LittleEndian, &p.Positions[i]); err != nil {
			return nil, fmt.Errorf("%w: reading vertex %d position", ErrTruncatedPLYData, i)
		}
		if _, err := io.ReadFull(r, p.Colors[i][:]); err != nil {
			return nil, fmt.Errorf("%w: reading vertex %d color", ErrTruncatedPLYData, i)
		}
	}

	for i := 0; i < faceCount; i++ {
		n, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("%w: reading face %d vertex count", ErrTruncatedPLYData, i)
		}
		face := make([]int32, n)
		if err := binary.Read(r, binary.LittleEndian, face); err != nil {
			return nil, fmt.Errorf("%w: reading face %d indices", ErrTruncatedPLYData, i)
		}
		p.Faces[i] = face
		if err := binary.Read(r, binary.LittleEndian, &p.ObjectIDs[i]); err != nil {
			return nil, fmt.Errorf("%w: reading face %d object id", ErrTruncatedPLYData, i)
		}
	}

	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes after faces", ErrUnsupportedPLYFormat, r.Len())
	}

	return p, nil
}

// ParsePLYFile parses a semantic PLY file from disk.
func ParsePLYFile(path string) (*PLY, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading PLY file: %w", err)
	}
	return ParsePLY(data)
}

// parsePLYHeader checks the header line by line and returns the element
// counts and the binary payload that follows it.
func parsePLYHeader(data []byte) (vertexCount, faceCount int, body []byte, err error) {
	rest := data
	nextLine := func() (string, bool) {
		i := bytes.IndexByte(rest, '\n')
		if i < 0 {
			return "", false
		}
		line := string(rest[:i])
		rest = rest[i+1:]
		return line, true
	}

	line, ok := nextLine()
	if !ok {
		return 0, 0, nil, fmt.Errorf("%w: reading magic", ErrTruncatedPLYData)
	}
	if line != plyMagic {
		return 0, 0, nil, ErrInvalidPLYMagic
	}

	line, ok = nextLine()
	if !ok {
		return 0, 0, nil, fmt.Errorf("%w: reading format", ErrTruncatedPLYData)
	}
	if line != plyFormat {
		return 0, 0, nil, fmt.Errorf("%w: %q", ErrUnsupportedPLYFormat, line)
	}

	for _, want := range plyHeaderTemplate {
		line, ok = nextLine()
		if !ok {
			return 0, 0, nil, fmt.Errorf("%w: header ended before %q", ErrTruncatedPLYData, want)
		}

		prefix, isCount := strings.CutSuffix(want, "%d")
		if !isCount {
			if line != want {
				return 0, 0, nil, fmt.Errorf("%w: expected %q, got %q", ErrUnsupportedPLYFormat, want, line)
			}
			continue
		}

		countStr, found := strings.CutPrefix(line, prefix)
		if !found {
			return 0, 0, nil, fmt.Errorf("%w: expected %q, got %q", ErrUnsupportedPLYFormat, want, line)
		}
		n, convErr := strconv.Atoi(countStr)
		if convErr != nil || n < 0 {
			return 0, 0, nil, fmt.Errorf("%w: bad element count in %q", ErrUnsupportedPLYFormat, line)
		}
		if strings.HasPrefix(want, "element vertex") {
			vertexCount = n
		} else {
			faceCount = n
		}
	}

	line, ok = nextLine()
	if !ok {
		return 0, 0, nil, fmt.Errorf("%w: reading end_header", ErrTruncatedPLYData)
	}
	if line != plyEndHeader {
		return 0, 0, nil, fmt.Errorf("%w: expected %q, got %q", ErrUnsupportedPLYFormat, plyEndHeader, line)
	}

	return vertexCount, faceCount, rest, nil
}
