package scene

import "strconv"

// DefaultObjectID is written for faces whose category resolves to
// DefaultCategory when a numeric per-face id is required.
const DefaultObjectID uint16 = 0

// Category is a semantic label: either an object id or the default sentinel.
// The zero value is DefaultCategory. Categories are comparable.
type Category struct {
	id  uint16
	set bool
}

// DefaultCategory is the category of vertices with no semantic label.
var DefaultCategory = Category{}

// CategoryID returns the category for object id n.
func CategoryID(n uint16) Category {
	return Category{id: n, set: true}
}

// ID returns the object id and whether the category carries one.
func (c Category) ID() (uint16, bool) {
	return c.id, c.set
}

// IsDefault reports whether c is the default sentinel.
func (c Category) IsDefault() bool {
	return !c.set
}

// String returns the solver category key: the id in decimal, or "default".
func (c Category) String() string {
	if !c.set {
		return "default"
	}
	return strconv.FormatUint(uint64(c.id), 10)
}

// CategoryMap maps vertex ids to categories. It is built once and never
// modified; lookups of unmapped vertices yield DefaultCategory.
type CategoryMap struct {
	byVertex map[uint32]Category
}

// NewCategoryMap builds a map from vertex id to object id. The input map is
// copied.
func NewCategoryMap(ids map[uint32]uint16) CategoryMap {
	m := make(map[uint32]Category, len(ids))
	for v, id := range ids {
		m[v] = CategoryID(id)
	}
	return CategoryMap{byVertex: m}
}

// CategoryMapFromVertexIDs builds a map from a per-vertex object id array,
// where ids[v] is the object id of vertex v.
func CategoryMapFromVertexIDs(ids []uint16) CategoryMap {
	m := make(map[uint32]Category, len(ids))
	for v, id := range ids {
		m[uint32(v)] = CategoryID(id)
	}
	return CategoryMap{byVertex: m}
}

// Len returns the number of mapped vertices.
func (m CategoryMap) Len() int {
	return len(m.byVertex)
}

// Lookup returns the category of vertex v, or DefaultCategory if unmapped.
func (m CategoryMap) Lookup(v uint32) Category {
	if c, ok := m.byVertex[v]; ok {
		return c
	}
	return DefaultCategory
}

// FaceCategory resolves the category of a triangle from its three vertices.
func (m CategoryMap) FaceCategory(face [3]uint32) Category {
	return ResolveTriangleCategory(m.Lookup(face[0]), m.Lookup(face[1]), m.Lookup(face[2]))
}

// ResolveTriangleCategory picks one of three per-vertex categories for a
// triangle. The rules are applied in order:
//
//  1. all equal: c1
//  2. c1 differs from both c2 and c3: c1 (this includes all three differing)
//  3. c1 == c2: c3
//  4. otherwise c1 == c3: c2
//
// The result is always one of the inputs. When all three differ the choice
// of c1 is a heuristic, not a vote.
func ResolveTriangleCategory(c1, c2, c3 Category) Category {
	switch {
	case c1 == c2 && c2 == c3:
		return c1
	case c1 != c2 && c1 != c3:
		return c1
	case c1 == c2:
		return c3
	default:
		return c2
	}
}

// CategoryGroup holds the flat triangle indices of every face resolved to
// one category.
type CategoryGroup struct {
	Category Category
	Indices  []uint32
}

// GroupByCategory resolves every face of the mesh and groups the face
// indices by category. Groups appear in the order their category is first
// seen; faces keep mesh order within a group.
func GroupByCategory(m *Mesh, cmap CategoryMap) []CategoryGroup {
	var groups []CategoryGroup
	slot := make(map[Category]int)

	for _, face := range m.Faces {
		cat := cmap.FaceCategory(face)
		i, ok := slot[cat]
		if !ok {
			i = len(groups)
			slot[cat] = i
			groups = append(groups, CategoryGroup{Category: cat})
		}
		groups[i].Indices = append(groups[i].Indices, face[0], face[1], face[2])
	}

	return groups
}

// FaceCategoryIDs resolves every face and returns one object id per face,
// in face order, suitable for the PLY object_id property. Faces resolved
// to DefaultCategory get DefaultObjectID.
func FaceCategoryIDs(m *Mesh, cmap CategoryMap) []uint16 {
	ids := make([]uint16, len(m.Faces))
	for i, face := range m.Faces {
		if id, ok := cmap.FaceCategory(face).ID(); ok {
			ids[i] = id
		} else {
			ids[i] = DefaultObjectID
		}
	}
	return ids
}
