// Package formats provides codecs for the scene interchange files: the binary
// PLY mesh with per-face object ids, and raw object id arrays.
package formats

// Note: PLY (semantic mesh) is implemented in ply.go
// Note: object id arrays are implemented in objectids.go
