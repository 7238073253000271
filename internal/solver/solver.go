// Package solver defines the boundary to the external acoustic propagation
// solver: the calls a session may make, its configuration record and its
// error codes.
package solver

import (
	"fmt"
	"strings"

	"github.com/Faultbox/acoustic-scene/pkg/math"
)

// Solver is one exclusively owned simulator instance. Every method may
// fail; none is assumed idempotent. Calls block until the solver returns.
type Solver interface {
	Configure(cfg Config) error

	// AddListener registers (or re-registers) the listener at a pose.
	AddListener(pos math.Vec3, rot math.Quat, layout ChannelLayout) error
	// AddSource registers a source; registration is also placement.
	AddSource(pos math.Vec3) error

	LoadMeshVertices(vertices []math.Vec3) error
	// LoadMeshIndices adds triangle indices labelled with a category key.
	LoadMeshIndices(indices []uint32, category string) error
	UploadMesh() error

	// LoadAudioMaterialJSON loads acoustic material definitions used when
	// Config.EnableMaterials is set.
	LoadAudioMaterialJSON(path string) error

	RunSimulation(outputFolder string) error
	// RayEfficiency is the fraction of indirect rays of the last run that
	// contributed to the impulse response.
	RayEfficiency() float32

	ChannelCount() int
	SampleCount() int
	ImpulseResponseForChannel(channel int) ([]float32, error)

	// Close releases the simulator.
	Close() error
}

// Factory creates a new, unconfigured solver instance.
type Factory func() (Solver, error)

// ChannelType is the listener channel layout kind.
type ChannelType int

// Channel layout types, numbered as in the solver API.
const (
	ChannelUnknown ChannelType = iota
	ChannelMono
	ChannelBinaural
	ChannelAmbisonics
)

var channelTypeNames = map[ChannelType]string{
	ChannelUnknown:    "unknown",
	ChannelMono:       "mono",
	ChannelBinaural:   "binaural",
	ChannelAmbisonics: "ambisonics",
}

// String returns the lower-case layout name.
func (t ChannelType) String() string {
	if name, ok := channelTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("ChannelType(%d)", int(t))
}

// MarshalText implements encoding.TextMarshaler for config files.
func (t ChannelType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler for config files.
func (t *ChannelType) UnmarshalText(text []byte) error {
	s := strings.ToLower(strings.TrimSpace(string(text)))
	for ct, name := range channelTypeNames {
		if name == s {
			*t = ct
			return nil
		}
	}
	return fmt.Errorf("unknown channel type %q", string(text))
}

// ChannelLayout describes the listener's output channels.
type ChannelLayout struct {
	Type  ChannelType `yaml:"type" toml:"type"`
	Count int         `yaml:"count" toml:"count"`
}

// DefaultChannelLayout is first order ambisonics.
func DefaultChannelLayout() ChannelLayout {
	return ChannelLayout{Type: ChannelAmbisonics, Count: 4}
}

// Validate checks that the layout is usable.
func (l ChannelLayout) Validate() error {
	if l.Count <= 0 {
		return &Error{Op: "AddListener", Code: CodeInvalidParam, Err: fmt.Errorf("channel count %d", l.Count)}
	}
	switch l.Type {
	case ChannelMono:
		if l.Count != 1 {
			return &Error{Op: "AddListener", Code: CodeInvalidParam, Err: fmt.Errorf("mono layout with %d channels", l.Count)}
		}
	case ChannelBinaural:
		if l.Count != 2 {
			return &Error{Op: "AddListener", Code: CodeInvalidParam, Err: fmt.Errorf("binaural layout with %d channels", l.Count)}
		}
	case ChannelAmbisonics:
	default:
		return &Error{Op: "AddListener", Code: CodeUnsupportedFeature, Err: fmt.Errorf("channel type %s", l.Type)}
	}
	return nil
}
