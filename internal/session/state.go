// Package session tracks listener, source and mesh state for one solver
// instance and decides which solver calls a change requires.
package session

import (
	"errors"
	"fmt"

	"github.com/Faultbox/acoustic-scene/pkg/math"
)

// Session errors.
var (
	ErrUninitialized = errors.New("session has no solver")
	ErrEmptyMesh     = errors.New("mesh has no faces")
)

// Pose is a listener position and orientation.
type Pose struct {
	Position math.Vec3
	Rotation math.Quat
}

// Phase is whether the session holds a solver.
type Phase int

// Phases.
const (
	Uninitialized Phase = iota
	Initialized
)

func (p Phase) String() string {
	if p == Initialized {
		return "initialized"
	}
	return "uninitialized"
}

// State is the complete bookkeeping of a session. The flags other than
// Phase are only meaningful while Initialized.
type State struct {
	Phase Phase

	NeedsMesh          bool // solver was acquired and has no mesh yet
	MeshLoaded         bool
	ListenerRegistered bool
	SourceDirty        bool // source pose must be (re)registered before the next run
	MaterialsLoaded    bool

	Listener *Pose      // last requested listener pose
	Source   *math.Vec3 // last requested source position

	// RunCount is bumped on every solver acquisition attempt and names the
	// output folder of the next run.
	RunCount int
	// Simulations counts completed runs.
	Simulations int
}

func (s State) String() string {
	if s.Phase == Uninitialized {
		return fmt.Sprintf("uninitialized{runCount=%d}", s.RunCount)
	}
	return fmt.Sprintf("initialized{needsMesh=%t meshLoaded=%t listener=%t sourceDirty=%t materials=%t runCount=%d}",
		s.NeedsMesh, s.MeshLoaded, s.ListenerRegistered, s.SourceDirty, s.MaterialsLoaded, s.RunCount)
}

// clone copies the state without sharing the pose pointers.
func (s State) clone() State {
	if s.Listener != nil {
		l := *s.Listener
		s.Listener = &l
	}
	if s.Source != nil {
		src := *s.Source
		s.Source = &src
	}
	return s
}

// Event is a request made to a session.
type Event interface {
	fmt.Stringer
	event()
}

// ConfigureEvent acquires the solver if the session has none.
type ConfigureEvent struct{}

// SourcePoseEvent sets the source position.
type SourcePoseEvent struct {
	Position math.Vec3
}

// ListenerPoseEvent sets the listener pose.
type ListenerPoseEvent struct {
	Pose Pose
}

// MaterialsEvent loads an acoustic material file into the solver.
type MaterialsEvent struct {
	Path string
}

// RunEvent runs a simulation on a mesh with Faces triangles.
type RunEvent struct {
	Faces int
}

// ResetEvent releases the solver.
type ResetEvent struct{}

func (ConfigureEvent) event()    {}
func (SourcePoseEvent) event()   {}
func (ListenerPoseEvent) event() {}
func (MaterialsEvent) event()    {}
func (RunEvent) event()          {}
func (ResetEvent) event()        {}

func (ConfigureEvent) String() string      { return "configure" }
func (e SourcePoseEvent) String() string   { return "source " + e.Position.String() }
func (e ListenerPoseEvent) String() string { return "listener " + e.Pose.Position.String() + " " + e.Pose.Rotation.String() }
func (e MaterialsEvent) String() string    { return "materials " + e.Path }
func (e RunEvent) String() string          { return fmt.Sprintf("run faces=%d", e.Faces) }
func (ResetEvent) String() string          { return "reset" }

// CallKind is a solver operation (or local cache effect) a transition
// requires.
type CallKind int

// Call kinds, in the order they may appear within one transition.
const (
	CallAcquire CallKind = iota
	CallAddListener
	CallLoadMaterials
	CallLoadMesh
	CallAddSource
	CallRunSimulation
	CallInvalidate
	CallRelease
)

var callKindNames = [...]string{
	CallAcquire:       "acquire",
	CallAddListener:   "add listener",
	CallLoadMaterials: "load materials",
	CallLoadMesh:      "load mesh",
	CallAddSource:     "add source",
	CallRunSimulation: "run simulation",
	CallInvalidate:    "invalidate",
	CallRelease:       "release",
}

func (k CallKind) String() string {
	if k >= 0 && int(k) < len(callKindNames) {
		return callKindNames[k]
	}
	return fmt.Sprintf("CallKind(%d)", int(k))
}

// Call is one step of a transition.
type Call struct {
	Kind      CallKind
	Listener  Pose      // CallAddListener
	Source    math.Vec3 // CallAddSource
	Run       int       // CallRunSimulation: output folder counter
	Materials string    // CallLoadMaterials: material file path
}

// Plan applies the bookkeeping of ev to st and lists the calls needed to
// carry it out. The returned state does not yet include the effect of the
// calls; see Apply.
func Plan(st State, ev Event) (State, []Call, error) {
	st = st.clone()

	switch e := ev.(type) {
	case ConfigureEvent:
		st.RunCount++
		if st.Phase == Uninitialized {
			return st, []Call{{Kind: CallAcquire}}, nil
		}
		return st, nil, nil

	case SourcePoseEvent:
		if st.Phase == Uninitialized {
			return st, nil, fmt.Errorf("%w: set source pose in %s", ErrUninitialized, st)
		}
		pos := e.Position
		st.Source = &pos
		// Registration is also placement, so every update re-registers.
		st.SourceDirty = true
		return st, nil, nil

	case ListenerPoseEvent:
		st.RunCount++
		var calls []Call
		registered := st.ListenerRegistered
		if st.Phase == Uninitialized {
			calls = append(calls, Call{Kind: CallAcquire})
			registered = false
		}
		changed := st.Listener == nil || *st.Listener != e.Pose
		pose := e.Pose
		st.Listener = &pose
		if !registered || changed {
			// Only a successful AddListener marks the new pose registered.
			st.ListenerRegistered = false
			calls = append(calls, Call{Kind: CallAddListener, Listener: pose})
		}
		return st, calls, nil

	case MaterialsEvent:
		if st.Phase == Uninitialized {
			return st, nil, fmt.Errorf("%w: load materials in %s", ErrUninitialized, st)
		}
		if st.MaterialsLoaded {
			return st, nil, nil
		}
		return st, []Call{{Kind: CallLoadMaterials, Materials: e.Path}}, nil

	case RunEvent:
		if st.Phase == Uninitialized {
			return st, nil, fmt.Errorf("%w: run in %s", ErrUninitialized, st)
		}
		var calls []Call
		if st.NeedsMesh {
			if e.Faces == 0 {
				return st, nil, fmt.Errorf("%w: cannot load mesh in %s", ErrEmptyMesh, st)
			}
			calls = append(calls, Call{Kind: CallLoadMesh})
		}
		if st.SourceDirty && st.Source != nil {
			calls = append(calls, Call{Kind: CallAddSource, Source: *st.Source})
		}
		calls = append(calls,
			Call{Kind: CallRunSimulation, Run: st.RunCount},
			Call{Kind: CallInvalidate},
		)
		return st, calls, nil

	case ResetEvent:
		calls := []Call{{Kind: CallInvalidate}}
		if st.Phase == Initialized {
			calls = append(calls, Call{Kind: CallRelease})
		}
		return st, calls, nil
	}

	return st, nil, fmt.Errorf("unknown session event %T", ev)
}

// Apply returns st updated by the successful completion of c.
func Apply(st State, c Call) State {
	switch c.Kind {
	case CallAcquire:
		st.Phase = Initialized
		st.NeedsMesh = true
		st.MeshLoaded = false
		st.ListenerRegistered = false
		st.MaterialsLoaded = false
		// A fresh solver knows no source.
		st.SourceDirty = st.Source != nil
	case CallAddListener:
		st.ListenerRegistered = true
	case CallLoadMaterials:
		st.MaterialsLoaded = true
	case CallLoadMesh:
		st.NeedsMesh = false
		st.MeshLoaded = true
	case CallAddSource:
		st.SourceDirty = false
	case CallRunSimulation:
		st.Simulations++
	case CallRelease:
		st.Phase = Uninitialized
		st.NeedsMesh = false
		st.MeshLoaded = false
		st.ListenerRegistered = false
		st.SourceDirty = false
		st.MaterialsLoaded = false
	}
	return st
}

// Transition is Plan followed by Apply of every call, i.e. the state after
// ev when all solver calls succeed.
func Transition(st State, ev Event) (State, []Call, error) {
	next, calls, err := Plan(st, ev)
	if err != nil {
		return st, nil, err
	}
	for _, c := range calls {
		next = Apply(next, c)
	}
	return next, calls, nil
}
