package session

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Faultbox/acoustic-scene/internal/solver"
	"github.com/Faultbox/acoustic-scene/pkg/math"
	"github.com/Faultbox/acoustic-scene/pkg/scene"
)

// Options configures a session.
type Options struct {
	Solver solver.Config
	Layout solver.ChannelLayout
	// OutputDirectory is prefixed to the run counter to name each run's
	// output folder, e.g. "/data/sim" + "3".
	OutputDirectory string
}

// DefaultOptions returns stock solver settings with a first order
// ambisonics listener.
func DefaultOptions() Options {
	return Options{
		Solver:          solver.DefaultConfig(),
		Layout:          solver.DefaultChannelLayout(),
		OutputDirectory: "output/sim",
	}
}

// Session drives one exclusively owned solver. It issues only the solver
// calls a request actually needs: the mesh is uploaded once per solver,
// the listener is re-registered only when its pose changes, and the
// impulse response is read back at most once per run.
//
// A Session is not safe for concurrent use.
type Session struct {
	id      string
	opts    Options
	factory solver.Factory
	log     *zap.Logger

	state      State
	handle     solver.Solver
	cache      ObservationCache
	categories scene.CategoryMap
}

// New creates an uninitialized session. The solver is created through
// factory on Configure or on the first listener pose.
func New(opts Options, factory solver.Factory, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	id := uuid.NewString()
	return &Session{
		id:      id,
		opts:    opts,
		factory: factory,
		log:     log.With(zap.String("session", id)),
	}
}

// ID returns the session's unique id.
func (s *Session) ID() string {
	return s.id
}

// State returns a copy of the current state.
func (s *Session) State() State {
	return s.state.clone()
}

// Initialized reports whether the session holds a solver.
func (s *Session) Initialized() bool {
	return s.handle != nil
}

// SetCategoryMap sets the vertex categories used to label mesh triangles
// when the mesh is loaded. Without one every triangle is "default".
func (s *Session) SetCategoryMap(cmap scene.CategoryMap) {
	s.categories = cmap
}

// Configure acquires and configures the solver if the session has none.
// Repeated calls leave the solver untouched.
func (s *Session) Configure() error {
	return s.dispatch(ConfigureEvent{}, nil)
}

// SetSourcePose records the source position. The source is registered
// with the solver on the next Run.
func (s *Session) SetSourcePose(pos math.Vec3) error {
	return s.dispatch(SourcePoseEvent{Position: pos}, nil)
}

// SetListenerPose records the listener pose, acquiring the solver first if
// needed. The listener is registered only if the solver is new or the pose
// differs from the last one.
func (s *Session) SetListenerPose(pos math.Vec3, rot math.Quat) error {
	return s.dispatch(ListenerPoseEvent{Pose: Pose{Position: pos, Rotation: rot}}, nil)
}

// SetAudioMaterialsJSON loads an acoustic material file into the solver.
// Only the first call per solver reaches it; later calls are no-ops until
// the solver is replaced.
func (s *Session) SetAudioMaterialsJSON(path string) error {
	return s.dispatch(MaterialsEvent{Path: path}, nil)
}

// Run loads mesh into a freshly acquired solver, registers a changed
// source, runs the simulation and invalidates the cached observation.
// The mesh is ignored once loaded.
func (s *Session) Run(mesh *scene.Mesh) error {
	faces := 0
	if mesh != nil {
		faces = mesh.FaceCount()
	}
	return s.dispatch(RunEvent{Faces: faces}, mesh)
}

// Reset releases the solver and drops the cached observation. Recorded
// poses are kept.
func (s *Session) Reset() error {
	return s.dispatch(ResetEvent{}, nil)
}

// Close releases the solver if still held.
func (s *Session) Close() error {
	if s.handle == nil {
		return nil
	}
	return s.Reset()
}

// SimulationFolder returns the output folder for the current run counter.
func (s *Session) SimulationFolder() string {
	return s.folder(s.state.RunCount)
}

// ObservationSpace returns (channels, samples) of the impulse response, or
// (0, 0) without a solver.
func (s *Session) ObservationSpace() (channels, samples int) {
	if s.handle == nil {
		return 0, 0
	}
	return s.cache.Space(s.handle)
}

// RayEfficiency returns the solver's indirect ray efficiency for the latest
// run.
func (s *Session) RayEfficiency() (float32, error) {
	if s.handle == nil {
		return 0, fmt.Errorf("%w: read ray efficiency in %s", ErrUninitialized, s.state)
	}
	return s.handle.RayEfficiency(), nil
}

// ImpulseResponse returns the impulse response of the latest run, reading
// it from the solver only on the first call after a run.
func (s *Session) ImpulseResponse() (ImpulseResponse, error) {
	if s.handle == nil {
		return nil, fmt.Errorf("%w: read impulse response in %s", ErrUninitialized, s.state)
	}
	return s.cache.Get(s.handle)
}

// Observation returns the impulse response like ImpulseResponse and, when
// the solver configuration asks for it, also writes one text file per
// channel into the current simulation folder.
func (s *Session) Observation() (ImpulseResponse, error) {
	ir, err := s.ImpulseResponse()
	if err != nil {
		return nil, err
	}
	if s.opts.Solver.WriteIRToFile {
		dir := s.SimulationFolder()
		if err := WriteImpulseResponses(dir, ir); err != nil {
			return ir, fmt.Errorf("writing impulse responses: %w", err)
		}
		s.log.Debug("wrote impulse responses",
			zap.String("folder", dir),
			zap.Int("channels", ir.Channels()),
			zap.Int("samples", ir.Samples()))
	}
	return ir, nil
}

// Cache exposes the observation cache for inspection.
func (s *Session) Cache() *ObservationCache {
	return &s.cache
}

// dispatch plans ev and executes the resulting calls in order, committing
// each call's effect only once it succeeded.
func (s *Session) dispatch(ev Event, mesh *scene.Mesh) error {
	next, calls, err := Plan(s.state, ev)
	if err != nil {
		s.log.Debug("rejected event", zap.Stringer("event", ev), zap.Error(err))
		return err
	}
	s.state = next

	for _, c := range calls {
		err := s.execute(c, mesh)
		if err == nil || c.Kind == CallRelease {
			s.state = Apply(s.state, c)
		}
		if err != nil {
			s.log.Warn("solver call failed",
				zap.Stringer("event", ev),
				zap.Stringer("call", c.Kind),
				zap.Stringer("state", s.state),
				zap.Error(err))
			return fmt.Errorf("%s: %s (%s): %w", ev, c.Kind, s.state, err)
		}
	}

	if len(calls) > 0 {
		s.log.Debug("event handled",
			zap.Stringer("event", ev),
			zap.Int("calls", len(calls)),
			zap.Stringer("state", s.state))
	}
	return nil
}

func (s *Session) execute(c Call, mesh *scene.Mesh) error {
	switch c.Kind {
	case CallAcquire:
		return s.acquire()
	case CallAddListener:
		return s.handle.AddListener(c.Listener.Position, c.Listener.Rotation, s.opts.Layout)
	case CallLoadMaterials:
		s.log.Info("loading materials", zap.String("path", c.Materials))
		return s.handle.LoadAudioMaterialJSON(c.Materials)
	case CallLoadMesh:
		return s.loadMesh(mesh)
	case CallAddSource:
		return s.handle.AddSource(c.Source)
	case CallRunSimulation:
		folder := s.folder(c.Run)
		s.log.Info("running simulation", zap.String("folder", folder))
		return s.handle.RunSimulation(folder)
	case CallInvalidate:
		s.cache.Invalidate()
		return nil
	case CallRelease:
		h := s.handle
		s.handle = nil
		return h.Close()
	}
	return fmt.Errorf("unknown call %s", c.Kind)
}

func (s *Session) acquire() error {
	h, err := s.factory()
	if err != nil {
		return err
	}
	if err := h.Configure(s.opts.Solver); err != nil {
		// Configure failed; the instance is dropped.
		_ = h.Close()
		return err
	}
	s.handle = h
	s.log.Info("solver acquired",
		zap.Int("sample_rate", s.opts.Solver.SampleRate),
		zap.Stringer("layout", s.opts.Layout.Type),
		zap.Int("channels", s.opts.Layout.Count))
	return nil
}

// loadMesh uploads vertices and the triangles of each category.
func (s *Session) loadMesh(mesh *scene.Mesh) error {
	if mesh == nil || mesh.FaceCount() == 0 {
		return ErrEmptyMesh
	}
	if err := mesh.Validate(); err != nil {
		return err
	}

	if err := s.handle.LoadMeshVertices(mesh.Vertices); err != nil {
		return err
	}
	groups := scene.GroupByCategory(mesh, s.categories)
	for _, g := range groups {
		if err := s.handle.LoadMeshIndices(g.Indices, g.Category.String()); err != nil {
			return err
		}
	}
	if err := s.handle.UploadMesh(); err != nil {
		return err
	}

	s.log.Info("mesh loaded",
		zap.Int("vertices", mesh.VertexCount()),
		zap.Int("faces", mesh.FaceCount()),
		zap.Int("categories", len(groups)))
	return nil
}

func (s *Session) folder(run int) string {
	return s.opts.OutputDirectory + strconv.Itoa(run)
}
