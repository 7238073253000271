package solver

import (
	"fmt"
	gomath "math"
	"os"
	"sync"

	"github.com/Faultbox/acoustic-scene/pkg/math"
)

// Operation names recorded by Fake.
const (
	OpConfigure        = "Configure"
	OpAddListener      = "AddListener"
	OpAddSource        = "AddSource"
	OpLoadMeshVertices = "LoadMeshVertices"
	OpLoadMeshIndices  = "LoadMeshIndices"
	OpUploadMesh       = "UploadMesh"
	OpLoadMaterials    = "LoadAudioMaterialJSON"
	OpRunSimulation    = "RunSimulation"
	OpImpulseResponse  = "ImpulseResponseForChannel"
	OpRayEfficiency    = "RayEfficiency"
	OpClose            = "Close"
)

// speedOfSound in metres per second, used for synthetic arrival times.
const speedOfSound = 343.0

// FakeCall is one recorded call on a Fake.
type FakeCall struct {
	Op  string
	Arg string
}

// Fake is an in-memory Solver that records every call and synthesizes a
// direct-path impulse response from the source and listener positions. It
// checks call order the way the real solver does.
type Fake struct {
	mu sync.Mutex

	samples  int // overrides Config.Samples when > 0
	calls    []FakeCall
	failures map[string]error

	config     Config
	configured bool
	closed     bool

	vertices  []math.Vec3
	indices   map[string][]uint32
	uploaded  bool
	materials string

	listener    *math.Vec3
	layout      ChannelLayout
	sources     []math.Vec3
	runs        int
	lastFolder  string
	lastSamples int
	efficiency  float32
}

// NewFake creates a fake solver. samples fixes the impulse response length;
// zero derives it from the configuration.
func NewFake(samples int) *Fake {
	return &Fake{
		samples:  samples,
		failures: make(map[string]error),
		indices:  make(map[string][]uint32),
	}
}

// FailNext makes the next call of op return err.
func (f *Fake) FailNext(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[op] = err
}

// Calls returns a copy of the recorded calls.
func (f *Fake) Calls() []FakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FakeCall(nil), f.calls...)
}

// Count returns how many times op was called, failed calls included.
func (f *Fake) Count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Categories returns the category keys loaded so far.
func (f *Fake) Categories() map[string][]uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string][]uint32, len(f.indices))
	for k, v := range f.indices {
		out[k] = append([]uint32(nil), v...)
	}
	return out
}

// LastFolder returns the output folder of the most recent run.
func (f *Fake) LastFolder() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastFolder
}

// Sources returns every registered source position in order.
func (f *Fake) Sources() []math.Vec3 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]math.Vec3(nil), f.sources...)
}

// Closed reports whether Close was called.
func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// record logs a call and returns an injected failure, if any.
// Caller must hold f.mu.
func (f *Fake) record(op, arg string) error {
	f.calls = append(f.calls, FakeCall{Op: op, Arg: arg})
	if err, ok := f.failures[op]; ok {
		delete(f.failures, op)
		return err
	}
	if f.closed {
		return &Error{Op: op, Code: CodeUninitialized, Err: fmt.Errorf("solver closed")}
	}
	if op != OpConfigure && op != OpClose && !f.configured {
		return &Error{Op: op, Code: CodeUninitialized, Err: fmt.Errorf("solver not configured")}
	}
	return nil
}

// Configure validates cfg the way the solver does and stores it.
func (f *Fake) Configure(cfg Config) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(OpConfigure, fmt.Sprintf("rate=%d", cfg.SampleRate)); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	f.config = cfg
	f.configured = true
	return nil
}

// AddListener records the listener position and channel layout.
func (f *Fake) AddListener(pos math.Vec3, rot math.Quat, layout ChannelLayout) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(OpAddListener, fmt.Sprintf("%v %v %s/%d", pos, rot, layout.Type, layout.Count)); err != nil {
		return err
	}
	if err := layout.Validate(); err != nil {
		return err
	}
	p := pos
	f.listener = &p
	f.layout = layout
	return nil
}

// AddSource appends a source; earlier sources stay registered.
func (f *Fake) AddSource(pos math.Vec3) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(OpAddSource, pos.String()); err != nil {
		return err
	}
	f.sources = append(f.sources, pos)
	return nil
}

// LoadMeshVertices replaces the vertex buffer and drops loaded indices.
func (f *Fake) LoadMeshVertices(vertices []math.Vec3) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(OpLoadMeshVertices, fmt.Sprintf("%d", len(vertices))); err != nil {
		return err
	}
	f.vertices = append([]math.Vec3(nil), vertices...)
	f.indices = make(map[string][]uint32)
	f.uploaded = false
	return nil
}

// LoadMeshIndices appends triangle indices under a category key.
func (f *Fake) LoadMeshIndices(indices []uint32, category string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(OpLoadMeshIndices, fmt.Sprintf("%s:%d", category, len(indices))); err != nil {
		return err
	}
	if len(indices)%3 != 0 {
		return &Error{Op: OpLoadMeshIndices, Code: CodeInvalidParam, Err: fmt.Errorf("%d indices is not a whole number of triangles", len(indices))}
	}
	for _, idx := range indices {
		if int(idx) >= len(f.vertices) {
			return &Error{Op: OpLoadMeshIndices, Code: CodeInvalidParam, Err: fmt.Errorf("index %d out of range (vertex count %d)", idx, len(f.vertices))}
		}
	}
	f.indices[category] = append(f.indices[category], indices...)
	return nil
}

// UploadMesh fails unless both vertices and indices were loaded.
func (f *Fake) UploadMesh() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(OpUploadMesh, ""); err != nil {
		return err
	}
	if len(f.vertices) == 0 || len(f.indices) == 0 {
		return &Error{Op: OpUploadMesh, Code: CodeInvalidParam, Err: fmt.Errorf("no mesh data loaded")}
	}
	f.uploaded = true
	return nil
}

// LoadAudioMaterialJSON records path after checking that it is readable.
func (f *Fake) LoadAudioMaterialJSON(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(OpLoadMaterials, path); err != nil {
		return err
	}
	if _, err := os.Stat(path); err != nil {
		return &Error{Op: OpLoadMaterials, Code: CodeInvalidParam, Err: err}
	}
	f.materials = path
	return nil
}

// Materials returns the last loaded material file, or "".
func (f *Fake) Materials() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.materials
}

// RunSimulation requires an uploaded mesh and fixes the sample count and
// ray efficiency reported until the next run.
func (f *Fake) RunSimulation(outputFolder string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(OpRunSimulation, outputFolder); err != nil {
		return err
	}
	if !f.uploaded {
		return &Error{Op: OpRunSimulation, Code: CodeUninitialized, Err: fmt.Errorf("no mesh uploaded")}
	}
	f.runs++
	f.lastFolder = outputFolder
	f.lastSamples = f.sampleCount()
	f.efficiency = f.reachable()
	return nil
}

// reachable is the fraction of sources whose direct path arrives within
// the impulse response. Caller must hold f.mu.
func (f *Fake) reachable() float32 {
	if f.listener == nil || len(f.sources) == 0 {
		return 0
	}
	n := 0
	for _, src := range f.sources {
		if f.delay(f.distance(src)) < f.lastSamples {
			n++
		}
	}
	return float32(n) / float32(len(f.sources))
}

// distance from the listener in metres. Caller must hold f.mu.
func (f *Fake) distance(src math.Vec3) float64 {
	return float64(src.Sub(*f.listener).Length()) * float64(f.config.UnitScale)
}

// delay is the arrival time of a path of d metres, in samples.
func (f *Fake) delay(d float64) int {
	rate := float64(f.config.SampleRate)
	if rate <= 0 {
		rate = 1
	}
	return int(gomath.Round(d / speedOfSound * rate))
}

// RayEfficiency reports, for the last run, the fraction of sources whose
// direct path fits in the impulse response; zero before any run.
func (f *Fake) RayEfficiency() float32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, FakeCall{Op: OpRayEfficiency})
	return f.efficiency
}

// ChannelCount is the listener layout's channel count, or zero without a
// listener.
func (f *Fake) ChannelCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listener == nil {
		return 0
	}
	return f.layout.Count
}

// SampleCount is zero until a simulation has run.
func (f *Fake) SampleCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.runs == 0 {
		return 0
	}
	return f.lastSamples
}

func (f *Fake) sampleCount() int {
	if f.samples > 0 {
		return f.samples
	}
	return f.config.Samples()
}

// ImpulseResponseForChannel returns a unit impulse per source, delayed by
// its distance to the listener and attenuated by 1/(1+d). Higher channels
// are scaled down so channels are distinguishable.
func (f *Fake) ImpulseResponseForChannel(channel int) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(OpImpulseResponse, fmt.Sprintf("%d", channel)); err != nil {
		return nil, err
	}
	if f.runs == 0 {
		return nil, &Error{Op: OpImpulseResponse, Code: CodeUninitialized, Err: fmt.Errorf("no simulation has run")}
	}
	if f.listener == nil || channel < 0 || channel >= f.layout.Count {
		return nil, &Error{Op: OpImpulseResponse, Code: CodeInvalidParam, Err: fmt.Errorf("channel %d", channel)}
	}

	ir := make([]float32, f.lastSamples)
	for _, src := range f.sources {
		d := f.distance(src)
		if delay := f.delay(d); delay < len(ir) {
			ir[delay] += float32(1 / (1 + d) / float64(channel+1))
		}
	}
	return ir, nil
}

// Close marks the fake closed; every later call fails.
func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(OpClose, ""); err != nil {
		return err
	}
	f.closed = true
	return nil
}

// FakeFactory hands out Fakes and remembers them, so tests can inspect
// every instance a session acquired.
type FakeFactory struct {
	mu      sync.Mutex
	Samples int
	// Err, if set, fails the next New call.
	Err   error
	fakes []*Fake
}

// New implements Factory.
func (ff *FakeFactory) New() (Solver, error) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	if ff.Err != nil {
		err := ff.Err
		ff.Err = nil
		return nil, err
	}
	f := NewFake(ff.Samples)
	ff.fakes = append(ff.fakes, f)
	return f, nil
}

// Fakes returns every instance created so far.
func (ff *FakeFactory) Fakes() []*Fake {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	return append([]*Fake(nil), ff.fakes...)
}

// Last returns the most recently created instance, or nil.
func (ff *FakeFactory) Last() *Fake {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	if len(ff.fakes) == 0 {
		return nil
	}
	return ff.fakes[len(ff.fakes)-1]
}

// Count sums the calls of op over every instance.
func (ff *FakeFactory) Count(op string) int {
	n := 0
	for _, f := range ff.Fakes() {
		n += f.Count(op)
	}
	return n
}
