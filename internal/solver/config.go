package solver

import "fmt"

// Config mirrors the solver's configuration record.
type Config struct {
	SampleRate          int     `yaml:"sample_rate" toml:"sample_rate"`
	FrequencyBands      int     `yaml:"frequency_bands" toml:"frequency_bands"`
	DirectSHOrder       int     `yaml:"direct_sh_order" toml:"direct_sh_order"`
	IndirectSHOrder     int     `yaml:"indirect_sh_order" toml:"indirect_sh_order"`
	ThreadCount         int     `yaml:"thread_count" toml:"thread_count"`
	UpdateDt            float32 `yaml:"update_dt" toml:"update_dt"`
	IRTime              float32 `yaml:"ir_time" toml:"ir_time"` // seconds
	UnitScale           float32 `yaml:"unit_scale" toml:"unit_scale"`
	GlobalVolume        float32 `yaml:"global_volume" toml:"global_volume"`
	ListenerRadius      float32 `yaml:"listener_radius" toml:"listener_radius"`
	IndirectRayCount    int     `yaml:"indirect_ray_count" toml:"indirect_ray_count"`
	IndirectRayDepth    int     `yaml:"indirect_ray_depth" toml:"indirect_ray_depth"`
	SourceRayCount      int     `yaml:"source_ray_count" toml:"source_ray_count"`
	SourceRayDepth      int     `yaml:"source_ray_depth" toml:"source_ray_depth"`
	MaxDiffractionOrder int     `yaml:"max_diffraction_order" toml:"max_diffraction_order"`
	Direct              bool    `yaml:"direct" toml:"direct"`
	Indirect            bool    `yaml:"indirect" toml:"indirect"`
	Diffraction         bool    `yaml:"diffraction" toml:"diffraction"`
	Transmission        bool    `yaml:"transmission" toml:"transmission"`
	MeshSimplification  bool    `yaml:"mesh_simplification" toml:"mesh_simplification"`
	TemporalCoherence   bool    `yaml:"temporal_coherence" toml:"temporal_coherence"`
	DumpWaveFiles       bool    `yaml:"dump_wave_files" toml:"dump_wave_files"`
	EnableMaterials     bool    `yaml:"enable_materials" toml:"enable_materials"`
	WriteIRToFile       bool    `yaml:"write_ir_to_file" toml:"write_ir_to_file"`

	// MaterialsJSON is not passed to Configure; sessions load it through
	// LoadAudioMaterialJSON once per solver.
	MaterialsJSON string `yaml:"materials_json" toml:"materials_json"`
}

// DefaultConfig returns the solver's stock settings.
func DefaultConfig() Config {
	return Config{
		SampleRate:          44100,
		FrequencyBands:      4,
		DirectSHOrder:       3,
		IndirectSHOrder:     1,
		ThreadCount:         1,
		UpdateDt:            0.02,
		IRTime:              4.0,
		UnitScale:           1.0,
		GlobalVolume:        0.25,
		ListenerRadius:      0.1,
		IndirectRayCount:    5000,
		IndirectRayDepth:    200,
		SourceRayCount:      200,
		SourceRayDepth:      10,
		MaxDiffractionOrder: 10,
		Direct:              true,
		Indirect:            true,
		Diffraction:         true,
		Transmission:        true,
		MeshSimplification:  false,
		TemporalCoherence:   false,
		DumpWaveFiles:       false,
		EnableMaterials:     true,
		WriteIRToFile:       false,
	}
}

// Samples returns the impulse response length implied by IRTime.
func (c Config) Samples() int {
	return int(float64(c.IRTime) * float64(c.SampleRate))
}

// Validate checks the values the solver rejects outright.
func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return &Error{Op: "Configure", Code: CodeBadSampleRate, Err: fmt.Errorf("sample rate %d", c.SampleRate)}
	}
	if c.FrequencyBands <= 0 {
		return &Error{Op: "Configure", Code: CodeInvalidParam, Err: fmt.Errorf("frequency bands %d", c.FrequencyBands)}
	}
	if c.ThreadCount <= 0 {
		return &Error{Op: "Configure", Code: CodeInvalidParam, Err: fmt.Errorf("thread count %d", c.ThreadCount)}
	}
	if c.IRTime <= 0 {
		return &Error{Op: "Configure", Code: CodeInvalidParam, Err: fmt.Errorf("impulse response time %g", c.IRTime)}
	}
	if c.UnitScale <= 0 {
		return &Error{Op: "Configure", Code: CodeInvalidParam, Err: fmt.Errorf("unit scale %g", c.UnitScale)}
	}
	return nil
}
