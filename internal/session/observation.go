package session

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/multierr"
)

// ErrSampleCount is returned when the solver hands back a channel whose
// length differs from its reported sample count.
var ErrSampleCount = errors.New("impulse response length mismatch")

// ImpulseSource is the part of the solver that exposes simulation results.
type ImpulseSource interface {
	ChannelCount() int
	SampleCount() int
	ImpulseResponseForChannel(channel int) ([]float32, error)
}

// ImpulseResponse is a channel x sample buffer.
type ImpulseResponse [][]float32

// Channels returns the channel count.
func (ir ImpulseResponse) Channels() int {
	return len(ir)
}

// Samples returns the per-channel sample count.
func (ir ImpulseResponse) Samples() int {
	if len(ir) == 0 {
		return 0
	}
	return len(ir[0])
}

// ObservationCache holds the impulse response of the latest run. It is
// filled on first read and emptied by Invalidate after every run.
type ObservationCache struct {
	buf   ImpulseResponse
	valid bool
	fills int
}

// Get returns the cached buffer, querying src once per channel if the
// cache is empty.
func (c *ObservationCache) Get(src ImpulseSource) (ImpulseResponse, error) {
	if c.valid {
		return c.buf, nil
	}

	channels, samples := c.Space(src)
	// One backing array for the whole buffer.
	data := make([]float32, channels*samples)
	buf := make(ImpulseResponse, channels)
	for ch := 0; ch < channels; ch++ {
		ir, err := src.ImpulseResponseForChannel(ch)
		if err != nil {
			return nil, fmt.Errorf("reading impulse response channel %d: %w", ch, err)
		}
		if len(ir) != samples {
			return nil, fmt.Errorf("%w: channel %d has %d samples, solver reports %d", ErrSampleCount, ch, len(ir), samples)
		}
		buf[ch] = data[ch*samples : (ch+1)*samples : (ch+1)*samples]
		copy(buf[ch], ir)
	}

	c.buf = buf
	c.valid = true
	c.fills++
	return c.buf, nil
}

// Space returns (channels, samples) as reported by src, or (0, 0) if src
// is nil.
func (c *ObservationCache) Space(src ImpulseSource) (channels, samples int) {
	if src == nil {
		return 0, 0
	}
	return src.ChannelCount(), src.SampleCount()
}

// Invalidate drops the cached buffer.
func (c *ObservationCache) Invalidate() {
	c.buf = nil
	c.valid = false
}

// Valid reports whether a buffer is cached.
func (c *ObservationCache) Valid() bool {
	return c.valid
}

// Fills returns how many times the cache was populated from the solver.
func (c *ObservationCache) Fills() int {
	return c.fills
}

// WriteImpulseResponses dumps each channel of ir to dir/ir<k>.txt, one
// sample per line in %.18e notation.
func WriteImpulseResponses(dir string, ir ImpulseResponse) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating impulse response folder: %w", err)
	}

	var errs error
	for ch, samples := range ir {
		path := filepath.Join(dir, fmt.Sprintf("ir%d.txt", ch))
		errs = multierr.Append(errs, writeChannel(path, samples))
	}
	return errs
}

func writeChannel(path string, samples []float32) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, f.Close())
	}()

	w := bufio.NewWriter(f)
	var line []byte
	for _, v := range samples {
		line = strconv.AppendFloat(line[:0], float64(v), 'e', 18, 64)
		line = append(line, '\n')
		if _, err := w.Write(line); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}
	return w.Flush()
}
