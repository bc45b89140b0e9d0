// internal/audio defines the narrow capability surface the engine needs
// from a synthesis backend. One adapter per target audio library implements
// this interface; nothing outside an adapter may assume anything about the
// backend's object model.
package audio

import "time"

// Param identifies a rampable voice parameter
type Param string

const (
	ParamFrequency Param = "frequency" // Hz
	ParamVolume    Param = "volume"    // backend volume units
	ParamCutoff    Param = "cutoff"    // filter cutoff Hz
)

// VoiceSpec carries everything needed to create one voice
type VoiceSpec struct {
	Texture string  // oscillator family: sine, triangle, square, sawtooth
	Attack  float64 // seconds
	Decay   float64 // seconds
	Sustain float64 // 0.0-1.0 level
	Release float64 // seconds
	Pan     float64 // -1.0 (left) to 1.0 (right)
}

// VoiceHandle identifies a live backend voice
type VoiceHandle string

// Backend is the minimal capability set an audio adapter must expose.
// All calls are fire-and-forget from the engine's perspective; an error
// return is logged and contained at single-voice scope, never propagated.
type Backend interface {
	// CreateVoice allocates a voice with an oscillator and ADSR envelope
	CreateVoice(spec VoiceSpec) (VoiceHandle, error)

	// AttachFilter adds a resonant lowpass filter to the voice
	AttachFilter(v VoiceHandle, cutoff, resonance float64) error

	// Start begins sounding the voice at a frequency and velocity
	Start(v VoiceHandle, freq, velocity float64) error

	// Stop releases the voice over the given fade time
	Stop(v VoiceHandle, release time.Duration) error

	// Ramp moves a parameter linearly to target over the duration
	Ramp(v VoiceHandle, p Param, target float64, duration time.Duration) error

	// GainToVolume converts linear gain (0.0-1.0) to the backend's
	// native volume unit
	GainToVolume(gain float64) float64

	// Dispose releases the voice and any attached filter
	Dispose(v VoiceHandle) error
}

// NullBackend implements Backend as silent no-ops, for headless runs and
// as a safe default when no adapter is wired.
type NullBackend struct{}

// NewNullBackend returns the shared no-op backend
func NewNullBackend() *NullBackend { return &NullBackend{} }

func (n *NullBackend) CreateVoice(spec VoiceSpec) (VoiceHandle, error) { return "null", nil }
func (n *NullBackend) AttachFilter(v VoiceHandle, cutoff, resonance float64) error { return nil }
func (n *NullBackend) Start(v VoiceHandle, freq, velocity float64) error           { return nil }
func (n *NullBackend) Stop(v VoiceHandle, release time.Duration) error             { return nil }
func (n *NullBackend) Ramp(v VoiceHandle, p Param, target float64, duration time.Duration) error {
	return nil
}
func (n *NullBackend) GainToVolume(gain float64) float64 { return gain }
func (n *NullBackend) Dispose(v VoiceHandle) error       { return nil }
