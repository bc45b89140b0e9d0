// internal/voice owns the continuously-sounding entities: it starts voices
// for new entities up to the concurrency cap, ramps parameters for
// survivors, and releases voices with a grace period when entities vanish.
// Snapshot processing is debounced so a bursty caller collapses into one
// pass per window.
package voice

import (
	"sync"
	"time"

	"github.com/sonigraph/sonigraph/internal/audio"
	"github.com/sonigraph/sonigraph/internal/config"
	"github.com/sonigraph/sonigraph/internal/logging"
	"github.com/sonigraph/sonigraph/internal/schedule"
	"github.com/sonigraph/sonigraph/internal/theme"
	"github.com/sonigraph/sonigraph/internal/types"
)

// Minimum deltas before a ramp is issued, to avoid control-signal churn
const (
	minFreqDelta   = 5.0  // Hz
	minCutoffDelta = 50.0 // Hz
	minVolumeDelta = 0.01 // linear gain
)

const (
	releaseFade   = 300 * time.Millisecond // stop fade for vanished entities
	disposalGrace = 1 * time.Second        // delay before the backend voice is freed
	rampTime      = 150 * time.Millisecond // parameter smoothing window
)

// strengthFreqSpread is how far connection strength bends the base
// frequency, roughly one semitone each way at the extremes
const strengthFreqSpread = 0.12

// Quantizer snaps a frequency to a musical scale. The default is identity;
// the embedding application supplies a real one.
type Quantizer func(freq float64) float64

// HubWeighter redistributes volume by hub influence. The default is
// identity on the base gain.
type HubWeighter func(entityID string, gain float64) float64

// managedVoice pairs an ActiveVoice with its backend handle
type managedVoice struct {
	handle audio.VoiceHandle
	state  types.ActiveVoice
	// strength at the last applied volume modulation, for the
	// sensitivity gate
	modStrength float64
}

// Manager owns all continuous voices for one engine
type Manager struct {
	mu       sync.Mutex
	backend  audio.Backend
	sched    *schedule.Scheduler
	settings config.Settings

	voices map[string]*managedVoice

	// Released voices waiting out the disposal grace, so Dispose can
	// free them even when their timers never fire.
	releasing map[audio.VoiceHandle]schedule.TaskID

	quantize Quantizer
	hubGain  HubWeighter

	layoutWidth float64 // for spatial panning, 0 = panning off

	// Debounce: pending always holds only the latest snapshot; a new call
	// cancels and replaces the timer, never queues.
	debounce   schedule.TaskID
	pending    []types.Entity
	pendingSet bool
	passes     int
	disposed   bool
}

// NewManager creates a voice manager over the given backend
func NewManager(backend audio.Backend, sched *schedule.Scheduler, settings config.Settings) *Manager {
	return &Manager{
		backend:   backend,
		sched:     sched,
		settings:  settings,
		voices:    make(map[string]*managedVoice),
		releasing: make(map[audio.VoiceHandle]schedule.TaskID),
		quantize:  func(f float64) float64 { return f },
		hubGain:   func(_ string, g float64) float64 { return g },
	}
}

// SetQuantizer installs the scale-constraint collaborator
func (m *Manager) SetQuantizer(q Quantizer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if q != nil {
		m.quantize = q
	}
}

// SetHubWeighter installs the hub-influence collaborator
func (m *Manager) SetHubWeighter(w HubWeighter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w != nil {
		m.hubGain = w
	}
}

// SetLayoutWidth sets the layout extent used for spatial panning
func (m *Manager) SetLayoutWidth(w float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.layoutWidth = w
}

// UpdateSettings swaps the settings bundle; it takes effect on the next pass
func (m *Manager) UpdateSettings(s config.Settings) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = s
}

// ProcessSnapshot submits the current entity list. Calls arriving within
// the debounce window coalesce into a single pass over the newest snapshot;
// intermediate snapshots are discarded.
func (m *Manager) ProcessSnapshot(entities []types.Entity) {
	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return
	}
	m.pending = entities
	m.pendingSet = true
	if m.debounce != "" {
		m.sched.Cancel(m.debounce)
	}
	window := time.Duration(m.settings.UpdateThrottleMS) * time.Millisecond
	m.debounce = m.sched.After(window, m.flush)
	m.mu.Unlock()
}

// flush runs one processing pass over the latest pending snapshot
func (m *Manager) flush() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disposed || !m.pendingSet {
		return
	}
	m.debounce = ""
	entities := m.pending
	m.pending = nil
	m.pendingSet = false
	m.processLocked(entities)
}

// processLocked is one full pass: release absent, start new, update
// survivors. Caller holds the lock.
func (m *Manager) processLocked(entities []types.Entity) {
	m.passes++
	now := time.Now()

	// Disabling audio takes effect here: the pass runs against an empty
	// snapshot so every live voice releases instead of sounding forever.
	if !m.settings.Enabled {
		entities = nil
	}

	present := make(map[string]types.Entity, len(entities))
	for _, e := range entities {
		present[e.ID] = e
	}

	// (a) release voices for vanished entities
	for id, v := range m.voices {
		if _, ok := present[id]; ok {
			continue
		}
		m.releaseLocked(id, v)
	}

	// (b) start voices for new entities up to the cap, (c) update survivors
	for _, e := range entities {
		if v, ok := m.voices[e.ID]; ok {
			m.updateVoiceLocked(v, e, now)
			continue
		}
		if len(m.voices) >= m.settings.MaxVoices {
			logging.Debug("voice", "cap reached (%d), skipping %s", m.settings.MaxVoices, e.ID)
			continue
		}
		m.startVoiceLocked(e, now)
	}
}

// releaseLocked fades a voice out and schedules its backend disposal after
// the grace period. The voice leaves the active set immediately.
func (m *Manager) releaseLocked(id string, v *managedVoice) {
	if err := m.backend.Stop(v.handle, releaseFade); err != nil {
		logging.Warn("voice", "stop failed for %s: %v", id, err)
	}
	delete(m.voices, id)

	handle := v.handle
	task := m.sched.After(disposalGrace, func() {
		m.mu.Lock()
		delete(m.releasing, handle)
		m.mu.Unlock()
		if err := m.backend.Dispose(handle); err != nil {
			logging.Warn("voice", "dispose failed for %s: %v", id, err)
		}
	})
	if task != "" {
		m.releasing[handle] = task
	}
	logging.Debug("voice", "released %s (%d active)", id, len(m.voices))
}

// startVoiceLocked resolves the entity's theme and brings up a new backend
// voice. Any backend error abandons only this entity.
func (m *Manager) startVoiceLocked(e types.Entity, now time.Time) {
	ts := m.settings.TypeFor(e.Type)
	if !ts.Enabled {
		return
	}

	base := theme.ResolveBaseTheme(e.Type)
	resolved := theme.CustomizeTheme(base, e.Characteristics)

	pan := 0.0
	if m.settings.SpatialAudio && m.layoutWidth > 0 {
		pan = theme.PanForPosition(e.Centroid, m.layoutWidth)
	}

	handle, err := m.backend.CreateVoice(audio.VoiceSpec{
		Texture: resolved.Timbre.Texture,
		Attack:  resolved.Dynamics.Attack,
		Decay:   resolved.Dynamics.Decay,
		Sustain: resolved.Dynamics.Sustain,
		Release: resolved.Dynamics.Release,
		Pan:     pan,
	})
	if err != nil {
		logging.Warn("voice", "create failed for %s: %v", e.ID, err)
		return
	}

	cutoff := m.targetCutoff(resolved, e)
	if err := m.backend.AttachFilter(handle, cutoff, resolved.Modulation.Resonance); err != nil {
		logging.Warn("voice", "filter failed for %s: %v", e.ID, err)
		// voice still usable without the filter
	}

	freq := m.targetFrequency(resolved, e)
	gain := m.targetGain(resolved, e, ts)
	if err := m.backend.Start(handle, freq, m.backend.GainToVolume(gain)); err != nil {
		logging.Warn("voice", "start failed for %s: %v", e.ID, err)
		if derr := m.backend.Dispose(handle); derr != nil {
			logging.Debug("voice", "dispose after failed start: %v", derr)
		}
		return
	}

	m.voices[e.ID] = &managedVoice{
		handle: handle,
		state: types.ActiveVoice{
			EntityID:     e.ID,
			Theme:        resolved,
			Frequency:    freq,
			Volume:       gain,
			FilterCutoff: cutoff,
			Playing:      true,
			LastUpdate:   now,
			MemberCount:  len(e.Nodes),
		},
		modStrength: e.Strength(),
	}
	logging.Debug("voice", "started %s at %.1fHz (%d active)", e.ID, freq, len(m.voices))
}

// updateVoiceLocked ramps a surviving voice toward its new targets,
// skipping ramps below the minimum deltas
func (m *Manager) updateVoiceLocked(v *managedVoice, e types.Entity, now time.Time) {
	ts := m.settings.TypeFor(e.Type)
	if !ts.Enabled {
		m.releaseLocked(e.ID, v)
		return
	}

	resolved := theme.CustomizeTheme(theme.ResolveBaseTheme(e.Type), e.Characteristics)

	freq := m.targetFrequency(resolved, e)
	if delta := freq - v.state.Frequency; delta >= minFreqDelta || delta <= -minFreqDelta {
		if err := m.backend.Ramp(v.handle, audio.ParamFrequency, freq, rampTime); err != nil {
			logging.Warn("voice", "freq ramp failed for %s: %v", e.ID, err)
		} else {
			v.state.Frequency = freq
		}
	}

	cutoff := m.targetCutoff(resolved, e)
	if delta := cutoff - v.state.FilterCutoff; delta >= minCutoffDelta || delta <= -minCutoffDelta {
		if err := m.backend.Ramp(v.handle, audio.ParamCutoff, cutoff, rampTime); err != nil {
			logging.Warn("voice", "cutoff ramp failed for %s: %v", e.ID, err)
		} else {
			v.state.FilterCutoff = cutoff
		}
	}

	// Strength-driven volume modulation is gated by sensitivity: small
	// strength wobbles stay silent.
	gain := v.state.Volume
	sm := m.settings.StrengthModulation
	if sm.Enabled {
		gate := 0.1 / sm.Sensitivity
		if d := e.Strength() - v.modStrength; d >= gate || d <= -gate {
			gain = m.targetGain(resolved, e, ts)
			v.modStrength = e.Strength()
		}
	}
	if delta := gain - v.state.Volume; delta >= minVolumeDelta || delta <= -minVolumeDelta {
		if err := m.backend.Ramp(v.handle, audio.ParamVolume, m.backend.GainToVolume(gain), rampTime); err != nil {
			logging.Warn("voice", "volume ramp failed for %s: %v", e.ID, err)
		} else {
			v.state.Volume = gain
		}
	}

	v.state.Theme = resolved
	v.state.MemberCount = len(e.Nodes)
	v.state.LastUpdate = now
}

// targetFrequency bends the theme's base frequency by connection strength
// (about a semitone each way) and snaps it to the installed scale
func (m *Manager) targetFrequency(t types.AudioTheme, e types.Entity) float64 {
	f := t.BaseFreq * (1 + strengthFreqSpread*(e.Strength()-0.5))
	return m.quantize(f)
}

// targetCutoff opens the filter with density: sparse entities sound darker
func (m *Manager) targetCutoff(t types.AudioTheme, e types.Entity) float64 {
	return t.Modulation.FilterCutoff * (0.5 + e.Characteristics.Density)
}

// targetGain folds theme volume, connection strength, per-type volume,
// master volume, and hub influence into one linear gain. Strength moves
// the voice between half and full theme volume.
func (m *Manager) targetGain(t types.AudioTheme, e types.Entity, ts config.TypeSettings) float64 {
	strengthFactor := 0.5 + 0.5*e.Strength()
	gain := t.Dynamics.BaseVolume * strengthFactor * ts.Volume * m.settings.MasterVolume
	return m.hubGain(e.ID, gain)
}

// ActiveVoices returns a snapshot of all live voices
func (m *Manager) ActiveVoices() []types.ActiveVoice {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.ActiveVoice, 0, len(m.voices))
	for _, v := range m.voices {
		out = append(out, v.state)
	}
	return out
}

// ActiveVoice returns the live voice for an entity, or nil
func (m *Manager) ActiveVoice(entityID string) *types.ActiveVoice {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.voices[entityID]; ok {
		state := v.state
		return &state
	}
	return nil
}

// ActiveCount returns how many voices are sounding
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.voices)
}

// Passes returns how many processing passes have run
func (m *Manager) Passes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.passes
}

// Dispose stops and frees every voice synchronously and cancels the pending
// debounce. Idempotent; the manager ignores all calls afterwards.
func (m *Manager) Dispose() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disposed {
		return
	}
	m.disposed = true
	if m.debounce != "" {
		m.sched.Cancel(m.debounce)
		m.debounce = ""
	}
	m.pending = nil
	m.pendingSet = false
	for id, v := range m.voices {
		if err := m.backend.Stop(v.handle, 0); err != nil {
			logging.Debug("voice", "stop during dispose failed for %s: %v", id, err)
		}
		if err := m.backend.Dispose(v.handle); err != nil {
			logging.Debug("voice", "dispose failed for %s: %v", id, err)
		}
		delete(m.voices, id)
	}
	// Voices mid-grace would otherwise leak if their timers are cancelled
	for handle, task := range m.releasing {
		m.sched.Cancel(task)
		if err := m.backend.Dispose(handle); err != nil {
			logging.Debug("voice", "dispose of releasing voice failed: %v", err)
		}
		delete(m.releasing, handle)
	}
}
