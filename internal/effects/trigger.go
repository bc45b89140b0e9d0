// internal/effects fires one-shot, time-boxed audio effects for transition
// and evolution events. Effects are fully decoupled from the continuous
// voice manager:
// each one creates its own temporary backend voices and tears them down on
// its own timer.
package effects

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sonigraph/sonigraph/internal/audio"
	"github.com/sonigraph/sonigraph/internal/config"
	"github.com/sonigraph/sonigraph/internal/logging"
	"github.com/sonigraph/sonigraph/internal/schedule"
	"github.com/sonigraph/sonigraph/internal/types"
)

// teardownGrace is added to an effect's duration before its voices are freed
const teardownGrace = 1 * time.Second

// defaultDurations is the fixed per-type duration table, in seconds
var defaultDurations = map[types.EvolutionType]float64{
	types.EvolutionMerge:       3.0,
	types.EvolutionSplit:       2.5,
	types.EvolutionGrowth:      2.0,
	types.EvolutionDecline:     2.5,
	types.EvolutionBridging:    2.0,
	types.EvolutionFormation:   2.5,
	types.EvolutionDissolution: 3.0,
}

// algorithmFor names the effect algorithm for each event type
var algorithmFor = map[types.EvolutionType]string{
	types.EvolutionMerge:       "convergence",
	types.EvolutionSplit:       "divergence",
	types.EvolutionGrowth:      "expansion",
	types.EvolutionDecline:     "fade",
	types.EvolutionBridging:    "cross-fade",
	types.EvolutionFormation:   "build-up",
	types.EvolutionDissolution: "fade-out",
}

// Trigger dispatches evolution and transition events to their effect
// algorithms with per-(entity, type) throttling
type Trigger struct {
	mu      sync.Mutex
	backend audio.Backend
	sched   *schedule.Scheduler

	settings config.EvolutionSettings
	audio    config.Settings // master volume and transition knobs

	lastFired map[string]time.Time           // kind|entityID|type -> last dispatch
	active    map[string][]audio.VoiceHandle // effect instance -> temp voices
	fired     int
	disposed  bool
}

// NewTrigger creates an effect trigger over the given backend
func NewTrigger(backend audio.Backend, sched *schedule.Scheduler, settings config.EvolutionSettings, audioSettings config.Settings) *Trigger {
	return &Trigger{
		backend:   backend,
		sched:     sched,
		settings:  settings,
		audio:     audioSettings,
		lastFired: make(map[string]time.Time),
		active:    make(map[string][]audio.VoiceHandle),
	}
}

// UpdateSettings swaps the settings; takes effect on the next trigger
func (t *Trigger) UpdateSettings(settings config.EvolutionSettings, audioSettings config.Settings) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.settings = settings
	t.audio = audioSettings
}

// Fired returns how many effects have been dispatched
func (t *Trigger) Fired() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fired
}

// ActiveEffects returns how many effects currently hold temp voices
func (t *Trigger) ActiveEffects() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.active)
}

// Trigger fires the effect for one evolution event, parameterized by the
// entity's theme. No-op unless event audio and the specific type are both
// enabled; repeats of the same (entity, type) inside the throttle window
// are dropped.
func (t *Trigger) Trigger(ev types.EvolutionEvent, th types.AudioTheme) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.disposed || !t.settings.EventsEnabled {
		return
	}
	es, ok := t.settings.Events[string(ev.Type)]
	if !ok || !es.Enabled {
		return
	}

	key := "evolution|" + ev.EntityID + "|" + string(ev.Type)
	window := time.Duration(t.settings.EventThrottleMS) * time.Millisecond
	now := time.Now()
	if last, ok := t.lastFired[key]; ok && now.Sub(last) < window {
		logging.Debug("effects", "throttled %s for %s", ev.Type, ev.EntityID)
		return
	}
	t.lastFired[key] = now

	intensity := clamp01(ev.Intensity)
	duration := time.Duration(defaultDurations[ev.Type] * (0.5 + 0.5*intensity) * float64(time.Second))
	gain := es.Volume * t.audio.MasterVolume * (0.5 + 0.5*intensity)

	id := uuid.NewString()
	voices := t.runAlgorithm(ev.Type, th, duration, gain)
	if len(voices) == 0 {
		return
	}
	t.active[id] = voices
	t.fired++
	logging.Debug("effects", "%s (%s) for %s: %d voices, %.1fs",
		algorithmFor[ev.Type], ev.Type, ev.EntityID, len(voices), duration.Seconds())

	t.sched.After(duration+teardownGrace, func() { t.teardown(id) })
}

// TriggerTransition fires the one-shot for a membership-level transition,
// shaped by the event's derived effect config. No-op unless transition
// audio is enabled; throttled like evolution effects, keyed separately.
func (t *Trigger) TriggerTransition(ev types.TransitionEvent, th types.AudioTheme) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.disposed || !t.audio.TransitionsEnabled {
		return
	}

	key := "transition|" + ev.EntityID + "|" + string(ev.Type)
	window := time.Duration(t.settings.EventThrottleMS) * time.Millisecond
	now := time.Now()
	if last, ok := t.lastFired[key]; ok && now.Sub(last) < window {
		logging.Debug("effects", "throttled %s for %s", ev.Type, ev.EntityID)
		return
	}
	t.lastFired[key] = now

	speed := t.audio.TransitionSpeed
	if speed <= 0 {
		speed = 1.0
	}
	duration := time.Duration(ev.Effect.Duration / speed * float64(time.Second))
	gain := t.audio.TransitionVolume * t.audio.MasterVolume

	id := uuid.NewString()
	voices := t.transitionShape(ev.Effect, th, duration, gain)
	if len(voices) == 0 {
		return
	}
	t.active[id] = voices
	t.fired++
	logging.Debug("effects", "%s (%s) for %s: %.1fs",
		ev.Effect.Algorithm, ev.Type, ev.EntityID, duration.Seconds())

	t.sched.After(duration+teardownGrace, func() { t.teardown(id) })
}

// transitionShape plays one voice shaped by the effect config's pitch
// contour and fade mode. Caller holds the lock.
func (t *Trigger) transitionShape(fx types.EffectConfig, th types.AudioTheme, d time.Duration, gain float64) []audio.VoiceHandle {
	startGain := gain
	switch fx.VolumeFade {
	case types.FadeIn:
		startGain = gain * 0.1
	case types.FadeSwell:
		startGain = gain * 0.3
	}

	v := t.newVoice(th, th.BaseFreq, startGain)
	if v == "" {
		return nil
	}

	// Pitch range is in semitones
	factor := math.Pow(2, fx.PitchRange/12)
	switch fx.PitchDirection {
	case types.PitchUp:
		t.ramp(v, audio.ParamFrequency, th.BaseFreq*factor, d)
	case types.PitchDown:
		t.ramp(v, audio.ParamFrequency, th.BaseFreq/factor, d)
	}

	switch fx.VolumeFade {
	case types.FadeIn:
		t.ramp(v, audio.ParamVolume, t.backend.GainToVolume(gain), d)
	case types.FadeOut:
		t.ramp(v, audio.ParamVolume, t.backend.GainToVolume(0), d)
	case types.FadeSwell:
		t.ramp(v, audio.ParamVolume, t.backend.GainToVolume(gain), d/2)
		t.sched.After(d/2, func() {
			t.ramp(v, audio.ParamVolume, t.backend.GainToVolume(gain*0.3), d/2)
		})
	}

	t.stopAfter(v, d)
	return []audio.VoiceHandle{v}
}

// teardown frees one effect's temporary voices
func (t *Trigger) teardown(id string) {
	t.mu.Lock()
	voices := t.active[id]
	delete(t.active, id)
	t.mu.Unlock()

	for _, v := range voices {
		if err := t.backend.Dispose(v); err != nil {
			logging.Debug("effects", "dispose failed: %v", err)
		}
	}
}

// Dispose tears down every live effect synchronously. Idempotent.
func (t *Trigger) Dispose() {
	t.mu.Lock()
	if t.disposed {
		t.mu.Unlock()
		return
	}
	t.disposed = true
	all := t.active
	t.active = make(map[string][]audio.VoiceHandle)
	t.mu.Unlock()

	for _, voices := range all {
		for _, v := range voices {
			if err := t.backend.Stop(v, 0); err != nil {
				logging.Debug("effects", "stop during dispose failed: %v", err)
			}
			if err := t.backend.Dispose(v); err != nil {
				logging.Debug("effects", "dispose failed: %v", err)
			}
		}
	}
}

// runAlgorithm dispatches to one of the seven effect shapes. Caller holds
// the lock; all backend errors are contained here.
func (t *Trigger) runAlgorithm(evType types.EvolutionType, th types.AudioTheme, duration time.Duration, gain float64) []audio.VoiceHandle {
	switch evType {
	case types.EvolutionMerge:
		return t.convergence(th, duration, gain)
	case types.EvolutionSplit:
		return t.divergence(th, duration, gain)
	case types.EvolutionGrowth:
		return t.expansion(th, duration, gain)
	case types.EvolutionDecline:
		return t.fade(th, duration, gain)
	case types.EvolutionBridging:
		return t.crossFade(th, duration, gain)
	case types.EvolutionFormation:
		return t.buildUp(th, duration, gain)
	case types.EvolutionDissolution:
		return t.fadeOut(th, duration, gain)
	}
	return nil
}

// newVoice creates and starts one temp voice, returning "" on any error
func (t *Trigger) newVoice(th types.AudioTheme, freq, gain float64) audio.VoiceHandle {
	v, err := t.backend.CreateVoice(audio.VoiceSpec{
		Texture: th.Timbre.Texture,
		Attack:  0.05,
		Decay:   0.1,
		Sustain: 0.8,
		Release: 0.3,
	})
	if err != nil {
		logging.Warn("effects", "create failed: %v", err)
		return ""
	}
	if err := t.backend.Start(v, freq, t.backend.GainToVolume(gain)); err != nil {
		logging.Warn("effects", "start failed: %v", err)
		if derr := t.backend.Dispose(v); derr != nil {
			logging.Debug("effects", "dispose after failed start: %v", derr)
		}
		return ""
	}
	return v
}

func (t *Trigger) ramp(v audio.VoiceHandle, p audio.Param, target float64, d time.Duration) {
	if err := t.backend.Ramp(v, p, target, d); err != nil {
		logging.Warn("effects", "ramp failed: %v", err)
	}
}

func (t *Trigger) stopAfter(v audio.VoiceHandle, d time.Duration) {
	t.sched.After(d, func() {
		if err := t.backend.Stop(v, 100*time.Millisecond); err != nil {
			logging.Debug("effects", "stop failed: %v", err)
		}
	})
}

// convergence: two detuned voices glide onto the base frequency (merge)
func (t *Trigger) convergence(th types.AudioTheme, d time.Duration, gain float64) []audio.VoiceHandle {
	var out []audio.VoiceHandle
	for _, detune := range []float64{0.84, 1.19} {
		v := t.newVoice(th, th.BaseFreq*detune, gain*0.5)
		if v == "" {
			continue
		}
		t.ramp(v, audio.ParamFrequency, th.BaseFreq, d)
		t.stopAfter(v, d)
		out = append(out, v)
	}
	return out
}

// divergence: one center voice splits into two gliding apart (split)
func (t *Trigger) divergence(th types.AudioTheme, d time.Duration, gain float64) []audio.VoiceHandle {
	var out []audio.VoiceHandle
	for _, target := range []float64{0.75, 1.33} {
		v := t.newVoice(th, th.BaseFreq, gain*0.5)
		if v == "" {
			continue
		}
		t.ramp(v, audio.ParamFrequency, th.BaseFreq*target, d)
		t.stopAfter(v, d)
		out = append(out, v)
	}
	return out
}

// expansion: a rising swell brightening as it grows (growth)
func (t *Trigger) expansion(th types.AudioTheme, d time.Duration, gain float64) []audio.VoiceHandle {
	v := t.newVoice(th, th.BaseFreq, gain*0.3)
	if v == "" {
		return nil
	}
	t.ramp(v, audio.ParamFrequency, th.BaseFreq*1.5, d)
	t.ramp(v, audio.ParamVolume, t.backend.GainToVolume(gain), d/2)
	t.stopAfter(v, d)
	return []audio.VoiceHandle{v}
}

// fade: a slow volume decay on the base tone (decline)
func (t *Trigger) fade(th types.AudioTheme, d time.Duration, gain float64) []audio.VoiceHandle {
	v := t.newVoice(th, th.BaseFreq, gain)
	if v == "" {
		return nil
	}
	t.ramp(v, audio.ParamVolume, t.backend.GainToVolume(gain*0.1), d)
	t.stopAfter(v, d)
	return []audio.VoiceHandle{v}
}

// crossFade: an octave-up voice swells while the base voice recedes (bridging)
func (t *Trigger) crossFade(th types.AudioTheme, d time.Duration, gain float64) []audio.VoiceHandle {
	var out []audio.VoiceHandle
	if low := t.newVoice(th, th.BaseFreq, gain); low != "" {
		t.ramp(low, audio.ParamVolume, t.backend.GainToVolume(gain*0.1), d)
		t.stopAfter(low, d)
		out = append(out, low)
	}
	if high := t.newVoice(th, th.BaseFreq*2, gain*0.1); high != "" {
		t.ramp(high, audio.ParamVolume, t.backend.GainToVolume(gain), d)
		t.stopAfter(high, d)
		out = append(out, high)
	}
	return out
}

// buildUp: the theme's harmonics swell in together (formation)
func (t *Trigger) buildUp(th types.AudioTheme, d time.Duration, gain float64) []audio.VoiceHandle {
	var out []audio.VoiceHandle
	n := len(th.Harmonics)
	if n > 3 {
		n = 3
	}
	for i := 0; i < n; i++ {
		v := t.newVoice(th, th.BaseFreq*th.Harmonics[i], gain*0.1)
		if v == "" {
			continue
		}
		t.ramp(v, audio.ParamVolume, t.backend.GainToVolume(gain/float64(n)), d*3/4)
		t.stopAfter(v, d)
		out = append(out, v)
	}
	return out
}

// fadeOut: the harmonics sound together and sink away (dissolution)
func (t *Trigger) fadeOut(th types.AudioTheme, d time.Duration, gain float64) []audio.VoiceHandle {
	var out []audio.VoiceHandle
	n := len(th.Harmonics)
	if n > 3 {
		n = 3
	}
	for i := 0; i < n; i++ {
		v := t.newVoice(th, th.BaseFreq*th.Harmonics[i], gain/float64(n))
		if v == "" {
			continue
		}
		t.ramp(v, audio.ParamVolume, t.backend.GainToVolume(0), d)
		t.stopAfter(v, d)
		out = append(out, v)
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
