package voice

import (
	"testing"
	"time"

	"github.com/sonigraph/sonigraph/internal/audio"
	"github.com/sonigraph/sonigraph/internal/config"
	"github.com/sonigraph/sonigraph/internal/schedule"
	"github.com/sonigraph/sonigraph/internal/types"
)

func testEntity(id string, strength float64, nodes ...string) types.Entity {
	if len(nodes) == 0 {
		nodes = []string{id + "-1", id + "-2"}
	}
	return types.Entity{
		ID:    id,
		Nodes: nodes,
		Type:  string(types.ClusterOrganic),
		Characteristics: types.Characteristics{
			Size:               len(nodes),
			Density:            0.5,
			Stability:          0.5,
			ConnectionStrength: strength,
		},
	}
}

func newTestManager(t *testing.T, fake *audio.Fake, mutate func(*config.Settings)) (*Manager, *schedule.Scheduler) {
	t.Helper()
	sched := schedule.New()
	t.Cleanup(sched.Dispose)
	settings := config.Default().Audio
	settings.UpdateThrottleMS = 10
	if mutate != nil {
		mutate(&settings)
	}
	m := NewManager(fake, sched, settings)
	t.Cleanup(m.Dispose)
	return m, sched
}

// process pushes a snapshot through synchronously, bypassing the debounce
func process(m *Manager, entities ...types.Entity) {
	m.mu.Lock()
	m.processLocked(entities)
	m.mu.Unlock()
}

// TestStartVoices checks new entities get backend voices
func TestStartVoices(t *testing.T) {
	fake := audio.NewFake()
	m, _ := newTestManager(t, fake, nil)

	process(m, testEntity("A", 0.5), testEntity("B", 0.5))

	if m.ActiveCount() != 2 {
		t.Errorf("Expected 2 active voices, got %d", m.ActiveCount())
	}
	if n := len(fake.CallsOf("start")); n != 2 {
		t.Errorf("Expected 2 backend starts, got %d", n)
	}
	if n := len(fake.CallsOf("filter")); n != 2 {
		t.Errorf("Expected 2 filter attachments, got %d", n)
	}
}

// TestVoiceCapEnforced checks N > cap formations leave exactly cap voices
func TestVoiceCapEnforced(t *testing.T) {
	fake := audio.NewFake()
	m, _ := newTestManager(t, fake, func(s *config.Settings) { s.MaxVoices = 3 })

	entities := []types.Entity{
		testEntity("A", 0.5), testEntity("B", 0.5), testEntity("C", 0.5),
		testEntity("D", 0.5), testEntity("E", 0.5),
	}
	process(m, entities...)

	if m.ActiveCount() != 3 {
		t.Errorf("Expected exactly cap (3) voices, got %d", m.ActiveCount())
	}
	if n := len(fake.CallsOf("start")); n != 3 {
		t.Errorf("Expected 3 backend starts, got %d", n)
	}
}

// TestCapFreesUp checks a skipped entity can start once a voice releases
func TestCapFreesUp(t *testing.T) {
	fake := audio.NewFake()
	m, _ := newTestManager(t, fake, func(s *config.Settings) { s.MaxVoices = 1 })

	process(m, testEntity("A", 0.5), testEntity("B", 0.5))
	if m.ActiveVoice("A") == nil || m.ActiveVoice("B") != nil {
		t.Fatal("Expected A active, B skipped")
	}

	process(m, testEntity("B", 0.5)) // A vanishes, B finally fits
	if m.ActiveVoice("B") == nil {
		t.Error("Expected B to start after A released")
	}
	if m.ActiveCount() != 1 {
		t.Errorf("Expected 1 voice, got %d", m.ActiveCount())
	}
}

// TestReleaseOnDisappearance checks stop + deferred disposal
func TestReleaseOnDisappearance(t *testing.T) {
	fake := audio.NewFake()
	m, sched := newTestManager(t, fake, nil)

	process(m, testEntity("A", 0.5))
	process(m) // empty snapshot, A vanishes

	if m.ActiveCount() != 0 {
		t.Errorf("Expected no active voices, got %d", m.ActiveCount())
	}
	if n := len(fake.CallsOf("stop")); n != 1 {
		t.Errorf("Expected 1 stop, got %d", n)
	}
	// Disposal is deferred by the grace period, not immediate
	if n := len(fake.CallsOf("dispose")); n != 0 {
		t.Errorf("Expected disposal deferred, got %d immediate disposals", n)
	}
	if sched.Pending() != 1 {
		t.Errorf("Expected 1 scheduled disposal, got %d", sched.Pending())
	}
}

// TestDebounceCoalesces checks two calls in the window yield one pass with
// only the latest data
func TestDebounceCoalesces(t *testing.T) {
	fake := audio.NewFake()
	m, _ := newTestManager(t, fake, func(s *config.Settings) { s.UpdateThrottleMS = 40 })

	m.ProcessSnapshot([]types.Entity{testEntity("old", 0.5)})
	m.ProcessSnapshot([]types.Entity{testEntity("new", 0.5)})

	time.Sleep(120 * time.Millisecond)

	if m.Passes() != 1 {
		t.Errorf("Expected 1 coalesced pass, got %d", m.Passes())
	}
	if m.ActiveVoice("old") != nil {
		t.Error("Intermediate snapshot should have been discarded")
	}
	if m.ActiveVoice("new") == nil {
		t.Error("Latest snapshot should have been processed")
	}
}

// TestSmoothingThresholds checks ramps are skipped below the minimum deltas
func TestSmoothingThresholds(t *testing.T) {
	fake := audio.NewFake()
	m, _ := newTestManager(t, fake, func(s *config.Settings) {
		s.StrengthModulation.Enabled = false
	})

	e := testEntity("A", 0.5)
	process(m, e)
	rampsBefore := len(fake.CallsOf("ramp"))

	// Identical snapshot: no deltas, no ramps
	process(m, e)
	if n := len(fake.CallsOf("ramp")); n != rampsBefore {
		t.Errorf("Unchanged entity should not ramp, got %d new ramps", n-rampsBefore)
	}

	// Large density change moves the filter cutoff well past 50 Hz
	changed := e
	changed.Characteristics.Density = 0.9
	process(m, changed)
	if n := len(fake.CallsOf("ramp")); n == rampsBefore {
		t.Error("Expected a cutoff ramp after a large density change")
	}
}

// TestStrengthModulationSensitivity checks the 0.1/sensitivity gate
func TestStrengthModulationSensitivity(t *testing.T) {
	fake := audio.NewFake()
	m, _ := newTestManager(t, fake, func(s *config.Settings) {
		s.StrengthModulation = config.StrengthModulation{Enabled: true, Sensitivity: 1.0}
	})

	process(m, testEntity("A", 0.5))

	countVolumeRamps := func() int {
		n := 0
		for _, c := range fake.CallsOf("ramp") {
			if c.Param == audio.ParamVolume {
				n++
			}
		}
		return n
	}

	// Delta 0.05 < 0.1/1.0: gated
	process(m, testEntity("A", 0.55))
	if countVolumeRamps() != 0 {
		t.Error("Small strength delta should not modulate volume")
	}

	// Delta 0.25 from the last applied strength: passes the gate
	process(m, testEntity("A", 0.75))
	if countVolumeRamps() == 0 {
		t.Error("Large strength delta should modulate volume")
	}
}

// TestBackendErrorContainment checks one failing voice never aborts the pass
func TestBackendErrorContainment(t *testing.T) {
	fake := audio.NewFake()
	fake.FailOps["filter"] = true // every filter attach fails
	m, _ := newTestManager(t, fake, nil)

	process(m, testEntity("A", 0.5), testEntity("B", 0.5), testEntity("C", 0.5))

	// Voices still start; the filter failure is contained per entity
	if m.ActiveCount() != 3 {
		t.Errorf("Expected 3 voices despite filter errors, got %d", m.ActiveCount())
	}
}

// TestCreateFailureSkipsEntity checks a failed create abandons only that entity
func TestCreateFailureSkipsEntity(t *testing.T) {
	fake := audio.NewFake()
	fake.FailOps["create"] = true
	m, _ := newTestManager(t, fake, nil)

	process(m, testEntity("A", 0.5))
	if m.ActiveCount() != 0 {
		t.Errorf("Expected no voices after create failure, got %d", m.ActiveCount())
	}
}

// TestDisabledTypeSkipped checks per-type enablement
func TestDisabledTypeSkipped(t *testing.T) {
	fake := audio.NewFake()
	m, _ := newTestManager(t, fake, func(s *config.Settings) {
		ts := s.ClusterTypes[string(types.ClusterOrganic)]
		ts.Enabled = false
		s.ClusterTypes[string(types.ClusterOrganic)] = ts
	})

	process(m, testEntity("A", 0.5))
	if m.ActiveCount() != 0 {
		t.Error("Disabled type should not start a voice")
	}
}

// TestUpdateSettingsTakesEffectNextPass checks runtime settings swaps
func TestUpdateSettingsTakesEffectNextPass(t *testing.T) {
	fake := audio.NewFake()
	m, _ := newTestManager(t, fake, func(s *config.Settings) { s.MaxVoices = 5 })

	process(m, testEntity("A", 0.5), testEntity("B", 0.5))
	if m.ActiveCount() != 2 {
		t.Fatalf("Expected 2 voices, got %d", m.ActiveCount())
	}

	s := config.Default().Audio
	s.MaxVoices = 2
	m.UpdateSettings(s)

	// Existing voices survive; new starts respect the lower cap
	process(m, testEntity("A", 0.5), testEntity("B", 0.5), testEntity("C", 0.5))
	if m.ActiveCount() != 2 {
		t.Errorf("Expected cap 2 to hold, got %d", m.ActiveCount())
	}
}

// TestDisposeIdempotentAndSilent checks post-dispose calls are no-ops
func TestDisposeIdempotentAndSilent(t *testing.T) {
	fake := audio.NewFake()
	m, _ := newTestManager(t, fake, nil)

	process(m, testEntity("A", 0.5))
	m.Dispose()
	m.Dispose() // second dispose must not panic

	if fake.LiveVoices() != 0 {
		t.Errorf("Expected all backend voices freed, got %d live", fake.LiveVoices())
	}

	m.ProcessSnapshot([]types.Entity{testEntity("B", 0.5)})
	time.Sleep(40 * time.Millisecond)
	if m.ActiveCount() != 0 {
		t.Error("ProcessSnapshot after Dispose should be a no-op")
	}
}

// TestDisposeFreesReleasingVoices checks a voice still waiting out its
// disposal grace is freed when the manager disposes before the timer fires
func TestDisposeFreesReleasingVoices(t *testing.T) {
	fake := audio.NewFake()
	m, sched := newTestManager(t, fake, nil)

	process(m, testEntity("A", 0.5))
	process(m) // A vanishes into the disposal grace

	m.Dispose()
	sched.Dispose()

	if n := fake.LiveVoices(); n != 0 {
		t.Errorf("Expected all backend voices freed, got %d live", n)
	}
}

// TestDisableReleasesVoices checks toggling the global enable off silences
// live voices on the next pass rather than letting them sound forever
func TestDisableReleasesVoices(t *testing.T) {
	fake := audio.NewFake()
	m, _ := newTestManager(t, fake, nil)

	process(m, testEntity("A", 0.5))
	if m.ActiveCount() != 1 {
		t.Fatalf("Expected 1 voice, got %d", m.ActiveCount())
	}

	s := config.Default().Audio
	s.Enabled = false
	m.UpdateSettings(s)

	process(m, testEntity("A", 0.5))
	if m.ActiveCount() != 0 {
		t.Errorf("Disabled audio should release all voices, got %d active", m.ActiveCount())
	}
	if n := len(fake.CallsOf("stop")); n != 1 {
		t.Errorf("Expected a stop for the released voice, got %d", n)
	}
}

// TestQuantizerApplied checks the scale collaborator shapes start frequency
func TestQuantizerApplied(t *testing.T) {
	fake := audio.NewFake()
	m, _ := newTestManager(t, fake, nil)
	m.SetQuantizer(func(f float64) float64 { return 440.0 })

	process(m, testEntity("A", 0.5))

	starts := fake.CallsOf("start")
	if len(starts) != 1 {
		t.Fatalf("Expected 1 start, got %d", len(starts))
	}
	if starts[0].Freq != 440.0 {
		t.Errorf("Expected quantized 440Hz, got %f", starts[0].Freq)
	}
}

// TestHubWeighterApplied checks hub influence shapes start velocity
func TestHubWeighterApplied(t *testing.T) {
	fake := audio.NewFake()
	m, _ := newTestManager(t, fake, nil)
	m.SetHubWeighter(func(id string, gain float64) float64 { return 0.123 })

	process(m, testEntity("A", 0.5))

	starts := fake.CallsOf("start")
	if len(starts) != 1 || starts[0].Value != 0.123 {
		t.Fatalf("Expected hub-weighted velocity 0.123, got %+v", starts)
	}
}
