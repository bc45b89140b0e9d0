package audio

import (
	"fmt"
	"sync"
	"time"
)

// Call records one backend invocation for test assertions
type Call struct {
	Op     string
	Voice  VoiceHandle
	Param  Param
	Value  float64
	Freq   float64
	Spec   VoiceSpec
	Failed bool
}

// Fake is a recording Backend for tests. It can be told to fail specific
// operations to exercise error containment.
type Fake struct {
	mu      sync.Mutex
	calls   []Call
	nextID  int
	live    map[VoiceHandle]bool
	FailOps map[string]bool // op name -> always error
}

// NewFake creates an empty recording backend
func NewFake() *Fake {
	return &Fake{
		live:    make(map[VoiceHandle]bool),
		FailOps: make(map[string]bool),
	}
}

// Calls returns a copy of all recorded calls
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallsOf returns recorded calls for one operation
func (f *Fake) CallsOf(op string) []Call {
	var out []Call
	for _, c := range f.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// LiveVoices returns how many voices are created and not yet disposed
func (f *Fake) LiveVoices() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, alive := range f.live {
		if alive {
			n++
		}
	}
	return n
}

func (f *Fake) record(c Call) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailOps[c.Op] {
		c.Failed = true
		f.calls = append(f.calls, c)
		return fmt.Errorf("fake backend: %s failed", c.Op)
	}
	f.calls = append(f.calls, c)
	return nil
}

func (f *Fake) CreateVoice(spec VoiceSpec) (VoiceHandle, error) {
	f.mu.Lock()
	if f.FailOps["create"] {
		f.calls = append(f.calls, Call{Op: "create", Spec: spec, Failed: true})
		f.mu.Unlock()
		return "", fmt.Errorf("fake backend: create failed")
	}
	f.nextID++
	h := VoiceHandle(fmt.Sprintf("v%d", f.nextID))
	f.live[h] = true
	f.calls = append(f.calls, Call{Op: "create", Voice: h, Spec: spec})
	f.mu.Unlock()
	return h, nil
}

func (f *Fake) AttachFilter(v VoiceHandle, cutoff, resonance float64) error {
	return f.record(Call{Op: "filter", Voice: v, Value: cutoff})
}

func (f *Fake) Start(v VoiceHandle, freq, velocity float64) error {
	return f.record(Call{Op: "start", Voice: v, Freq: freq, Value: velocity})
}

func (f *Fake) Stop(v VoiceHandle, release time.Duration) error {
	return f.record(Call{Op: "stop", Voice: v, Value: release.Seconds()})
}

func (f *Fake) Ramp(v VoiceHandle, p Param, target float64, duration time.Duration) error {
	return f.record(Call{Op: "ramp", Voice: v, Param: p, Value: target})
}

func (f *Fake) GainToVolume(gain float64) float64 { return gain }

func (f *Fake) Dispose(v VoiceHandle) error {
	f.mu.Lock()
	f.live[v] = false
	f.mu.Unlock()
	return f.record(Call{Op: "dispose", Voice: v})
}
