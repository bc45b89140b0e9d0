// internal/health samples the current process's CPU and memory so the demo
// binary can log load lines next to engine stats. The engine itself never
// consults it.
package health

import (
	"os"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/sonigraph/sonigraph/internal/logging"
)

// Sample is one load observation
type Sample struct {
	CPUPercent float64
	RSSBytes   uint64
	Taken      time.Time
}

// Sampler polls the current process on a fixed interval
type Sampler struct {
	mu       sync.Mutex
	interval time.Duration
	proc     *process.Process
	last     Sample
	stopChan chan struct{}
	running  bool
}

// NewSampler creates a sampler polling at the given interval
func NewSampler(interval time.Duration) (*Sampler, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	return &Sampler{
		interval: interval,
		proc:     proc,
		stopChan: make(chan struct{}),
	}, nil
}

// Start begins polling
func (s *Sampler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopChan = make(chan struct{})
	s.mu.Unlock()

	go s.loop()
	logging.Info("health", "Started (interval=%v)", s.interval)
}

// Stop halts polling
func (s *Sampler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		close(s.stopChan)
		s.running = false
	}
}

// Last returns the most recent sample
func (s *Sampler) Last() Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *Sampler) loop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.sample()
		}
	}
}

func (s *Sampler) sample() {
	cpu, err := s.proc.CPUPercent()
	if err != nil {
		logging.Debug("health", "cpu sample failed: %v", err)
		return
	}
	mem, err := s.proc.MemoryInfo()
	if err != nil {
		logging.Debug("health", "memory sample failed: %v", err)
		return
	}

	s.mu.Lock()
	s.last = Sample{CPUPercent: cpu, RSSBytes: mem.RSS, Taken: time.Now()}
	s.mu.Unlock()
}
