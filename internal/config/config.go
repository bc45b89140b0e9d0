// internal/config holds the runtime settings bundles for the audio engine
// and their YAML persistence. Settings are plain data: the engine copies a
// bundle in under its own lock, so a caller can mutate and resubmit the
// same struct freely.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/sonigraph/sonigraph/internal/types"
)

// TypeSettings is the per-entity-type enable/volume pair
type TypeSettings struct {
	Enabled bool    `yaml:"enabled"`
	Volume  float64 `yaml:"volume"` // 0.0-1.0 multiplier on the theme's base volume
}

// StrengthModulation gates strength-driven volume changes
type StrengthModulation struct {
	Enabled     bool    `yaml:"enabled"`
	Sensitivity float64 `yaml:"sensitivity"` // higher = reacts to smaller deltas
}

// Settings governs the continuous per-entity voices
type Settings struct {
	Enabled            bool                    `yaml:"enabled"`
	MasterVolume       float64                 `yaml:"master_volume"` // 0.0-1.0
	ClusterTypes       map[string]TypeSettings `yaml:"cluster_types"`
	CommunityTypes     map[string]TypeSettings `yaml:"community_types"`
	TransitionsEnabled bool                    `yaml:"transitions_enabled"`
	TransitionVolume   float64                 `yaml:"transition_volume"`
	TransitionSpeed    float64                 `yaml:"transition_speed"` // divides effect durations; higher = snappier
	StrengthModulation StrengthModulation      `yaml:"strength_modulation"`
	MaxVoices          int                     `yaml:"max_voices"`
	UpdateThrottleMS   int                     `yaml:"update_throttle_ms"` // snapshot debounce window
	SpatialAudio       bool                    `yaml:"spatial_audio"`
}

// CommunitySettings governs community detection boundaries
type CommunitySettings struct {
	MinSize            int     `yaml:"min_size"`
	MaxSize            int     `yaml:"max_size"`
	HierarchyThreshold float64 `yaml:"hierarchy_threshold"` // containment ratio for nesting
}

// EventSettings is the per-evolution-event-type enable/volume pair
type EventSettings struct {
	Enabled bool    `yaml:"enabled"`
	Volume  float64 `yaml:"volume"`
}

// EvolutionSettings governs evolution detection and event audio
type EvolutionSettings struct {
	GrowthThreshold  float64                  `yaml:"growth_threshold"`  // size ratio above 1+threshold = growth
	DeclineThreshold float64                  `yaml:"decline_threshold"` // size ratio below 1-threshold = decline
	EventsEnabled    bool                     `yaml:"events_enabled"`
	Events           map[string]EventSettings `yaml:"events"`
	EventThrottleMS  int                      `yaml:"event_throttle_ms"` // per (entity, type) window
}

// Bundle is everything the engine consumes at runtime
type Bundle struct {
	Audio     Settings          `yaml:"audio"`
	Community CommunitySettings `yaml:"community"`
	Evolution EvolutionSettings `yaml:"evolution"`
}

// Default returns the documented defaults for all bundles
func Default() Bundle {
	clusterTypes := make(map[string]TypeSettings)
	for _, t := range []types.ClusterType{
		types.ClusterHub, types.ClusterBridge, types.ClusterIsolated,
		types.ClusterDense, types.ClusterOrganic,
	} {
		clusterTypes[string(t)] = TypeSettings{Enabled: true, Volume: 1.0}
	}
	communityTypes := make(map[string]TypeSettings)
	for _, t := range []types.CommunityType{
		types.CommunityKnowledge, types.CommunitySocial,
		types.CommunityProject, types.CommunityEmergent,
	} {
		communityTypes[string(t)] = TypeSettings{Enabled: true, Volume: 1.0}
	}
	events := make(map[string]EventSettings)
	for _, t := range []types.EvolutionType{
		types.EvolutionMerge, types.EvolutionSplit, types.EvolutionGrowth,
		types.EvolutionDecline, types.EvolutionBridging,
		types.EvolutionFormation, types.EvolutionDissolution,
	} {
		events[string(t)] = EventSettings{Enabled: true, Volume: 0.8}
	}

	return Bundle{
		Audio: Settings{
			Enabled:            true,
			MasterVolume:       0.8,
			ClusterTypes:       clusterTypes,
			CommunityTypes:     communityTypes,
			TransitionsEnabled: true,
			TransitionVolume:   0.7,
			TransitionSpeed:    1.0,
			StrengthModulation: StrengthModulation{Enabled: true, Sensitivity: 1.0},
			MaxVoices:          8,
			UpdateThrottleMS:   100,
			SpatialAudio:       false,
		},
		Community: CommunitySettings{
			MinSize:            3,
			MaxSize:            50,
			HierarchyThreshold: 0.8,
		},
		Evolution: EvolutionSettings{
			GrowthThreshold:  0.5,
			DeclineThreshold: 0.5,
			EventsEnabled:    true,
			Events:           events,
			EventThrottleMS:  500,
		},
	}
}

// Load reads a bundle from a YAML file. A missing file returns defaults.
func Load(path string) (Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return Default(), fmt.Errorf("failed to read config: %w", err)
	}
	b := Default()
	if err := yaml.Unmarshal(data, &b); err != nil {
		return Default(), fmt.Errorf("failed to parse config: %w", err)
	}
	b.Validate()
	return b, nil
}

// Save writes the bundle to a YAML file
func Save(path string, b Bundle) error {
	data, err := yaml.Marshal(b)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// FromEnv overrides a handful of knobs from environment variables. The demo
// binary calls this after godotenv so a .env file can tune the engine.
func FromEnv(b Bundle) Bundle {
	if v := os.Getenv("SONIGRAPH_MASTER_VOLUME"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			b.Audio.MasterVolume = f
		}
	}
	if v := os.Getenv("SONIGRAPH_MAX_VOICES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			b.Audio.MaxVoices = n
		}
	}
	if v := os.Getenv("SONIGRAPH_UPDATE_THROTTLE_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			b.Audio.UpdateThrottleMS = n
		}
	}
	if v := os.Getenv("SONIGRAPH_EVENT_THROTTLE_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			b.Evolution.EventThrottleMS = n
		}
	}
	if v := os.Getenv("SONIGRAPH_SPATIAL"); v != "" {
		b.Audio.SpatialAudio = v == "true"
	}
	b.Validate()
	return b
}

// Validate clamps out-of-range values in place. Bad settings should bend
// the engine, not break it.
func (b *Bundle) Validate() {
	b.Audio.MasterVolume = clamp(b.Audio.MasterVolume, 0, 1)
	b.Audio.TransitionVolume = clamp(b.Audio.TransitionVolume, 0, 1)
	if b.Audio.TransitionSpeed <= 0 {
		b.Audio.TransitionSpeed = 1.0
	}
	if b.Audio.StrengthModulation.Sensitivity <= 0 {
		b.Audio.StrengthModulation.Sensitivity = 1.0
	}
	if b.Audio.MaxVoices < 1 {
		b.Audio.MaxVoices = 1
	}
	if b.Audio.UpdateThrottleMS < 10 {
		b.Audio.UpdateThrottleMS = 10
	}
	if b.Community.MinSize < 1 {
		b.Community.MinSize = 1
	}
	if b.Community.MaxSize < b.Community.MinSize {
		b.Community.MaxSize = b.Community.MinSize
	}
	b.Community.HierarchyThreshold = clamp(b.Community.HierarchyThreshold, 0, 1)
	b.Evolution.GrowthThreshold = clamp(b.Evolution.GrowthThreshold, 0.01, 10)
	b.Evolution.DeclineThreshold = clamp(b.Evolution.DeclineThreshold, 0.01, 0.99)
	if b.Evolution.EventThrottleMS < 0 {
		b.Evolution.EventThrottleMS = 0
	}
	for k, e := range b.Evolution.Events {
		e.Volume = clamp(e.Volume, 0, 1)
		b.Evolution.Events[k] = e
	}
	for k, t := range b.Audio.ClusterTypes {
		t.Volume = clamp(t.Volume, 0, 1)
		b.Audio.ClusterTypes[k] = t
	}
	for k, t := range b.Audio.CommunityTypes {
		t.Volume = clamp(t.Volume, 0, 1)
		b.Audio.CommunityTypes[k] = t
	}
}

// TypeFor returns the settings for an entity type, checking both maps.
// Unknown types are enabled at full volume so the fallback theme is heard.
func (s *Settings) TypeFor(entityType string) TypeSettings {
	if t, ok := s.ClusterTypes[entityType]; ok {
		return t
	}
	if t, ok := s.CommunityTypes[entityType]; ok {
		return t
	}
	return TypeSettings{Enabled: true, Volume: 1.0}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
