// internal/theme is the catalog of baseline audio themes keyed by entity
// type, plus the deterministic customization and variation functions. The
// catalog is stateless: every call returns a fresh copy that callers own.
package theme

import (
	"math"

	"github.com/sonigraph/sonigraph/internal/logging"
	"github.com/sonigraph/sonigraph/internal/types"
)

// referenceSize is the member count at which the size-volume factor saturates
const referenceSize = 20.0

// globalIntensity is the single multiplier applied to brightness and warmth
// during customization
const globalIntensity = 1.0

// Variation thresholds: strong entities gain harmonics, weak ones lose them
const (
	highStrength = 0.7
	lowStrength  = 0.3
)

// baseThemes maps every known entity type to its baseline theme. Harmonics
// are interval ratios over the base frequency (1.0 = unison).
var baseThemes = map[string]types.AudioTheme{
	string(types.ClusterHub): {
		Name:      "hub",
		BaseFreq:  220.0,
		Harmonics: []float64{1.0, 1.5, 2.0, 3.0}, // open fifth stack, carries well
		Timbre:    types.Timbre{Brightness: 0.8, Warmth: 0.5, Thickness: 0.7, Texture: "sawtooth"},
		Dynamics: types.Dynamics{
			BaseVolume: 0.6, VelocityRange: 0.4,
			Attack: 0.8, Decay: 0.5, Sustain: 0.7, Release: 1.5,
		},
		Modulation: types.Modulation{Rate: 0.3, Depth: 0.2, FilterCutoff: 2400, Resonance: 0.3},
		Spatial:    types.SpatialCentered,
		Reverb:     0.3,
		Evolution:  types.Evolution{Speed: 0.5, Complexity: 0.6},
	},
	string(types.ClusterBridge): {
		Name:      "bridge",
		BaseFreq:  165.0,
		Harmonics: []float64{1.0, 1.25, 1.5}, // major triad, connective
		Timbre:    types.Timbre{Brightness: 0.5, Warmth: 0.7, Thickness: 0.4, Texture: "triangle"},
		Dynamics: types.Dynamics{
			BaseVolume: 0.5, VelocityRange: 0.3,
			Attack: 1.2, Decay: 0.6, Sustain: 0.6, Release: 2.0,
		},
		Modulation: types.Modulation{Rate: 0.2, Depth: 0.3, FilterCutoff: 1800, Resonance: 0.2},
		Spatial:    types.SpatialDrifting,
		Reverb:     0.4,
		Evolution:  types.Evolution{Speed: 0.4, Complexity: 0.5},
	},
	string(types.ClusterIsolated): {
		Name:      "isolated",
		BaseFreq:  330.0,
		Harmonics: []float64{1.0, 2.0}, // bare octave, sparse
		Timbre:    types.Timbre{Brightness: 0.3, Warmth: 0.4, Thickness: 0.2, Texture: "sine"},
		Dynamics: types.Dynamics{
			BaseVolume: 0.4, VelocityRange: 0.2,
			Attack: 2.0, Decay: 1.0, Sustain: 0.5, Release: 3.0,
		},
		Modulation: types.Modulation{Rate: 0.1, Depth: 0.1, FilterCutoff: 1200, Resonance: 0.1},
		Spatial:    types.SpatialPanned,
		Reverb:     0.6,
		Evolution:  types.Evolution{Speed: 0.2, Complexity: 0.3},
	},
	string(types.ClusterDense): {
		Name:      "dense",
		BaseFreq:  110.0,
		Harmonics: []float64{1.0, 1.2, 1.5, 1.8, 2.0}, // cluster chord, thick
		Timbre:    types.Timbre{Brightness: 0.6, Warmth: 0.8, Thickness: 0.9, Texture: "square"},
		Dynamics: types.Dynamics{
			BaseVolume: 0.7, VelocityRange: 0.5,
			Attack: 0.5, Decay: 0.4, Sustain: 0.8, Release: 1.0,
		},
		Modulation: types.Modulation{Rate: 0.4, Depth: 0.4, FilterCutoff: 3000, Resonance: 0.4},
		Spatial:    types.SpatialCentered,
		Reverb:     0.2,
		Evolution:  types.Evolution{Speed: 0.6, Complexity: 0.7},
	},
	string(types.ClusterOrganic): {
		Name:      "organic",
		BaseFreq:  196.0,
		Harmonics: []float64{1.0, 1.5, 2.5},
		Timbre:    types.Timbre{Brightness: 0.5, Warmth: 0.6, Thickness: 0.5, Texture: "triangle"},
		Dynamics: types.Dynamics{
			BaseVolume: 0.5, VelocityRange: 0.3,
			Attack: 1.0, Decay: 0.5, Sustain: 0.6, Release: 1.8,
		},
		Modulation: types.Modulation{Rate: 0.25, Depth: 0.25, FilterCutoff: 2000, Resonance: 0.25},
		Spatial:    types.SpatialDrifting,
		Reverb:     0.35,
		Evolution:  types.Evolution{Speed: 0.45, Complexity: 0.5},
	},
	string(types.CommunityKnowledge): {
		Name:      "knowledge",
		BaseFreq:  262.0,
		Harmonics: []float64{1.0, 1.25, 1.5, 2.0},
		Timbre:    types.Timbre{Brightness: 0.7, Warmth: 0.6, Thickness: 0.6, Texture: "sawtooth"},
		Dynamics: types.Dynamics{
			BaseVolume: 0.55, VelocityRange: 0.35,
			Attack: 0.9, Decay: 0.5, Sustain: 0.7, Release: 1.6,
		},
		Modulation: types.Modulation{Rate: 0.3, Depth: 0.2, FilterCutoff: 2600, Resonance: 0.3},
		Spatial:    types.SpatialCentered,
		Reverb:     0.3,
		Evolution:  types.Evolution{Speed: 0.5, Complexity: 0.6},
	},
	string(types.CommunitySocial): {
		Name:      "social",
		BaseFreq:  294.0,
		Harmonics: []float64{1.0, 1.33, 1.67, 2.0},
		Timbre:    types.Timbre{Brightness: 0.6, Warmth: 0.8, Thickness: 0.5, Texture: "triangle"},
		Dynamics: types.Dynamics{
			BaseVolume: 0.6, VelocityRange: 0.4,
			Attack: 0.6, Decay: 0.4, Sustain: 0.65, Release: 1.2,
		},
		Modulation: types.Modulation{Rate: 0.5, Depth: 0.3, FilterCutoff: 2200, Resonance: 0.25},
		Spatial:    types.SpatialDrifting,
		Reverb:     0.35,
		Evolution:  types.Evolution{Speed: 0.6, Complexity: 0.55},
	},
	string(types.CommunityProject): {
		Name:      "project",
		BaseFreq:  247.0,
		Harmonics: []float64{1.0, 1.5, 2.0},
		Timbre:    types.Timbre{Brightness: 0.65, Warmth: 0.5, Thickness: 0.55, Texture: "square"},
		Dynamics: types.Dynamics{
			BaseVolume: 0.55, VelocityRange: 0.4,
			Attack: 0.4, Decay: 0.3, Sustain: 0.7, Release: 0.9,
		},
		Modulation: types.Modulation{Rate: 0.35, Depth: 0.2, FilterCutoff: 2800, Resonance: 0.3},
		Spatial:    types.SpatialCentered,
		Reverb:     0.25,
		Evolution:  types.Evolution{Speed: 0.55, Complexity: 0.5},
	},
	string(types.CommunityEmergent): {
		Name:      "emergent",
		BaseFreq:  349.0,
		Harmonics: []float64{1.0, 1.2, 1.4}, // close intervals, unsettled
		Timbre:    types.Timbre{Brightness: 0.4, Warmth: 0.5, Thickness: 0.3, Texture: "sine"},
		Dynamics: types.Dynamics{
			BaseVolume: 0.45, VelocityRange: 0.25,
			Attack: 1.5, Decay: 0.8, Sustain: 0.5, Release: 2.5,
		},
		Modulation: types.Modulation{Rate: 0.15, Depth: 0.35, FilterCutoff: 1600, Resonance: 0.2},
		Spatial:    types.SpatialPanned,
		Reverb:     0.5,
		Evolution:  types.Evolution{Speed: 0.7, Complexity: 0.4},
	},
}

// neutralTheme is the documented fallback for unknown entity types: a plain
// sine with a single octave harmonic, middle-of-the-road everything.
var neutralTheme = types.AudioTheme{
	Name:      "neutral",
	BaseFreq:  261.63, // middle C
	Harmonics: []float64{1.0, 2.0},
	Timbre:    types.Timbre{Brightness: 0.5, Warmth: 0.5, Thickness: 0.5, Texture: "sine"},
	Dynamics: types.Dynamics{
		BaseVolume: 0.5, VelocityRange: 0.3,
		Attack: 1.0, Decay: 0.5, Sustain: 0.6, Release: 1.5,
	},
	Modulation: types.Modulation{Rate: 0.25, Depth: 0.2, FilterCutoff: 2000, Resonance: 0.25},
	Spatial:    types.SpatialCentered,
	Reverb:     0.3,
	Evolution:  types.Evolution{Speed: 0.5, Complexity: 0.5},
}

// extraHarmonics is appended to a type's harmonic set above the high
// strength threshold
var extraHarmonics = map[string][]float64{
	string(types.ClusterHub):        {4.0, 5.0},
	string(types.ClusterBridge):     {2.0, 2.5},
	string(types.ClusterIsolated):   {3.0},
	string(types.ClusterDense):      {2.4, 3.0},
	string(types.ClusterOrganic):    {3.0, 3.5},
	string(types.CommunityKnowledge): {2.5, 3.0},
	string(types.CommunitySocial):    {2.33, 2.67},
	string(types.CommunityProject):   {2.5, 3.0},
	string(types.CommunityEmergent):  {1.6, 1.8},
}

// ResolveBaseTheme returns the baseline theme for an entity type. Unknown
// types get the neutral fallback with a warning, never an error.
func ResolveBaseTheme(entityType string) types.AudioTheme {
	if t, ok := baseThemes[entityType]; ok {
		return t.Clone()
	}
	logging.Warn("theme", "no theme for entity type %q, using neutral fallback", entityType)
	return neutralTheme.Clone()
}

// KnownTypes returns the entity types the catalog has themes for
func KnownTypes() []string {
	out := make([]string, 0, len(baseThemes))
	for k := range baseThemes {
		out = append(out, k)
	}
	return out
}

// CustomizeTheme scales a base theme by an entity's characteristics:
//   - volume by a saturating member-count factor (reference 20 members)
//   - thickness (harmonic density) by local density
//   - evolution speed inversely with stability
//   - modulation depth with connection strength
//   - brightness and warmth by the global intensity multiplier
//
// All factors are clamped so a pathological entity can't push a parameter
// out of its documented range.
func CustomizeTheme(base types.AudioTheme, ch types.Characteristics) types.AudioTheme {
	t := base.Clone()

	// Saturating size factor: 0.5 at zero members, 1.0 at reference size
	sizeFactor := 0.5 + 0.5*math.Min(float64(ch.Size)/referenceSize, 1.0)
	t.Dynamics.BaseVolume = clamp(base.Dynamics.BaseVolume*sizeFactor, 0.05, 1.0)

	// Density scales thickness around the base value
	densityFactor := 0.7 + 0.6*clamp(ch.Density, 0, 1)
	t.Timbre.Thickness = clamp(base.Timbre.Thickness*densityFactor, 0.1, 1.0)

	// More stable communities evolve slower
	stabilityFactor := 1.5 - clamp(ch.Stability, 0, 1)
	t.Evolution.Speed = clamp(base.Evolution.Speed*stabilityFactor, 0.05, 1.0)

	// Connection strength deepens modulation
	strengthFactor := 0.6 + 0.8*clamp(ch.ConnectionStrength, 0, 1)
	t.Modulation.Depth = clamp(base.Modulation.Depth*strengthFactor, 0.0, 1.0)

	t.Timbre.Brightness = clamp(base.Timbre.Brightness*globalIntensity, 0, 1)
	t.Timbre.Warmth = clamp(base.Timbre.Warmth*globalIntensity, 0, 1)

	return t
}

// ThemeVariation returns the type's theme adjusted for a strength in [0,1].
// Strong entities gain type-specific harmonics; weak ones thin out to two
// intervals. Dynamics and brightness scale with a shared complexity
// multiplier.
func ThemeVariation(entityType string, strength float64) types.AudioTheme {
	strength = clamp(strength, 0, 1)
	t := ResolveBaseTheme(entityType)

	if strength > highStrength {
		if extra, ok := extraHarmonics[entityType]; ok {
			t.Harmonics = append(t.Harmonics, extra...)
		}
	} else if strength < lowStrength && len(t.Harmonics) > 2 {
		t.Harmonics = t.Harmonics[:2]
	}

	complexity := 1.0 + strength*t.Evolution.Complexity
	t.Dynamics.BaseVolume = clamp(t.Dynamics.BaseVolume*complexity, 0.05, 1.0)
	t.Timbre.Brightness = clamp(t.Timbre.Brightness*complexity, 0, 1)

	return t
}

// PanForPosition derives a stereo pan in [-1,1] from a centroid x position
// within a layout of the given width. Zero width pans center.
func PanForPosition(centroid types.Point, width float64) float64 {
	if width <= 0 {
		return 0
	}
	return clamp(2*centroid.X/width-1, -1, 1)
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
