// internal/transition diffs two partition snapshots and produces the
// discrete transition and evolution events the audio layers consume. All
// functions here are pure: state lives with the caller.
package transition

import (
	"sort"
	"time"

	"github.com/sonigraph/sonigraph/internal/config"
	"github.com/sonigraph/sonigraph/internal/types"
)

// Overlap thresholds for merge/split detection. Kept as named constants
// pending a decision on whether they become user-facing settings.
const (
	mergeOverlapThreshold = 0.5 // share of a previous entity absorbed into one current entity
	splitOverlapThreshold = 0.3 // share of a previous entity landing in one current entity
)

// strengthChangeThreshold is the minimum absolute strength delta that
// produces a strength_change event
const strengthChangeThreshold = 0.1

// transitionEffects maps each transition type to its audio treatment
var transitionEffects = map[types.TransitionType]types.EffectConfig{
	types.TransitionJoin: {
		Duration: 0.8, PitchDirection: types.PitchUp, PitchRange: 5,
		VolumeFade: types.FadeIn, Algorithm: "rise",
	},
	types.TransitionLeave: {
		Duration: 0.8, PitchDirection: types.PitchDown, PitchRange: 5,
		VolumeFade: types.FadeOut, Algorithm: "fall",
	},
	types.TransitionFormation: {
		Duration: 2.0, PitchDirection: types.PitchUp, PitchRange: 12,
		VolumeFade: types.FadeIn, Algorithm: "bloom",
	},
	types.TransitionDissolution: {
		Duration: 2.5, PitchDirection: types.PitchDown, PitchRange: 12,
		VolumeFade: types.FadeOut, Algorithm: "dissolve",
	},
	types.TransitionStrengthChange: {
		Duration: 1.0, PitchDirection: types.PitchFlat, PitchRange: 0,
		VolumeFade: types.FadeSwell, Algorithm: "swell",
	},
}

// EffectFor returns the audio treatment for a transition type
func EffectFor(t types.TransitionType) types.EffectConfig {
	return transitionEffects[t]
}

// DetectTransitions compares the previous snapshot (by id) against the
// current entity list and returns membership-level events: formations,
// dissolutions, joins, leaves, and strength changes. Events are
// deduplicated only within identical (type, entity, timestamp).
func DetectTransitions(prev map[string]types.Entity, curr []types.Entity, now time.Time) []types.TransitionEvent {
	var events []types.TransitionEvent
	seen := make(map[string]bool)

	emit := func(ev types.TransitionEvent) {
		key := string(ev.Type) + "|" + ev.EntityID + "|" + ev.NodeID + "|" + ev.Timestamp.Format(time.RFC3339Nano)
		if seen[key] {
			return
		}
		seen[key] = true
		ev.Effect = transitionEffects[ev.Type]
		events = append(events, ev)
	}

	currByID := make(map[string]types.Entity, len(curr))
	for _, e := range curr {
		currByID[e.ID] = e
	}

	// Formations: in current, absent from previous
	for _, e := range curr {
		if _, ok := prev[e.ID]; !ok {
			emit(types.TransitionEvent{
				Type: types.TransitionFormation, EntityID: e.ID, Timestamp: now,
			})
		}
	}

	// Dissolutions: in previous, absent from current
	for id := range prev {
		if _, ok := currByID[id]; !ok {
			emit(types.TransitionEvent{
				Type: types.TransitionDissolution, EntityID: id, Timestamp: now,
			})
		}
	}

	// Joins, leaves, strength changes on surviving entities
	for id, p := range prev {
		c, ok := currByID[id]
		if !ok {
			continue
		}

		prevSet := p.MemberSet()
		currSet := c.MemberSet()
		for nodeID := range currSet {
			if !prevSet[nodeID] {
				emit(types.TransitionEvent{
					Type: types.TransitionJoin, EntityID: id, NodeID: nodeID, Timestamp: now,
				})
			}
		}
		for nodeID := range prevSet {
			if !currSet[nodeID] {
				emit(types.TransitionEvent{
					Type: types.TransitionLeave, EntityID: id, NodeID: nodeID, Timestamp: now,
				})
			}
		}

		delta := c.Strength() - p.Strength()
		if delta > strengthChangeThreshold || delta < -strengthChangeThreshold {
			s := c.Strength()
			emit(types.TransitionEvent{
				Type: types.TransitionStrengthChange, EntityID: id,
				NewStrength: &s, Timestamp: now,
			})
		}
	}

	return events
}

// DetectEvolution compares two snapshots for structural changes: merges,
// splits, growth, decline, and bridging. A single entity may legitimately
// emit several event types in one tick; they are never merged.
func DetectEvolution(prev map[string]types.Entity, curr []types.Entity, cfg config.EvolutionSettings, now time.Time) []types.EvolutionEvent {
	var events []types.EvolutionEvent

	currByID := make(map[string]types.Entity, len(curr))
	for _, e := range curr {
		currByID[e.ID] = e
	}

	prevSets := make(map[string]map[string]bool, len(prev))
	for id, e := range prev {
		prevSets[id] = e.MemberSet()
	}

	// Merges: a current entity absorbing >50% of two or more previous entities
	for _, c := range curr {
		currSet := c.MemberSet()
		// A surviving id counts as its own source, so absorbing one other
		// entity still reads as a two-source merge.
		var sources []string
		for prevID, prevSet := range prevSets {
			if overlapRatio(prevSet, currSet) > mergeOverlapThreshold {
				sources = append(sources, prevID)
			}
		}
		if len(sources) >= 2 {
			sort.Strings(sources)
			events = append(events, types.EvolutionEvent{
				Type:            types.EvolutionMerge,
				EntityID:        c.ID,
				SourceIDs:       sources,
				Intensity:       minf(float64(len(sources))/3.0, 1.0),
				AffectedMembers: len(c.Nodes),
				Timestamp:       now,
			})
		}
	}

	// Splits: a previous entity scattering >30% shares into two or more
	// current entities
	for prevID, prevSet := range prevSets {
		var targets []string
		for _, c := range curr {
			if overlapRatio(prevSet, c.MemberSet()) > splitOverlapThreshold {
				targets = append(targets, c.ID)
			}
		}
		if len(targets) >= 2 {
			events = append(events, types.EvolutionEvent{
				Type:            types.EvolutionSplit,
				EntityID:        prevID,
				TargetIDs:       targets,
				Intensity:       minf(float64(len(targets))/3.0, 1.0),
				AffectedMembers: len(prevSet),
				Timestamp:       now,
			})
		}
	}

	// Growth, decline, bridging on surviving entities
	for id, p := range prev {
		c, ok := currByID[id]
		if !ok {
			continue
		}
		prevSize := len(p.Nodes)
		currSize := len(c.Nodes)
		if prevSize > 0 {
			ratio := float64(currSize) / float64(prevSize)
			if ratio >= 1.0+cfg.GrowthThreshold {
				events = append(events, types.EvolutionEvent{
					Type:            types.EvolutionGrowth,
					EntityID:        id,
					Intensity:       clamp01((ratio - 1.0) / 2.0),
					AffectedMembers: currSize - prevSize,
					Timestamp:       now,
				})
			} else if ratio <= 1.0-cfg.DeclineThreshold {
				events = append(events, types.EvolutionEvent{
					Type:            types.EvolutionDecline,
					EntityID:        id,
					Intensity:       clamp01(1.0 - ratio),
					AffectedMembers: prevSize - currSize,
					Timestamp:       now,
				})
			}
		}

		prevExt := p.Characteristics.ExternalConnections
		currExt := c.Characteristics.ExternalConnections
		if prevExt > 0 && currExt > prevExt*2 {
			events = append(events, types.EvolutionEvent{
				Type:            types.EvolutionBridging,
				EntityID:        id,
				Intensity:       minf(float64(currExt)/float64(prevExt)/4.0, 1.0),
				AffectedMembers: currSize,
				Timestamp:       now,
			})
		}
	}

	// Formations and dissolutions at the evolution level, so the one-shot
	// trigger hears them without consulting the transition stream
	for _, c := range curr {
		if _, ok := prev[c.ID]; !ok {
			events = append(events, types.EvolutionEvent{
				Type:            types.EvolutionFormation,
				EntityID:        c.ID,
				Intensity:       minf(float64(len(c.Nodes))/10.0, 1.0),
				AffectedMembers: len(c.Nodes),
				Timestamp:       now,
			})
		}
	}
	for id, p := range prev {
		if _, ok := currByID[id]; !ok {
			events = append(events, types.EvolutionEvent{
				Type:            types.EvolutionDissolution,
				EntityID:        id,
				Intensity:       minf(float64(len(p.Nodes))/10.0, 1.0),
				AffectedMembers: len(p.Nodes),
				Timestamp:       now,
			})
		}
	}

	return events
}

// overlapRatio returns the share of set a that also appears in set b
func overlapRatio(a, b map[string]bool) float64 {
	if len(a) == 0 {
		return 0
	}
	shared := 0
	for id := range a {
		if b[id] {
			shared++
		}
	}
	return float64(shared) / float64(len(a))
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
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
