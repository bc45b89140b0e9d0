package transition

import (
	"testing"
	"time"

	"github.com/sonigraph/sonigraph/internal/config"
	"github.com/sonigraph/sonigraph/internal/types"
)

func entity(id string, strength float64, nodes ...string) types.Entity {
	return types.Entity{
		ID:    id,
		Nodes: nodes,
		Type:  string(types.ClusterOrganic),
		Characteristics: types.Characteristics{
			Size:               len(nodes),
			ConnectionStrength: strength,
		},
	}
}

func byID(entities ...types.Entity) map[string]types.Entity {
	m := make(map[string]types.Entity)
	for _, e := range entities {
		m[e.ID] = e
	}
	return m
}

func countType(events []types.TransitionEvent, t types.TransitionType) int {
	n := 0
	for _, e := range events {
		if e.Type == t {
			n++
		}
	}
	return n
}

func findEvolution(events []types.EvolutionEvent, t types.EvolutionType, entityID string) *types.EvolutionEvent {
	for i := range events {
		if events[i].Type == t && events[i].EntityID == entityID {
			return &events[i]
		}
	}
	return nil
}

// TestFormationAndDissolution checks that every id present only on one side
// yields exactly one event of the matching type
func TestFormationAndDissolution(t *testing.T) {
	now := time.Now()
	prev := byID(entity("old", 0.5, "a", "b"))
	curr := []types.Entity{entity("new", 0.5, "c", "d")}

	events := DetectTransitions(prev, curr, now)

	if n := countType(events, types.TransitionFormation); n != 1 {
		t.Errorf("Expected 1 formation, got %d", n)
	}
	if n := countType(events, types.TransitionDissolution); n != 1 {
		t.Errorf("Expected 1 dissolution, got %d", n)
	}
	for _, e := range events {
		if e.Type == types.TransitionFormation && e.EntityID != "new" {
			t.Errorf("Formation should target new, got %s", e.EntityID)
		}
		if e.Type == types.TransitionDissolution && e.EntityID != "old" {
			t.Errorf("Dissolution should target old, got %s", e.EntityID)
		}
	}
}

// TestJoinLeave checks member diffing on a surviving entity
func TestJoinLeave(t *testing.T) {
	now := time.Now()
	prev := byID(entity("A", 0.5, "1", "2", "3"))
	curr := []types.Entity{entity("A", 0.5, "2", "3", "4", "5")}

	events := DetectTransitions(prev, curr, now)

	if n := countType(events, types.TransitionJoin); n != 2 {
		t.Errorf("Expected 2 joins (4, 5), got %d", n)
	}
	if n := countType(events, types.TransitionLeave); n != 1 {
		t.Errorf("Expected 1 leave (1), got %d", n)
	}
	if n := countType(events, types.TransitionFormation); n != 0 {
		t.Errorf("Surviving entity should not form, got %d formations", n)
	}
}

// TestStrengthChangeThreshold checks the 0.1 delta boundary: 0.05 is quiet,
// 0.15 fires exactly once
func TestStrengthChangeThreshold(t *testing.T) {
	now := time.Now()

	prev := byID(entity("A", 0.50, "1", "2"))
	small := []types.Entity{entity("A", 0.55, "1", "2")}
	if n := countType(DetectTransitions(prev, small, now), types.TransitionStrengthChange); n != 0 {
		t.Errorf("Delta 0.05 should not fire, got %d events", n)
	}

	large := []types.Entity{entity("A", 0.65, "1", "2")}
	events := DetectTransitions(prev, large, now)
	if n := countType(events, types.TransitionStrengthChange); n != 1 {
		t.Errorf("Delta 0.15 should fire once, got %d events", n)
	}
	for _, e := range events {
		if e.Type == types.TransitionStrengthChange {
			if e.NewStrength == nil || *e.NewStrength != 0.65 {
				t.Error("Strength change should carry the new strength")
			}
		}
	}
}

// TestEffectConfigAttached checks every transition resolves to an effect
func TestEffectConfigAttached(t *testing.T) {
	now := time.Now()
	prev := byID(entity("old", 0.5, "a"))
	curr := []types.Entity{entity("new", 0.5, "b")}

	for _, e := range DetectTransitions(prev, curr, now) {
		if e.Effect.Algorithm == "" {
			t.Errorf("Event %s has no effect algorithm", e.Type)
		}
		if e.Effect.Duration <= 0 {
			t.Errorf("Event %s has non-positive duration", e.Type)
		}
	}
}

// TestMergeDetection checks the documented fixture: prev {A:{1,2}, B:{3,4}},
// curr {C:{1,2,3,4}} produces a merge from [A, B] to C
func TestMergeDetection(t *testing.T) {
	now := time.Now()
	cfg := config.Default().Evolution
	prev := byID(entity("A", 0.5, "1", "2"), entity("B", 0.5, "3", "4"))
	curr := []types.Entity{entity("C", 0.5, "1", "2", "3", "4")}

	events := DetectEvolution(prev, curr, cfg, now)
	merge := findEvolution(events, types.EvolutionMerge, "C")
	if merge == nil {
		t.Fatal("Expected a merge event targeting C")
	}
	if len(merge.SourceIDs) != 2 || merge.SourceIDs[0] != "A" || merge.SourceIDs[1] != "B" {
		t.Errorf("Expected sources [A B], got %v", merge.SourceIDs)
	}
	if merge.Intensity <= 0 || merge.Intensity > 1 {
		t.Errorf("Merge intensity out of range: %f", merge.Intensity)
	}
}

// TestSplitDetection checks the documented fixture: prev {A:{1,2,3}},
// curr {B:{1,2}, C:{3,4}} produces a split from A targeting [B, C]
func TestSplitDetection(t *testing.T) {
	now := time.Now()
	cfg := config.Default().Evolution
	prev := byID(entity("A", 0.5, "1", "2", "3"))
	curr := []types.Entity{entity("B", 0.5, "1", "2"), entity("C", 0.5, "3", "4")}

	events := DetectEvolution(prev, curr, cfg, now)
	split := findEvolution(events, types.EvolutionSplit, "A")
	if split == nil {
		t.Fatal("Expected a split event from A")
	}
	if len(split.TargetIDs) != 2 {
		t.Fatalf("Expected 2 split targets, got %v", split.TargetIDs)
	}
	if split.TargetIDs[0] != "B" || split.TargetIDs[1] != "C" {
		t.Errorf("Expected targets [B C], got %v", split.TargetIDs)
	}
}

// TestSurvivorAbsorbsOther checks a merge is detected when the surviving id
// keeps its own name
func TestSurvivorAbsorbsOther(t *testing.T) {
	now := time.Now()
	cfg := config.Default().Evolution
	prev := byID(entity("A", 0.5, "1", "2"), entity("B", 0.5, "3", "4"))
	curr := []types.Entity{entity("A", 0.5, "1", "2", "3", "4")}

	events := DetectEvolution(prev, curr, cfg, now)
	if findEvolution(events, types.EvolutionMerge, "A") == nil {
		t.Error("Expected a merge when A absorbs B under its own id")
	}
}

// TestGrowthDecline checks the size-ratio thresholds
func TestGrowthDecline(t *testing.T) {
	now := time.Now()
	cfg := config.Default().Evolution // growth/decline thresholds 0.5

	prev := byID(entity("A", 0.5, "1", "2", "3", "4"))
	grown := []types.Entity{entity("A", 0.5, "1", "2", "3", "4", "5", "6")}
	events := DetectEvolution(prev, grown, cfg, now)
	g := findEvolution(events, types.EvolutionGrowth, "A")
	if g == nil {
		t.Fatal("1.5x size should produce growth")
	}
	if g.AffectedMembers != 2 {
		t.Errorf("Expected 2 affected members, got %d", g.AffectedMembers)
	}

	shrunk := []types.Entity{entity("A", 0.5, "1", "2")}
	events = DetectEvolution(prev, shrunk, cfg, now)
	if findEvolution(events, types.EvolutionDecline, "A") == nil {
		t.Error("0.5x size should produce decline")
	}

	steady := []types.Entity{entity("A", 0.5, "1", "2", "3", "4", "5")}
	events = DetectEvolution(prev, steady, cfg, now)
	if findEvolution(events, types.EvolutionGrowth, "A") != nil {
		t.Error("1.25x size should not produce growth at threshold 0.5")
	}
}

// TestBridgingDetection checks the external-connection doubling rule
func TestBridgingDetection(t *testing.T) {
	now := time.Now()
	cfg := config.Default().Evolution

	p := entity("A", 0.5, "1", "2", "3")
	p.Characteristics.ExternalConnections = 2
	c := entity("A", 0.5, "1", "2", "3")
	c.Characteristics.ExternalConnections = 5

	events := DetectEvolution(byID(p), []types.Entity{c}, cfg, now)
	if findEvolution(events, types.EvolutionBridging, "A") == nil {
		t.Error("External connections 2 -> 5 should produce bridging")
	}

	c.Characteristics.ExternalConnections = 4 // exactly double, not more
	events = DetectEvolution(byID(p), []types.Entity{c}, cfg, now)
	if findEvolution(events, types.EvolutionBridging, "A") != nil {
		t.Error("Exactly doubled connections should not produce bridging")
	}
}

// TestMultipleEventsOneTick checks growth and bridging can fire together
func TestMultipleEventsOneTick(t *testing.T) {
	now := time.Now()
	cfg := config.Default().Evolution

	p := entity("A", 0.5, "1", "2")
	p.Characteristics.ExternalConnections = 1
	c := entity("A", 0.5, "1", "2", "3", "4")
	c.Characteristics.ExternalConnections = 4

	events := DetectEvolution(byID(p), []types.Entity{c}, cfg, now)
	if findEvolution(events, types.EvolutionGrowth, "A") == nil {
		t.Error("Expected growth")
	}
	if findEvolution(events, types.EvolutionBridging, "A") == nil {
		t.Error("Expected bridging in the same tick")
	}
}

// TestEvolutionFormationDissolution checks the evolution-level lifecycle events
func TestEvolutionFormationDissolution(t *testing.T) {
	now := time.Now()
	cfg := config.Default().Evolution
	prev := byID(entity("gone", 0.5, "a", "b", "c"))
	curr := []types.Entity{entity("born", 0.5, "x", "y")}

	events := DetectEvolution(prev, curr, cfg, now)
	f := findEvolution(events, types.EvolutionFormation, "born")
	if f == nil {
		t.Fatal("Expected formation for born")
	}
	if f.Intensity != 0.2 {
		t.Errorf("Formation intensity should be size/10 = 0.2, got %f", f.Intensity)
	}
	d := findEvolution(events, types.EvolutionDissolution, "gone")
	if d == nil {
		t.Fatal("Expected dissolution for gone")
	}
	if d.AffectedMembers != 3 {
		t.Errorf("Dissolution should report 3 members, got %d", d.AffectedMembers)
	}
}

// TestEmptySnapshots checks the trivial edges
func TestEmptySnapshots(t *testing.T) {
	now := time.Now()
	if events := DetectTransitions(nil, nil, now); len(events) != 0 {
		t.Errorf("Empty snapshots should produce no events, got %d", len(events))
	}
	if events := DetectEvolution(nil, nil, config.Default().Evolution, now); len(events) != 0 {
		t.Errorf("Empty snapshots should produce no evolution, got %d", len(events))
	}
}
