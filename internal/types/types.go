package types

import "time"

// Node is a single graph node as supplied by the partitioning layer
type Node struct {
	ID string `json:"id"`
}

// Link is a weighted edge between two nodes
type Link struct {
	Source   string  `json:"source"`
	Target   string  `json:"target"`
	Strength float64 `json:"strength"`
}

// Point is a 2D position used only for optional spatial panning
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ClusterType classifies a cluster's structural role in the graph
type ClusterType string

const (
	ClusterHub      ClusterType = "hub"      // high-degree center of the graph
	ClusterBridge   ClusterType = "bridge"   // connects otherwise separate regions
	ClusterIsolated ClusterType = "isolated" // few or no external connections
	ClusterDense    ClusterType = "dense"    // tightly interconnected members
	ClusterOrganic  ClusterType = "organic"  // default, no dominant trait
)

// Cluster is a detected grouping of nodes with a structural type
type Cluster struct {
	ID       string      `json:"id"`
	Nodes    []string    `json:"nodes"`
	Type     ClusterType `json:"type"`
	Strength float64     `json:"strength"` // 0.0-1.0 cohesion
	Centroid Point       `json:"centroid"`
	Radius   float64     `json:"radius"`
}

// CommunityType classifies a community's semantic character
type CommunityType string

const (
	CommunityKnowledge CommunityType = "knowledge" // densely cross-referenced notes
	CommunitySocial    CommunityType = "social"    // person/people centered
	CommunityProject   CommunityType = "project"   // task and goal centered
	CommunityEmergent  CommunityType = "emergent"  // recently formed, uncategorized
)

// Characteristics bundles the strength metrics of a community
type Characteristics struct {
	Size                int     `json:"size"`
	Density             float64 `json:"density"`             // 0.0-1.0 internal link density
	Stability           float64 `json:"stability"`           // 0.0-1.0 inverse membership churn
	ConnectionStrength  float64 `json:"connection_strength"` // 0.0-1.0 mean internal link strength
	IsBridge            bool    `json:"is_bridge"`
	IsIsolated          bool    `json:"is_isolated"`
	InternalConnections int     `json:"internal_connections"`
	ExternalConnections int     `json:"external_connections"`
}

// Community is a detected grouping of nodes with semantic affinity
type Community struct {
	ID              string          `json:"id"`
	Nodes           []string        `json:"nodes"`
	Type            CommunityType   `json:"type"`
	Characteristics Characteristics `json:"characteristics"`
	Centroid        Point           `json:"centroid"`
}

// Entity is the common view of clusters and communities that the engine
// processes. Cluster strength maps to ConnectionStrength; communities
// carry their full characteristics bundle.
type Entity struct {
	ID              string          `json:"id"`
	Nodes           []string        `json:"nodes"`
	Type            string          `json:"type"` // ClusterType or CommunityType value
	Characteristics Characteristics `json:"characteristics"`
	Centroid        Point           `json:"centroid"`
}

// Strength returns the entity's headline strength metric
func (e *Entity) Strength() float64 {
	return e.Characteristics.ConnectionStrength
}

// MemberSet returns the entity's node ids as a set
func (e *Entity) MemberSet() map[string]bool {
	set := make(map[string]bool, len(e.Nodes))
	for _, id := range e.Nodes {
		set[id] = true
	}
	return set
}

// EntityFromCluster converts a cluster to the common entity view
func EntityFromCluster(c Cluster) Entity {
	return Entity{
		ID:    c.ID,
		Nodes: c.Nodes,
		Type:  string(c.Type),
		Characteristics: Characteristics{
			Size:               len(c.Nodes),
			ConnectionStrength: c.Strength,
			Stability:          0.5,
			Density:            0.5,
		},
		Centroid: c.Centroid,
	}
}

// EntityFromCommunity converts a community to the common entity view
func EntityFromCommunity(c Community) Entity {
	return Entity{
		ID:              c.ID,
		Nodes:           c.Nodes,
		Type:            string(c.Type),
		Characteristics: c.Characteristics,
		Centroid:        c.Centroid,
	}
}

// Timbre describes a theme's tonal color
type Timbre struct {
	Brightness float64 `json:"brightness"` // 0.0-1.0
	Warmth     float64 `json:"warmth"`     // 0.0-1.0
	Thickness  float64 `json:"thickness"`  // 0.0-1.0 voice stacking
	Texture    string  `json:"texture"`    // maps to backend oscillator family
}

// Dynamics describes a theme's volume envelope
type Dynamics struct {
	BaseVolume    float64 `json:"base_volume"`    // 0.0-1.0 linear gain
	VelocityRange float64 `json:"velocity_range"` // 0.0-1.0
	Attack        float64 `json:"attack"`         // seconds
	Decay         float64 `json:"decay"`          // seconds
	Sustain       float64 `json:"sustain"`        // 0.0-1.0 level
	Release       float64 `json:"release"`        // seconds
}

// Modulation describes slow parameter movement applied to a voice
type Modulation struct {
	Rate         float64 `json:"rate"`          // Hz
	Depth        float64 `json:"depth"`         // 0.0-1.0
	FilterCutoff float64 `json:"filter_cutoff"` // Hz
	Resonance    float64 `json:"resonance"`     // 0.0-1.0
}

// SpatialBehavior tags how a theme sits in the stereo field
type SpatialBehavior string

const (
	SpatialCentered SpatialBehavior = "centered"
	SpatialPanned   SpatialBehavior = "panned"   // fixed pan from centroid
	SpatialDrifting SpatialBehavior = "drifting" // slow autonomous movement
)

// Evolution describes how fast and how far a theme is allowed to change
type Evolution struct {
	Speed      float64 `json:"speed"`      // 0.0-1.0
	Complexity float64 `json:"complexity"` // multiplier applied per strength unit
}

// AudioTheme is the full synthesis parameter bundle for one entity type
type AudioTheme struct {
	Name       string          `json:"name"`
	BaseFreq   float64         `json:"base_freq"` // Hz
	Harmonics  []float64       `json:"harmonics"` // interval ratios over BaseFreq
	Timbre     Timbre          `json:"timbre"`
	Dynamics   Dynamics        `json:"dynamics"`
	Modulation Modulation      `json:"modulation"`
	Spatial    SpatialBehavior `json:"spatial"`
	Reverb     float64         `json:"reverb"` // 0.0-1.0 wet amount
	Evolution  Evolution       `json:"evolution"`
}

// Clone returns a deep copy so callers can mutate freely
func (t AudioTheme) Clone() AudioTheme {
	out := t
	out.Harmonics = make([]float64, len(t.Harmonics))
	copy(out.Harmonics, t.Harmonics)
	return out
}

// TransitionType identifies a discrete membership-level change
type TransitionType string

const (
	TransitionJoin           TransitionType = "join"            // node joined an entity
	TransitionLeave          TransitionType = "leave"           // node left an entity
	TransitionFormation      TransitionType = "formation"       // entity appeared
	TransitionDissolution    TransitionType = "dissolution"     // entity disappeared
	TransitionStrengthChange TransitionType = "strength_change" // strength moved past threshold
)

// PitchDirection tags the pitch contour of a transition effect
type PitchDirection string

const (
	PitchUp   PitchDirection = "up"
	PitchDown PitchDirection = "down"
	PitchFlat PitchDirection = "flat"
)

// VolumeFade tags how a transition effect's volume moves
type VolumeFade string

const (
	FadeIn    VolumeFade = "in"
	FadeOut   VolumeFade = "out"
	FadeSwell VolumeFade = "swell"
)

// EffectConfig is the derived audio treatment for one event
type EffectConfig struct {
	Duration       float64        `json:"duration"` // seconds
	PitchDirection PitchDirection `json:"pitch_direction"`
	PitchRange     float64        `json:"pitch_range"` // semitones
	VolumeFade     VolumeFade     `json:"volume_fade"`
	Algorithm      string         `json:"algorithm"`
}

// TransitionEvent is a membership-level change between two snapshots
type TransitionEvent struct {
	Type        TransitionType `json:"type"`
	EntityID    string         `json:"entity_id"`
	NodeID      string         `json:"node_id,omitempty"`
	NewStrength *float64       `json:"new_strength,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
	Effect      EffectConfig   `json:"effect"`
}

// EvolutionType identifies a structural change between two snapshots
type EvolutionType string

const (
	EvolutionMerge       EvolutionType = "merge"
	EvolutionSplit       EvolutionType = "split"
	EvolutionGrowth      EvolutionType = "growth"
	EvolutionDecline     EvolutionType = "decline"
	EvolutionBridging    EvolutionType = "bridging"
	EvolutionFormation   EvolutionType = "formation"
	EvolutionDissolution EvolutionType = "dissolution"
)

// EvolutionEvent is a structural change affecting one or more entities
type EvolutionEvent struct {
	Type            EvolutionType `json:"type"`
	EntityID        string        `json:"entity_id"`
	SourceIDs       []string      `json:"source_ids,omitempty"` // merge sources
	TargetIDs       []string      `json:"target_ids,omitempty"` // split targets
	Intensity       float64       `json:"intensity"` // 0.0-1.0 normalized
	AffectedMembers int           `json:"affected_members"`
	Timestamp       time.Time     `json:"timestamp"`
}

// LifecyclePhase is the classified stage of a community's life
type LifecyclePhase string

const (
	PhaseForming   LifecyclePhase = "forming"
	PhaseGrowing   LifecyclePhase = "growing"
	PhaseStable    LifecyclePhase = "stable"
	PhaseMature    LifecyclePhase = "mature"
	PhaseMerging   LifecyclePhase = "merging"
	PhaseSplitting LifecyclePhase = "splitting"
	PhaseDeclining LifecyclePhase = "declining"
	PhaseBridging  LifecyclePhase = "bridging"
)

// LifecycleState tracks one community's phase over time
type LifecycleState struct {
	Phase           LifecyclePhase `json:"phase"`
	PreviousPhase   LifecyclePhase `json:"previous_phase,omitempty"`
	Age             int            `json:"age"` // ticks survived
	LastPhaseChange time.Time      `json:"last_phase_change"`
}

// ActiveVoice is one live, continuously-sounding entity
type ActiveVoice struct {
	EntityID     string     `json:"entity_id"`
	Theme        AudioTheme `json:"theme"`
	Frequency    float64    `json:"frequency"`     // Hz, current
	Volume       float64    `json:"volume"`        // linear gain, current
	FilterCutoff float64    `json:"filter_cutoff"` // Hz, current
	Playing      bool       `json:"playing"`
	LastUpdate   time.Time  `json:"last_update"`
	MemberCount  int        `json:"member_count"`
}
