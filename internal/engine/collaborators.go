package engine

import (
	"sort"

	"github.com/sonigraph/sonigraph/internal/config"
	"github.com/sonigraph/sonigraph/internal/types"
)

// Partitioner turns raw nodes and links into communities. The real
// partitioning algorithm lives with the embedding application; the default
// groups connected components so the engine is usable standalone.
type Partitioner interface {
	Partition(nodes []types.Node, links []types.Link, cfg config.CommunitySettings) []types.Community
}

// ScaleQuantizer snaps a frequency onto a musical scale. Without one
// installed, voice frequencies pass through unquantized.
type ScaleQuantizer interface {
	Snap(freq float64) float64
}

// HubWeighter redistributes voice volume by hub influence. UpdateGraph
// receives the raw graph as context; Weight adjusts one entity's gain.
// The default applies no weighting.
type HubWeighter interface {
	UpdateGraph(nodes []types.Node, links []types.Link)
	Weight(entityID string, gain float64) float64
}

type identityHub struct{}

func (identityHub) UpdateGraph(nodes []types.Node, links []types.Link) {}
func (identityHub) Weight(entityID string, gain float64) float64       { return gain }

// componentPartitioner is the default Partitioner: undirected connected
// components, filtered by the configured size bounds.
type componentPartitioner struct{}

func (componentPartitioner) Partition(nodes []types.Node, links []types.Link, cfg config.CommunitySettings) []types.Community {
	adjacency := make(map[string][]string)
	for _, l := range links {
		adjacency[l.Source] = append(adjacency[l.Source], l.Target)
		adjacency[l.Target] = append(adjacency[l.Target], l.Source)
	}

	visited := make(map[string]bool)
	var communities []types.Community

	for _, n := range nodes {
		if visited[n.ID] {
			continue
		}

		// Breadth-first walk of this component
		var members []string
		queue := []string{n.ID}
		visited[n.ID] = true
		for len(queue) > 0 {
			id := queue[0]
			queue = queue[1:]
			members = append(members, id)
			for _, next := range adjacency[id] {
				if !visited[next] {
					visited[next] = true
					queue = append(queue, next)
				}
			}
		}

		if len(members) < cfg.MinSize || len(members) > cfg.MaxSize {
			continue
		}
		sort.Strings(members)

		internal := 0
		totalStrength := 0.0
		memberSet := make(map[string]bool, len(members))
		for _, id := range members {
			memberSet[id] = true
		}
		for _, l := range links {
			if memberSet[l.Source] && memberSet[l.Target] {
				internal++
				totalStrength += l.Strength
			}
		}

		size := len(members)
		maxLinks := size * (size - 1) / 2
		density := 0.0
		if maxLinks > 0 {
			density = float64(internal) / float64(maxLinks)
		}
		meanStrength := 0.0
		if internal > 0 {
			meanStrength = totalStrength / float64(internal)
		}

		communities = append(communities, types.Community{
			ID:    "community-" + members[0],
			Nodes: members,
			Type:  types.CommunityEmergent,
			Characteristics: types.Characteristics{
				Size:                size,
				Density:             clamp01(density),
				Stability:           0.5, // components carry no history
				ConnectionStrength:  clamp01(meanStrength),
				IsIsolated:          internal == 0,
				InternalConnections: internal,
			},
		})
	}

	return communities
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
