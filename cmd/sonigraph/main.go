package main

import (
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sonigraph/sonigraph/internal/audio"
	"github.com/sonigraph/sonigraph/internal/config"
	"github.com/sonigraph/sonigraph/internal/engine"
	"github.com/sonigraph/sonigraph/internal/health"
	"github.com/sonigraph/sonigraph/internal/journal"
	"github.com/sonigraph/sonigraph/internal/types"
)

// The demo binary drives the engine with a synthetic graph that forms,
// grows, merges, splits, and dissolves clusters on a fixed tick, so the
// whole pipeline can be watched from the logs without a real frontend.

func main() {
	log.Println("sonigraph - graph sonification engine")
	log.Println("=====================================")

	// Load .env file (optional - won't error if missing)
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, using environment variables")
	} else {
		log.Println("[config] Loaded .env file")
	}

	statePath := os.Getenv("STATE_PATH")
	if statePath == "" {
		statePath = "state"
	}
	os.MkdirAll(statePath, 0755)

	configPath := os.Getenv("SONIGRAPH_CONFIG")
	if configPath == "" {
		configPath = "sonigraph.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Warning: %v, using defaults", err)
	}
	cfg = config.FromEnv(cfg)

	tickMS := 2000
	if v := os.Getenv("SONIGRAPH_TICK_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			tickMS = n
		}
	}

	eng := engine.New(audio.NewNullBackend(), cfg, statePath)

	store, err := journal.OpenStore(statePath)
	if err != nil {
		log.Printf("Warning: failed to open event store: %v", err)
	} else {
		eng.AttachStore(store)
		defer store.Close()
	}

	sampler, err := health.NewSampler(10 * time.Second)
	if err != nil {
		log.Printf("Warning: health sampler unavailable: %v", err)
	} else {
		sampler.Start()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(time.Duration(tickMS) * time.Millisecond)
	defer ticker.Stop()

	log.Printf("[main] Running synthetic scenario, tick every %dms. Press Ctrl+C to stop.", tickMS)

	step := 0
	for running := true; running; {
		select {
		case <-ticker.C:
			eng.ProcessClusters(scenarioStep(step))
			step++
			if step%10 == 0 {
				st := eng.Stats()
				log.Printf("[main] tick %d: %d voices, %d tracked, %d effects fired",
					st.Ticks, st.ActiveVoices, st.TrackedLives, st.EffectsFired)
				if sampler != nil {
					s := sampler.Last()
					log.Printf("[health] cpu %.1f%% rss %dMB", s.CPUPercent, s.RSSBytes/(1<<20))
				}
			}
		case <-sigChan:
			running = false
		}
	}

	log.Println("[main] Shutting down...")
	if sampler != nil {
		sampler.Stop()
	}
	eng.Dispose()
	log.Println("[main] Goodbye!")
}

// scenarioStep returns the cluster snapshot for one tick of the
// synthetic scenario. The script loops every 24 ticks through
// formation, growth, a merge, a split, decline, and dissolution.
// Evolution detection matches by member overlap, so the phases reuse
// node ids from a shared namespace.
func scenarioStep(step int) []types.Cluster {
	phase := step % 24
	switch {
	case phase < 4:
		// two small clusters form and settle
		return []types.Cluster{
			cluster("alpha", nodeRange(0, 4), types.ClusterOrganic, 0.5, 100),
			cluster("beta", nodeRange(20, 3), types.ClusterDense, 0.6, 400),
		}
	case phase < 8:
		// alpha grows past the growth threshold
		return []types.Cluster{
			cluster("alpha", nodeRange(0, 4+2*(phase-3)), types.ClusterOrganic, 0.6, 100),
			cluster("beta", nodeRange(20, 3), types.ClusterDense, 0.6, 400),
		}
	case phase < 12:
		// beta's members are absorbed into alpha
		return []types.Cluster{
			cluster("alpha", append(nodeRange(0, 12), nodeRange(20, 3)...), types.ClusterHub, 0.8, 250),
		}
	case phase < 16:
		// alpha splits into three fragments of its own members
		return []types.Cluster{
			cluster("alpha", nodeRange(0, 6), types.ClusterOrganic, 0.5, 150),
			cluster("gamma", nodeRange(6, 5), types.ClusterOrganic, 0.5, 300),
			cluster("delta", nodeRange(11, 4), types.ClusterIsolated, 0.3, 450),
		}
	case phase < 20:
		// the fragments decline
		return []types.Cluster{
			cluster("alpha", nodeRange(0, 3), types.ClusterOrganic, 0.4, 150),
			cluster("gamma", nodeRange(6, 2), types.ClusterOrganic, 0.3, 300),
		}
	default:
		// silence before the loop restarts
		return nil
	}
}

func nodeRange(start, count int) []string {
	nodes := make([]string, count)
	for i := range nodes {
		nodes[i] = "n" + strconv.Itoa(start+i)
	}
	return nodes
}

func cluster(id string, nodes []string, t types.ClusterType, strength, x float64) types.Cluster {
	return types.Cluster{
		ID:       id,
		Nodes:    nodes,
		Type:     t,
		Strength: strength,
		Centroid: types.Point{X: x, Y: 100},
	}
}
