package routing

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fire-team/ticket-router/internal/models"
	"github.com/fire-team/ticket-router/internal/utils"
)

// LoadBalancingStrategy chooses one manager out of a non-empty candidate set.
// None of the strategies guarantee strict fairness under concurrent callers;
// they read a load snapshot that may already be stale.
//
// Peek answers what Pick would choose now without moving any rotation state.
type LoadBalancingStrategy interface {
	Name() string
	Pick(candidates []models.Manager, ticketKey string) models.Manager
	Peek(candidates []models.Manager, ticketKey string) models.Manager
}

const (
	StrategyTopTwoRotating = "top2_rotating"
	StrategyTopTwoHashed   = "top2_hashed"
	StrategyLeastLoaded    = "least_loaded"
	StrategyRoundRobin     = "round_robin"
	StrategyWeightedRandom = "weighted_random"
)

func NewStrategy(name string) (LoadBalancingStrategy, error) {
	switch name {
	case "", StrategyTopTwoRotating:
		return &TopTwoRotating{}, nil
	case StrategyTopTwoHashed:
		return TopTwoHashed{}, nil
	case StrategyLeastLoaded:
		return LeastLoaded{}, nil
	case StrategyRoundRobin:
		return &RoundRobin{}, nil
	case StrategyWeightedRandom:
		return NewWeightedRandom(uint64(time.Now().UnixNano())), nil
	default:
		return nil, fmt.Errorf("unknown load balancing strategy %q", name)
	}
}

// byLoad returns a copy sorted by ascending load, ties by id.
func byLoad(candidates []models.Manager) []models.Manager {
	out := append([]models.Manager(nil), candidates...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ActiveTickets == out[j].ActiveTickets {
			return out[i].ID < out[j].ID
		}
		return out[i].ActiveTickets < out[j].ActiveTickets
	})
	return out
}

func topTwo(candidates []models.Manager) []models.Manager {
	sorted := byLoad(candidates)
	if len(sorted) > 2 {
		sorted = sorted[:2]
	}
	return sorted
}

// TopTwoRotating takes the two least-loaded candidates and alternates between
// them with a monotonically advancing counter. It is a soft-fairness
// heuristic: neither strict least-load nor strict round robin.
type TopTwoRotating struct {
	counter atomic.Uint64
}

func (s *TopTwoRotating) Name() string { return StrategyTopTwoRotating }

func (s *TopTwoRotating) Pick(candidates []models.Manager, _ string) models.Manager {
	top := topTwo(candidates)
	idx := (s.counter.Add(1) - 1) % uint64(len(top))
	return top[idx]
}

func (s *TopTwoRotating) Peek(candidates []models.Manager, _ string) models.Manager {
	top := topTwo(candidates)
	return top[s.counter.Load()%uint64(len(top))]
}

// TopTwoHashed picks among the two least-loaded candidates by hashing the
// ticket key, so the same ticket always lands on the same slot.
type TopTwoHashed struct{}

func (TopTwoHashed) Name() string { return StrategyTopTwoHashed }

func (TopTwoHashed) Pick(candidates []models.Manager, ticketKey string) models.Manager {
	top := topTwo(candidates)
	return top[utils.HashIndex(ticketKey, len(top))]
}

func (s TopTwoHashed) Peek(candidates []models.Manager, ticketKey string) models.Manager {
	return s.Pick(candidates, ticketKey)
}

type LeastLoaded struct{}

func (LeastLoaded) Name() string { return StrategyLeastLoaded }

func (LeastLoaded) Pick(candidates []models.Manager, _ string) models.Manager {
	return byLoad(candidates)[0]
}

func (s LeastLoaded) Peek(candidates []models.Manager, ticketKey string) models.Manager {
	return s.Pick(candidates, ticketKey)
}

// RoundRobin cycles over the candidates ordered by id, ignoring load.
type RoundRobin struct {
	counter atomic.Uint64
}

func (s *RoundRobin) Name() string { return StrategyRoundRobin }

func (s *RoundRobin) Pick(candidates []models.Manager, _ string) models.Manager {
	ordered := byID(candidates)
	idx := (s.counter.Add(1) - 1) % uint64(len(ordered))
	return ordered[idx]
}

func (s *RoundRobin) Peek(candidates []models.Manager, _ string) models.Manager {
	ordered := byID(candidates)
	return ordered[s.counter.Load()%uint64(len(ordered))]
}

func byID(candidates []models.Manager) []models.Manager {
	ordered := append([]models.Manager(nil), candidates...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })
	return ordered
}

// WeightedRandom draws a candidate with probability proportional to 1/(load+1).
type WeightedRandom struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewWeightedRandom(seed uint64) *WeightedRandom {
	return &WeightedRandom{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (s *WeightedRandom) Name() string { return StrategyWeightedRandom }

// Peek reports the most likely pick, the least-loaded candidate, and leaves
// the random source untouched.
func (s *WeightedRandom) Peek(candidates []models.Manager, _ string) models.Manager {
	return byLoad(candidates)[0]
}

func (s *WeightedRandom) Pick(candidates []models.Manager, _ string) models.Manager {
	weights := make([]float64, len(candidates))
	total := 0.0
	for i, m := range candidates {
		load := m.ActiveTickets
		if load < 0 {
			load = 0
		}
		weights[i] = 1 / float64(load+1)
		total += weights[i]
	}

	s.mu.Lock()
	x := s.rng.Float64() * total
	s.mu.Unlock()

	for i, w := range weights {
		if x < w {
			return candidates[i]
		}
		x -= w
	}
	return candidates[len(candidates)-1]
}
