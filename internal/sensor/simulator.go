package sensor

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/nerrad567/gray-logic-occupancy/internal/automation"
)

const (
	DefaultSimulatorInterval    = 10 * time.Second
	DefaultSimulatorProbability = 0.1
)

// SimulatorOptions configures a Simulator. Zero Interval and Clock take
// defaults; Seed 0 seeds from the clock.
type SimulatorOptions struct {
	Interval    time.Duration
	Probability float64
	Seed        int64
	Clock       clockwork.Clock
	Logger      Logger
}

// Simulator emulates occupancy sensors. Every interval each room flips its
// occupancy with the configured probability.
type Simulator struct {
	target      OccupancyWriter
	interval    time.Duration
	probability float64
	clock       clockwork.Clock
	logger      Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulator creates a simulator writing to target.
func NewSimulator(target OccupancyWriter, opts SimulatorOptions) *Simulator {
	if opts.Interval <= 0 {
		opts.Interval = DefaultSimulatorInterval
	}
	if opts.Probability < 0 || opts.Probability > 1 {
		opts.Probability = DefaultSimulatorProbability
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	seed := opts.Seed
	if seed == 0 {
		seed = opts.Clock.Now().UnixNano()
	}
	return &Simulator{
		target:      target,
		interval:    opts.Interval,
		probability: opts.Probability,
		clock:       opts.Clock,
		logger:      opts.Logger,
		rng:         rand.New(rand.NewSource(seed)), //nolint:gosec // simulation, not security
	}
}

// Run performs one round per interval until ctx is cancelled. It returns
// nil on cancellation.
func (s *Simulator) Run(ctx context.Context) error {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("occupancy simulator started",
		"interval", s.interval.String(),
		"probability", s.probability,
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("occupancy simulator stopped")
			return nil
		case <-ticker.Chan():
			s.Step()
		}
	}
}

// Step runs one simulation round and returns how many rooms flipped.
func (s *Simulator) Step() int {
	snap := s.target.Snapshot()
	if !snap.SystemStatus.Online {
		return 0
	}

	flipped := 0
	for _, room := range snap.Rooms {
		if !s.roll() {
			continue
		}
		if _, err := s.target.SetOccupancy(room.ID, !room.Occupied, automation.SourceSensor); err != nil {
			s.logger.Warn("simulated occupancy write failed", "room_id", room.ID, "error", err)
			continue
		}
		s.logger.Debug("simulated occupancy change", "room_id", room.ID, "occupied", !room.Occupied)
		flipped++
	}
	return flipped
}

func (s *Simulator) roll() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64() < s.probability
}
