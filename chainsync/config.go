package chainsync

import (
	"errors"
	"fmt"
	"time"

	tmmath "github.com/arclight-network/arclight/libs/math"
	"github.com/arclight-network/arclight/types"
)

// Config is the immutable per-session configuration supplied at startup.
// Everything here is engine-configuration data shared by the whole
// network; none of it changes while the engine runs.
type Config struct {
	// GenesisHeader anchors the tree until a warp sync replaces it.
	GenesisHeader *types.Header

	// SlotAuthorities is the genesis block-production authority set.
	SlotAuthorities []types.Authority

	// VoteAuthorities is the genesis finality-voter set.
	VoteAuthorities []types.Authority

	// Randomness seeds the per-fork VRF randomness accumulator.
	Randomness [32]byte

	// SlotDuration is the wall-clock length of one slot.
	SlotDuration time.Duration

	// SlotsPerEpoch is the number of slots sharing one authority set and
	// randomness seed.
	SlotsPerEpoch uint64

	// LeadershipFraction is the probability, as a fraction, that a slot
	// has at least one primary VRF leader.
	LeadershipFraction tmmath.Fraction

	// FinalityThreshold is the supermajority fraction of total vote
	// weight required to finalize.
	FinalityThreshold tmmath.Fraction

	// MaxNonFinalizedDepth bounds tree memory: insertion beyond this depth
	// past the finalized root is refused until finalization advances.
	// Zero means unbounded.
	MaxNonFinalizedDepth uint64

	// VRFEngineID, RoundRobinEngineID and FinalityEngineID are the
	// recognized consensus-engine identifiers. Digest items from any
	// other engine are ignored.
	VRFEngineID        string
	RoundRobinEngineID string
	FinalityEngineID   string
}

// DefaultConfig returns the session defaults. The genesis header and
// authority sets have no useful default and must be filled in.
func DefaultConfig() Config {
	return Config{
		SlotDuration:         6 * time.Second,
		SlotsPerEpoch:        600,
		LeadershipFraction:   tmmath.Fraction{Numerator: 1, Denominator: 4},
		FinalityThreshold:    tmmath.Fraction{Numerator: 2, Denominator: 3},
		MaxNonFinalizedDepth: 4096,
		VRFEngineID:          "SASS",
		RoundRobinEngineID:   "AURA",
		FinalityEngineID:     "FNLY",
	}
}

// Validate checks the configuration for internal consistency.
func (cfg Config) Validate() error {
	if cfg.GenesisHeader == nil {
		return errors.New("genesis header is required")
	}
	if len(cfg.SlotAuthorities) == 0 {
		return errors.New("genesis slot authority set is required")
	}
	if len(cfg.VoteAuthorities) == 0 {
		return errors.New("genesis vote authority set is required")
	}
	if cfg.SlotDuration <= 0 {
		return errors.New("slot duration must be positive")
	}
	if cfg.SlotsPerEpoch == 0 {
		return errors.New("slots per epoch must be positive")
	}
	if cfg.LeadershipFraction.Denominator == 0 ||
		cfg.LeadershipFraction.Numerator > cfg.LeadershipFraction.Denominator {
		return fmt.Errorf("leadership fraction %s is not in (0, 1]", cfg.LeadershipFraction)
	}
	if cfg.FinalityThreshold.Denominator == 0 ||
		cfg.FinalityThreshold.Numerator > cfg.FinalityThreshold.Denominator ||
		cfg.FinalityThreshold.Numerator*2 < cfg.FinalityThreshold.Denominator {
		return fmt.Errorf("finality threshold %s is not in [1/2, 1]", cfg.FinalityThreshold)
	}
	for _, id := range []string{cfg.VRFEngineID, cfg.RoundRobinEngineID, cfg.FinalityEngineID} {
		if _, err := types.EngineIDFromString(id); err != nil {
			return err
		}
	}
	return nil
}
