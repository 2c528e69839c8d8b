package ranking

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Tier table validation errors.
var (
	ErrNoTiers        = errors.New("rank table has no tiers")
	ErrFirstThreshold = errors.New("first tier threshold must be 0")
	ErrUnsortedTiers  = errors.New("tier thresholds must be strictly ascending")
	ErrEmptyTierLabel = errors.New("tier label is required")
)

// TierFile is the JSON structure of a tier calibration file.
type TierFile struct {
	Version string `json:"version"`
	Tiers   []Tier `json:"tiers"`
}

// Validate checks that tiers start at zero, ascend strictly and are labeled.
func Validate(tiers []Tier) error {
	if len(tiers) == 0 {
		return ErrNoTiers
	}
	if tiers[0].Threshold != 0 {
		return ErrFirstThreshold
	}
	for i, tier := range tiers {
		if tier.Label == "" {
			return fmt.Errorf("tier %d: %w", i, ErrEmptyTierLabel)
		}
		if i > 0 && tier.Threshold <= tiers[i-1].Threshold {
			return fmt.Errorf("tier %q (threshold %d): %w", tier.Label, tier.Threshold, ErrUnsortedTiers)
		}
	}
	return nil
}

// LoadTiers loads a tier table from a JSON calibration file.
// An empty path yields the default table. On any read, parse or validation
// error the default table is returned together with the error; logging is
// left to the caller.
func LoadTiers(path string) (*Table, error) {
	if path == "" {
		return DefaultTable(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultTable(), fmt.Errorf("failed to read rank tier file: %w", err)
	}

	var file TierFile
	if err := json.Unmarshal(data, &file); err != nil {
		return DefaultTable(), fmt.Errorf("failed to parse rank tier file: %w", err)
	}

	table, err := NewTable(file.Tiers)
	if err != nil {
		return DefaultTable(), fmt.Errorf("invalid rank tier file: %w", err)
	}

	return table, nil
}
