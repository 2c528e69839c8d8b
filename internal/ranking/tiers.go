package ranking

// Tier is one step of the reputation ladder.
type Tier struct {
	Threshold int    `json:"threshold"`
	Label     string `json:"label"`
	Badge     string `json:"badge,omitempty"`
}

// Rank is the result of ranking a like total.
type Rank struct {
	Tier  string `json:"tier"`
	Badge string `json:"badge,omitempty"`
	Likes int    `json:"likes"`
	// NextThreshold is the like total required for the following tier;
	// zero at the top tier.
	NextThreshold int `json:"next_threshold,omitempty"`
}

// Table is an ascending, validated list of tiers.
type Table struct {
	tiers []Tier
}

// DefaultTiers returns the built-in tier ladder.
func DefaultTiers() []Tier {
	return []Tier{
		{Threshold: 0, Label: "novato"},
		{Threshold: 5, Label: "explorador", Badge: "frame-bronze"},
		{Threshold: 20, Label: "critico", Badge: "frame-silver"},
		{Threshold: 50, Label: "experto", Badge: "frame-gold"},
		{Threshold: 100, Label: "leyenda", Badge: "frame-diamond"},
	}
}

// DefaultTable returns a Table over DefaultTiers.
func DefaultTable() *Table {
	t, _ := NewTable(DefaultTiers())
	return t
}

// NewTable validates tiers and returns a Table over a private copy.
func NewTable(tiers []Tier) (*Table, error) {
	if err := Validate(tiers); err != nil {
		return nil, err
	}
	return &Table{tiers: append([]Tier(nil), tiers...)}, nil
}

// Tiers returns a copy of the table's tiers.
func (t *Table) Tiers() []Tier {
	return append([]Tier(nil), t.tiers...)
}

// RankFor returns the highest tier whose threshold is <= likes.
// Negative input counts as zero.
func (t *Table) RankFor(likes int) Rank {
	if likes < 0 {
		likes = 0
	}

	idx := 0
	for i, tier := range t.tiers {
		if tier.Threshold > likes {
			break
		}
		idx = i
	}

	tier := t.tiers[idx]
	rank := Rank{Tier: tier.Label, Badge: tier.Badge, Likes: likes}
	if idx+1 < len(t.tiers) {
		rank.NextThreshold = t.tiers[idx+1].Threshold
	}
	return rank
}
