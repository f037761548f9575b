package models

import "fmt"

// BracketFormat mirrors the bracket_format ENUM in the database.
type BracketFormat string

const (
	FormatSingleElimination BracketFormat = "single_elimination"
	FormatDoubleElimination BracketFormat = "double_elimination"
	FormatRoundRobin        BracketFormat = "round_robin"
	FormatSwiss             BracketFormat = "swiss"
)

func (f BracketFormat) Valid() bool {
	switch f {
	case FormatSingleElimination, FormatDoubleElimination, FormatRoundRobin, FormatSwiss:
		return true
	}
	return false
}

// TiebreakRule orders round-robin standings beyond raw points.
type TiebreakRule string

const (
	TiebreakHeadToHead TiebreakRule = "head_to_head"
	TiebreakScoreDiff  TiebreakRule = "score_diff"
	TiebreakBuchholz   TiebreakRule = "buchholz"
)

type SingleElimConfig struct {
	// ThirdPlaceMatch adds a consolation match fed by both semifinal losers.
	ThirdPlaceMatch bool `json:"third_place_match"`
}

type DoubleElimConfig struct {
	// GrandFinalsReset schedules a second grand final when the losers
	// bracket representative wins the first one.
	GrandFinalsReset bool `json:"grand_finals_reset"`
}

type RoundRobinConfig struct {
	// DoubleRound plays every pairing twice with colors swapped.
	DoubleRound bool           `json:"double_round"`
	Tiebreaks   []TiebreakRule `json:"tiebreaks,omitempty"`
}

type SwissConfig struct {
	// Rounds of 0 means ceil(log2(N)) rounds, decided at generation time.
	Rounds int `json:"rounds"`
}

// FormatConfig is a tagged variant: exactly the field matching the
// tournament's format may be set. Loose option maps from the legacy system
// are deliberately not supported.
type FormatConfig struct {
	SingleElim *SingleElimConfig `json:"single_elimination,omitempty"`
	DoubleElim *DoubleElimConfig `json:"double_elimination,omitempty"`
	RoundRobin *RoundRobinConfig `json:"round_robin,omitempty"`
	Swiss      *SwissConfig      `json:"swiss,omitempty"`
}

// ApplyDefaults fills the variant for the given format if it is absent.
func (c *FormatConfig) ApplyDefaults(format BracketFormat) {
	switch format {
	case FormatSingleElimination:
		if c.SingleElim == nil {
			c.SingleElim = &SingleElimConfig{}
		}
	case FormatDoubleElimination:
		if c.DoubleElim == nil {
			c.DoubleElim = &DoubleElimConfig{GrandFinalsReset: true}
		}
	case FormatRoundRobin:
		if c.RoundRobin == nil {
			c.RoundRobin = &RoundRobinConfig{}
		}
		if len(c.RoundRobin.Tiebreaks) == 0 {
			c.RoundRobin.Tiebreaks = []TiebreakRule{TiebreakHeadToHead, TiebreakScoreDiff, TiebreakBuchholz}
		}
	case FormatSwiss:
		if c.Swiss == nil {
			c.Swiss = &SwissConfig{}
		}
	}
}

// Validate rejects a config variant that does not match the format.
func (c FormatConfig) Validate(format BracketFormat) error {
	if !format.Valid() {
		return fmt.Errorf("unknown bracket format %q", format)
	}
	set := 0
	if c.SingleElim != nil {
		set++
		if format != FormatSingleElimination {
			return fmt.Errorf("single elimination config given for %s tournament", format)
		}
	}
	if c.DoubleElim != nil {
		set++
		if format != FormatDoubleElimination {
			return fmt.Errorf("double elimination config given for %s tournament", format)
		}
	}
	if c.RoundRobin != nil {
		set++
		if format != FormatRoundRobin {
			return fmt.Errorf("round robin config given for %s tournament", format)
		}
		for _, tb := range c.RoundRobin.Tiebreaks {
			switch tb {
			case TiebreakHeadToHead, TiebreakScoreDiff, TiebreakBuchholz:
			default:
				return fmt.Errorf("unknown tiebreak rule %q", tb)
			}
		}
	}
	if c.Swiss != nil {
		set++
		if format != FormatSwiss {
			return fmt.Errorf("swiss config given for %s tournament", format)
		}
		if c.Swiss.Rounds < 0 {
			return fmt.Errorf("swiss rounds must not be negative, got %d", c.Swiss.Rounds)
		}
	}
	if set != 1 {
		return fmt.Errorf("expected exactly one format config variant, got %d", set)
	}
	return nil
}
