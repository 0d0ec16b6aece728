package domain

import (
	"cmp"
	"fmt"
	"slices"
)

const (
	// DefaultSelectionBonus is added to a source each time it is confirmed
	// as the new source of a book.
	DefaultSelectionBonus int64 = 1

	// StaleSwitchPenalty is applied to a source switched away from less than
	// PreferenceWindow after it was chosen for the same title.
	StaleSwitchPenalty int64 = -450
)

// WeightModel holds the pure scoring and penalty rules for sources
type WeightModel struct {
	bonus int64
}

// NewWeightModel creates a WeightModel with the given selection bonus.
// The bonus must be strictly positive and distinguishable from the penalty.
func NewWeightModel(bonus int64) (WeightModel, error) {
	if bonus <= 0 || bonus == -StaleSwitchPenalty {
		return WeightModel{}, fmt.Errorf("%w: selection bonus must be > 0 and != %d, got %d",
			ErrInvalidInput, -StaleSwitchPenalty, bonus)
	}
	return WeightModel{bonus: bonus}, nil
}

// DefaultWeightModel returns a WeightModel using DefaultSelectionBonus
func DefaultWeightModel() WeightModel {
	return WeightModel{bonus: DefaultSelectionBonus}
}

// SelectionBonus returns the weight delta for a confirmed selection
func (m WeightModel) SelectionBonus() int64 {
	if m.bonus <= 0 {
		return DefaultSelectionBonus
	}
	return m.bonus
}

// StaleSwitchPenalty returns the weight delta for rapid back-and-forth switching
func (m WeightModel) StaleSwitchPenalty() int64 {
	return StaleSwitchPenalty
}

// Rank orders candidates for selection. The sort key is:
//  1. source weight, descending
//  2. exact title+author match, then fuzzy, then none
//  3. candidates carrying a chapter-count/recency hint first
//  4. source ID, ascending
//  5. result URL, ascending
//
// The input is not modified. Equal inputs always produce equal output.
func (m WeightModel) Rank(inputs []RankInput) []RankInput {
	out := slices.Clone(inputs)
	slices.SortStableFunc(out, compareRankInputs)
	return out
}

func compareRankInputs(a, b RankInput) int {
	if c := cmp.Compare(b.Source.Weight, a.Source.Weight); c != 0 {
		return c
	}
	if c := cmp.Compare(b.Match, a.Match); c != 0 {
		return c
	}
	if ah, bh := a.Candidate.HasHint(), b.Candidate.HasHint(); ah != bh {
		if ah {
			return -1
		}
		return 1
	}
	if c := cmp.Compare(a.Source.ID, b.Source.ID); c != 0 {
		return c
	}
	return cmp.Compare(a.Candidate.ResultURL, b.Candidate.ResultURL)
}
