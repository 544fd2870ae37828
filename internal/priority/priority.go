// Package priority orders targets by their answer-set flags.
//
// A target's score is 2 when search exposure is recorded as Yes plus 1 when
// PDF exposure is true, giving four buckets: YY(3) > YN(2) > NY(1) > NN(0).
// Ties are broken by ascending id, so the order is total and reproducible.
package priority

import (
	"cmp"
	"slices"

	"indexwatch/internal/models"
)

// Ranked is anything carrying an id and the two answer-set flags.
type Ranked interface {
	RankKey() (id string, search models.Tristate, pdf bool)
}

// Score maps the answer-set flags to 0..3. Unknown search exposure scores
// like No.
func Score(search models.Tristate, pdf bool) int {
	score := 0
	if search.IsYes() {
		score += 2
	}
	if pdf {
		score++
	}
	return score
}

// ScoreOf scores a Ranked value.
func ScoreOf(r Ranked) int {
	_, search, pdf := r.RankKey()
	return Score(search, pdf)
}

// Bucket returns the two-letter label of a score.
func Bucket(score int) string {
	switch score {
	case 3:
		return "YY"
	case 2:
		return "YN"
	case 1:
		return "NY"
	default:
		return "NN"
	}
}

// Compare orders a before b when a has the higher score, or the same score
// and the smaller id.
func Compare[T Ranked](a, b T) int {
	idA, searchA, pdfA := a.RankKey()
	idB, searchB, pdfB := b.RankKey()
	if c := cmp.Compare(Score(searchB, pdfB), Score(searchA, pdfA)); c != 0 {
		return c
	}
	return cmp.Compare(idA, idB)
}

// Sort orders items in place by (score desc, id asc).
func Sort[T Ranked](items []T) {
	slices.SortStableFunc(items, Compare[T])
}

// Sorted returns a sorted copy and leaves items untouched.
func Sorted[T Ranked](items []T) []T {
	out := slices.Clone(items)
	Sort(out)
	return out
}
