package wallet

import (
	"errors"
	"fmt"
	"slices"

	"github.com/Klingon-tech/klingnet-udt/pkg/types"
)

// Cell selection errors.
var (
	ErrInsufficientTokens = errors.New("insufficient tokens")
	ErrNoCells            = errors.New("no token cells available")
)

// TokenCell is a live cell holding an amount of one token.
type TokenCell struct {
	OutPoint types.OutPoint
	Amount   types.Amount
}

// Selection is the result of SelectCells.
type Selection struct {
	Inputs []TokenCell
	Total  types.Amount
	Change types.Amount
}

func newSelection(cells []TokenCell, total, target types.Amount) *Selection {
	change, _ := total.Sub(target)
	return &Selection{Inputs: cells, Total: total, Change: change}
}

// SelectCells picks token cells covering target. It tries the smallest
// single cell that covers target and a largest-first accumulation, and
// returns whichever leaves less change.
func SelectCells(cells []TokenCell, target types.Amount) (*Selection, error) {
	if target.IsZero() {
		return nil, fmt.Errorf("target must be positive")
	}

	candidates := make([]TokenCell, 0, len(cells))
	for _, c := range cells {
		if !c.Amount.IsZero() {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		return nil, ErrNoCells
	}
	slices.SortStableFunc(candidates, func(a, b TokenCell) int {
		return a.Amount.Cmp(b.Amount)
	})

	var single *Selection
	for _, c := range candidates {
		if c.Amount.Cmp(target) >= 0 {
			single = newSelection([]TokenCell{c}, c.Amount, target)
			break
		}
	}

	var accum *Selection
	var selected []TokenCell
	var total types.Amount
	for i := len(candidates) - 1; i >= 0; i-- {
		sum, err := total.Add(candidates[i].Amount)
		if err != nil {
			return nil, err
		}
		total = sum
		selected = append(selected, candidates[i])
		if total.Cmp(target) >= 0 {
			accum = newSelection(selected, total, target)
			break
		}
	}

	switch {
	case single != nil && accum != nil:
		if single.Change.Cmp(accum.Change) <= 0 {
			return single, nil
		}
		return accum, nil
	case single != nil:
		return single, nil
	case accum != nil:
		return accum, nil
	default:
		return nil, fmt.Errorf("%w: have %s, need %s", ErrInsufficientTokens, total, target)
	}
}
