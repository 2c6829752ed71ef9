package ledger

import (
	"fmt"

	"github.com/Klingon-tech/klingnet-udt/pkg/tx"
	"github.com/Klingon-tech/klingnet-udt/pkg/types"
)

// Resolve loads the cells a draft consumes and references from store and
// returns the Context seen by script. Dep-group cell deps are rejected.
func Resolve(store *Store, draft *tx.Transaction, script types.Script) (*Context, error) {
	inputs := make([]Cell, 0, len(draft.Inputs))
	for i, in := range draft.Inputs {
		c, err := store.Get(in.PreviousOutput)
		if err != nil {
			return nil, fmt.Errorf("resolve input %d: %w", i, err)
		}
		inputs = append(inputs, *c)
	}

	deps := make([]Cell, 0, len(draft.CellDeps))
	for i, d := range draft.CellDeps {
		if d.DepType != types.DepTypeCode {
			return nil, fmt.Errorf("resolve cell dep %d: %w", i, ErrDepGroupUnsupported)
		}
		c, err := store.Get(d.OutPoint)
		if err != nil {
			return nil, fmt.Errorf("resolve cell dep %d: %w", i, err)
		}
		deps = append(deps, *c)
	}

	return NewContext(script, draft, inputs, deps, store)
}
