package ledger

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Klingon-tech/klingnet-udt/internal/log"
	"github.com/Klingon-tech/klingnet-udt/internal/storage"
	"github.com/Klingon-tech/klingnet-udt/pkg/crypto"
	"github.com/Klingon-tech/klingnet-udt/pkg/tx"
	"github.com/Klingon-tech/klingnet-udt/pkg/types"
)

// Key prefixes for the cell store.
var (
	prefixCell = []byte("c/") // c/<txhash><index> -> Cell JSON
	prefixType = []byte("y/") // y/<type hash><txhash><index> -> empty (index)
	prefixLock = []byte("l/") // l/<lock hash><txhash><index> -> empty (index)
)

// Store is the live cell set backed by a storage.DB.
type Store struct {
	db storage.DB
}

// NewStore creates a new cell store backed by the given database.
func NewStore(db storage.DB) *Store {
	return &Store{db: db}
}

// appendOutPoint appends txhash(32) + index(4, BE) so that the cells of
// one transaction sort by index.
func appendOutPoint(key []byte, op types.OutPoint) []byte {
	key = append(key, op.TxHash[:]...)
	return binary.BigEndian.AppendUint32(key, op.Index)
}

func cellKey(op types.OutPoint) []byte {
	key := make([]byte, 0, len(prefixCell)+types.OutPointSize)
	key = append(key, prefixCell...)
	return appendOutPoint(key, op)
}

func indexPrefix(prefix []byte, h types.Hash) []byte {
	key := make([]byte, 0, len(prefix)+types.HashSize+types.OutPointSize)
	key = append(key, prefix...)
	return append(key, h[:]...)
}

func indexKey(prefix []byte, h types.Hash, op types.OutPoint) []byte {
	return appendOutPoint(indexPrefix(prefix, h), op)
}

// outPointFromIndexKey reads the outpoint at the tail of an index key.
func outPointFromIndexKey(key []byte, prefix []byte) (types.OutPoint, bool) {
	off := len(prefix) + types.HashSize
	if len(key) != off+types.OutPointSize {
		return types.OutPoint{}, false
	}
	var op types.OutPoint
	copy(op.TxHash[:], key[off:off+types.HashSize])
	op.Index = binary.BigEndian.Uint32(key[off+types.HashSize:])
	return op, true
}

func putCell(b storage.Batch, c *Cell) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("cell marshal: %w", err)
	}
	if err := b.Put(cellKey(c.OutPoint), data); err != nil {
		return fmt.Errorf("cell put: %w", err)
	}
	if err := b.Put(indexKey(prefixLock, crypto.ScriptHash(c.Output.Lock), c.OutPoint), []byte{}); err != nil {
		return fmt.Errorf("lock index put: %w", err)
	}
	if c.Output.Type != nil {
		if err := b.Put(indexKey(prefixType, crypto.ScriptHash(*c.Output.Type), c.OutPoint), []byte{}); err != nil {
			return fmt.Errorf("type index put: %w", err)
		}
	}
	return nil
}

func deleteCell(b storage.Batch, c *Cell) error {
	if err := b.Delete(cellKey(c.OutPoint)); err != nil {
		return fmt.Errorf("cell delete: %w", err)
	}
	if err := b.Delete(indexKey(prefixLock, crypto.ScriptHash(c.Output.Lock), c.OutPoint)); err != nil {
		return fmt.Errorf("lock index delete: %w", err)
	}
	if c.Output.Type != nil {
		if err := b.Delete(indexKey(prefixType, crypto.ScriptHash(*c.Output.Type), c.OutPoint)); err != nil {
			return fmt.Errorf("type index delete: %w", err)
		}
	}
	return nil
}

// Get retrieves a live cell by its outpoint.
func (s *Store) Get(op types.OutPoint) (*Cell, error) {
	data, err := s.db.Get(cellKey(op))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrCellNotFound, op)
	}
	if err != nil {
		return nil, fmt.Errorf("cell get: %w", err)
	}
	var c Cell
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("cell unmarshal: %w", err)
	}
	return &c, nil
}

// Put stores a live cell together with its index entries.
func (s *Store) Put(c *Cell) error {
	b := storage.NewBatch(s.db)
	if err := putCell(b, c); err != nil {
		return err
	}
	return b.Commit()
}

// Delete removes a live cell and its index entries. Deleting a missing
// cell is not an error.
func (s *Store) Delete(op types.OutPoint) error {
	c, err := s.Get(op)
	if errors.Is(err, ErrCellNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	b := storage.NewBatch(s.db)
	if err := deleteCell(b, c); err != nil {
		return err
	}
	return b.Commit()
}

// Has checks if a live cell exists at op.
func (s *Store) Has(op types.OutPoint) (bool, error) {
	return s.db.Has(cellKey(op))
}

// ForEach iterates over all live cells in outpoint order.
func (s *Store) ForEach(fn func(*Cell) error) error {
	return s.db.ForEach(prefixCell, func(_, value []byte) error {
		var c Cell
		if err := json.Unmarshal(value, &c); err != nil {
			return fmt.Errorf("cell unmarshal: %w", err)
		}
		return fn(&c)
	})
}

// scanIndex returns the outpoints listed under h in an index.
func (s *Store) scanIndex(prefix []byte, h types.Hash, limit int) ([]types.OutPoint, error) {
	stop := errors.New("stop")
	var ops []types.OutPoint
	err := s.db.ForEach(indexPrefix(prefix, h), func(key, _ []byte) error {
		op, ok := outPointFromIndexKey(key, prefix)
		if !ok {
			return nil // Malformed key, skip.
		}
		ops = append(ops, op)
		if limit > 0 && len(ops) >= limit {
			return stop
		}
		return nil
	})
	if err != nil && !errors.Is(err, stop) {
		return nil, fmt.Errorf("scan index %s: %w", prefix, err)
	}
	return ops, nil
}

// ByLock returns all live cells whose lock script hashes to lockHash.
func (s *Store) ByLock(lockHash types.Hash) ([]*Cell, error) {
	ops, err := s.scanIndex(prefixLock, lockHash, 0)
	if err != nil {
		return nil, err
	}
	cells := make([]*Cell, 0, len(ops))
	for _, op := range ops {
		c, err := s.Get(op)
		if err != nil {
			return nil, err
		}
		cells = append(cells, c)
	}
	return cells, nil
}

// FindOutPointByType returns the first live cell (in outpoint order) whose
// type script equals script.
func (s *Store) FindOutPointByType(script types.Script) (types.OutPoint, error) {
	ops, err := s.scanIndex(prefixType, crypto.ScriptHash(script), 1)
	if err != nil {
		return types.OutPoint{}, err
	}
	if len(ops) == 0 {
		return types.OutPoint{}, fmt.Errorf("%w: no cell with type %s", ErrCellNotFound, script)
	}
	return ops[0], nil
}

// CellDataByOutPoint returns the data of the live cell at op.
func (s *Store) CellDataByOutPoint(op types.OutPoint) ([]byte, error) {
	c, err := s.Get(op)
	if err != nil {
		return nil, err
	}
	return c.Data, nil
}

// Apply consumes the inputs of t and creates its outputs at
// (t.Hash(), i). All writes land in one batch.
func (s *Store) Apply(t *tx.Transaction) error {
	if err := t.CheckOutputsData(); err != nil {
		return err
	}

	b := storage.NewBatch(s.db)
	spent := make(map[types.OutPoint]bool, len(t.Inputs))
	for i, in := range t.Inputs {
		if spent[in.PreviousOutput] {
			return fmt.Errorf("input %d: %w", i, tx.ErrDuplicateInput)
		}
		spent[in.PreviousOutput] = true

		c, err := s.Get(in.PreviousOutput)
		if err != nil {
			return fmt.Errorf("input %d: %w", i, err)
		}
		if err := deleteCell(b, c); err != nil {
			return err
		}
	}

	txHash := t.Hash()
	for i, out := range t.Outputs {
		c := &Cell{
			OutPoint: types.OutPoint{TxHash: txHash, Index: uint32(i)},
			Output:   out,
			Data:     t.OutputsData[i],
		}
		if err := putCell(b, c); err != nil {
			return err
		}
	}

	if err := b.Commit(); err != nil {
		return fmt.Errorf("apply tx %s: %w", txHash, err)
	}
	log.Ledger.Debug().
		Str("tx_hash", txHash.String()).
		Int("consumed", len(t.Inputs)).
		Int("created", len(t.Outputs)).
		Msg("Applied transaction")
	return nil
}

// Balance sums the token amounts held by a lock for one token type.
// Cells of that type whose data is not a 16-byte amount are an error.
func (s *Store) Balance(lockHash types.Hash, token types.Script) (types.Amount, error) {
	cells, err := s.ByLock(lockHash)
	if err != nil {
		return types.Amount{}, err
	}
	var total types.Amount
	for _, c := range cells {
		if !c.Output.HasType(token) {
			continue
		}
		a, err := types.AmountFromBytes(c.Data)
		if err != nil {
			return types.Amount{}, fmt.Errorf("cell %s: %w", c.OutPoint, err)
		}
		if total, err = total.Add(a); err != nil {
			return types.Amount{}, err
		}
	}
	return total, nil
}
