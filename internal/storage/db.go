// Package storage provides the key-value backends behind the cell store.
package storage

import "errors"

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("key not found")

// DB is the interface for key-value storage.
type DB interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	Has(key []byte) (bool, error)
	// ForEach visits every key with the given prefix in ascending key order.
	// The callback receives a copy of the key and value.
	// Return a non-nil error from fn to stop iteration early.
	ForEach(prefix []byte, fn func(key, value []byte) error) error
	Close() error
}

// Batch collects writes that become visible together on Commit.
type Batch interface {
	Put(key, value []byte) error
	Delete(key []byte) error
	Commit() error
}

// Batcher is implemented by backends that can commit a Batch atomically.
type Batcher interface {
	NewBatch() Batch
}

// NewBatch returns an atomic batch when db supports one, and otherwise a
// batch that replays its writes one by one on Commit.
func NewBatch(db DB) Batch {
	if b, ok := db.(Batcher); ok {
		return b.NewBatch()
	}
	return &replayBatch{db: db}
}

type batchOp struct {
	key   []byte
	value []byte // nil means delete
}

// replayBatch buffers writes and applies them in order, non-atomically.
type replayBatch struct {
	db  DB
	ops []batchOp
}

func (rb *replayBatch) Put(key, value []byte) error {
	v := append([]byte{}, value...)
	rb.ops = append(rb.ops, batchOp{key: append([]byte(nil), key...), value: v})
	return nil
}

func (rb *replayBatch) Delete(key []byte) error {
	rb.ops = append(rb.ops, batchOp{key: append([]byte(nil), key...)})
	return nil
}

func (rb *replayBatch) Commit() error {
	for _, op := range rb.ops {
		var err error
		if op.value == nil {
			err = rb.db.Delete(op.key)
		} else {
			err = rb.db.Put(op.key, op.value)
		}
		if err != nil {
			return err
		}
	}
	rb.ops = nil
	return nil
}
