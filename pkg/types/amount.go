package types

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

// AmountSize is the length of an encoded token amount.
const AmountSize = 16

// Amount errors.
var (
	ErrAmountLength   = errors.New("amount must be exactly 16 bytes")
	ErrAmountOverflow = errors.New("amount exceeds 128 bits")
	ErrAmountNegative = errors.New("amount difference is negative")
	ErrAmountVec      = errors.New("malformed amount vector")
)

// Amount is an unsigned 128-bit token quantity.
// Its wire form is 16 bytes, little-endian.
type Amount struct {
	v uint256.Int
}

// NewAmount returns an Amount holding u.
func NewAmount(u uint64) Amount {
	var a Amount
	a.v.SetUint64(u)
	return a
}

// AmountFromBytes decodes a 16-byte little-endian amount.
func AmountFromBytes(b []byte) (Amount, error) {
	if len(b) != AmountSize {
		return Amount{}, fmt.Errorf("%w: got %d", ErrAmountLength, len(b))
	}
	var a Amount
	// uint256.Int limbs are little-endian uint64 words.
	a.v[0] = binary.LittleEndian.Uint64(b[:8])
	a.v[1] = binary.LittleEndian.Uint64(b[8:])
	return a, nil
}

// ParseAmount parses a decimal amount.
func ParseAmount(s string) (Amount, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return Amount{}, fmt.Errorf("parse amount %q: %w", s, err)
	}
	if v.BitLen() > 128 {
		return Amount{}, fmt.Errorf("parse amount %q: %w", s, ErrAmountOverflow)
	}
	return Amount{v: *v}, nil
}

// Bytes returns the 16-byte little-endian encoding.
func (a Amount) Bytes() []byte {
	b := make([]byte, AmountSize)
	binary.LittleEndian.PutUint64(b[:8], a.v[0])
	binary.LittleEndian.PutUint64(b[8:], a.v[1])
	return b
}

// Add returns a+b, or ErrAmountOverflow if the sum needs more than 128 bits.
func (a Amount) Add(b Amount) (Amount, error) {
	var sum Amount
	if _, overflow := sum.v.AddOverflow(&a.v, &b.v); overflow || sum.v.BitLen() > 128 {
		return Amount{}, ErrAmountOverflow
	}
	return sum, nil
}

// Sub returns a-b, or ErrAmountNegative if b > a.
func (a Amount) Sub(b Amount) (Amount, error) {
	var diff Amount
	if _, underflow := diff.v.SubOverflow(&a.v, &b.v); underflow {
		return Amount{}, ErrAmountNegative
	}
	return diff, nil
}

// Cmp compares a and b and returns -1, 0 or +1.
func (a Amount) Cmp(b Amount) int {
	return a.v.Cmp(&b.v)
}

// IsZero returns true for the zero amount.
func (a Amount) IsZero() bool {
	return a.v.IsZero()
}

// String returns the decimal representation.
func (a Amount) String() string {
	return a.v.Dec()
}

// MarshalJSON encodes the amount as a decimal string.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON decodes a decimal string amount.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// EncodeAmountVec encodes amounts as count(4, LE) followed by one
// 16-byte little-endian chunk per amount.
func EncodeAmountVec(amounts []Amount) []byte {
	buf := make([]byte, 4, 4+AmountSize*len(amounts))
	binary.LittleEndian.PutUint32(buf, uint32(len(amounts)))
	for _, a := range amounts {
		buf = append(buf, a.Bytes()...)
	}
	return buf
}

// DecodeAmountVec decodes the output of EncodeAmountVec. The count prefix
// must agree with the number of 16-byte chunks that follow.
func DecodeAmountVec(b []byte) ([]Amount, error) {
	if len(b) < 4 {
		return nil, fmt.Errorf("%w: %d bytes, need count prefix", ErrAmountVec, len(b))
	}
	body := b[4:]
	if len(body)%AmountSize != 0 {
		return nil, fmt.Errorf("%w: body of %d bytes is not a multiple of %d", ErrAmountVec, len(body), AmountSize)
	}
	count := binary.LittleEndian.Uint32(b[:4])
	if uint64(count) != uint64(len(body)/AmountSize) {
		return nil, fmt.Errorf("%w: count %d, found %d", ErrAmountVec, count, len(body)/AmountSize)
	}
	amounts := make([]Amount, 0, count)
	for off := 0; off < len(body); off += AmountSize {
		a, _ := AmountFromBytes(body[off : off+AmountSize])
		amounts = append(amounts, a)
	}
	return amounts, nil
}
