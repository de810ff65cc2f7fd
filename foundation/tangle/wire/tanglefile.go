package wire

import (
	"bytes"
	"encoding/binary"
	"io"
	"sort"

	"github.com/adamwoolhether/tangle/foundation/crypto"
	"github.com/adamwoolhether/tangle/foundation/tangle/transaction"
)

// EncodeTangleFile serializes a set of transactions — genesis forced
// first, the rest ordered by timestamp — as
// gzip(u64 count || transaction[0..count-1]), the persisted tangle
// file layout. The count is a fixed-width little-endian u64, not a
// variable-length integer.
func EncodeTangleFile(w io.Writer, genesis transaction.Transaction, rest []transaction.Transaction) error {
	ordered := make([]transaction.Transaction, 0, len(rest)+1)
	ordered = append(ordered, genesis)
	ordered = append(ordered, rest...)
	sort.SliceStable(ordered[1:], func(i, j int) bool {
		return ordered[1:][i].Timestamp < ordered[1:][j].Timestamp
	})

	var raw bytes.Buffer
	if err := binary.Write(&raw, byteOrder, uint64(len(ordered))); err != nil {
		return err
	}
	for _, tx := range ordered {
		if err := EncodeTransaction(&raw, tx); err != nil {
			return err
		}
	}

	compressed, err := crypto.Gzip(raw.Bytes())
	if err != nil {
		return err
	}

	_, err = w.Write(compressed)
	return err
}

// DecodeTangleFile reverses EncodeTangleFile, returning the genesis
// transaction and every remaining transaction in file order.
func DecodeTangleFile(r io.Reader) (transaction.Transaction, []transaction.Transaction, error) {
	compressed, err := io.ReadAll(r)
	if err != nil {
		return transaction.Transaction{}, nil, err
	}

	raw, err := crypto.Gunzip(compressed)
	if err != nil {
		return transaction.Transaction{}, nil, err
	}

	buf := bytes.NewReader(raw)

	var count uint64
	if err := binary.Read(buf, byteOrder, &count); err != nil {
		return transaction.Transaction{}, nil, err
	}
	if count == 0 {
		return transaction.Transaction{}, nil, io.ErrUnexpectedEOF
	}

	genesis, err := DecodeTransaction(buf)
	if err != nil {
		return transaction.Transaction{}, nil, err
	}

	rest := make([]transaction.Transaction, 0, count-1)
	for i := uint64(1); i < count; i++ {
		tx, err := DecodeTransaction(buf)
		if err != nil {
			return transaction.Transaction{}, nil, err
		}
		rest = append(rest, tx)
	}

	return genesis, rest, nil
}
