// Package wire implements the binary encoding transactions use both on
// the network and in the persisted tangle file: a fixed-shape,
// length-prefixed layout with no external serialization library
// involved, since the format is a precise byte layout rather than a
// general-purpose document shape.
package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/adamwoolhether/tangle/foundation/crypto"
	"github.com/adamwoolhether/tangle/foundation/tangle/transaction"
)

var byteOrder = binary.LittleEndian

// ByteOrder is the byte order every fixed-width wire field uses.
var ByteOrder = byteOrder

// WriteString writes a length-prefixed string, the convention every
// string field in this wire format follows.
func WriteString(w io.Writer, s string) error {
	if err := binary.Write(w, byteOrder, uint64(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

// ReadString reads a length-prefixed string written by WriteString.
func ReadString(r io.Reader) (string, error) {
	var n uint64
	if err := binary.Read(r, byteOrder, &n); err != nil {
		return "", err
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}

	return string(buf), nil
}

func writeString(w io.Writer, s string) error { return WriteString(w, s) }
func readString(r io.Reader) (string, error)  { return ReadString(r) }

// EncodeTransaction writes tx in the wire layout:
//
//	u64 n_parents ; (string parentHash) * n_parents
//	i64 timestamp ; u64 nonce ; u8 miningDifficulty ; u8 miningTarget
//	u64 n_inputs  ; (string account_b64 ; f64 amount ; string sig) * n_inputs
//	u64 n_outputs ; (string account_b64 ; f64 amount)              * n_outputs
func EncodeTransaction(w io.Writer, tx transaction.Transaction) error {
	if err := binary.Write(w, byteOrder, uint64(len(tx.ParentHashes))); err != nil {
		return err
	}
	for _, h := range tx.ParentHashes {
		if err := writeString(w, h); err != nil {
			return err
		}
	}

	if err := binary.Write(w, byteOrder, tx.Timestamp); err != nil {
		return err
	}
	if err := binary.Write(w, byteOrder, tx.Nonce); err != nil {
		return err
	}
	if err := binary.Write(w, byteOrder, tx.MiningDifficulty); err != nil {
		return err
	}
	if err := binary.Write(w, byteOrder, tx.MiningTarget); err != nil {
		return err
	}

	if err := binary.Write(w, byteOrder, uint64(len(tx.Inputs))); err != nil {
		return err
	}
	for _, in := range tx.Inputs {
		if err := writeString(w, crypto.PublicKeyBase64(in.Account)); err != nil {
			return err
		}
		if err := binary.Write(w, byteOrder, in.Amount); err != nil {
			return err
		}
		if err := writeString(w, in.Signature); err != nil {
			return err
		}
	}

	if err := binary.Write(w, byteOrder, uint64(len(tx.Outputs))); err != nil {
		return err
	}
	for _, out := range tx.Outputs {
		if err := writeString(w, crypto.PublicKeyBase64(out.Account)); err != nil {
			return err
		}
		if err := binary.Write(w, byteOrder, out.Amount); err != nil {
			return err
		}
	}

	return nil
}

// DecodeTransaction reads a transaction in the layout EncodeTransaction
// writes. The hash is recomputed from the decoded fields; it is the
// caller's responsibility to compare it against any claimed hash sent
// alongside the transaction (per the sync protocol's InvalidHash
// checks), since the wire format itself carries no hash field.
func DecodeTransaction(r io.Reader) (transaction.Transaction, error) {
	var tx transaction.Transaction

	var nParents uint64
	if err := binary.Read(r, byteOrder, &nParents); err != nil {
		return tx, err
	}
	tx.ParentHashes = make([]string, nParents)
	for i := range tx.ParentHashes {
		h, err := readString(r)
		if err != nil {
			return tx, err
		}
		tx.ParentHashes[i] = h
	}

	if err := binary.Read(r, byteOrder, &tx.Timestamp); err != nil {
		return tx, err
	}
	if err := binary.Read(r, byteOrder, &tx.Nonce); err != nil {
		return tx, err
	}
	if err := binary.Read(r, byteOrder, &tx.MiningDifficulty); err != nil {
		return tx, err
	}
	if err := binary.Read(r, byteOrder, &tx.MiningTarget); err != nil {
		return tx, err
	}

	var nInputs uint64
	if err := binary.Read(r, byteOrder, &nInputs); err != nil {
		return tx, err
	}
	tx.Inputs = make([]transaction.Input, nInputs)
	for i := range tx.Inputs {
		accountB64, err := readString(r)
		if err != nil {
			return tx, err
		}
		pub, err := crypto.PublicKeyFromBase64(accountB64)
		if err != nil {
			return tx, fmt.Errorf("decoding input %d account: %w", i, err)
		}

		var amount float64
		if err := binary.Read(r, byteOrder, &amount); err != nil {
			return tx, err
		}

		sig, err := readString(r)
		if err != nil {
			return tx, err
		}

		tx.Inputs[i] = transaction.Input{Account: pub, Amount: amount, Signature: sig}
	}

	var nOutputs uint64
	if err := binary.Read(r, byteOrder, &nOutputs); err != nil {
		return tx, err
	}
	tx.Outputs = make([]transaction.Output, nOutputs)
	for i := range tx.Outputs {
		accountB64, err := readString(r)
		if err != nil {
			return tx, err
		}
		pub, err := crypto.PublicKeyFromBase64(accountB64)
		if err != nil {
			return tx, fmt.Errorf("decoding output %d account: %w", i, err)
		}

		var amount float64
		if err := binary.Read(r, byteOrder, &amount); err != nil {
			return tx, err
		}

		tx.Outputs[i] = transaction.Output{Account: pub, Amount: amount}
	}

	tx.Hash = tx.HashTransaction()

	return tx, nil
}

// EncodeTransactionBytes is a convenience wrapper returning the
// encoded bytes directly, for callers that need a []byte rather than
// a stream (e.g. a single message envelope).
func EncodeTransactionBytes(tx transaction.Transaction) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeTransaction(&buf, tx); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
