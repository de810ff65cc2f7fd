package crypto

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
)

// Gzip compresses data. The standard library is used directly here: the
// go ecosystem does not offer a third-party gzip implementation worth
// preferring over compress/gzip, and §6.1 treats gzip as an assumed
// external collaborator rather than a domain dependency to source from
// the example pack.
func Gzip(data []byte) ([]byte, error) {
	var buf bytes.Buffer

	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("gzip write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("gzip close: %w", err)
	}

	return buf.Bytes(), nil
}

// Gunzip decompresses data produced by Gzip.
func Gunzip(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gzip reader: %w", err)
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("gzip read: %w", err)
	}

	return out, nil
}
