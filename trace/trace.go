// Package trace defines the memory-operation stream the scheduler
// consumes. Trace generation from model shapes and KV-cache size
// arithmetic are external collaborators (spec §1); this package only
// carries the operation sequence and offers a small CSV reader for the
// one blessed integration point (the CLI in cmd/kvcachesim).
package trace

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/xid"
)

// OpKind distinguishes a read from a write.
type OpKind int

const (
	// Read is a demand read; it feeds the prefetcher and contributes a
	// latency sample.
	Read OpKind = iota
	// Write is a write-allocate; it never feeds the prefetcher and never
	// contributes a latency sample.
	Write
)

// String renders the op kind for diagnostics.
func (k OpKind) String() string {
	if k == Write {
		return "WRITE"
	}

	return "READ"
}

// Operation is a single entry in a trace: a kind and a byte address.
// ID is an opaque, unique diagnostic label (rs/xid) for callers — the
// simulator never reads it, neither for accounting nor in its errors.
type Operation struct {
	ID          xid.ID
	Kind        OpKind
	ByteAddress uint64
}

// Trace is a finite, ordered sequence of operations.
type Trace []Operation

// ReadCSV parses a trace from CSV with two columns: op kind ("R"/"READ"
// or "W"/"WRITE", case-insensitive) and a byte address (decimal or
// 0x-prefixed hex). Blank lines and lines starting with '#' are skipped.
func ReadCSV(r io.Reader) (Trace, error) {
	reader := csv.NewReader(newCommentStrippingReader(r))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var ops Trace

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("trace: %w", err)
		}
		if len(record) == 0 {
			continue
		}
		if len(record) != 2 {
			return nil, fmt.Errorf("trace: expected 2 fields, got %d: %v", len(record), record)
		}

		kind, err := parseKind(record[0])
		if err != nil {
			return nil, err
		}

		addr, err := parseAddress(record[1])
		if err != nil {
			return nil, err
		}

		ops = append(ops, Operation{
			ID:          xid.New(),
			Kind:        kind,
			ByteAddress: addr,
		})
	}

	return ops, nil
}

func parseKind(s string) (OpKind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "R", "READ":
		return Read, nil
	case "W", "WRITE":
		return Write, nil
	default:
		return 0, fmt.Errorf("trace: unrecognised op kind %q", s)
	}
}

func parseAddress(s string) (uint64, error) {
	s = strings.TrimSpace(s)

	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
		base = 16
	}

	addr, err := strconv.ParseUint(s, base, 64)
	if err != nil {
		return 0, fmt.Errorf("trace: invalid byte address %q: %w", s, err)
	}

	return addr, nil
}

// commentStrippingReader filters out blank lines and '#'-prefixed comment
// lines before they reach the CSV reader.
type commentStrippingReader struct {
	scanner *bufio.Scanner
	rest    string
}

func newCommentStrippingReader(r io.Reader) io.Reader {
	return &commentStrippingReader{scanner: bufio.NewScanner(r)}
}

func (c *commentStrippingReader) Read(p []byte) (int, error) {
	for c.rest == "" {
		if !c.scanner.Scan() {
			if err := c.scanner.Err(); err != nil {
				return 0, err
			}

			return 0, io.EOF
		}

		line := strings.TrimSpace(c.scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		c.rest = line + "\n"
	}

	n := copy(p, c.rest)
	c.rest = c.rest[n:]

	return n, nil
}
