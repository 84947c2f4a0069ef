package rdf

import (
	"bufio"
	"fmt"
	"io"
)

// StatementSource is a forward-only stream of statements, satisfied by
// query.Iterator[Statement].
type StatementSource interface {
	Next() bool
	Current() Statement
	Err() error
}

// EncodeNQuads writes every statement from src to w, one N-Quads line each,
// and returns the number written.
func EncodeNQuads(w io.Writer, src StatementSource) (int, error) {
	bw := bufio.NewWriter(w)
	n := 0
	for src.Next() {
		if _, err := bw.WriteString(src.Current().String() + "\n"); err != nil {
			return n, fmt.Errorf("write statement: %w", err)
		}
		n++
	}
	if err := src.Err(); err != nil {
		return n, fmt.Errorf("read statements: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return n, fmt.Errorf("flush: %w", err)
	}
	return n, nil
}
