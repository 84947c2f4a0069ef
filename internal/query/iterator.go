// Package query provides lazy result cursors over store and index results.
//
// An Iterator is forward-only and cannot be restarted: once Next returns
// false it keeps returning false.
package query

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
)

// Iterator is a lazy cursor over results of type T.
type Iterator[T any] interface {
	// Next advances to the next result and reports whether one is available.
	Next() bool
	// Current returns the result Next advanced to, or the zero value.
	Current() T
	// Err returns the error that ended iteration early, if any.
	Err() error
	// Close releases the underlying source. It is safe to call more than once.
	Close() error
}

// cursor implements Iterator on top of a pull function.
type cursor[T any] struct {
	pull    func() (T, bool, error)
	release func() error

	current T
	done    bool
	err     error

	closeOnce sync.Once
	closeErr  error
}

// New builds an Iterator from a pull function returning the next value,
// whether it exists, and an error. release, if non-nil, runs once on Close
// or exhaustion.
func New[T any](pull func() (T, bool, error), release func() error) Iterator[T] {
	return &cursor[T]{pull: pull, release: release}
}

func (c *cursor[T]) Next() bool {
	var zero T
	if c.done {
		c.current = zero
		return false
	}

	v, ok, err := c.pull()
	if err != nil || !ok {
		c.err = err
		c.current = zero
		c.done = true
		_ = c.Close()
		return false
	}

	c.current = v
	return true
}

func (c *cursor[T]) Current() T {
	return c.current
}

func (c *cursor[T]) Err() error {
	return c.err
}

func (c *cursor[T]) Close() error {
	c.closeOnce.Do(func() {
		c.done = true
		if c.release != nil {
			c.closeErr = c.release()
		}
	})
	return c.closeErr
}

// FromSlice iterates over a copy-free view of items.
func FromSlice[T any](items []T) Iterator[T] {
	i := 0
	return New(func() (T, bool, error) {
		var zero T
		if i >= len(items) {
			return zero, false, nil
		}
		v := items[i]
		i++
		return v, true, nil
	}, nil)
}

// Empty returns an exhausted iterator.
func Empty[T any]() Iterator[T] {
	return FromSlice[T](nil)
}

// Failed returns an iterator that yields nothing and reports err.
func Failed[T any](err error) Iterator[T] {
	return New(func() (T, bool, error) {
		var zero T
		return zero, false, err
	}, nil)
}

// FromRows lazily scans database rows. The rows are closed when the
// iterator is exhausted or closed.
func FromRows[T any](rows *sql.Rows, scan func(*sql.Rows) (T, error)) Iterator[T] {
	return New(func() (T, bool, error) {
		var zero T
		if !rows.Next() {
			return zero, false, rows.Err()
		}
		v, err := scan(rows)
		if err != nil {
			return zero, false, fmt.Errorf("scan row: %w", err)
		}
		return v, true, nil
	}, rows.Close)
}

// Map transforms each result of src with fn. Closing the returned
// iterator closes src.
func Map[T, U any](src Iterator[T], fn func(T) (U, error)) Iterator[U] {
	return New(func() (U, bool, error) {
		var zero U
		if !src.Next() {
			return zero, false, src.Err()
		}
		v, err := fn(src.Current())
		if err != nil {
			return zero, false, err
		}
		return v, true, nil
	}, src.Close)
}

// Filter yields only results of src accepted by keep.
func Filter[T any](src Iterator[T], keep func(T) bool) Iterator[T] {
	return New(func() (T, bool, error) {
		var zero T
		for src.Next() {
			if v := src.Current(); keep(v) {
				return v, true, nil
			}
		}
		return zero, false, src.Err()
	}, src.Close)
}

// Collect drains it into a slice and closes it.
func Collect[T any](it Iterator[T]) ([]T, error) {
	var out []T
	for it.Next() {
		out = append(out, it.Current())
	}
	return out, errors.Join(it.Err(), it.Close())
}
