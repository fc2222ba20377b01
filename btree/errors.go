package btree

import "errors"

var (
	// ErrPoolExhausted is returned when the buffer pool cannot supply a
	// frame for a page the operation needs to allocate or fetch.
	ErrPoolExhausted = errors.New("btree: buffer pool exhausted")
)
