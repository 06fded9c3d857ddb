package db

import "errors"

// ErrKeyNotFound is returned for a missing key or a nil script reply.
var ErrKeyNotFound = errors.New("db: key not found")

// Op names the failed command in an Error.
const (
	OpDel     = "DEL"
	OpHGetAll = "HGETALL"
	OpScan    = "SCAN"
	OpGet     = "GET"
	OpSet     = "SET"
	OpEval    = "EVAL"
	OpPing    = "PING"
)

// Error wraps a backend failure with the command that produced it.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
