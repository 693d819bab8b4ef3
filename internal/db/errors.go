package db

import "errors"

// Sentinel errors for backend operations.
var (
	ErrKeyNotFound = errors.New("db: key not found")
	ErrIndexExists = errors.New("db: index already exists")
	// ErrUnavailable marks transport-level failures; the search pipeline
	// reports them as an outage rather than an empty answer.
	ErrUnavailable = errors.New("db: backend unavailable")
)

// Op names the backend command in Error.
const (
	OpCreateIndex = "FT.CREATE"
	OpIndexInfo   = "FT.INFO"
	OpSearch      = "FT.SEARCH"
	OpGet         = "GET"
	OpSetEx       = "SET EX"
	OpQuery       = "qdrant.Query"
	OpFieldIndex  = "qdrant.CreateFieldIndex"
	OpHealth      = "qdrant.HealthCheck"
)

// Error tags a backend failure with the command that produced it.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
