package db

import "errors"

// Sentinel errors for database operations.
var (
	ErrKeyNotFound = errors.New("db: key not found")
)

// Op constants name the failing command or query for error context.
const (
	OpGet           = "GET"
	OpSet           = "SET"
	OpPing          = "PING"
	OpLoadListings  = "SELECT listings"
	OpMatchListings = "match_listings"
	OpMigrate       = "migrate"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }
