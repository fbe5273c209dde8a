package repository

import "errors"

// ErrNoRowsAffected signals a write that matched no rows.
var ErrNoRowsAffected = errors.New("no rows affected")
