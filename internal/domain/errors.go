package domain

import "errors"

// ErrDuplicateUser is returned by the user store when an insert violates a
// uniqueness constraint (username or provider identity). Reconciliation
// treats it as "somebody got there first" and re-queries.
var ErrDuplicateUser = errors.New("duplicate user")
