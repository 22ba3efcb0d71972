package storage

import "errors"

// ErrNotFound is returned by DB.Get when the key is absent. Namespace
// and higher layers translate this into their own "absent" semantics
// rather than propagating a storage-specific error type.
var ErrNotFound = errors.New("storage: key not found")
