package object

import "errors"

// ErrNotFound indicates the requested hash is not present in the store.
// Callers must not retry.
var ErrNotFound = errors.New("object not found")

// ErrCorrupt indicates stored bytes that decompress or parse incorrectly, or
// whose recomputed hash does not match the requested one. Always fatal;
// never auto-repaired.
var ErrCorrupt = errors.New("object corrupt")
