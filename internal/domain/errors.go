package domain

import "errors"

// ErrLengthUnknown indicates the server reported no usable Content-Length,
// so the file cannot be partitioned.
var ErrLengthUnknown = errors.New("content length unknown")

// ErrJobNotFound indicates the referenced job is neither queued nor stored.
var ErrJobNotFound = errors.New("job not found")
