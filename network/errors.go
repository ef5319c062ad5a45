package network

import "github.com/pkg/errors"

// Fatal error kinds a host application must handle. Every other failure
// inside this package is logged at its natural severity and swallowed.
var (
	// ErrIdentityUnavailable is returned when neither an existing key file
	// nor key generation produced a usable identity. Should be impossible
	// in practice since generation only fails on an exhausted entropy
	// source.
	ErrIdentityUnavailable = errors.New("network: could not load or generate node identity")

	// ErrSeqOverflow is returned by BuildOrLoadENR when bumping the
	// sequence number of a record loaded from disk would overflow uint64.
	ErrSeqOverflow = errors.New("network: ENR sequence number on disk is exhausted, remove the file to regenerate")

	// ErrInvalidConfig names the invalid-configuration error kind. This
	// package does not validate Config, so no function in it returns this
	// error.
	ErrInvalidConfig = errors.New("network: invalid configuration")
)
