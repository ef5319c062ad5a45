package mothra

import "github.com/pkg/errors"

// ErrOutboundClosed is returned by EventLoop.Run when its outbound
// command queue is closed out from under it: spec.md §7 error kind 8,
// fatal for the Event Loop and the trigger for an orderly shutdown.
var ErrOutboundClosed = errors.New("mothra: outbound command channel closed")
