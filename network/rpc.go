package network

import "github.com/libp2p/go-libp2p-core/protocol"

// RPCProtocol is the single custom stream protocol this package registers
// for the bidirectional request/response RPC described in spec.md §1(c).
const RPCProtocol = protocol.ID("/mothra/rpc/1.0.0")

// FixedRPCID is the correlation id this revision stamps on every RPC
// event. spec.md §3 documents real per-peer correlation ids as an open
// question for a future revision; until then every Request/Response
// carries this same value and correlation is the host's problem, not
// this package's.
const FixedRPCID uint64 = 0

// RPCEventKind tags the variant of an RPCEvent, mirroring the RPCEvent
// enum of spec.md §3 (E): Request, Response{Ok,InvalidRequest,
// ServerError,Unknown}, or Error.
type RPCEventKind uint8

const (
	RPCRequest RPCEventKind = iota
	RPCResponseOk
	RPCResponseInvalidRequest
	RPCResponseServerError
	RPCResponseUnknown
	RPCError
)

// IsResponseError reports whether k is one of the Response error variants
// (InvalidRequest, ServerError, Unknown) that spec.md §4.E logs at warn
// and does not forward to the host.
func (k RPCEventKind) IsResponseError() bool {
	switch k {
	case RPCResponseInvalidRequest, RPCResponseServerError, RPCResponseUnknown:
		return true
	default:
		return false
	}
}

func (k RPCEventKind) String() string {
	switch k {
	case RPCRequest:
		return "Request"
	case RPCResponseOk:
		return "Response(Ok)"
	case RPCResponseInvalidRequest:
		return "Response(InvalidRequest)"
	case RPCResponseServerError:
		return "Response(ServerError)"
	case RPCResponseUnknown:
		return "Response(Unknown)"
	case RPCError:
		return "Error"
	default:
		return "Unknown"
	}
}

// RPCEvent is the wire-level request/response event exchanged over the
// RPC substream. Payload carries the opaque bytes for Request and
// Response(Ok); Reason carries the error text for every error variant.
type RPCEvent struct {
	Kind    RPCEventKind
	ID      uint64
	Payload []byte
	Reason  string
}

// NewRPCRequest builds a Request event with the fixed correlation id.
func NewRPCRequest(payload []byte) RPCEvent {
	return RPCEvent{Kind: RPCRequest, ID: FixedRPCID, Payload: payload}
}

// NewRPCResponse builds a successful Response event with the fixed
// correlation id.
func NewRPCResponse(payload []byte) RPCEvent {
	return RPCEvent{Kind: RPCResponseOk, ID: FixedRPCID, Payload: payload}
}
