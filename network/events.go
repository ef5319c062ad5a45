package network

import "github.com/libp2p/go-libp2p-core/peer"

// EventKind tags the variant of an Event, mirroring the BehaviourEvent →
// Libp2pEvent mapping of spec.md §4.D.
type EventKind uint8

const (
	EventPubsubMessage EventKind = iota
	EventRPC
	EventPeerDialed
	EventPeerDisconnected
)

// Event is this package's Libp2pEvent: whichever of the swarm's
// notifications the Network Event Loop (spec.md §4.E) is driving right
// now. Only the fields relevant to Kind are populated.
type Event struct {
	Kind EventKind

	// Peer is the pubsub message source, the RPC counterparty, or the
	// dialed/disconnected peer, depending on Kind.
	Peer peer.ID

	// Topics and Message are populated for EventPubsubMessage.
	Topics  []string
	Message []byte

	// RPC is populated for EventRPC.
	RPC RPCEvent
}
