package mothra

import (
	"github.com/libp2p/go-libp2p-core/peer"

	"github.com/jrhea/mothra/network"
)

type commandKind uint8

const (
	commandSend commandKind = iota
	commandPublish
)

func (k commandKind) String() string {
	if k == commandSend {
		return "Send"
	}
	return "Publish"
}

// command is this package's Network Command (spec.md §3, C): either
// Send(peer, RPCEvent) addressed to a single peer, or Publish(topics,
// bytes) addressed to the gossip mesh.
type command struct {
	kind commandKind

	peer peer.ID
	rpc  network.RPCEvent

	topics []string
	value  []byte
}

func sendCommand(p peer.ID, event network.RPCEvent) command {
	return command{kind: commandSend, peer: p, rpc: event}
}

func publishCommand(topics []string, value []byte) command {
	return command{kind: commandPublish, topics: topics, value: value}
}
