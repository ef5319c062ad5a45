package mothra

import (
	"time"

	"github.com/libp2p/go-libp2p-core/peer"

	"github.com/jrhea/mothra/network"
)

// pollInterval is the Host API's idle sleep between pump iterations
// (spec.md §4.F: "sleep briefly, ≈50ms").
const pollInterval = 50 * time.Millisecond

// HeartbeatInterval is how often the Host API reports swarm liveness.
const HeartbeatInterval = 10 * time.Second

// WarnPeerCount is the connected-peer count at or below which the
// heartbeat logs a warning instead of a debug line.
const WarnPeerCount = 1

// HostAPI owns the host-facing synchronous channel pair and pumps it
// into and out of the Event Loop (spec.md §4.F). It also emits a
// periodic heartbeat reporting connected-peer count.
type HostAPI struct {
	swarm *network.Service
	loop  *EventLoop

	toHost   chan Message // local_tx: node → host
	fromHost chan Message // local_rx: host → node
}

func newHostAPI(swarm *network.Service, loop *EventLoop) *HostAPI {
	return &HostAPI{
		swarm:    swarm,
		loop:     loop,
		toHost:   make(chan Message, messageQueueCapacity),
		fromHost: make(chan Message, messageQueueCapacity),
	}
}

// Outbound returns the channel a host application sends Messages on.
func (a *HostAPI) Outbound() chan<- Message {
	return a.fromHost
}

// Inbound returns the channel a host application receives Messages from.
func (a *HostAPI) Inbound() <-chan Message {
	return a.toHost
}

// Run pumps both directions and the heartbeat until stop is closed.
func (a *HostAPI) Run(stop <-chan struct{}) {
	var lastHeartbeat time.Time
	for {
		select {
		case <-stop:
			return
		default:
		}

		select {
		case msg := <-a.fromHost:
			a.dispatch(msg)
		default:
		}

		select {
		case msg := <-a.loop.inbound:
			a.forward(msg)
		default:
		}

		if time.Since(lastHeartbeat) >= HeartbeatInterval {
			a.heartbeat()
			lastHeartbeat = time.Now()
		}

		time.Sleep(pollInterval)
	}
}

// dispatch implements the local_rx side of spec.md §4.F: decode a
// host-submitted Message into a Network Command and submit it.
func (a *HostAPI) dispatch(msg Message) {
	switch msg.Category {
	case GOSSIP:
		a.loop.submit(publishCommand([]string{msg.Command}, msg.Value))

	case RPC:
		p, err := peer.Decode(msg.Peer)
		if err != nil {
			// spec.md §7 error kind 10: malformed peer string is fatal for
			// this submission only; the caller sees it as a dropped send.
			log.WithError(err).WithField("peer", msg.Peer).Warn("Could not decode peer id, dropping RPC submission")
			return
		}
		if msg.ReqResp == Request {
			a.loop.submit(sendCommand(p, network.NewRPCRequest(msg.Value)))
		} else {
			a.loop.submit(sendCommand(p, network.NewRPCResponse(msg.Value)))
		}

	case DISCOVERY:
		log.WithField("command", msg.Command).Debug("Ignoring host-submitted DISCOVERY message")
	}
}

func (a *HostAPI) forward(msg Message) {
	select {
	case a.toHost <- msg:
	default:
		log.WithField("category", msg.Category).Warn("Host inbound queue full, dropping message")
	}
}

func (a *HostAPI) heartbeat() {
	count := a.swarm.NumConnectedPeers()
	entry := log.WithField("peer_count", count)
	if count <= WarnPeerCount {
		entry.Warn("Low libp2p peer count")
		return
	}
	entry.Debug("libp2p heartbeat")
}
