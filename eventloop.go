package mothra

import (
	"time"

	"github.com/google/uuid"
	"github.com/libp2p/go-libp2p-core/peer"
	"github.com/sirupsen/logrus"

	"github.com/jrhea/mothra/network"
)

// idlePoll is the Event Loop's yield duration once both the outbound
// command queue and the swarm have nothing ready: spec.md §4.E step C
// ("yield"), made concrete as a short sleep so the loop never busy-spins.
const idlePoll = 10 * time.Millisecond

// commandQueueCapacity and messageQueueCapacity bound the two internal
// channels. spec.md §5 describes these as unbounded; this package instead
// gives them a generous capacity and, on overflow, logs and drops exactly
// like the source's try_send does on a closed or backed-up channel
// (spec.md §5, Backpressure: liveness over delivery of low-value commands).
const (
	commandQueueCapacity = 4096
	messageQueueCapacity = 4096
)

// rpcCommandTag is the placeholder RPC method tag this revision stamps on
// every inbound request/response, since the RPC substream carries opaque
// bytes with no envelope to extract a real tag from (spec.md §9's
// "HELLO" Open Question; kept as a documented limitation per SPEC_FULL.md).
const rpcCommandTag = "HELLO"

// EventLoop is the Network Event Loop of spec.md §4.E: a single
// cooperative task that drains the outbound command queue, then drains
// the swarm's events, then yields, in that order, every cycle.
type EventLoop struct {
	swarm *network.Service

	outbound chan command
	inbound  chan Message
}

func newEventLoop(swarm *network.Service) *EventLoop {
	return &EventLoop{
		swarm:    swarm,
		outbound: make(chan command, commandQueueCapacity),
		inbound:  make(chan Message, messageQueueCapacity),
	}
}

// submit enqueues a command for the next outbound drain. Used by the Host
// API; never blocks.
func (l *EventLoop) submit(cmd command) {
	select {
	case l.outbound <- cmd:
	default:
		log.WithField("kind", cmd.kind.String()).Warn("Outbound command queue full, dropping command")
	}
}

// Run drives the A-before-B-before-yield cycle until stop is closed, or
// returns ErrOutboundClosed if the outbound queue is closed out from
// under it.
func (l *EventLoop) Run(stop <-chan struct{}) error {
	for {
		select {
		case <-stop:
			return nil
		default:
		}

		if err := l.drainOutbound(); err != nil {
			return err
		}
		l.drainSwarm()

		time.Sleep(idlePoll)
	}
}

func (l *EventLoop) drainOutbound() error {
	for {
		select {
		case cmd, ok := <-l.outbound:
			if !ok {
				return ErrOutboundClosed
			}
			l.handleCommand(cmd)
		default:
			return nil
		}
	}
}

func (l *EventLoop) handleCommand(cmd command) {
	corrID := uuid.NewString()
	switch cmd.kind {
	case commandSend:
		if err := l.swarm.SendRPC(cmd.peer, cmd.rpc); err != nil {
			log.WithFields(logrus.Fields{"peer": cmd.peer, "corr_id": corrID}).WithError(err).Debug("Could not send RPC event")
		}
	case commandPublish:
		if err := l.swarm.Publish(cmd.topics, cmd.value); err != nil {
			log.WithFields(logrus.Fields{"topics": cmd.topics, "corr_id": corrID}).WithError(err).Debug("Could not publish gossip message")
		}
	}
}

func (l *EventLoop) drainSwarm() {
	for {
		event, ok := l.swarm.Poll()
		if !ok {
			return
		}
		l.translate(event)
	}
}

// translate implements the BehaviourEvent → Libp2pEvent → host Message
// mapping of spec.md §4.D/§4.E.
func (l *EventLoop) translate(event network.Event) {
	switch event.Kind {
	case network.EventPubsubMessage:
		topic := ""
		if len(event.Topics) > 0 {
			topic = event.Topics[0]
		}
		l.deliver(Message{Category: GOSSIP, Command: topic, Value: event.Message})

	case network.EventPeerDialed:
		l.deliver(Message{Category: DISCOVERY, Peer: event.Peer.String()})

	case network.EventPeerDisconnected:
		log.WithField("peer", event.Peer).Debug("Peer disconnected")

	case network.EventRPC:
		l.translateRPC(event.Peer, event.RPC)
	}
}

func (l *EventLoop) translateRPC(p peer.ID, rpc network.RPCEvent) {
	switch {
	case rpc.Kind == network.RPCRequest:
		l.deliver(Message{Category: RPC, Command: rpcCommandTag, ReqResp: Request, Peer: p.String(), Value: rpc.Payload})

	case rpc.Kind == network.RPCResponseOk:
		l.deliver(Message{Category: RPC, Command: rpcCommandTag, ReqResp: Response, Peer: p.String(), Value: rpc.Payload})

	case rpc.Kind.IsResponseError():
		// TODO: once Message grows a way to carry an error variant, forward
		// this to the host instead of only logging it (spec.md §9).
		log.WithFields(logrus.Fields{"peer": p.String(), "reason": rpc.Reason}).Warn("Peer RPC error response")

	case rpc.Kind == network.RPCError:
		log.WithFields(logrus.Fields{"peer": p.String(), "reason": rpc.Reason}).Warn("RPC stream error")
	}
}

func (l *EventLoop) deliver(m Message) {
	select {
	case l.inbound <- m:
	default:
		log.WithField("category", m.Category).Warn("Host message queue full, dropping event")
	}
}
