package mothra

import (
	"github.com/ethereum/go-ethereum/p2p/enode"
	"github.com/libp2p/go-libp2p-core/peer"
	"github.com/pkg/errors"

	"github.com/jrhea/mothra/network"
)

// Node wires the Identity Store, ENR lifecycle, Transport Builder, Swarm
// Host, Network Event Loop and Host API into one running p2p node
// (spec.md §2's data-flow diagram). A host application talks to it only
// through Outbound/Inbound.
type Node struct {
	cfg *network.Config

	swarm *network.Service
	enr   *enode.Node

	loop *EventLoop
	api  *HostAPI

	stop chan struct{}
}

// New builds and starts a Node: it loads or generates the node's
// identity, builds or loads its node record, constructs the swarm host,
// and launches the Event Loop and Host API pump as background goroutines.
// forkID is the opaque fork identifier the host stamps into the node
// record's `eth2` field.
func New(cfg *network.Config, forkID []byte) (*Node, error) {
	priv, err := network.LoadOrGenerateIdentity(cfg.DataDir)
	if err != nil {
		return nil, errors.Wrap(err, "could not load or generate node identity")
	}

	localENR, err := network.BuildOrLoadENR(priv, cfg, forkID)
	if err != nil {
		return nil, errors.Wrap(err, "could not build or load node record")
	}

	swarm, err := network.NewService(cfg, priv, localENR)
	if err != nil {
		return nil, errors.Wrap(err, "could not construct swarm host")
	}

	loop := newEventLoop(swarm)
	api := newHostAPI(swarm, loop)

	n := &Node{
		cfg:   cfg,
		swarm: swarm,
		enr:   localENR,
		loop:  loop,
		api:   api,
		stop:  make(chan struct{}),
	}

	go func() {
		if err := loop.Run(n.stop); err != nil {
			log.WithError(err).Error("Network event loop exited")
		}
	}()
	go api.Run(n.stop)

	log.WithFields(map[string]interface{}{
		"peer_id": swarm.LocalPeerID().String(),
		"enr":     localENR.String(),
	}).Info("Node started")

	return n, nil
}

// Outbound returns the channel the host submits Messages on.
func (n *Node) Outbound() chan<- Message {
	return n.api.Outbound()
}

// Inbound returns the channel the host receives Messages from.
func (n *Node) Inbound() <-chan Message {
	return n.api.Inbound()
}

// LocalENR returns the node's currently advertised record.
func (n *Node) LocalENR() *enode.Node {
	return n.enr
}

// LocalPeerID returns the node's libp2p Peer-ID.
func (n *Node) LocalPeerID() peer.ID {
	return n.swarm.LocalPeerID()
}

// Close signals the Event Loop and Host API to stop on their next wake
// and tears down the swarm host (spec.md §5, Cancellation).
func (n *Node) Close() error {
	close(n.stop)
	return n.swarm.Close()
}
