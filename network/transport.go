package network

import (
	"time"

	"github.com/libp2p/go-libp2p"
	connmgr "github.com/libp2p/go-libp2p-connmgr"
	libp2pcrypto "github.com/libp2p/go-libp2p-core/crypto"
	mplex "github.com/libp2p/go-libp2p-mplex"
	noise "github.com/libp2p/go-libp2p-noise"
	yamux "github.com/libp2p/go-libp2p-yamux"
	tcp "github.com/libp2p/go-tcp-transport"
)

// upgradeTimeout bounds how long a single connection upgrade (secure
// channel negotiation followed by stream-multiplexer negotiation) may
// take. Applied as a context deadline around every dial this package
// performs; listen itself does no handshake and is unaffected.
const upgradeTimeout = 20 * time.Second

// yamuxProtocolID and mplexProtocolID are the negotiated multiplexer
// protocol ids. The yamux/mplex packages export no ID constant of their
// own; go-libp2p's own defaults.go hardcodes the same literals.
const (
	yamuxProtocolID = "/yamux/1.0.0"
	mplexProtocolID = "/mplex/6.7.0"
)

// buildTransportOptions implements the Transport Builder (spec.md §4.C):
// a TCP transport (with the usual DNS-resolving dialer go-libp2p already
// wires in for dns4/dns6 multiaddrs), secured with noise keyed by priv,
// multiplexed with yamux preferred and mplex as the negotiated fallback,
// and a connection manager capping the swarm at cfg.MaxPeers. WebSocket
// support is intentionally left out: this package never receives ws
// multiaddrs from its Config, so adding the overlay here would be dead
// weight until a host actually asks for it.
func buildTransportOptions(cfg *Config, priv libp2pcrypto.PrivKey) []libp2p.Option {
	opts := []libp2p.Option{
		libp2p.Identity(priv),
		libp2p.Transport(tcp.NewTCPTransport),
		libp2p.Security(noise.ID, noise.New),
		libp2p.Muxer(yamuxProtocolID, yamux.DefaultTransport),
		libp2p.Muxer(mplexProtocolID, mplex.DefaultTransport),
	}

	high := cfg.MaxPeers
	if high == 0 {
		high = DefaultMaxPeers
	}
	low := high / 2
	if low == 0 {
		low = 1
	}
	connMgr, err := connmgr.NewConnManager(int(low), int(high))
	if err != nil {
		log.WithError(err).Warn("Could not construct connection manager, continuing without a peer cap")
		return opts
	}
	return append(opts, libp2p.ConnectionManager(connMgr))
}
