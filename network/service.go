package network

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"sync"
	"time"

	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/p2p/enode"
	"github.com/libp2p/go-libp2p"
	libp2pcrypto "github.com/libp2p/go-libp2p-core/crypto"
	"github.com/libp2p/go-libp2p-core/host"
	corenetwork "github.com/libp2p/go-libp2p-core/network"
	"github.com/libp2p/go-libp2p-core/peer"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	ma "github.com/multiformats/go-multiaddr"
	"github.com/pkg/errors"
)

// eventBufferSize is generous enough that a burst of swarm activity never
// blocks a pubsub or stream-handler goroutine on a slow-draining event
// loop; spec.md §5 makes the host-facing channels unbounded for the same
// liveness-over-backpressure reason.
const eventBufferSize = 256

// Service is the Swarm Host of spec.md §4.D: it owns the libp2p host, the
// gossipsub router and the local node record, and exposes the
// publish/send_rpc/subscribe/poll surface the Network Event Loop drives.
type Service struct {
	mu sync.Mutex

	cfg    *Config
	host   host.Host
	pubsub *pubsub.PubSub

	localENR    *enode.Node
	localPeerID peer.ID

	joinedTopics     map[string]*pubsub.Topic
	subscribedTopics map[string]bool

	events chan Event
}

// NewService builds the swarm host from the already-loaded identity and
// node record (spec.md §4.D's startup sequence) and runs its listen/dial/
// subscribe steps. None of those steps can fail the construction: a
// failure to listen, dial or subscribe is logged and the node continues
// in a degraded but running state, exactly as spec.md §7 requires.
func NewService(cfg *Config, priv *ecdsa.PrivateKey, localENR *enode.Node) (*Service, error) {
	libp2pPriv, err := convertToInterfacePrivKey(priv)
	if err != nil {
		return nil, err
	}

	h, err := libp2p.New(buildTransportOptions(cfg, libp2pPriv)...)
	if err != nil {
		return nil, errors.Wrap(err, "could not construct libp2p host")
	}

	gs, err := pubsub.NewGossipSub(context.Background(), h)
	if err != nil {
		return nil, errors.Wrap(err, "could not construct gossipsub router")
	}

	s := &Service{
		cfg:              cfg,
		host:             h,
		pubsub:           gs,
		localENR:         localENR,
		localPeerID:      h.ID(),
		joinedTopics:     make(map[string]*pubsub.Topic),
		subscribedTopics: make(map[string]bool),
		events:           make(chan Event, eventBufferSize),
	}

	h.Network().Notify(s.notifyBundle())
	h.SetStreamHandler(RPCProtocol, s.handleRPCStream)

	s.startListening()
	s.dialConfiguredPeers()
	s.subscribeConfiguredTopics()

	return s, nil
}

// LocalPeerID returns this node's libp2p Peer-ID (spec.md §3, P).
func (s *Service) LocalPeerID() peer.ID {
	return s.localPeerID
}

// LocalENR returns this node's currently advertised node record.
func (s *Service) LocalENR() *enode.Node {
	return s.localENR
}

// startListening implements startup step 1 of spec.md §4.D: listen
// failures are non-fatal, the node simply remains outbound-only.
func (s *Service) startListening() {
	listenAddr, err := ma.NewMultiaddr(fmt.Sprintf("/ip4/%s/tcp/%d", s.cfg.ListenAddress.String(), s.cfg.LibP2PPort))
	if err != nil {
		log.WithError(err).Warn("Could not build listen multiaddr")
		return
	}
	if err := s.host.Network().Listen(listenAddr); err != nil {
		log.WithError(err).WithField("address", listenAddr).Warn("Could not listen, node will remain outbound-only")
		return
	}
	log.WithField("address", listenAddr).Info("Listening established")
}

// dialConfiguredPeers implements startup step 2 of spec.md §4.D: dial
// every configured libp2p multiaddr and every boot-node ENR. Both resolve
// to the same dial step — the Open Question in spec.md §9 over whether
// boot_nodes should be wired is resolved as yes, consistently with
// SPEC_FULL.md's Design Notes.
func (s *Service) dialConfiguredPeers() {
	var targets []ma.Multiaddr
	for _, raw := range s.cfg.LibP2PNodes {
		addr, err := ma.NewMultiaddr(raw)
		if err != nil {
			log.WithError(err).WithField("address", raw).Debug("Could not parse configured peer multiaddr")
			continue
		}
		targets = append(targets, addr)
	}
	for _, raw := range s.cfg.BootNodes {
		node, err := enode.Parse(enode.ValidSchemes, raw)
		if err != nil {
			log.WithError(err).Debug("Could not parse boot-node ENR")
			continue
		}
		addr, err := enrToMultiaddr(node)
		if err != nil {
			log.WithError(err).Debug("Could not derive multiaddr from boot-node ENR")
			continue
		}
		targets = append(targets, addr)
	}

	for _, addr := range targets {
		info, err := peer.AddrInfoFromP2pAddr(addr)
		if err != nil {
			log.WithError(err).WithField("address", addr).Debug("Could not parse peer address")
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), upgradeTimeout)
		err = s.host.Connect(ctx, *info)
		cancel()
		if err != nil {
			log.WithError(err).WithField("address", addr).Debug("Could not connect to peer")
			continue
		}
		log.WithField("address", addr).Debug("Dialing libp2p peer")
	}
}

// subscribeConfiguredTopics implements startup step 3 of spec.md §4.D.
func (s *Service) subscribeConfiguredTopics() {
	var subscribed []string
	for _, topic := range s.cfg.Topics {
		if s.Subscribe(topic) {
			subscribed = append(subscribed, topic)
		} else {
			log.WithField("topic", topic).Warn("Could not subscribe to topic")
		}
	}
	log.WithField("topics", subscribed).Info("Subscribed to topics")
}

// Publish implements the Swarm Host's publish operation.
func (s *Service) Publish(topics []string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var lastErr error
	for _, name := range topics {
		topic, err := s.joinTopicLocked(name)
		if err != nil {
			lastErr = err
			continue
		}
		if err := topic.Publish(context.Background(), data); err != nil {
			lastErr = errors.Wrapf(err, "could not publish to topic %q", name)
		}
	}
	return lastErr
}

// SendRPC implements the Swarm Host's send_rpc operation: a single framed
// event on a fresh stream, fire-and-forget from this package's point of
// view. The stream's write side is bounded by upgradeTimeout so a
// unresponsive peer cannot stall the caller indefinitely.
func (s *Service) SendRPC(peerID peer.ID, event RPCEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), upgradeTimeout)
	defer cancel()

	stream, err := s.host.NewStream(ctx, peerID, RPCProtocol)
	if err != nil {
		return errors.Wrapf(err, "could not open RPC stream to %s", peerID)
	}
	defer func() {
		if cerr := stream.Close(); cerr != nil {
			log.WithError(cerr).Debug("Could not close outbound RPC stream")
		}
	}()

	frame, err := encodeRPCEvent(event)
	if err != nil {
		return err
	}
	if err := stream.SetWriteDeadline(time.Now().Add(upgradeTimeout)); err != nil {
		log.WithError(err).Debug("Could not set write deadline on outbound RPC stream")
	}
	if err := writeFrame(stream, frame); err != nil {
		return errors.Wrapf(err, "could not write RPC frame to %s", peerID)
	}
	return nil
}

// Subscribe implements the Swarm Host's subscribe operation, returning
// whether the subscription succeeded.
func (s *Service) Subscribe(topicName string) bool {
	s.mu.Lock()
	topic, err := s.joinTopicLocked(topicName)
	if err != nil {
		s.mu.Unlock()
		log.WithError(err).WithField("topic", topicName).Debug("Could not join topic")
		return false
	}
	sub, err := topic.Subscribe()
	if err != nil {
		s.mu.Unlock()
		log.WithError(err).WithField("topic", topicName).Debug("Could not subscribe to topic")
		return false
	}
	s.subscribedTopics[topicName] = true
	s.mu.Unlock()

	go s.pumpSubscription(topicName, sub)
	log.WithField("topic", topicName).Debug("Subscribed to topic")
	return true
}

// NumConnectedPeers implements the Swarm Host's num_connected_peers
// operation.
func (s *Service) NumConnectedPeers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.host.Network().Peers())
}

// Poll implements the Swarm Host's poll operation: a non-blocking drain of
// whatever event is queued, so the Network Event Loop's cooperative
// scheduling (spec.md §4.E) never stalls on the swarm.
func (s *Service) Poll() (Event, bool) {
	select {
	case e := <-s.events:
		return e, true
	default:
		return Event{}, false
	}
}

// Close tears down the underlying host.
func (s *Service) Close() error {
	return s.host.Close()
}

func (s *Service) joinTopicLocked(name string) (*pubsub.Topic, error) {
	if topic, ok := s.joinedTopics[name]; ok {
		return topic, nil
	}
	topic, err := s.pubsub.Join(name)
	if err != nil {
		return nil, errors.Wrapf(err, "could not join topic %q", name)
	}
	s.joinedTopics[name] = topic
	return topic, nil
}

func (s *Service) pumpSubscription(topicName string, sub *pubsub.Subscription) {
	ctx := context.Background()
	for {
		msg, err := sub.Next(ctx)
		if err != nil {
			log.WithError(err).WithField("topic", topicName).Debug("Subscription closed")
			return
		}
		// Never deliver our own published messages back as inbound events.
		if msg.ReceivedFrom == s.localPeerID {
			continue
		}
		s.events <- Event{
			Kind:    EventPubsubMessage,
			Peer:    msg.ReceivedFrom,
			Topics:  []string{topicName},
			Message: msg.Data,
		}
	}
}

// handleRPCStream is the stream handler registered for RPCProtocol: it
// reads exactly one frame, decodes it into an RPCEvent and queues the
// corresponding Event, then closes the stream.
func (s *Service) handleRPCStream(stream corenetwork.Stream) {
	defer func() {
		if err := stream.Close(); err != nil {
			log.WithError(err).Debug("Could not close inbound RPC stream")
		}
	}()

	peerID := stream.Conn().RemotePeer()
	raw, err := readFrame(stream)
	if err != nil {
		log.WithError(err).WithField("peer", peerID).Debug("Could not read inbound RPC frame")
		return
	}
	event, err := decodeRPCEvent(raw)
	if err != nil {
		log.WithError(err).WithField("peer", peerID).Debug("Could not decode inbound RPC frame")
		return
	}
	s.events <- Event{Kind: EventRPC, Peer: peerID, RPC: event}
}

func (s *Service) notifyBundle() *corenetwork.NotifyBundle {
	return &corenetwork.NotifyBundle{
		ConnectedF: func(_ corenetwork.Network, conn corenetwork.Conn) {
			s.events <- Event{Kind: EventPeerDialed, Peer: conn.RemotePeer()}
		},
		DisconnectedF: func(_ corenetwork.Network, conn corenetwork.Conn) {
			s.events <- Event{Kind: EventPeerDisconnected, Peer: conn.RemotePeer()}
		},
	}
}

// enrToMultiaddr derives a dialable multiaddr from a boot-node ENR. The
// libp2p Peer-ID is recomputed from the record's secp256k1 public key
// since an ENR's node-id and a libp2p Peer-ID use different derivation
// schemes over the same key (spec.md GLOSSARY: Peer-ID vs Node Record).
func enrToMultiaddr(node *enode.Node) (ma.Multiaddr, error) {
	if node.IP() == nil {
		return nil, errors.New("boot-node ENR has no IP entry")
	}
	if node.TCP() == 0 {
		return nil, errors.New("boot-node ENR has no TCP entry")
	}
	pubBytes := gethcrypto.FromECDSAPub(node.Pubkey())
	pub, err := libp2pcrypto.UnmarshalSecp256k1PublicKey(pubBytes)
	if err != nil {
		return nil, errors.Wrap(err, "could not convert ENR public key")
	}
	id, err := peer.IDFromPublicKey(pub)
	if err != nil {
		return nil, errors.Wrap(err, "could not derive peer id from ENR public key")
	}
	return ma.NewMultiaddr(fmt.Sprintf("/ip4/%s/tcp/%d/p2p/%s", node.IP().String(), node.TCP(), id.String()))
}
