package network

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p-core/peer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, topics []string) *Service {
	dir := tempDataDir(t)
	priv, err := loadOrGenerateKey(dir)
	require.NoError(t, err)
	cfg := &Config{
		DataDir:       dir,
		ListenAddress: net.IPv4zero,
		LibP2PPort:    0,
		Topics:        topics,
	}
	node, err := BuildENR(priv, cfg, []byte{0, 0, 0, 0})
	require.NoError(t, err)

	svc, err := NewService(cfg, priv, node)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func connectServices(t *testing.T, a, b *Service) {
	info := peer.AddrInfo{ID: b.host.ID(), Addrs: b.host.Addrs()}
	require.NotEmpty(t, info.Addrs)
	require.NoError(t, a.host.Connect(context.Background(), info))
}

func TestService_GossipRoundTrip(t *testing.T) {
	a := newTestService(t, []string{"beacon_block"})
	b := newTestService(t, []string{"beacon_block"})
	connectServices(t, a, b)

	// Gossipsub needs a brief window to form its mesh after the connection
	// is established before a publish is guaranteed to reach subscribers.
	time.Sleep(200 * time.Millisecond)

	require.NoError(t, a.Publish([]string{"beacon_block"}, []byte{0xAA, 0xBB}))

	// The connection itself also queues EventPeerDialed on b; skip it.
	timeout := time.After(3 * time.Second)
	for {
		select {
		case event := <-b.events:
			if event.Kind == EventPeerDialed {
				continue
			}
			assert.Equal(t, EventPubsubMessage, event.Kind)
			assert.Equal(t, []byte{0xAA, 0xBB}, event.Message)
			return
		case <-timeout:
			t.Fatal("timed out waiting for gossip message")
		}
	}
}

func TestService_RPCRoundTrip(t *testing.T) {
	a := newTestService(t, nil)
	b := newTestService(t, nil)
	connectServices(t, a, b)

	require.NoError(t, a.SendRPC(b.LocalPeerID(), NewRPCRequest([]byte{0x01})))

	// The connection itself also queues EventPeerDialed on b; skip it.
	timeout := time.After(3 * time.Second)
	for {
		select {
		case event := <-b.events:
			if event.Kind == EventPeerDialed {
				continue
			}
			assert.Equal(t, EventRPC, event.Kind)
			assert.Equal(t, RPCRequest, event.RPC.Kind)
			assert.Equal(t, []byte{0x01}, event.RPC.Payload)
			return
		case <-timeout:
			t.Fatal("timed out waiting for RPC event")
		}
	}
}

func TestNumConnectedPeers(t *testing.T) {
	a := newTestService(t, nil)
	b := newTestService(t, nil)
	assert.Equal(t, 0, a.NumConnectedPeers())

	connectServices(t, a, b)
	assert.Equal(t, 1, a.NumConnectedPeers())
}
