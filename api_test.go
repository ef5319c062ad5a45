package mothra

import (
	"testing"

	"github.com/libp2p/go-libp2p-core/peer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrhea/mothra/network"
)

func TestDispatch_Gossip(t *testing.T) {
	loop := newEventLoop(nil)
	api := newHostAPI(nil, loop)

	api.dispatch(Message{Category: GOSSIP, Command: "beacon_block", Value: []byte{0xAA, 0xBB}})

	cmd := <-loop.outbound
	assert.Equal(t, commandPublish, cmd.kind)
	assert.Equal(t, []string{"beacon_block"}, cmd.topics)
	assert.Equal(t, []byte{0xAA, 0xBB}, cmd.value)
}

func TestDispatch_RPCRequest(t *testing.T) {
	loop := newEventLoop(nil)
	api := newHostAPI(nil, loop)
	p := testPeerID(t)

	api.dispatch(Message{Category: RPC, ReqResp: Request, Peer: p.String(), Value: []byte{0x01}})

	cmd := <-loop.outbound
	assert.Equal(t, commandSend, cmd.kind)
	assert.Equal(t, p, cmd.peer)
	assert.Equal(t, network.RPCRequest, cmd.rpc.Kind)
	assert.Equal(t, []byte{0x01}, cmd.rpc.Payload)
}

func TestDispatch_RPCResponse(t *testing.T) {
	loop := newEventLoop(nil)
	api := newHostAPI(nil, loop)
	p := testPeerID(t)

	api.dispatch(Message{Category: RPC, ReqResp: Response, Peer: p.String(), Value: []byte{0xCD}})

	cmd := <-loop.outbound
	assert.Equal(t, network.RPCResponseOk, cmd.rpc.Kind)
}

func TestDispatch_MalformedPeerStringDropsSubmission(t *testing.T) {
	loop := newEventLoop(nil)
	api := newHostAPI(nil, loop)

	api.dispatch(Message{Category: RPC, ReqResp: Request, Peer: "not a valid peer id", Value: []byte{0x01}})

	select {
	case cmd := <-loop.outbound:
		t.Fatalf("expected no command to be submitted, got %+v", cmd)
	default:
	}
}

func TestDispatch_DiscoveryIsIgnored(t *testing.T) {
	loop := newEventLoop(nil)
	api := newHostAPI(nil, loop)

	api.dispatch(Message{Category: DISCOVERY, Peer: "anything"})

	select {
	case cmd := <-loop.outbound:
		t.Fatalf("expected no command to be submitted, got %+v", cmd)
	default:
	}
}

func TestPeerID_Base58RoundTrip(t *testing.T) {
	p := testPeerID(t)

	decoded, err := peer.Decode(p.String())
	require.NoError(t, err)
	assert.Equal(t, p, decoded)
}

func TestForward_DropsWhenQueueFull(t *testing.T) {
	loop := newEventLoop(nil)
	api := newHostAPI(nil, loop)

	for i := 0; i < messageQueueCapacity; i++ {
		api.forward(Message{Category: GOSSIP})
	}
	api.forward(Message{Category: GOSSIP})
	assert.Len(t, api.toHost, messageQueueCapacity)
}
