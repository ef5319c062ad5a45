// Package mothra is an embeddable peer-to-peer networking node for an
// Ethereum-2-style beacon chain client. A host application constructs a
// Node, then drives it entirely through the channel pair returned by
// Node.Outbound and Node.Inbound: submit GOSSIP/RPC Messages on one side,
// receive GOSSIP/RPC/DISCOVERY Messages on the other. Everything below
// that boundary — identity, node records, the gossip mesh, the RPC
// substream protocol — lives in package network.
package mothra
