// Package network implements the Identity Store, ENR lifecycle, Transport
// Builder and Swarm Host described in spec.md §4: everything this module
// needs to hold a stable node identity, join the gossipsub mesh and speak
// the custom request/response RPC protocol over libp2p. It deliberately
// knows nothing about the host application's message queues; that
// cooperative scheduling lives one level up, in package mothra.
package network
