// Package transport provides the datagram channel the EGM engine runs over.
//
// Transport is intentionally minimal: send a datagram to an address, receive
// the next datagram with its source. UDP is the production implementation;
// Memory backs tests and in-process simulations.
package transport

import (
	"context"
	"net"
)

// DefaultPort is the UDP port EGM uses unless the controller is configured
// otherwise.
const DefaultPort = 6510

// DefaultReadBufferSize fits any EGM message with room to spare.
const DefaultReadBufferSize = 4096

// Transport is a datagram channel.
//
// Receive is called from a single goroutine; Send may be called concurrently
// with Receive. Receive returns ctx.Err() when ctx is cancelled and
// net.ErrClosed after Close.
type Transport interface {
	Send(ctx context.Context, addr net.Addr, data []byte) (int, error)
	Receive(ctx context.Context) ([]byte, net.Addr, error)
	LocalAddr() net.Addr
	Close() error
}

// Dialer opens a Transport for a remote robot. remote may be nil when the
// peer address is learned from incoming traffic.
type Dialer func(ctx context.Context, remote net.Addr) (Transport, error)
