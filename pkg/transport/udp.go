package transport

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"
)

// UDP is a Transport over a bound UDP socket.
type UDP struct {
	conn *net.UDPConn
	buf  []byte
}

// ListenUDP binds a UDP socket on addr (e.g. ":6510", "127.0.0.1:0").
// bufSize <= 0 selects DefaultReadBufferSize.
func ListenUDP(addr string, bufSize int) (*UDP, error) {
	laddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve local address %q: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, fmt.Errorf("listen udp %s: %w", addr, err)
	}
	if bufSize <= 0 {
		bufSize = DefaultReadBufferSize
	}
	return &UDP{conn: conn, buf: make([]byte, bufSize)}, nil
}

// UDPDialer returns a Dialer that binds localPort on every call.
func UDPDialer(localPort, bufSize int) Dialer {
	return func(ctx context.Context, _ net.Addr) (Transport, error) {
		return ListenUDP(":"+strconv.Itoa(localPort), bufSize)
	}
}

// ResolveUDP resolves host and port into a UDP address.
func ResolveUDP(host string, port int) (*net.UDPAddr, error) {
	addr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("resolve robot address %s:%d: %w", host, port, err)
	}
	return addr, nil
}

// Send writes one datagram to addr.
func (u *UDP) Send(ctx context.Context, addr net.Addr, data []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if addr == nil {
		return 0, fmt.Errorf("send: no destination address")
	}
	ua, ok := addr.(*net.UDPAddr)
	if !ok {
		var err error
		if ua, err = net.ResolveUDPAddr("udp", addr.String()); err != nil {
			return 0, fmt.Errorf("resolve %s: %w", addr, err)
		}
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = u.conn.SetWriteDeadline(deadline)
	} else {
		_ = u.conn.SetWriteDeadline(time.Time{})
	}
	return u.conn.WriteToUDP(data, ua)
}

// Receive blocks for the next datagram. Cancelling ctx interrupts the read.
func (u *UDP) Receive(ctx context.Context) ([]byte, net.Addr, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	// Clear any deadline left by a previous cancellation before arming this one.
	_ = u.conn.SetReadDeadline(time.Time{})
	stop := context.AfterFunc(ctx, func() {
		_ = u.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	n, from, err := u.conn.ReadFromUDP(u.buf)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		return nil, nil, err
	}
	return append([]byte(nil), u.buf[:n]...), from, nil
}

// LocalAddr returns the bound address.
func (u *UDP) LocalAddr() net.Addr {
	return u.conn.LocalAddr()
}

// Close releases the socket. A blocked Receive returns net.ErrClosed.
func (u *UDP) Close() error {
	return u.conn.Close()
}
