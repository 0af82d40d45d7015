package transport

import (
	"context"
	"net"
	"sync"
)

// MemoryAddr is the address of a Memory transport.
type MemoryAddr string

func (a MemoryAddr) Network() string { return "memory" }
func (a MemoryAddr) String() string  { return string(a) }

type datagram struct {
	data []byte
	from net.Addr
	err  error
}

// Memory is an in-process Transport. Pairs created with Pipe deliver to each
// other; a standalone Memory records what it sends and receives whatever is
// injected.
type Memory struct {
	addr  MemoryAddr
	inbox chan datagram

	mu       sync.Mutex
	peer     *Memory
	sent     [][]byte
	sendErr  error
	shortN   bool
	closed   chan struct{}
	closeOne sync.Once
}

// NewMemory creates a standalone Memory transport.
func NewMemory(name string) *Memory {
	return &Memory{
		addr:   MemoryAddr(name),
		inbox:  make(chan datagram, 1024),
		closed: make(chan struct{}),
	}
}

// Pipe returns two connected Memory transports.
func Pipe(a, b string) (*Memory, *Memory) {
	ma, mb := NewMemory(a), NewMemory(b)
	ma.peer, mb.peer = mb, ma
	return ma, mb
}

// Send records data and, when piped, delivers it to the peer. Like UDP, a
// full peer inbox drops the datagram silently.
func (m *Memory) Send(ctx context.Context, _ net.Addr, data []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	select {
	case <-m.closed:
		return 0, net.ErrClosed
	default:
	}

	m.mu.Lock()
	if m.sendErr != nil {
		err := m.sendErr
		m.mu.Unlock()
		return 0, err
	}
	if m.shortN {
		m.mu.Unlock()
		return 0, nil
	}
	buf := append([]byte(nil), data...)
	m.sent = append(m.sent, buf)
	peer := m.peer
	m.mu.Unlock()

	if peer != nil {
		peer.deliver(datagram{data: buf, from: m.addr})
	}
	return len(data), nil
}

// Receive returns the next injected or piped datagram.
func (m *Memory) Receive(ctx context.Context) ([]byte, net.Addr, error) {
	select {
	case d := <-m.inbox:
		return d.data, d.from, d.err
	case <-m.closed:
		return nil, nil, net.ErrClosed
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
}

// LocalAddr returns the transport's name as an address.
func (m *Memory) LocalAddr() net.Addr {
	return m.addr
}

// Close unblocks Receive with net.ErrClosed. It is safe to call twice.
func (m *Memory) Close() error {
	m.closeOne.Do(func() { close(m.closed) })
	return nil
}

// Inject queues a datagram as if it arrived from from.
func (m *Memory) Inject(data []byte, from net.Addr) {
	m.deliver(datagram{data: append([]byte(nil), data...), from: from})
}

// InjectError makes the next Receive fail with err.
func (m *Memory) InjectError(err error) {
	m.deliver(datagram{err: err})
}

// FailSends makes every subsequent Send return err. nil restores sending.
func (m *Memory) FailSends(err error) {
	m.mu.Lock()
	m.sendErr = err
	m.mu.Unlock()
}

// ShortWrites makes Send report zero bytes written without an error.
func (m *Memory) ShortWrites(on bool) {
	m.mu.Lock()
	m.shortN = on
	m.mu.Unlock()
}

// Sent returns copies of every datagram sent so far.
func (m *Memory) Sent() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.sent))
	copy(out, m.sent)
	return out
}

func (m *Memory) deliver(d datagram) {
	select {
	case m.inbox <- d:
	default:
	}
}

// MemoryDialer returns a Dialer that hands out the given transports in order
// and fails once they run out.
func MemoryDialer(ts ...Transport) Dialer {
	var mu sync.Mutex
	return func(ctx context.Context, _ net.Addr) (Transport, error) {
		mu.Lock()
		defer mu.Unlock()
		if len(ts) == 0 {
			return nil, net.ErrClosed
		}
		t := ts[0]
		ts = ts[1:]
		return t, nil
	}
}

var (
	_ Transport = (*UDP)(nil)
	_ Transport = (*Memory)(nil)
)
