//go:build linux

package sampler

import (
	"context"
	"net"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/jhammond-tacc/lltop/internal/rxbuf"
)

// DialUDP connects a UDP socket to host:port for the generational sampler's
// push transport, enabling SO_REUSEADDR via a Control callback so a
// restarted sampler doesn't have to wait out the kernel's TIME_WAIT state
// on a shared source port.
func DialUDP(ctx context.Context, host, port string) (net.Conn, error) {
	d := net.Dialer{
		Control: func(_, _ string, c syscall.RawConn) error {
			var sockErr error
			err := c.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
			})
			if err != nil {
				return err
			}
			return sockErr
		},
	}
	return d.DialContext(ctx, "udp", net.JoinHostPort(host, port))
}

// ListenUDP opens a UDP listener on addr (host:port, host may be empty for
// all interfaces) for receiving generational-sampler datagrams.
func ListenUDP(addr string) (net.PacketConn, error) {
	lc := net.ListenConfig{
		Control: func(_, _ string, c syscall.RawConn) error {
			var sockErr error
			err := c.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
			})
			if err != nil {
				return err
			}
			return sockErr
		},
	}
	return lc.ListenPacket(context.Background(), "udp", addr)
}

// packetReader adapts a net.PacketConn's ReadFrom into rxbuf.Reader's
// plain Read, since a connected generational-sampler datagram stream is
// consumed from a single expected peer per server.
type packetReader struct {
	conn net.PacketConn
}

func (p *packetReader) Read(buf []byte) (int, error) {
	n, _, err := p.conn.ReadFrom(buf)
	return n, err
}

// ReadLines drains complete "NAME WR RD REQS" lines arriving on conn into
// out, applying the rxbuf framing discipline so datagrams that split or
// merge lines (shouldn't happen per §4.4's datagram-is-a-set-of-complete-
// lines contract, but defensively handled anyway) don't corrupt records.
// It returns when ctx is cancelled.
func ReadLines(ctx context.Context, conn net.PacketConn, out chan<- string) error {
	defer close(out)

	pr := &packetReader{conn: conn}
	b := rxbuf.New(DefaultDatagramSize)

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		if _, err := b.Read(pr); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		for {
			line, ok := b.Iter()
			if !ok {
				break
			}
			select {
			case out <- line:
			case <-ctx.Done():
				return nil
			}
		}
	}
}
