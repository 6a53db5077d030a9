package osf

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-avatar/internal/log"
	"github.com/teslashibe/go-avatar/pkg/debug"
	"github.com/teslashibe/go-avatar/pkg/landmark"
)

const (
	defaultReadTimeout = 100 * time.Millisecond
	defaultRcvBuf      = 1 << 20
	readBufferSize     = 4096 // larger than PacketSize so oversized datagrams are detected
)

// ReceiverConfig configures a Receiver.
type ReceiverConfig struct {
	Address string // host:port to bind

	// RcvBuf is the OS receive buffer size. Zero uses 1 MiB.
	RcvBuf int

	// ReadTimeout bounds each socket read so cancellation is noticed.
	// Zero uses 100ms.
	ReadTimeout time.Duration

	// Factory creates the socket. Nil uses net.ListenUDP.
	Factory UDPSocketFactory

	// PointOrder is the sender's 2D point layout. Zero is PointsXY.
	PointOrder PointOrder
}

// Stats counts datagrams seen by a Receiver.
type Stats struct {
	Packets   uint64 `json:"packets"`
	Bytes     uint64 `json:"bytes"`
	Accepted  uint64 `json:"accepted"`
	BadSize   uint64 `json:"bad_size"`
	WrongFace uint64 `json:"wrong_face"`
}

// Receiver is a landmark.Provider fed by OpenSeeFace UDP packets.
type Receiver struct {
	addr    string
	sock    UDPSocket
	timeout time.Duration
	order   PointOrder
	buf     []byte

	packets   atomic.Uint64
	bytes     atomic.Uint64
	accepted  atomic.Uint64
	badSize   atomic.Uint64
	wrongFace atomic.Uint64
}

// NewReceiver binds the socket. A bind failure is returned and is fatal for
// the caller; there is no retry.
func NewReceiver(cfg ReceiverConfig) (*Receiver, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("osf: resolve %s: %w", cfg.Address, err)
	}

	factory := cfg.Factory
	if factory == nil {
		factory = RealUDPSocketFactory{}
	}
	sock, err := factory.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("osf: bind %s: %w", cfg.Address, err)
	}

	rcvBuf := cfg.RcvBuf
	if rcvBuf == 0 {
		rcvBuf = defaultRcvBuf
	}
	if err := sock.SetReadBuffer(rcvBuf); err != nil {
		log.Warn("failed to set UDP receive buffer", "size", rcvBuf, "error", err)
	}

	timeout := cfg.ReadTimeout
	if timeout == 0 {
		timeout = defaultReadTimeout
	}

	log.Info("OpenSeeFace receiver listening", "addr", sock.LocalAddr().String(), "points", cfg.PointOrder)
	return &Receiver{
		addr:    cfg.Address,
		sock:    sock,
		timeout: timeout,
		order:   cfg.PointOrder,
		buf:     make([]byte, readBufferSize),
	}, nil
}

// Next waits for the next datagram. Packets of the wrong size or for another
// face return an error wrapping landmark.ErrNoUpdate.
func (r *Receiver) Next(ctx context.Context) (landmark.Set, error) {
	for {
		if err := ctx.Err(); err != nil {
			return landmark.Set{}, err
		}

		// Set read deadline to allow checking context cancellation
		_ = r.sock.SetReadDeadline(time.Now().Add(r.timeout))

		n, from, err := r.sock.ReadFromUDP(r.buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return landmark.Set{}, ctx.Err()
			}
			return landmark.Set{}, fmt.Errorf("osf: read %s: %w", r.addr, err)
		}

		r.packets.Add(1)
		r.bytes.Add(uint64(n))

		set, err := r.order.Parse(r.buf[:n])
		if err != nil {
			switch {
			case errors.Is(err, ErrPacketSize):
				r.badSize.Add(1)
			case errors.Is(err, ErrFaceID):
				r.wrongFace.Add(1)
			}
			debug.FrameLog("osf: dropped %d bytes from %v: %v\n", n, from, err)
			return landmark.Set{}, err
		}

		r.accepted.Add(1)
		return set, nil
	}
}

// Stats returns packet counters.
func (r *Receiver) Stats() Stats {
	return Stats{
		Packets:   r.packets.Load(),
		Bytes:     r.bytes.Load(),
		Accepted:  r.accepted.Load(),
		BadSize:   r.badSize.Load(),
		WrongFace: r.wrongFace.Load(),
	}
}

// LocalAddr returns the bound address.
func (r *Receiver) LocalAddr() net.Addr {
	return r.sock.LocalAddr()
}

// Close releases the socket.
func (r *Receiver) Close() error {
	s := r.Stats()
	log.Info("OpenSeeFace receiver closed", "packets", s.Packets, "accepted", s.Accepted,
		"bad_size", s.BadSize, "wrong_face", s.WrongFace)
	return r.sock.Close()
}

// Name identifies the source in logs.
func (r *Receiver) Name() string {
	return "osf-udp:" + r.addr
}
