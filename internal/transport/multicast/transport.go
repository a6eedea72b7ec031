// Package multicast is the UDP multicast transport: one socket bound to
// the group port and joined to the group, used for both sending and
// receiving bus messages.
package multicast

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/ipv4"

	"github.com/vovakirdan/conclave/internal/metrics"
	"github.com/vovakirdan/conclave/internal/proto"
)

const (
	DefaultGroup                = "239.255.255.250:8080"
	DefaultBufferSize           = 65536
	DefaultCompressionThreshold = 1024

	// maxDatagram is the largest UDP payload over IPv4.
	maxDatagram = 65507
)

// aLongTimeAgo is a read deadline that fails pending reads immediately.
var aLongTimeAgo = time.Unix(1, 0)

// Config describes the multicast endpoint.
type Config struct {
	Group                string
	Interface            string
	BufferSize           int
	CompressionThreshold int
	// PrefixHeuristic enables detection of compressed content from peers
	// that do not send the explicit compression field.
	PrefixHeuristic bool
}

func (c Config) withDefaults() Config {
	if c.Group == "" {
		c.Group = DefaultGroup
	}
	if c.BufferSize <= 0 {
		c.BufferSize = DefaultBufferSize
	}
	if c.CompressionThreshold < 0 {
		c.CompressionThreshold = DefaultCompressionThreshold
	}
	return c
}

// Transport sends and receives bus messages on a multicast group. Send and
// Receive may be called concurrently.
type Transport struct {
	cfg       Config
	group     netip.AddrPort
	groupAddr *net.UDPAddr
	ifi       *net.Interface

	conn *net.UDPConn
	pc   *ipv4.PacketConn

	logger  *zerolog.Logger
	metrics *metrics.Metrics

	recvMu sync.Mutex
	buf    []byte

	closeOnce sync.Once
	closeErr  error
}

// Open validates cfg, binds the group port and joins the group.
func Open(ctx context.Context, cfg Config, logger *zerolog.Logger, m *metrics.Metrics) (*Transport, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	cfg = cfg.withDefaults()

	group, err := ParseGroup(cfg.Group)
	if err != nil {
		return nil, err
	}
	ifi, err := resolveInterface(cfg.Interface)
	if err != nil {
		return nil, wrapErr(ErrJoin, err)
	}

	lc := net.ListenConfig{Control: reuseControl(logger)}
	pconn, err := lc.ListenPacket(ctx, "udp4", fmt.Sprintf("0.0.0.0:%d", group.Port()))
	if err != nil {
		return nil, wrapErr(ErrSocket, err)
	}
	conn, ok := pconn.(*net.UDPConn)
	if !ok {
		_ = pconn.Close()
		return nil, wrapErr(ErrSocket, fmt.Errorf("unexpected conn type %T", pconn))
	}

	groupAddr := net.UDPAddrFromAddrPort(group)
	pc := ipv4.NewPacketConn(conn)
	if err := pc.JoinGroup(ifi, groupAddr); err != nil {
		_ = conn.Close()
		return nil, wrapErr(ErrJoin, err)
	}
	if ifi != nil {
		if err := pc.SetMulticastInterface(ifi); err != nil {
			_ = conn.Close()
			return nil, wrapErr(ErrJoin, fmt.Errorf("set outbound interface: %w", err))
		}
	}
	if err := pc.SetMulticastLoopback(true); err != nil {
		logger.Warn().Err(err).Msg("enable multicast loopback")
	}

	t := &Transport{
		cfg:       cfg,
		group:     group,
		groupAddr: groupAddr,
		ifi:       ifi,
		conn:      conn,
		pc:        pc,
		logger:    logger,
		metrics:   m,
		buf:       make([]byte, cfg.BufferSize),
	}

	ev := logger.Info().
		Str("group", group.String()).
		Str("local", conn.LocalAddr().String()).
		Int("buffer", cfg.BufferSize).
		Int("compression_threshold", cfg.CompressionThreshold)
	if ifi != nil {
		ev = ev.Str("interface", ifi.Name)
	}
	ev.Msg("joined multicast group")

	return t, nil
}

// Group returns the joined group address.
func (t *Transport) Group() netip.AddrPort {
	return t.group
}

// LocalAddr returns the bound socket address.
func (t *Transport) LocalAddr() net.Addr {
	return t.conn.LocalAddr()
}

// Send broadcasts m to the group as a single datagram. There is no retry.
func (t *Transport) Send(ctx context.Context, m proto.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	env, err := proto.ToEnvelope(m, t.cfg.CompressionThreshold)
	if err != nil {
		return wrapErr(ErrSend, fmt.Errorf("build envelope: %w", err))
	}
	data := proto.EnvelopeToWire(env)
	if len(data) > maxDatagram {
		return wrapErr(ErrSend, fmt.Errorf("datagram of %d bytes exceeds %d", len(data), maxDatagram))
	}

	var deadline time.Time
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}
	if err := t.conn.SetWriteDeadline(deadline); err != nil {
		return wrapErr(ErrSend, err)
	}

	n, err := t.conn.WriteToUDPAddrPort(data, t.group)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return wrapErr(ErrSend, err)
	}

	t.metrics.DatagramSent(n, env.Compressed)
	t.logger.Debug().
		Str("sender", m.SenderID).
		Int("bytes", n).
		Bool("compressed", env.Compressed).
		Msg("datagram sent")
	return nil
}

// Receive blocks for exactly one datagram and decodes it. Malformed or
// foreign datagrams fail with ErrDecode; callers skip those and call again.
func (t *Transport) Receive(ctx context.Context) (proto.Message, error) {
	if err := ctx.Err(); err != nil {
		return proto.Message{}, err
	}

	t.recvMu.Lock()
	defer t.recvMu.Unlock()

	if err := t.conn.SetReadDeadline(time.Time{}); err != nil {
		return proto.Message{}, wrapErr(ErrReceive, err)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = t.conn.SetReadDeadline(aLongTimeAgo)
	})
	defer stop()

	n, src, err := t.conn.ReadFromUDPAddrPort(t.buf)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return proto.Message{}, ctxErr
		}
		return proto.Message{}, wrapErr(ErrReceive, err)
	}
	t.metrics.DatagramReceived(n)

	msg, err := proto.Unmarshal(t.buf[:n], t.cfg.PrefixHeuristic)
	if err != nil {
		t.metrics.DecodeError()
		return proto.Message{}, wrapErr(ErrDecode, fmt.Errorf("datagram from %s: %w", src, err))
	}
	if msg.SenderID == "" {
		t.metrics.DecodeError()
		return proto.Message{}, wrapErr(ErrDecode, fmt.Errorf("datagram from %s: empty sender id", src))
	}

	t.logger.Debug().
		Str("from", src.String()).
		Str("sender", msg.SenderID).
		Int("bytes", n).
		Msg("datagram received")
	return msg, nil
}

// Close leaves the group and closes the socket. Repeated calls return the
// first result.
func (t *Transport) Close() error {
	t.closeOnce.Do(func() {
		if err := t.pc.LeaveGroup(t.ifi, t.groupAddr); err != nil && !errors.Is(err, net.ErrClosed) {
			t.logger.Debug().Err(err).Msg("leave multicast group")
		}
		t.closeErr = t.conn.Close()
		t.logger.Info().Str("group", t.group.String()).Msg("left multicast group")
	})
	return t.closeErr
}
