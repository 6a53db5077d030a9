package osf

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/teslashibe/go-avatar/internal/log"
	"github.com/teslashibe/go-avatar/pkg/landmark"
)

// PcapConfig configures a PcapReplay.
type PcapConfig struct {
	Path string

	// Port keeps only UDP packets sent to this port. Zero keeps every UDP packet.
	Port int

	// Realtime sleeps between packets to reproduce the capture timing.
	Realtime bool

	// Speed scales realtime replay (2.0 = twice as fast). Zero means 1.0.
	Speed float64

	// PointOrder is the sender's 2D point layout. Zero is PointsXY.
	PointOrder PointOrder
}

type packetReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// PcapReplay is a landmark.Provider reading OpenSeeFace packets from a pcap
// or pcapng capture. It returns io.EOF at the end of the file.
type PcapReplay struct {
	cfg    PcapConfig
	file   *os.File
	reader packetReader

	lastCapture time.Time
	lastEmit    time.Time
	packets     int
}

// OpenPcap opens a capture file.
func OpenPcap(cfg PcapConfig) (*PcapReplay, error) {
	f, err := os.Open(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("osf: open capture %s: %w", cfg.Path, err)
	}

	reader, err := newPacketReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("osf: read capture %s: %w", cfg.Path, err)
	}

	if cfg.Speed <= 0 {
		cfg.Speed = 1
	}
	log.Info("replaying OpenSeeFace capture", "path", cfg.Path, "port", cfg.Port,
		"realtime", cfg.Realtime, "speed", cfg.Speed)

	return &PcapReplay{cfg: cfg, file: f, reader: reader}, nil
}

// newPacketReader accepts classic pcap and pcapng.
func newPacketReader(f *os.File) (packetReader, error) {
	if r, err := pcapgo.NewReader(bufio.NewReader(f)); err == nil {
		return r, nil
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return pcapgo.NewNgReader(bufio.NewReader(f), pcapgo.DefaultNgReaderOptions)
}

// Next returns landmarks from the next matching packet.
func (p *PcapReplay) Next(ctx context.Context) (landmark.Set, error) {
	for {
		if err := ctx.Err(); err != nil {
			return landmark.Set{}, err
		}

		data, ci, err := p.reader.ReadPacketData()
		if errors.Is(err, io.EOF) {
			log.Info("capture replay complete", "path", p.cfg.Path, "packets", p.packets)
			return landmark.Set{}, io.EOF
		}
		if err != nil {
			return landmark.Set{}, fmt.Errorf("osf: read capture %s: %w", p.cfg.Path, err)
		}

		payload, ok := p.udpPayload(data)
		if !ok {
			continue
		}
		p.packets++

		if p.cfg.Realtime {
			if err := p.pace(ctx, ci.Timestamp); err != nil {
				return landmark.Set{}, err
			}
		}

		return p.cfg.PointOrder.Parse(payload)
	}
}

// udpPayload extracts the UDP payload of a packet addressed to the
// configured port.
func (p *PcapReplay) udpPayload(data []byte) ([]byte, bool) {
	packet := gopacket.NewPacket(data, p.reader.LinkType(), gopacket.Default)

	udp, ok := packet.Layer(layers.LayerTypeUDP).(*layers.UDP)
	if !ok {
		return nil, false
	}
	if p.cfg.Port != 0 && int(udp.DstPort) != p.cfg.Port {
		return nil, false
	}
	return udp.Payload, len(udp.Payload) > 0
}

// pace waits until the capture gap since the previous packet has elapsed.
func (p *PcapReplay) pace(ctx context.Context, captured time.Time) error {
	defer func() {
		p.lastCapture = captured
		p.lastEmit = time.Now()
	}()

	if p.lastCapture.IsZero() {
		return nil
	}
	gap := time.Duration(float64(captured.Sub(p.lastCapture)) / p.cfg.Speed)
	wait := gap - time.Since(p.lastEmit)
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Close closes the capture file.
func (p *PcapReplay) Close() error {
	return p.file.Close()
}

// Name identifies the source in logs.
func (p *PcapReplay) Name() string {
	return "osf-pcap:" + p.cfg.Path
}
