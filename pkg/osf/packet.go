// Package osf reads face tracking packets sent by OpenSeeFace over UDP or
// recorded in pcap captures.
package osf

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/teslashibe/go-avatar/pkg/landmark"
)

const (
	// NumPoints3D is the number of 3D model points in a packet.
	NumPoints3D = 70

	// NumFeatures is the number of derived feature values in a packet.
	NumFeatures = 14

	// TrackedFaceID is the only face id accepted by the receiver.
	TrackedFaceID = 0
)

var (
	// ErrPacketSize is returned when a datagram is not exactly PacketSize bytes.
	ErrPacketSize = errors.New("osf: unexpected packet size")

	// ErrFaceID is returned for a packet describing a face other than TrackedFaceID.
	ErrFaceID = errors.New("osf: packet for untracked face")
)

// Vec2 is an image-space point as sent on the wire.
type Vec2 struct{ X, Y float32 }

// Vec3 is a model-space point.
type Vec3 struct{ X, Y, Z float32 }

// Packet is one OpenSeeFace tracking record.
type Packet struct {
	Timestamp     float64
	ID            int32
	Width, Height float32
	EyeBlinkRight float32
	EyeBlinkLeft  float32
	Success       uint8
	PnPError      float32
	Quaternion    [4]float32
	Euler         [3]float32
	Translation   [3]float32
	Confidence    [landmark.Count]float32
	Points        [landmark.Count]Vec2
	Points3D      [NumPoints3D]Vec3
	Features      [NumFeatures]float32
}

// byteOrder is host order; sender and receiver share a machine or an
// architecture.
var byteOrder = binary.NativeEndian

// field is one entry of the wire schema.
type field struct {
	name   string
	size   int
	encode func(p *Packet, b []byte)
	decode func(p *Packet, b []byte)
}

func float64Field(name string, v func(*Packet) *float64) field {
	return field{name: name, size: 8,
		encode: func(p *Packet, b []byte) { byteOrder.PutUint64(b, math.Float64bits(*v(p))) },
		decode: func(p *Packet, b []byte) { *v(p) = math.Float64frombits(byteOrder.Uint64(b)) },
	}
}

func int32Field(name string, v func(*Packet) *int32) field {
	return field{name: name, size: 4,
		encode: func(p *Packet, b []byte) { byteOrder.PutUint32(b, uint32(*v(p))) },
		decode: func(p *Packet, b []byte) { *v(p) = int32(byteOrder.Uint32(b)) },
	}
}

func uint8Field(name string, v func(*Packet) *uint8) field {
	return field{name: name, size: 1,
		encode: func(p *Packet, b []byte) { b[0] = *v(p) },
		decode: func(p *Packet, b []byte) { *v(p) = b[0] },
	}
}

// float32Field covers a run of consecutive float32 values.
func float32Field(name string, n int, v func(*Packet) []float32) field {
	return field{name: name, size: 4 * n,
		encode: func(p *Packet, b []byte) {
			for i, f := range v(p) {
				byteOrder.PutUint32(b[4*i:], math.Float32bits(f))
			}
		},
		decode: func(p *Packet, b []byte) {
			dst := v(p)
			for i := range dst {
				dst[i] = math.Float32frombits(byteOrder.Uint32(b[4*i:]))
			}
		},
	}
}

func float32Scalar(name string, v func(*Packet) *float32) field {
	return field{name: name, size: 4,
		encode: func(p *Packet, b []byte) { byteOrder.PutUint32(b, math.Float32bits(*v(p))) },
		decode: func(p *Packet, b []byte) { *v(p) = math.Float32frombits(byteOrder.Uint32(b)) },
	}
}

// schema lists the packet fields in wire order.
var schema = []field{
	float64Field("timestamp", func(p *Packet) *float64 { return &p.Timestamp }),
	int32Field("id", func(p *Packet) *int32 { return &p.ID }),
	float32Scalar("width", func(p *Packet) *float32 { return &p.Width }),
	float32Scalar("height", func(p *Packet) *float32 { return &p.Height }),
	float32Scalar("eye_blink_right", func(p *Packet) *float32 { return &p.EyeBlinkRight }),
	float32Scalar("eye_blink_left", func(p *Packet) *float32 { return &p.EyeBlinkLeft }),
	uint8Field("success", func(p *Packet) *uint8 { return &p.Success }),
	float32Scalar("pnp_error", func(p *Packet) *float32 { return &p.PnPError }),
	float32Field("quaternion", 4, func(p *Packet) []float32 { return p.Quaternion[:] }),
	float32Field("euler", 3, func(p *Packet) []float32 { return p.Euler[:] }),
	float32Field("translation", 3, func(p *Packet) []float32 { return p.Translation[:] }),
	float32Field("confidence", landmark.Count, func(p *Packet) []float32 { return p.Confidence[:] }),
	{
		name: "points", size: 8 * landmark.Count,
		encode: func(p *Packet, b []byte) {
			for i, pt := range p.Points {
				byteOrder.PutUint32(b[8*i:], math.Float32bits(pt.X))
				byteOrder.PutUint32(b[8*i+4:], math.Float32bits(pt.Y))
			}
		},
		decode: func(p *Packet, b []byte) {
			for i := range p.Points {
				p.Points[i] = Vec2{
					X: math.Float32frombits(byteOrder.Uint32(b[8*i:])),
					Y: math.Float32frombits(byteOrder.Uint32(b[8*i+4:])),
				}
			}
		},
	},
	{
		name: "points_3d", size: 12 * NumPoints3D,
		encode: func(p *Packet, b []byte) {
			for i, pt := range p.Points3D {
				byteOrder.PutUint32(b[12*i:], math.Float32bits(pt.X))
				byteOrder.PutUint32(b[12*i+4:], math.Float32bits(pt.Y))
				byteOrder.PutUint32(b[12*i+8:], math.Float32bits(pt.Z))
			}
		},
		decode: func(p *Packet, b []byte) {
			for i := range p.Points3D {
				p.Points3D[i] = Vec3{
					X: math.Float32frombits(byteOrder.Uint32(b[12*i:])),
					Y: math.Float32frombits(byteOrder.Uint32(b[12*i+4:])),
					Z: math.Float32frombits(byteOrder.Uint32(b[12*i+8:])),
				}
			}
		},
	},
	float32Field("features", NumFeatures, func(p *Packet) []float32 { return p.Features[:] }),
}

// PacketSize is the exact length of an encoded packet (1785 bytes).
var PacketSize = func() int {
	n := 0
	for _, f := range schema {
		n += f.size
	}
	return n
}()

// Decode parses one datagram. It fails with ErrPacketSize unless b is
// exactly PacketSize bytes long.
func Decode(b []byte) (Packet, error) {
	var p Packet
	if len(b) != PacketSize {
		return p, fmt.Errorf("%w: got %d bytes, want %d", ErrPacketSize, len(b), PacketSize)
	}
	off := 0
	for _, f := range schema {
		f.decode(&p, b[off:off+f.size])
		off += f.size
	}
	return p, nil
}

// Encode serializes p into a new PacketSize byte slice.
func Encode(p *Packet) []byte {
	b := make([]byte, PacketSize)
	off := 0
	for _, f := range schema {
		f.encode(p, b[off:off+f.size])
		off += f.size
	}
	return b
}

// PointOrder is the component order of each 2D point on the wire.
type PointOrder int

const (
	// PointsXY stores x then y.
	PointsXY PointOrder = iota
	// PointsYX stores y then x, as stock OpenSeeFace senders do.
	PointsYX
)

// ParsePointOrder accepts "xy" or "yx".
func ParsePointOrder(s string) (PointOrder, error) {
	switch s {
	case "", "xy":
		return PointsXY, nil
	case "yx":
		return PointsYX, nil
	}
	return PointsXY, fmt.Errorf("osf: unknown point order %q (want xy or yx)", s)
}

func (o PointOrder) String() string {
	if o == PointsYX {
		return "yx"
	}
	return "xy"
}

// Landmarks returns the 2D points as a landmark set.
func (p *Packet) Landmarks() landmark.Set {
	return p.LandmarksIn(PointsXY)
}

// LandmarksIn returns the 2D points, swapping components when the sender
// used order PointsYX.
func (p *Packet) LandmarksIn(order PointOrder) landmark.Set {
	var s landmark.Set
	for i, pt := range p.Points {
		if order == PointsYX {
			s[i] = landmark.Point{X: float64(pt.Y), Y: float64(pt.X)}
			continue
		}
		s[i] = landmark.Point{X: float64(pt.X), Y: float64(pt.Y)}
	}
	return s
}

// SetLandmarks stores s into the 2D points, rounding to float32.
func (p *Packet) SetLandmarks(s *landmark.Set) {
	for i, pt := range s {
		p.Points[i] = Vec2{X: float32(pt.X), Y: float32(pt.Y)}
	}
}

// ParseLandmarks decodes b and returns its landmarks if it describes the
// tracked face. Rejected packets yield an error wrapping landmark.ErrNoUpdate.
func ParseLandmarks(b []byte) (landmark.Set, error) {
	return PointsXY.Parse(b)
}

// Parse is ParseLandmarks for a sender using point order o.
func (o PointOrder) Parse(b []byte) (landmark.Set, error) {
	p, err := Decode(b)
	if err != nil {
		return landmark.Set{}, fmt.Errorf("%w: %w", landmark.ErrNoUpdate, err)
	}
	if p.ID != TrackedFaceID {
		return landmark.Set{}, fmt.Errorf("%w: %w: id %d", landmark.ErrNoUpdate, ErrFaceID, p.ID)
	}
	return p.LandmarksIn(o), nil
}
