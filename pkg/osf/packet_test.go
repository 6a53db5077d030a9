package osf

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-avatar/pkg/landmark"
	"github.com/teslashibe/go-avatar/pkg/landmark/landmarktest"
)

func testPacket() *Packet {
	p := &Packet{
		Timestamp:     1712345678.25,
		Width:         640,
		Height:        480,
		EyeBlinkRight: 0.9,
		EyeBlinkLeft:  0.8,
		Success:       1,
		PnPError:      0.02,
		Quaternion:    [4]float32{0, 0, 0, 1},
		Euler:         [3]float32{1, 2, 3},
		Translation:   [3]float32{0.1, 0.2, 5},
	}
	for i := range p.Confidence {
		p.Confidence[i] = 0.5 + float32(i)/1000
	}
	for i := range p.Points3D {
		p.Points3D[i] = Vec3{X: float32(i), Y: -float32(i), Z: 0.5}
	}
	for i := range p.Features {
		p.Features[i] = float32(i) / 10
	}
	face := landmarktest.Translate(landmarktest.Frontal(), 320.3, 240.7)
	p.SetLandmarks(&face)
	return p
}

func TestPacketSize(t *testing.T) {
	// 73 bytes of header, 68 confidences, 68 points, 70 3D points, 14 features.
	assert.Equal(t, 73+4*68+8*68+12*70+4*14, PacketSize)
	assert.Equal(t, 1785, PacketSize)
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	p := testPacket()

	b := Encode(p)
	require.Len(t, b, PacketSize)

	got, err := Decode(b)
	require.NoError(t, err)
	if diff := cmp.Diff(*p, got); diff != "" {
		t.Errorf("Decode(Encode()) mismatch (-want +got):\n%s", diff)
	}
}

func TestLandmarks_Float32Precision(t *testing.T) {
	want := landmarktest.Translate(landmarktest.Frontal(), 320.3, 240.7)
	var p Packet
	p.SetLandmarks(&want)

	set, err := ParseLandmarks(Encode(&p))
	require.NoError(t, err)
	for i := range want {
		assert.InDelta(t, want[i].X, set[i].X, 1e-4, "x of point %d", i)
		assert.InDelta(t, want[i].Y, set[i].Y, 1e-4, "y of point %d", i)
	}
}

func TestEncode_FieldOffsets(t *testing.T) {
	var p Packet
	p.ID = 7
	p.Success = 0xAB
	p.Points[0] = Vec2{X: 1.5, Y: -2}

	b := Encode(&p)
	assert.Equal(t, uint32(7), byteOrder.Uint32(b[8:]))
	assert.Equal(t, byte(0xAB), b[28])

	pointsOffset := 73 + 4*landmark.Count
	got, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, float32(1.5), got.Points[0].X)
	assert.Equal(t, uint32(0x3FC00000), byteOrder.Uint32(b[pointsOffset:]), "1.5 as float32")
}

func TestDecode_RejectsWrongSize(t *testing.T) {
	b := Encode(testPacket())

	for _, n := range []int{0, 1, PacketSize - 1, PacketSize + 1} {
		buf := make([]byte, n)
		copy(buf, b)
		_, err := Decode(buf)
		assert.ErrorIs(t, err, ErrPacketSize, "size %d", n)
	}
}

func TestParseLandmarks(t *testing.T) {
	good := testPacket()

	t.Run("tracked face", func(t *testing.T) {
		set, err := ParseLandmarks(Encode(good))
		require.NoError(t, err)
		assert.Equal(t, good.Landmarks(), set)
	})

	t.Run("other face dropped", func(t *testing.T) {
		other := *good
		other.ID = 1
		_, err := ParseLandmarks(Encode(&other))
		assert.ErrorIs(t, err, landmark.ErrNoUpdate)
		assert.ErrorIs(t, err, ErrFaceID)
	})

	t.Run("truncated dropped", func(t *testing.T) {
		b := Encode(good)
		_, err := ParseLandmarks(b[:len(b)-1])
		assert.ErrorIs(t, err, landmark.ErrNoUpdate)
		assert.ErrorIs(t, err, ErrPacketSize)
	})
}

func TestEncode_ScalarFloatOffsets(t *testing.T) {
	p := Packet{Width: 640, Height: 480, EyeBlinkRight: 0.25, EyeBlinkLeft: 0.75, PnPError: 1.5}
	b := Encode(&p)

	assert.Equal(t, math.Float32bits(640), byteOrder.Uint32(b[12:]), "width")
	assert.Equal(t, math.Float32bits(480), byteOrder.Uint32(b[16:]), "height")
	assert.Equal(t, math.Float32bits(0.25), byteOrder.Uint32(b[20:]), "eye_blink_right")
	assert.Equal(t, math.Float32bits(0.75), byteOrder.Uint32(b[24:]), "eye_blink_left")
	assert.Equal(t, math.Float32bits(1.5), byteOrder.Uint32(b[29:]), "pnp_error")

	got, err := Decode(b)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestPointOrder(t *testing.T) {
	var p Packet
	p.Points[0] = Vec2{X: 10, Y: 20}
	b := Encode(&p)

	xy, err := PointsXY.Parse(b)
	require.NoError(t, err)
	assert.Equal(t, landmark.Point{X: 10, Y: 20}, xy[0])

	yx, err := PointsYX.Parse(b)
	require.NoError(t, err)
	assert.Equal(t, landmark.Point{X: 20, Y: 10}, yx[0])

	for s, want := range map[string]PointOrder{"": PointsXY, "xy": PointsXY, "yx": PointsYX} {
		got, err := ParsePointOrder(s)
		require.NoError(t, err, s)
		assert.Equal(t, want, got, s)
	}
	_, err = ParsePointOrder("xyz")
	assert.Error(t, err)
	assert.Equal(t, "yx", PointsYX.String())
}
