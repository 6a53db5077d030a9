package tracking

// Signal identifies one of the seven per-frame values that get smoothed.
type Signal int

const (
	SignalFaceX Signal = iota
	SignalMouthForm
	SignalFaceY
	SignalFaceZ
	SignalMouthOpen
	SignalLeftEye
	SignalRightEye

	NumSignals = 7
)

var signalNames = [NumSignals]string{
	"face_x", "mouth_form", "face_y", "face_z", "mouth_open", "left_eye", "right_eye",
}

func (s Signal) String() string {
	if s < 0 || int(s) >= NumSignals {
		return "unknown"
	}
	return signalNames[s]
}

// FilterBuffer keeps the most recent taps samples of one signal.
type FilterBuffer struct {
	values []float64 // ring storage, len == taps
	head   int       // index of the oldest sample
	n      int
}

// NewFilterBuffer creates a buffer holding at most taps samples. Taps below 1
// are treated as 1.
func NewFilterBuffer(taps int) *FilterBuffer {
	if taps < 1 {
		taps = 1
	}
	return &FilterBuffer{values: make([]float64, taps)}
}

// Push appends v, evicting the oldest sample when full.
func (b *FilterBuffer) Push(v float64) {
	taps := len(b.values)
	if b.n < taps {
		b.values[(b.head+b.n)%taps] = v
		b.n++
		return
	}
	b.values[b.head] = v
	b.head = (b.head + 1) % taps
}

// Average returns the arithmetic mean of the buffered samples, or def when
// the buffer is empty. Samples are summed oldest first.
func (b *FilterBuffer) Average(def float64) float64 {
	if b.n == 0 {
		return def
	}
	taps := len(b.values)
	sum := 0.0
	for i := 0; i < b.n; i++ {
		sum += b.values[(b.head+i)%taps]
	}
	return sum / float64(b.n)
}

// Len returns the number of buffered samples.
func (b *FilterBuffer) Len() int { return b.n }

// Taps returns the buffer capacity.
func (b *FilterBuffer) Taps() int { return len(b.values) }

// Values returns the buffered samples, oldest first.
func (b *FilterBuffer) Values() []float64 {
	out := make([]float64, b.n)
	taps := len(b.values)
	for i := range out {
		out[i] = b.values[(b.head+i)%taps]
	}
	return out
}

// FilterBank is the set of moving-average filters, one per Signal. It is not
// safe for concurrent use; the tracking loop owns it.
type FilterBank struct {
	buffers [NumSignals]*FilterBuffer
}

// NewFilterBank creates one buffer per signal with the configured depths.
func NewFilterBank(cfg Config) *FilterBank {
	bank := &FilterBank{}
	for sig, taps := range cfg.Taps() {
		bank.buffers[sig] = NewFilterBuffer(taps)
	}
	return bank
}

// Push records a new sample for sig.
func (fb *FilterBank) Push(sig Signal, v float64) {
	fb.buffers[sig].Push(v)
}

// PushSignals records all seven samples of one frame in computation order.
func (fb *FilterBank) PushSignals(s Signals) {
	fb.Push(SignalFaceX, s.FaceX)
	fb.Push(SignalMouthForm, s.MouthForm)
	fb.Push(SignalFaceY, s.FaceY)
	fb.Push(SignalFaceZ, s.FaceZ)
	fb.Push(SignalMouthOpen, s.MouthOpen)
	fb.Push(SignalLeftEye, s.LeftEye)
	fb.Push(SignalRightEye, s.RightEye)
}

// Average returns the mean of sig's samples, or def if none were pushed.
func (fb *FilterBank) Average(sig Signal, def float64) float64 {
	return fb.buffers[sig].Average(def)
}

// Buffer exposes the buffer for sig.
func (fb *FilterBank) Buffer(sig Signal) *FilterBuffer {
	return fb.buffers[sig]
}
