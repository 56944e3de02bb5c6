package synth

// Each 32-bit word packs 16 symbol slots of 2 bits. The two bits of a slot
// drive the two output pins of the differential pair:
//
//	+  ->  bit0=1 bit1=0
//	-  ->  bit0=0 bit1=1
//	0  ->  both low or both high (electrically a differential zero either
//	       way; the generator alternates between the two encodings to keep
//	       the long-run duty of the pins balanced)
const (
	BitsPerWord  = 32
	SlotsPerWord = 16
)

// Symbol is one decoded tri-level output slot: +1, 0 or -1.
type Symbol int8

const (
	SymbolPlus  Symbol = 1
	SymbolZero  Symbol = 0
	SymbolMinus Symbol = -1
)

// WaveformBuffer is a fixed-capacity sequence of packed symbol words. The
// backing array is allocated once at the maximum supported size; Resize only
// moves the logical length, so no allocation ever happens on the playback
// path or during regeneration.
type WaveformBuffer struct {
	words []uint32
	n     int
}

// NewWaveformBuffer allocates a buffer with the given fixed word capacity.
// The logical length starts at the full capacity.
func NewWaveformBuffer(capacity int) *WaveformBuffer {
	return &WaveformBuffer{
		words: make([]uint32, capacity),
		n:     capacity,
	}
}

// Resize sets the logical length in words, clamped to [0, capacity].
func (b *WaveformBuffer) Resize(n int) {
	if n < 0 {
		n = 0
	}
	if n > len(b.words) {
		n = len(b.words)
	}
	b.n = n
}

// Len returns the logical length in words.
func (b *WaveformBuffer) Len() int { return b.n }

// Capacity returns the fixed backing capacity in words.
func (b *WaveformBuffer) Capacity() int { return len(b.words) }

// Words returns the logical window of packed words. The transfer hardware
// streams exactly this region; the slice aliases the backing array, so it
// stays valid across regenerations.
func (b *WaveformBuffer) Words() []uint32 { return b.words[:b.n] }

// Clear zeroes the entire backing array, making every slot a differential
// zero in its both-low encoding.
func (b *WaveformBuffer) Clear() {
	for i := range b.words {
		b.words[i] = 0
	}
}

// NumSlots returns the number of symbol slots in the logical window.
func (b *WaveformBuffer) NumSlots() int { return b.n * SlotsPerWord }

// Symbol decodes slot i of the packed stream.
func (b *WaveformBuffer) Symbol(i int) Symbol {
	word := b.words[i/SlotsPerWord]
	pair := (word >> (2 * (uint(i) % SlotsPerWord))) & 3
	switch pair {
	case 1:
		return SymbolPlus
	case 2:
		return SymbolMinus
	default: // 00 and 11 are the two zero encodings
		return SymbolZero
	}
}

// setWord stores a fully packed word at index i within the logical window.
func (b *WaveformBuffer) setWord(i int, w uint32) {
	b.words[i] = w
}

// ZeroEncodingHigh reports whether slot i is a zero symbol stored in its
// both-high encoding. Used by duty-balance checks.
func (b *WaveformBuffer) ZeroEncodingHigh(i int) bool {
	word := b.words[i/SlotsPerWord]
	pair := (word >> (2 * (uint(i) % SlotsPerWord))) & 3
	return pair == 3
}
