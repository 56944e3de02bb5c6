package synth

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"
)

func TestExportWAVRoundTrip(t *testing.T) {
	gen := newTestGenerator(t)
	p := testParams(t, ModeTrinarySigmaDelta, 3.55e6)
	if err := gen.Generate(p); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	buf := gen.Steady()

	path := filepath.Join(t.TempDir(), "steady.wav")
	if err := ExportWAV(path, buf, 48000); err != nil {
		t.Fatalf("ExportWAV: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open exported file: %v", err)
	}
	defer file.Close()

	dec := wav.NewDecoder(file)
	audioBuf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("decode exported file: %v", err)
	}
	if dec.SampleRate != 48000 {
		t.Errorf("sample rate = %d, want 48000", dec.SampleRate)
	}
	if dec.NumChans != 1 {
		t.Errorf("channels = %d, want 1", dec.NumChans)
	}
	if len(audioBuf.Data) != buf.NumSlots() {
		t.Fatalf("decoded %d samples, want %d", len(audioBuf.Data), buf.NumSlots())
	}
	for i := 0; i < buf.NumSlots(); i++ {
		want := int(buf.Symbol(i)) * symbolFullScale
		if audioBuf.Data[i] != want {
			t.Fatalf("sample %d = %d, want %d", i, audioBuf.Data[i], want)
		}
	}
}

func TestExportWAVRejectsBadRate(t *testing.T) {
	gen := newTestGenerator(t)
	p := testParams(t, ModeTrinarySigmaDelta, 3.55e6)
	if err := gen.Generate(p); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	path := filepath.Join(t.TempDir(), "bad.wav")
	if err := ExportWAV(path, gen.Steady(), 0); err == nil {
		t.Error("expected error for zero sample rate")
	}
}
