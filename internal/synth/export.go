package synth

import (
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// symbolFullScale leaves headroom below the 16-bit rails so downstream
// tooling can resample without clipping.
const symbolFullScale = 28000

// ExportWAV writes the decoded symbol stream of buf to a 16-bit mono WAV
// file, one sample per symbol slot. The sample rate is nominal: it only
// tells inspection tools how to scale the time axis, since the real slot
// rate equals the serializer clock.
func ExportWAV(path string, buf *WaveformBuffer, sampleRate int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}

	enc := wav.NewEncoder(file, sampleRate, 16, 1, 1)
	out := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: 1,
			SampleRate:  sampleRate,
		},
		Data:           make([]int, buf.NumSlots()),
		SourceBitDepth: 16,
	}
	for i := range out.Data {
		out.Data[i] = int(buf.Symbol(i)) * symbolFullScale
	}

	if err := enc.Write(out); err != nil {
		enc.Close()
		file.Close()
		return fmt.Errorf("writing WAV data: %w", err)
	}
	if err := enc.Close(); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
