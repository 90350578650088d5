package sound

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/effects"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/wav"

	"github.com/mescon/gptimer/internal/logger"
)

// BeepPlayer decodes the WAV once and plays it through the sound card
// without an external process.
type BeepPlayer struct {
	paths []string

	once    sync.Once
	buffer  *beep.Buffer
	loadErr error

	// Volume is relative to the recording, in powers of two.
	Volume float64
}

// NewBeepPlayer plays the first existing file of paths.
func NewBeepPlayer(paths ...string) *BeepPlayer {
	return &BeepPlayer{paths: paths}
}

// Play queues the alarm on the speaker. The first call opens the device.
func (p *BeepPlayer) Play() {
	go func() {
		p.once.Do(func() {
			p.loadErr = p.load()
		})
		if p.loadErr != nil {
			logger.Warnf("Failed to play alarm: %v", p.loadErr)
			return
		}
		speaker.Play(&effects.Volume{
			Streamer: p.buffer.Streamer(0, p.buffer.Len()),
			Base:     2,
			Volume:   p.Volume,
		})
	}()
}

func (p *BeepPlayer) load() error {
	buffer, format, err := decodeFile(ResolveSound(p.paths))
	if err != nil {
		return err
	}
	if err := speaker.Init(format.SampleRate, format.SampleRate.N(time.Second/10)); err != nil {
		return fmt.Errorf("init speaker: %w", err)
	}
	p.buffer = buffer
	return nil
}

// decodeFile reads a whole WAV file into memory.
func decodeFile(path string) (*beep.Buffer, beep.Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, err
	}
	defer f.Close()

	streamer, format, err := wav.Decode(f)
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("decode %s: %w", path, err)
	}
	defer streamer.Close()

	buffer := beep.NewBuffer(format)
	buffer.Append(streamer)
	return buffer, format, nil
}
