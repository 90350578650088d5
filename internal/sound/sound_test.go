package sound

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

// =============================================================================
// ResolveSound
// =============================================================================

func TestResolveSound(t *testing.T) {
	dir := t.TempDir()
	installed := filepath.Join(dir, "missing", "alarm.wav")
	local := writeFile(t, dir, "alarm.wav", []byte("x"))

	tests := []struct {
		name  string
		paths []string
		want  string
	}{
		{"first existing wins", []string{local, installed}, local},
		{"skips missing", []string{installed, local}, local},
		{"last as fallback when none exist", []string{installed, filepath.Join(dir, "nope.wav")}, filepath.Join(dir, "nope.wav")},
		{"empty", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveSound(tt.paths))
		})
	}
}

// =============================================================================
// New
// =============================================================================

func TestNew(t *testing.T) {
	paths := []string{DefaultSoundPath, FallbackSoundPath}

	p, err := New("", "", paths)
	require.NoError(t, err)
	assert.IsType(t, &ExecPlayer{}, p)

	p, err = New(BackendBuiltin, "", paths)
	require.NoError(t, err)
	assert.IsType(t, &BeepPlayer{}, p)

	p, err = New(BackendNone, "", paths)
	require.NoError(t, err)
	assert.Nil(t, p)

	_, err = New("pulse", "", paths)
	assert.ErrorIs(t, err, ErrUnknownBackend)

	_, err = New(BackendExec, "", nil)
	assert.ErrorIs(t, err, ErrNoSound)
}

// =============================================================================
// ExecPlayer
// =============================================================================

type recordedRun struct {
	name string
	args []string
}

func TestExecPlayer_PlaysResolvedPath(t *testing.T) {
	dir := t.TempDir()
	local := writeFile(t, dir, "alarm.wav", []byte("x"))

	var mu sync.Mutex
	var runs []recordedRun

	p := NewExecPlayer("", filepath.Join(dir, "installed.wav"), local)
	p.run = func(name string, args ...string) error {
		mu.Lock()
		defer mu.Unlock()
		runs = append(runs, recordedRun{name: name, args: args})
		return nil
	}

	p.Play()
	p.Wait()

	require.Len(t, runs, 1)
	assert.Equal(t, DefaultPlayer, runs[0].name)
	assert.Equal(t, []string{local}, runs[0].args)
}

func TestExecPlayer_PlayDoesNotBlock(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})

	p := NewExecPlayer("paplay", "alarm.wav")
	p.run = func(name string, args ...string) error {
		close(started)
		<-release
		return nil
	}

	p.Play()
	<-started
	close(release)
	p.Wait()
}

func TestExecPlayer_FailureIsSwallowed(t *testing.T) {
	p := NewExecPlayer("aplay", "alarm.wav")
	p.run = func(name string, args ...string) error {
		return errors.New("exit status 1")
	}

	p.Play()
	p.Wait()
}

func TestExecPlayer_RealCommandFailure(t *testing.T) {
	p := NewExecPlayer(filepath.Join(t.TempDir(), "no-such-player"), "alarm.wav")
	p.Play()
	p.Wait()
}

// =============================================================================
// CheckPlayer
// =============================================================================

func TestCheckPlayer_Missing(t *testing.T) {
	status := CheckPlayer("gptimer-nonexistent-player", []string{filepath.Join(t.TempDir(), "a.wav")})

	assert.False(t, status.Available)
	assert.Empty(t, status.Path)
	assert.False(t, status.SoundFound)
}

func TestCheckPlayer_AbsolutePath(t *testing.T) {
	dir := t.TempDir()
	bin := writeFile(t, dir, "player", []byte("#!/bin/sh\n"))
	sound := writeFile(t, dir, "alarm.wav", []byte("x"))

	status := CheckPlayer(bin, []string{sound})

	assert.True(t, status.Available)
	assert.Equal(t, bin, status.Path)
	assert.Equal(t, sound, status.Sound)
	assert.True(t, status.SoundFound)
}

// =============================================================================
// BeepPlayer decoding
// =============================================================================

// pcmWAV builds a mono 16-bit PCM file with n silent frames.
func pcmWAV(rate uint32, n int) []byte {
	const channels, bits = 1, 16
	dataLen := uint32(n * channels * bits / 8)

	var b bytes.Buffer
	b.WriteString("RIFF")
	binary.Write(&b, binary.LittleEndian, 36+dataLen)
	b.WriteString("WAVE")
	b.WriteString("fmt ")
	binary.Write(&b, binary.LittleEndian, uint32(16))
	binary.Write(&b, binary.LittleEndian, uint16(1))
	binary.Write(&b, binary.LittleEndian, uint16(channels))
	binary.Write(&b, binary.LittleEndian, rate)
	binary.Write(&b, binary.LittleEndian, rate*channels*bits/8)
	binary.Write(&b, binary.LittleEndian, uint16(channels*bits/8))
	binary.Write(&b, binary.LittleEndian, uint16(bits))
	b.WriteString("data")
	binary.Write(&b, binary.LittleEndian, dataLen)
	b.Write(make([]byte, dataLen))
	return b.Bytes()
}

func TestDecodeFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "alarm.wav", pcmWAV(8000, 800))

	buffer, format, err := decodeFile(path)
	require.NoError(t, err)
	assert.Equal(t, 8000, int(format.SampleRate))
	assert.Equal(t, 1, format.NumChannels)
	assert.Equal(t, 800, buffer.Len())
}

func TestDecodeFile_Errors(t *testing.T) {
	dir := t.TempDir()

	_, _, err := decodeFile(filepath.Join(dir, "missing.wav"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	garbage := writeFile(t, dir, "garbage.wav", []byte("not a wav file at all, not even close"))
	_, _, err = decodeFile(garbage)
	assert.Error(t, err)
}

func TestBeepPlayer_LoadFailureIsSwallowed(t *testing.T) {
	p := NewBeepPlayer(filepath.Join(t.TempDir(), "missing.wav"))
	assert.Error(t, p.load())
}
