package audio_test

import (
	"context"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/stomplog/stomplog/pkg/audio"
)

// writeWAV encodes int16 PCM data to a temp WAV file and returns its path.
func writeWAV(t *testing.T, data []int, sampleRate, channels int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	buf := &goaudio.IntBuffer{
		Data:           data,
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close encoder: %v", err)
	}
	return path
}

func TestOpenWAV_MissingFile(t *testing.T) {
	if _, err := audio.OpenWAV(filepath.Join(t.TempDir(), "nope.wav")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestOpenWAV_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bogus.wav")
	if err := os.WriteFile(path, []byte("not a wav"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := audio.OpenWAV(path); err == nil {
		t.Fatal("expected error for invalid file")
	}
}

func TestWAVSource_ReplaysInChunks(t *testing.T) {
	// 1000 frames, 300-frame buffers: 300+300+300+100.
	data := make([]int, 1000)
	for i := range data {
		data[i] = int(16000 * math.Sin(2*math.Pi*float64(i)/100))
	}
	path := writeWAV(t, data, 44100, 1)

	src, err := audio.OpenWAV(path, audio.WithBufferFrames(300))
	if err != nil {
		t.Fatalf("OpenWAV: %v", err)
	}
	defer src.Close()

	if got := src.SampleRate(); got != 44100 {
		t.Errorf("SampleRate = %v, want 44100", got)
	}

	ctx := context.Background()
	var sizes []int
	var total int
	for {
		buf, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if buf.SampleRate != 44100 {
			t.Errorf("buffer sample rate = %v, want 44100", buf.SampleRate)
		}
		wantTS := float64(total) / 44100
		if math.Abs(buf.Timestamp-wantTS) > 1e-9 {
			t.Errorf("timestamp = %v, want %v", buf.Timestamp, wantTS)
		}
		sizes = append(sizes, buf.FrameCount())
		total += buf.FrameCount()
	}

	if total != 1000 {
		t.Errorf("total frames = %d, want 1000", total)
	}
	wantSizes := []int{300, 300, 300, 100}
	if len(sizes) != len(wantSizes) {
		t.Fatalf("buffer count = %d, want %d", len(sizes), len(wantSizes))
	}
	for i, want := range wantSizes {
		if sizes[i] != want {
			t.Errorf("buffer %d size = %d, want %d", i, sizes[i], want)
		}
	}
}

func TestWAVSource_NormalizesSamples(t *testing.T) {
	// Half of int16 full scale should decode to ~0.5.
	data := []int{16384, 16384, 16384, 16384}
	path := writeWAV(t, data, 44100, 1)

	src, err := audio.OpenWAV(path)
	if err != nil {
		t.Fatalf("OpenWAV: %v", err)
	}
	defer src.Close()

	buf, err := src.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	for i, s := range buf.Samples {
		if math.Abs(float64(s)-0.5) > 0.001 {
			t.Fatalf("sample %d = %v, want ~0.5", i, s)
		}
	}
}

func TestWAVSource_TakesChannelZero(t *testing.T) {
	// Stereo file: channel 0 constant positive, channel 1 constant negative.
	data := make([]int, 200)
	for i := 0; i < len(data); i += 2 {
		data[i] = 8192
		data[i+1] = -8192
	}
	path := writeWAV(t, data, 48000, 2)

	src, err := audio.OpenWAV(path)
	if err != nil {
		t.Fatalf("OpenWAV: %v", err)
	}
	defer src.Close()

	buf, err := src.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if buf.FrameCount() != 100 {
		t.Errorf("frame count = %d, want 100", buf.FrameCount())
	}
	for i, s := range buf.Samples {
		if s <= 0 {
			t.Fatalf("sample %d = %v, want positive (channel 0)", i, s)
		}
	}
}

func TestWAVSource_ContextCancelled(t *testing.T) {
	path := writeWAV(t, make([]int, 100), 44100, 1)
	src, err := audio.OpenWAV(path)
	if err != nil {
		t.Fatalf("OpenWAV: %v", err)
	}
	defer src.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := src.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Next after cancel = %v, want context.Canceled", err)
	}
}
