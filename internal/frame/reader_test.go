package frame

import (
	"bytes"
	"encoding/binary"
	"os"
	"testing"
	"time"

	"attendance/internal/config"
	"attendance/internal/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	tempDir, err := os.MkdirTemp("", "frame_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tempDir) })
	return logger.NewLogger(&config.Config{LogDir: tempDir})
}

func encodeFrame(payload []byte) []byte {
	buf := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(buf[:4], uint32(len(payload)))
	copy(buf[4:], payload)
	return buf
}

func TestReader_SingleFrame(t *testing.T) {
	ch := NewChannel()
	r := NewReader(ch, 10*1024*1024, testLogger(t))

	stream := encodeFrame([]byte("jpegdata"))
	if err := r.Run(bytes.NewReader(stream)); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	f, ok := ch.TakeLatest(50 * time.Millisecond)
	if !ok || f == nil {
		t.Fatal("expected one frame")
	}
	if string(f.Data) != "jpegdata" {
		t.Errorf("payload = %q", f.Data)
	}
}

func TestReader_LatestFrameSurvives(t *testing.T) {
	ch := NewChannel()
	r := NewReader(ch, 10*1024*1024, testLogger(t))

	var stream bytes.Buffer
	stream.Write(encodeFrame([]byte("first")))
	stream.Write(encodeFrame([]byte("second")))
	stream.Write(encodeFrame([]byte("third")))

	if err := r.Run(&stream); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	f, _ := ch.TakeLatest(50 * time.Millisecond)
	if f == nil || string(f.Data) != "third" {
		t.Fatalf("expected only the last frame, got %v", f)
	}
}

func TestReader_ProtocolErrors(t *testing.T) {
	tests := []struct {
		name   string
		stream func() []byte
	}{
		{
			name: "zero length frame skipped",
			stream: func() []byte {
				var b bytes.Buffer
				b.Write([]byte{0, 0, 0, 0})
				b.Write(encodeFrame([]byte("good")))
				return b.Bytes()
			},
		},
		{
			name: "oversized frame discarded",
			stream: func() []byte {
				var b bytes.Buffer
				b.Write(encodeFrame(make([]byte, 2048))) // above the 1 KiB test cap
				b.Write(encodeFrame([]byte("good")))
				return b.Bytes()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := NewChannel()
			r := NewReader(ch, 1024, testLogger(t))

			if err := r.Run(bytes.NewReader(tt.stream())); err != nil {
				t.Fatalf("Run returned error: %v", err)
			}

			f, _ := ch.TakeLatest(50 * time.Millisecond)
			if f == nil || string(f.Data) != "good" {
				t.Fatalf("expected the good frame to survive, got %v", f)
			}
		})
	}
}

func TestReader_TruncatedStream(t *testing.T) {
	ch := NewChannel()
	r := NewReader(ch, 1024, testLogger(t))

	stream := encodeFrame([]byte("complete payload"))
	truncated := stream[:len(stream)-4]

	if err := r.Run(bytes.NewReader(truncated)); err != nil {
		t.Fatalf("truncated stream should end cleanly, got: %v", err)
	}

	if f, _ := ch.TakeLatest(20 * time.Millisecond); f != nil {
		t.Errorf("truncated frame must not be delivered, got %q", f.Data)
	}
}

func TestReader_EmptyStream(t *testing.T) {
	ch := NewChannel()
	r := NewReader(ch, 1024, testLogger(t))

	if err := r.Run(bytes.NewReader(nil)); err != nil {
		t.Fatalf("empty stream should end cleanly, got: %v", err)
	}
}
