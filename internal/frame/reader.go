package frame

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"

	"attendance/internal/logger"
)

// Reader decodes the length-prefixed frame stream: each frame is a 4-byte
// big-endian payload length followed by that many bytes of encoded image
// data. Zero-length or oversized frames are protocol errors scoped to that
// frame; the stream stays in sync by discarding the advertised payload.
type Reader struct {
	channel *Channel
	maxSize int
	logger  *logger.Logger
}

func NewReader(channel *Channel, maxSize int, logger *logger.Logger) *Reader {
	return &Reader{
		channel: channel,
		maxSize: maxSize,
		logger:  logger,
	}
}

// Run consumes frames from src until end-of-stream and submits each to the
// channel. A truncated final frame terminates the stream without error, any
// other transport failure is returned.
func (r *Reader) Run(src io.Reader) error {
	br := bufio.NewReaderSize(src, 64*1024)
	var header [4]byte

	for {
		if _, err := io.ReadFull(br, header[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return err
		}

		size := binary.BigEndian.Uint32(header[:])
		if size == 0 {
			r.logger.Warning("Dropping zero-length frame")
			continue
		}
		if int64(size) > int64(r.maxSize) {
			r.logger.Warning("Dropping oversized frame: %d bytes (cap %d)", size, r.maxSize)
			if _, err := io.CopyN(io.Discard, br, int64(size)); err != nil {
				return nil
			}
			continue
		}

		data := make([]byte, size)
		if _, err := io.ReadFull(br, data); err != nil {
			r.logger.Warning("Truncated frame, ending stream: %v", err)
			return nil
		}

		r.channel.Submit(data)
	}
}
