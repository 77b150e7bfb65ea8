package handlers

import (
	"context"
	"net"

	"attendance/internal/config"
	"attendance/internal/frame"
	"attendance/internal/logger"
)

// StreamListener accepts raw TCP connections carrying the length-prefixed
// frame protocol and feeds every connection into the frame channel. One
// camera per connection; a new connection simply starts supplying frames.
func StreamListener(ctx context.Context, channel *frame.Channel, logger *logger.Logger, config *config.Config) {
	listener, err := net.Listen("tcp", config.StreamAddr)
	if err != nil {
		logger.Error("Failed to listen on %s: %v", config.StreamAddr, err)
		return
	}
	defer listener.Close()

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	logger.Info("Frame stream listener started on %s", config.StreamAddr)

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			logger.Error("Accept failed: %v", err)
			continue
		}

		logger.Info("Camera stream connected from %s", conn.RemoteAddr())
		go func(c net.Conn) {
			defer c.Close()
			reader := frame.NewReader(channel, config.MaxFrameSize, logger)
			if err := reader.Run(c); err != nil {
				logger.Warning("Camera stream %s ended: %v", c.RemoteAddr(), err)
			}
		}(conn)
	}
}
