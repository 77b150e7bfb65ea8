package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"attendance/internal/frame"
	"attendance/internal/logger"
	ws "attendance/internal/services/websocket"
)

var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// CameraWebsocketHandler accepts binary frames from a camera and feeds the
// frame channel. Frames arriving faster than detection drains them are
// overwritten, never queued.
func CameraWebsocketHandler(channel *frame.Channel, maxFrameSize int, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		camera := r.URL.Query().Get("id")

		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error("WebSocket upgrade error: %v", err)
			return
		}
		connection.SetReadLimit(int64(maxFrameSize))
		connection.SetReadDeadline(time.Now().Add(60 * time.Second))
		connection.SetPongHandler(func(appData string) error {
			connection.SetReadDeadline(time.Now().Add(60 * time.Second))
			return nil
		})
		defer connection.Close()

		log.Info("Camera connected: %s", camera)

		for {
			msgType, msg, err := connection.ReadMessage()
			if err != nil {
				log.Warning("Camera %s stream ended: %v", camera, err)
				break
			}
			if msgType != websocket.BinaryMessage || len(msg) == 0 {
				continue
			}
			channel.Submit(msg)
		}
	}
}

// ViewWebsocketHandler registers a viewer on the hub; emitted results are
// pushed until the connection drops.
func ViewWebsocketHandler(hub *ws.HubService, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error("WebSocket upgrade error: %v", err)
			return
		}
		connection.SetReadLimit(512)
		connection.SetReadDeadline(time.Now().Add(60 * time.Second))
		connection.SetPongHandler(func(appData string) error {
			connection.SetReadDeadline(time.Now().Add(60 * time.Second))
			return nil
		})
		defer connection.Close()

		hub.Register(connection)
		defer hub.Unregister(connection)

		log.Info("Viewer connected")

		for {
			if _, _, err := connection.ReadMessage(); err != nil {
				break
			}
		}
	}
}
