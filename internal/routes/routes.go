package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"attendance/internal/config"
	"attendance/internal/embeddings"
	"attendance/internal/frame"
	"attendance/internal/handlers"
	"attendance/internal/logger"
	"attendance/internal/repository"
	ws "attendance/internal/services/websocket"
	"attendance/internal/session"
)

// Deps carries everything the HTTP surface needs.
type Deps struct {
	Config    *config.Config
	Logger    *logger.Logger
	Channel   *frame.Channel
	Store     *embeddings.Store
	Tracker   *session.Tracker
	Hub       *ws.HubService
	Logs      repository.LogRepository
	Schedules repository.ScheduleRepository
}

// SetupRoutes registers the websocket endpoints, the API endpoints and the
// log-file endpoints.
func SetupRoutes(d Deps) http.Handler {
	r := mux.NewRouter()

	// Websocket endpoints
	r.HandleFunc("/api/camera", handlers.CameraWebsocketHandler(d.Channel, d.Config.MaxFrameSize, d.Logger))
	r.HandleFunc("/api/view", handlers.ViewWebsocketHandler(d.Hub, d.Logger))

	// API endpoints
	r.HandleFunc("/healthz", handlers.HealthHandler()).Methods(http.MethodGet)
	r.HandleFunc("/api/stats", handlers.StatsHandler(d.Channel, d.Store, d.Tracker, d.Hub, d.Logs, d.Schedules, d.Logger)).Methods(http.MethodGet)
	r.HandleFunc("/api/sessions", handlers.SessionsHandler(d.Tracker)).Methods(http.MethodGet)
	r.HandleFunc("/api/logs/unsynced", handlers.UnsyncedLogsHandler(d.Logs, d.Config.SyncBatchSize, d.Logger)).Methods(http.MethodGet)

	// Log endpoints
	r.HandleFunc("/logs/info", handlers.ShowInfoLogsHandler(d.Config))
	r.HandleFunc("/logs/warning", handlers.ShowWarningLogsHandler(d.Config))
	r.HandleFunc("/logs/error", handlers.ShowErrorLogsHandler(d.Config))

	r.HandleFunc("/logs/info/clear", handlers.ClearInfoLogsHandler(d.Logger))
	r.HandleFunc("/logs/warning/clear", handlers.ClearWarningLogsHandler(d.Logger))
	r.HandleFunc("/logs/error/clear", handlers.ClearErrorLogsHandler(d.Logger))

	return r
}
