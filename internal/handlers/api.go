package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"attendance/internal/dto"
	"attendance/internal/embeddings"
	"attendance/internal/frame"
	"attendance/internal/logger"
	"attendance/internal/models"
	"attendance/internal/repository"
	ws "attendance/internal/services/websocket"
	"attendance/internal/session"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// HealthHandler answers liveness probes.
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// StatsHandler reports pipeline and queue health counters.
func StatsHandler(channel *frame.Channel, store *embeddings.Store, tracker *session.Tracker,
	hub *ws.HubService, logs repository.LogRepository, schedules repository.ScheduleRepository,
	log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		submitted, dropped := channel.Stats()

		pending, err := logs.CountUnsynced()
		if err != nil {
			log.Error("Stats: counting unsynced logs failed: %v", err)
		}
		synced, err := logs.CountSynced()
		if err != nil {
			log.Error("Stats: counting synced logs failed: %v", err)
		}
		cached, err := schedules.Count()
		if err != nil {
			log.Error("Stats: counting schedules failed: %v", err)
		}

		writeJSON(w, http.StatusOK, dto.StatsResponse{
			FramesSubmitted: submitted,
			FramesDropped:   dropped,
			KnownIdentities: store.Current().Count(),
			ActiveSessions:  len(tracker.Summaries(time.Now())),
			Viewers:         hub.GetClientCount(),
			PendingLogs:     pending,
			SyncedLogs:      synced,
			CachedSchedules: cached,
		})
	}
}

// SessionsHandler lists all tracked presence sessions.
func SessionsHandler(tracker *session.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summaries := tracker.Summaries(time.Now())
		writeJSON(w, http.StatusOK, dto.SessionsResponse{
			Count:    len(summaries),
			Sessions: summaries,
		})
	}
}

// UnsyncedLogsHandler lists attendance logs still waiting for delivery.
func UnsyncedLogsHandler(logs repository.LogRepository, batchSize int, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := logs.GetUnsynced(batchSize)
		if err != nil {
			log.Error("Listing unsynced logs failed: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "query failed"})
			return
		}
		if entries == nil {
			entries = []models.AttendanceLogEntry{}
		}
		writeJSON(w, http.StatusOK, dto.UnsyncedLogsResponse{
			Count: len(entries),
			Logs:  entries,
		})
	}
}
