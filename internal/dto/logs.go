package dto

import "attendance/internal/models"

// UnsyncedLogsResponse is the /api/logs/unsynced payload.
type UnsyncedLogsResponse struct {
	Count int                         `json:"count"`
	Logs  []models.AttendanceLogEntry `json:"logs"`
}

// SessionsResponse is the /api/sessions payload.
type SessionsResponse struct {
	Count    int                     `json:"count"`
	Sessions []models.SessionSummary `json:"sessions"`
}
