package dto

// StatsResponse is the /api/stats payload.
type StatsResponse struct {
	FramesSubmitted uint64 `json:"frames_submitted"`
	FramesDropped   uint64 `json:"frames_dropped"`
	KnownIdentities int    `json:"known_identities"`
	ActiveSessions  int    `json:"active_sessions"`
	Viewers         int    `json:"viewers"`
	PendingLogs     int    `json:"pending_logs"`
	SyncedLogs      int    `json:"synced_logs"`
	CachedSchedules int    `json:"cached_schedules"`
}
