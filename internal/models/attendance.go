package models

import "time"

// AttendanceLogEntry is one row of the durable attendance log queue.
// UID is assigned at enqueue time and sent to the remote store with every
// delivery attempt, so retries are duplicate-safe.
type AttendanceLogEntry struct {
	ID           int64      `json:"id"`
	UID          string     `json:"uid"`
	Instructor   string     `json:"instructor_name"`
	ScheduleID   string     `json:"schedule_id"`
	CameraID     string     `json:"camera_id"`
	Date         string     `json:"date"`
	TimeIn       string     `json:"time_in,omitempty"`
	TimeOut      string     `json:"time_out,omitempty"`
	Status       string     `json:"status"`
	LogType      string     `json:"log_type,omitempty"`
	IsLate       bool       `json:"is_late"`
	TotalMinutes float64    `json:"total_minutes,omitempty"`
	Synced       bool       `json:"synced"`
	CreatedAt    time.Time  `json:"created_at"`
	SyncedAt     *time.Time `json:"synced_at,omitempty"`
}
