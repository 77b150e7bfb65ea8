package models

import "time"

// SessionSummary is the JSON shape of a tracked presence session, embedded
// in each emitted face result.
type SessionSummary struct {
	Name         string     `json:"name"`
	FirstSeen    time.Time  `json:"first_seen"`
	LastSeen     time.Time  `json:"last_seen"`
	TotalMinutes float64    `json:"total_minutes"`
	IsPresent    bool       `json:"is_present"`
	LeftAt       *time.Time `json:"left_at"`
	IsLate       bool       `json:"is_late"`
	LogType      string     `json:"log_type,omitempty"`
	Schedule     *Schedule  `json:"schedule"`
}

// EventType identifies a discrete attendance event.
type EventType string

const (
	EventFirstDetected EventType = "first_detected"
	EventTimeIn        EventType = "time in"
	EventLate          EventType = "late"
	EventReturned      EventType = "returned"
	EventLeft          EventType = "left"
	EventTimeOut       EventType = "time_out"
	EventNoSchedule    EventType = "detected_no_schedule"
)

// Event is a discrete attendance transition emitted by the session tracker.
type Event struct {
	Type           EventType `json:"type"`
	Name           string    `json:"name"`
	Timestamp      time.Time `json:"timestamp"`
	TotalMinutes   float64   `json:"total_minutes,omitempty"`
	AbsenceMinutes float64   `json:"absence_minutes,omitempty"`
	IsLate         bool      `json:"isLate,omitempty"`
	Status         string    `json:"status,omitempty"`
	HasSchedule    bool      `json:"has_schedule,omitempty"`
	Schedule       *Schedule `json:"schedule,omitempty"`
}
