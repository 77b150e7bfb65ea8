package repository

import (
	"time"

	"attendance/internal/models"
)

// LogRepository defines the interface for the offline attendance log queue.
type LogRepository interface {
	// Create operations
	Insert(entry *models.AttendanceLogEntry) (int64, error)

	// Read operations
	GetUnsynced(limit int) ([]models.AttendanceLogEntry, error)
	CountUnsynced() (int, error)
	CountSynced() (int, error)

	// Update operations
	MarkSynced(id int64) error

	// Delete operations
	PurgeSynced(olderThan time.Duration) (int64, error)
}

// ScheduleRepository defines the interface for the local schedule cache.
type ScheduleRepository interface {
	SaveBatch(schedules []models.Schedule) error
	FindForInstructor(instructorName string, date string) ([]models.Schedule, error)
	Count() (int, error)
}
