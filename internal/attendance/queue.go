package attendance

import (
	"time"

	"github.com/google/uuid"

	"attendance/internal/logger"
	"attendance/internal/models"
	"attendance/internal/repository"
)

// Queue is the durable, offline-first front door for attendance events.
// Every event is written to the local queue first; delivery to the backend
// is the sync worker's problem.
type Queue struct {
	repo repository.LogRepository
	log  *logger.Logger
}

func NewQueue(repo repository.LogRepository, log *logger.Logger) *Queue {
	return &Queue{repo: repo, log: log}
}

// EnqueueTimeIn records an arrival. logType is "time in" or "late".
func (q *Queue) EnqueueTimeIn(instructor, scheduleID, cameraID, logType string, isLate bool, at time.Time) error {
	entry := &models.AttendanceLogEntry{
		UID:        uuid.NewString(),
		Instructor: instructor,
		ScheduleID: scheduleID,
		CameraID:   cameraID,
		Date:       at.Format("2006-01-02"),
		TimeIn:     at.Format("15:04:05"),
		Status:     "present",
		LogType:    logType,
		IsLate:     isLate,
	}
	if _, err := q.repo.Insert(entry); err != nil {
		return err
	}
	q.log.Info("Queued %s for %s (schedule %s)", logType, instructor, scheduleID)
	return nil
}

// EnqueueTimeOut records a departure with the accumulated present minutes.
func (q *Queue) EnqueueTimeOut(instructor, scheduleID, cameraID string, totalMinutes float64, at time.Time) error {
	entry := &models.AttendanceLogEntry{
		UID:          uuid.NewString(),
		Instructor:   instructor,
		ScheduleID:   scheduleID,
		CameraID:     cameraID,
		Date:         at.Format("2006-01-02"),
		TimeOut:      at.Format("15:04:05"),
		Status:       "left",
		LogType:      "time_out",
		TotalMinutes: totalMinutes,
	}
	if _, err := q.repo.Insert(entry); err != nil {
		return err
	}
	q.log.Info("Queued time out for %s (%.1f minutes)", instructor, totalMinutes)
	return nil
}

// Pending returns the number of entries awaiting delivery.
func (q *Queue) Pending() (int, error) {
	return q.repo.CountUnsynced()
}
