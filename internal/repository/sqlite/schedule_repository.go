package sqlite

import (
	"encoding/json"
	"fmt"

	"attendance/internal/models"
)

// ScheduleRepository implements repository.ScheduleRepository for SQLite.
type ScheduleRepository struct {
	db *DB
}

// NewScheduleRepository creates a new SQLite schedule cache repository.
func NewScheduleRepository(db *DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// SaveBatch upserts a full schedule set in a single transaction. The cache
// is replace-on-conflict so repeated refreshes converge on the remote state.
func (r *ScheduleRepository) SaveBatch(schedules []models.Schedule) error {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO schedules
		(id, instructor_name, course_code, course_title, room,
		 start_time, end_time, semester_start_date, semester_end_date, days, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, s := range schedules {
		days, err := json.Marshal(s.Days)
		if err != nil {
			return fmt.Errorf("failed to encode days for schedule %s: %w", s.ID, err)
		}
		if _, err := stmt.Exec(s.ID, s.Instructor, s.CourseCode, s.CourseTitle, s.Room,
			s.StartTime, s.EndTime, s.SemesterStart, s.SemesterEnd, string(days)); err != nil {
			return fmt.Errorf("failed to save schedule %s: %w", s.ID, err)
		}
	}

	return tx.Commit()
}

// FindForInstructor returns the cached schedules for an instructor whose
// semester covers the given date. Name matching is a substring match, the
// way the remote store resolves instructors. Time-of-day and room checks
// are left to the caller.
func (r *ScheduleRepository) FindForInstructor(instructorName string, date string) ([]models.Schedule, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT id, instructor_name, course_code, course_title, room,
		       start_time, end_time, semester_start_date, semester_end_date, days
		FROM schedules
		WHERE instructor_name LIKE ?
		AND semester_start_date <= ?
		AND semester_end_date >= ?
	`, "%"+instructorName+"%", date, date)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedules: %w", err)
	}
	defer rows.Close()

	var schedules []models.Schedule
	for rows.Next() {
		var s models.Schedule
		var days string
		if err := rows.Scan(&s.ID, &s.Instructor, &s.CourseCode, &s.CourseTitle, &s.Room,
			&s.StartTime, &s.EndTime, &s.SemesterStart, &s.SemesterEnd, &days); err != nil {
			return nil, fmt.Errorf("failed to scan schedule: %w", err)
		}
		if err := json.Unmarshal([]byte(days), &s.Days); err != nil {
			return nil, fmt.Errorf("failed to decode days for schedule %s: %w", s.ID, err)
		}
		schedules = append(schedules, s)
	}

	return schedules, rows.Err()
}

// Count returns the number of cached schedules.
func (r *ScheduleRepository) Count() (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var n int
	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM schedules`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count schedules: %w", err)
	}
	return n, nil
}
