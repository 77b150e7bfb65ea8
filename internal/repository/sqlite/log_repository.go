package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"attendance/internal/models"
)

// LogRepository implements repository.LogRepository for SQLite.
type LogRepository struct {
	db *DB
}

// NewLogRepository creates a new SQLite attendance log repository.
func NewLogRepository(db *DB) *LogRepository {
	return &LogRepository{db: db}
}

// Insert appends a new entry to the attendance log queue.
func (r *LogRepository) Insert(entry *models.AttendanceLogEntry) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		INSERT INTO attendance_logs_queue
		(uid, instructor_name, schedule_id, camera_id, date, time_in, time_out,
		 status, log_type, is_late, total_minutes, synced)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
	`, entry.UID, entry.Instructor, entry.ScheduleID, entry.CameraID, entry.Date,
		entry.TimeIn, entry.TimeOut, entry.Status, entry.LogType,
		boolToInt(entry.IsLate), entry.TotalMinutes)
	if err != nil {
		return 0, fmt.Errorf("failed to insert attendance log: %w", err)
	}

	return result.LastInsertId()
}

// GetUnsynced returns the oldest pending entries, capped at limit.
func (r *LogRepository) GetUnsynced(limit int) ([]models.AttendanceLogEntry, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT id, uid, instructor_name, schedule_id, camera_id, date,
		       COALESCE(time_in, ''), COALESCE(time_out, ''), status,
		       COALESCE(log_type, ''), is_late, total_minutes, synced, created_at
		FROM attendance_logs_queue
		WHERE synced = 0
		ORDER BY created_at ASC, id ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query unsynced logs: %w", err)
	}
	defer rows.Close()

	var entries []models.AttendanceLogEntry
	for rows.Next() {
		var e models.AttendanceLogEntry
		var isLate, synced int
		if err := rows.Scan(&e.ID, &e.UID, &e.Instructor, &e.ScheduleID, &e.CameraID,
			&e.Date, &e.TimeIn, &e.TimeOut, &e.Status, &e.LogType,
			&isLate, &e.TotalMinutes, &synced, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan attendance log: %w", err)
		}
		e.IsLate = isLate != 0
		e.Synced = synced != 0
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// MarkSynced flags an entry as delivered and stamps the delivery time.
func (r *LogRepository) MarkSynced(id int64) error {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		UPDATE attendance_logs_queue
		SET synced = 1, synced_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("failed to mark log synced: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// PurgeSynced deletes delivered entries older than the retention window and
// returns how many were removed.
func (r *LogRepository) PurgeSynced(olderThan time.Duration) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	cutoff := time.Now().Add(-olderThan).UTC().Format("2006-01-02 15:04:05")
	result, err := r.db.Conn().Exec(`
		DELETE FROM attendance_logs_queue
		WHERE synced = 1 AND created_at < ?
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge synced logs: %w", err)
	}
	return result.RowsAffected()
}

// CountUnsynced returns the number of entries still waiting for delivery.
func (r *LogRepository) CountUnsynced() (int, error) {
	return r.count(0)
}

// CountSynced returns the number of delivered entries still retained.
func (r *LogRepository) CountSynced() (int, error) {
	return r.count(1)
}

func (r *LogRepository) count(synced int) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var n int
	err := r.db.Conn().QueryRow(
		`SELECT COUNT(*) FROM attendance_logs_queue WHERE synced = ?`, synced).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count logs: %w", err)
	}
	return n, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
