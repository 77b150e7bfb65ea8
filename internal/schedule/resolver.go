package schedule

import (
	"context"
	"fmt"
	"strings"
	"time"

	"attendance/internal/logger"
	"attendance/internal/models"
	"attendance/internal/remote"
	"attendance/internal/repository"
)

var dayNames = []string{"sun", "mon", "tue", "wed", "thu", "fri", "sat"}

// FormatIdentity converts a dataset folder name like "Mark_Anthony_Quibral"
// into the "Quibral, Mark" form the backend indexes instructors by. Names
// without an underscore pass through unchanged.
func FormatIdentity(folderName string) string {
	parts := strings.Split(folderName, "_")
	if len(parts) >= 2 {
		return fmt.Sprintf("%s, %s", parts[len(parts)-1], parts[0])
	}
	return folderName
}

// Options carry the timing knobs for schedule validity.
type Options struct {
	PreClassGrace time.Duration
	LateThreshold time.Duration
}

// remoteLookup is the slice of the backend client the resolver needs.
type remoteLookup interface {
	GetCurrentSchedule(ctx context.Context, instructorName string) (*models.Schedule, error)
	FetchSchedules(ctx context.Context) ([]models.Schedule, error)
}

// Resolver answers "does this instructor have a class right now, in this
// room". It consults the local sqlite cache first and falls back to a
// remote lookup; when the backend is unreachable the cached answer stands.
type Resolver struct {
	repo   repository.ScheduleRepository
	client remoteLookup
	rooms  map[string]string
	opts   Options
	log    *logger.Logger
}

func NewResolver(repo repository.ScheduleRepository, client remoteLookup, rooms map[string]string, opts Options, log *logger.Logger) *Resolver {
	return &Resolver{repo: repo, client: client, rooms: rooms, opts: opts, log: log}
}

// Resolve returns the schedule in window for the identity right now, or nil
// if none is. A schedule whose room does not match the camera's still
// resolves, carrying IsValidSchedule=false; downstream decides what an
// invalid resolution means.
func (r *Resolver) Resolve(ctx context.Context, identity, cameraID string, now time.Time) (*models.Schedule, error) {
	name := FormatIdentity(identity)
	room := r.rooms[cameraID]

	if cached := r.resolveFromCache(name, room, now); cached != nil {
		return cached, nil
	}

	sched, err := r.client.GetCurrentSchedule(ctx, name)
	if err != nil {
		if remote.IsNetworkError(err) {
			r.log.Warning("Backend unreachable for schedule lookup (%s), staying on cache", name)
			return nil, nil
		}
		return nil, err
	}
	if sched == nil {
		return nil, nil
	}
	if !r.Evaluate(sched, room, now) {
		return nil, nil
	}
	return sched, nil
}

// resolveFromCache prefers a fully valid candidate but falls back to one
// that is merely in window, so a wrong-room sighting is still reported.
func (r *Resolver) resolveFromCache(name, room string, now time.Time) *models.Schedule {
	candidates, err := r.repo.FindForInstructor(name, now.Format("2006-01-02"))
	if err != nil {
		r.log.Error("Schedule cache lookup failed for %s: %v", name, err)
		return nil
	}
	var inWindow *models.Schedule
	for i := range candidates {
		if r.Evaluate(&candidates[i], room, now) {
			if candidates[i].IsValidSchedule {
				return &candidates[i]
			}
			if inWindow == nil {
				inWindow = &candidates[i]
			}
		}
	}
	return inWindow
}

// Evaluate fills in the validity fields of a schedule against the current
// time and the camera's room, and reports whether the schedule is in
// window. A room mismatch does not affect the return value; it only clears
// IsValidSchedule. An empty days map means a daily schedule. An empty room
// on either side skips the room check.
func (r *Resolver) Evaluate(s *models.Schedule, room string, now time.Time) bool {
	s.TimeMatch = false
	s.RoomMatch = false
	s.IsValidSchedule = false
	s.IsLate = false

	if len(s.Days) > 0 && !s.Days[dayNames[now.Weekday()]] {
		return false
	}
	if !withinSemester(s, now) {
		return false
	}

	start, ok := parseClock(s.StartTime)
	if !ok {
		return false
	}
	end, ok := parseClock(s.EndTime)
	if !ok {
		return false
	}

	nowMin := now.Hour()*60 + now.Minute()
	graceMin := int(r.opts.PreClassGrace.Minutes())
	if nowMin < start-graceMin || nowMin > end {
		return false
	}
	s.TimeMatch = true
	s.IsLate = nowMin > start+int(r.opts.LateThreshold.Minutes())

	s.RoomMatch = roomMatches(s.Room, room)
	s.IsValidSchedule = s.TimeMatch && s.RoomMatch
	return s.TimeMatch
}

func withinSemester(s *models.Schedule, now time.Time) bool {
	if s.SemesterStart == "" || s.SemesterEnd == "" {
		return true
	}
	today := now.Format("2006-01-02")
	return s.SemesterStart <= today && today <= s.SemesterEnd
}

// parseClock parses "HH:MM" into minutes since midnight.
func parseClock(v string) (int, bool) {
	t, err := time.Parse("15:04", strings.TrimSpace(v))
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}

func roomMatches(scheduleRoom, cameraRoom string) bool {
	a := strings.ToLower(strings.TrimSpace(scheduleRoom))
	b := strings.ToLower(strings.TrimSpace(cameraRoom))
	if a == "" || b == "" {
		return true
	}
	return a == b || strings.Contains(a, b) || strings.Contains(b, a)
}

// Refresh pulls the full schedule set from the backend into the local
// cache. Network failures are non-fatal; the stale cache keeps serving.
func (r *Resolver) Refresh(ctx context.Context) error {
	schedules, err := r.client.FetchSchedules(ctx)
	if err != nil {
		if remote.IsNetworkError(err) {
			r.log.Warning("Schedule refresh skipped, backend unreachable: %v", err)
			return nil
		}
		return err
	}
	if err := r.repo.SaveBatch(schedules); err != nil {
		return fmt.Errorf("failed to persist schedule refresh: %w", err)
	}
	r.log.Info("Schedule cache refreshed with %d schedules", len(schedules))
	return nil
}

// RunRefresh refreshes the cache on an interval until the context ends.
// One refresh is attempted immediately on startup.
func (r *Resolver) RunRefresh(ctx context.Context, interval time.Duration) {
	if err := r.Refresh(ctx); err != nil {
		r.log.Error("Initial schedule refresh failed: %v", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Refresh(ctx); err != nil {
				r.log.Error("Schedule refresh failed: %v", err)
			}
		}
	}
}
