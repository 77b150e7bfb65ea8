package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"attendance/internal/logger"
	"attendance/internal/models"
)

// scheduleResolver is the slice of the schedule layer the tracker needs.
type scheduleResolver interface {
	Resolve(ctx context.Context, identity, cameraID string, now time.Time) (*models.Schedule, error)
}

// attendanceQueue records time-in/time-out durably before any delivery.
type attendanceQueue interface {
	EnqueueTimeIn(instructor, scheduleID, cameraID, logType string, isLate bool, at time.Time) error
	EnqueueTimeOut(instructor, scheduleID, cameraID string, totalMinutes float64, at time.Time) error
}

// Options carry the timing knobs for presence tracking.
type Options struct {
	CameraID          string
	AbsenceTimeout    time.Duration
	AbsenceCheckEvery time.Duration
	ScheduleRecheck   time.Duration
	CleanupTimeout    time.Duration
}

// session is the tracked state for one identity.
type session struct {
	name          string
	firstSeen     time.Time
	lastSeen      time.Time
	totalSeconds  float64
	isPresent     bool
	leftAt        *time.Time
	schedule      *models.Schedule
	timeInLogged  bool
	timeOutLogged bool
	isLate        bool
	logType       string
	lastSchedCk   time.Time
}

// accrue folds the time since the last sighting into the present total.
func (s *session) accrue(now time.Time) {
	if s.isPresent {
		s.totalSeconds += now.Sub(s.lastSeen).Seconds()
	}
	s.lastSeen = now
}

func (s *session) totalMinutes(now time.Time) float64 {
	total := s.totalSeconds
	if s.isPresent {
		total += now.Sub(s.lastSeen).Seconds()
	}
	return total / 60
}

func (s *session) summary(now time.Time) models.SessionSummary {
	return models.SessionSummary{
		Name:         s.name,
		FirstSeen:    s.firstSeen,
		LastSeen:     s.lastSeen,
		TotalMinutes: s.totalMinutes(now),
		IsPresent:    s.isPresent,
		LeftAt:       s.leftAt,
		IsLate:       s.isLate,
		LogType:      s.logType,
		Schedule:     s.schedule,
	}
}

// Tracker maintains one presence session per recognized identity and turns
// sightings into attendance events. Observe is the single writer; summaries
// may be read from other goroutines.
type Tracker struct {
	mu       sync.RWMutex
	sessions map[string]*session

	resolver scheduleResolver
	queue    attendanceQueue
	opts     Options
	log      *logger.Logger

	lastAbsenceCheck time.Time
}

func NewTracker(resolver scheduleResolver, queue attendanceQueue, opts Options, log *logger.Logger) *Tracker {
	return &Tracker{
		sessions: make(map[string]*session),
		resolver: resolver,
		queue:    queue,
		opts:     opts,
		log:      log,
	}
}

// Observe processes one frame's worth of recognized names and returns the
// attendance events they caused. Absence detection runs piggybacked on the
// same call at its own cadence, so a quiet camera still times people out as
// long as frames keep arriving.
func (t *Tracker) Observe(ctx context.Context, names []string, now time.Time) []models.Event {
	t.mu.Lock()
	defer t.mu.Unlock()

	var events []models.Event
	detected := make(map[string]bool, len(names))

	for _, name := range names {
		if detected[name] {
			continue
		}
		detected[name] = true

		s, ok := t.sessions[name]
		if !ok {
			events = append(events, t.admit(ctx, name, now)...)
			continue
		}

		if !s.isPresent {
			absence := now.Sub(*s.leftAt)
			s.isPresent = true
			s.lastSeen = now
			events = append(events, models.Event{
				Type:           models.EventReturned,
				Name:           name,
				Timestamp:      now,
				AbsenceMinutes: round2(absence.Minutes()),
			})
			t.log.Info("%s returned after %.1f min", name, absence.Minutes())
		} else {
			s.accrue(now)
		}

		events = append(events, t.recheckSchedule(ctx, s, now)...)
	}

	if now.Sub(t.lastAbsenceCheck) >= t.opts.AbsenceCheckEvery {
		events = append(events, t.checkAbsent(detected, now)...)
		t.evict(now)
		t.lastAbsenceCheck = now
	}

	return events
}

// admit creates a session for a newly seen identity and logs time-in when a
// valid schedule exists right now.
func (t *Tracker) admit(ctx context.Context, name string, now time.Time) []models.Event {
	sched, err := t.resolver.Resolve(ctx, name, t.opts.CameraID, now)
	if err != nil {
		t.log.Error("Schedule lookup failed for %s: %v", name, err)
	}

	s := &session{
		name:        name,
		firstSeen:   now,
		lastSeen:    now,
		isPresent:   true,
		schedule:    sched,
		lastSchedCk: now,
	}
	t.sessions[name] = s

	if sched == nil {
		t.log.Info("%s detected without a scheduled class, tracking only", name)
		return []models.Event{{
			Type:      models.EventNoSchedule,
			Name:      name,
			Timestamp: now,
		}}
	}

	var events []models.Event
	s.isLate = sched.IsLate
	if !sched.IsValidSchedule {
		t.log.Info("%s detected with a room-mismatched schedule (%s), not logging attendance", name, sched.CourseCode)
	}
	events = append(events, t.logTimeIn(s, now)...)
	events = append(events, models.Event{
		Type:        models.EventFirstDetected,
		Name:        name,
		Timestamp:   s.firstSeen,
		HasSchedule: true,
	})
	return events
}

// logTimeIn queues the arrival record, exactly once per session. A schedule
// held with IsValidSchedule false (wrong room) is surfaced but never logged.
func (t *Tracker) logTimeIn(s *session, now time.Time) []models.Event {
	if s.timeInLogged || s.schedule == nil || !s.schedule.IsValidSchedule {
		return nil
	}

	logType := string(models.EventTimeIn)
	status := "ON TIME"
	if s.isLate {
		logType = string(models.EventLate)
		status = "LATE"
	}

	if err := t.queue.EnqueueTimeIn(s.name, s.schedule.ID, t.opts.CameraID, logType, s.isLate, now); err != nil {
		t.log.Error("Failed to queue %s for %s: %v", logType, s.name, err)
		return nil
	}
	s.timeInLogged = true
	s.logType = logType
	t.log.Info("%s logged for %s - %s (%s)", logType, s.name, s.schedule.CourseCode, status)

	return []models.Event{{
		Type:      models.EventType(logType),
		Name:      s.name,
		Timestamp: s.firstSeen,
		Schedule:  s.schedule,
		IsLate:    s.isLate,
		Status:    status,
	}}
}

// logTimeOut queues the departure record, exactly once per logged arrival.
func (t *Tracker) logTimeOut(s *session, now time.Time) []models.Event {
	if !s.timeInLogged || s.timeOutLogged || s.schedule == nil {
		return nil
	}

	total := round2(s.totalMinutes(now))
	if err := t.queue.EnqueueTimeOut(s.name, s.schedule.ID, t.opts.CameraID, total, now); err != nil {
		t.log.Error("Failed to queue time out for %s: %v", s.name, err)
		return nil
	}
	s.timeOutLogged = true
	t.log.Info("Time out logged for %s - total %.1f min", s.name, total)

	return []models.Event{{
		Type:         models.EventTimeOut,
		Name:         s.name,
		Timestamp:    now,
		TotalMinutes: total,
		Schedule:     s.schedule,
	}}
}

// recheckSchedule re-resolves every long-lived session on the recheck
// interval, so a class that starts or ends while the person stays in view
// is picked up: a fresh schedule gets its own time-in, a closed window gets
// its time-out.
func (t *Tracker) recheckSchedule(ctx context.Context, s *session, now time.Time) []models.Event {
	if now.Sub(s.lastSchedCk) < t.opts.ScheduleRecheck {
		return nil
	}
	s.lastSchedCk = now

	sched, err := t.resolver.Resolve(ctx, s.name, t.opts.CameraID, now)
	if err != nil {
		t.log.Error("Schedule recheck failed for %s: %v", s.name, err)
		return nil
	}

	var events []models.Event
	switch {
	case sched == nil && s.schedule == nil:
		return nil

	case sched == nil:
		// Class window closed while still present.
		events = append(events, t.logTimeOut(s, now)...)
		t.log.Info("Class ended for %s while present, tracking only", s.name)
		s.schedule = nil

	case s.schedule == nil || s.schedule.ID != sched.ID:
		// A new class gets its own attendance record; close out the old
		// one first if there was one.
		if s.schedule != nil {
			events = append(events, t.logTimeOut(s, now)...)
		}
		s.schedule = sched
		s.isLate = sched.IsLate
		s.timeInLogged = false
		s.timeOutLogged = false
		t.log.Info("Schedule resolved on recheck for %s: %s", s.name, sched.CourseCode)
		events = append(events, t.logTimeIn(s, now)...)

	default:
		// Same class; refresh the validity flags it carries.
		s.schedule = sched
		events = append(events, t.logTimeIn(s, now)...)
	}
	return events
}

// checkAbsent times out present sessions that have a schedule and have not
// been seen for the absence timeout. Unscheduled sessions never time out;
// there is no attendance to close.
func (t *Tracker) checkAbsent(detected map[string]bool, now time.Time) []models.Event {
	var events []models.Event
	for name, s := range t.sessions {
		if !s.isPresent || detected[name] || s.schedule == nil {
			continue
		}
		if now.Sub(s.lastSeen) < t.opts.AbsenceTimeout {
			continue
		}

		// The absence gap is not presence; the total stops at the last
		// actual sighting.
		s.isPresent = false
		left := now
		s.leftAt = &left
		total := round2(s.totalMinutes(now))

		events = append(events, t.logTimeOut(s, now)...)
		events = append(events, models.Event{
			Type:         models.EventLeft,
			Name:         name,
			Timestamp:    now,
			TotalMinutes: total,
		})
		t.log.Info("%s marked as left after %.0fs absence", name, t.opts.AbsenceTimeout.Seconds())
	}
	return events
}

// evict drops sessions that left long enough ago that a reappearance should
// count as a fresh arrival.
func (t *Tracker) evict(now time.Time) {
	for name, s := range t.sessions {
		if !s.isPresent && s.leftAt != nil && now.Sub(*s.leftAt) >= t.opts.CleanupTimeout {
			delete(t.sessions, name)
			t.log.Debug("Evicted stale session for %s", name)
		}
	}
}

// Summary returns the current session state for one identity.
func (t *Tracker) Summary(name string, now time.Time) (models.SessionSummary, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, ok := t.sessions[name]
	if !ok {
		return models.SessionSummary{}, false
	}
	return s.summary(now), true
}

// Summaries returns all tracked sessions, ordered by name.
func (t *Tracker) Summaries(now time.Time) []models.SessionSummary {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]models.SessionSummary, 0, len(t.sessions))
	for _, s := range t.sessions {
		out = append(out, s.summary(now))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
