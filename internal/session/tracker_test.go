package session

import (
	"context"
	"os"
	"testing"
	"time"

	"attendance/internal/config"
	"attendance/internal/logger"
	"attendance/internal/models"
)

type fakeResolver struct {
	schedules map[string]*models.Schedule
	calls     int
}

func (f *fakeResolver) Resolve(ctx context.Context, identity, cameraID string, now time.Time) (*models.Schedule, error) {
	f.calls++
	if s, ok := f.schedules[identity]; ok && s != nil {
		copied := *s
		return &copied, nil
	}
	return nil, nil
}

type timeInCall struct {
	instructor, scheduleID, logType string
	isLate                          bool
}

type timeOutCall struct {
	instructor, scheduleID string
	totalMinutes           float64
}

type fakeQueue struct {
	timeIns  []timeInCall
	timeOuts []timeOutCall
}

func (f *fakeQueue) EnqueueTimeIn(instructor, scheduleID, cameraID, logType string, isLate bool, at time.Time) error {
	f.timeIns = append(f.timeIns, timeInCall{instructor, scheduleID, logType, isLate})
	return nil
}

func (f *fakeQueue) EnqueueTimeOut(instructor, scheduleID, cameraID string, totalMinutes float64, at time.Time) error {
	f.timeOuts = append(f.timeOuts, timeOutCall{instructor, scheduleID, totalMinutes})
	return nil
}

func testTracker(t *testing.T, resolver *fakeResolver, queue *fakeQueue) *Tracker {
	t.Helper()
	dir, err := os.MkdirTemp("", "tracker-test")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	log := logger.NewLogger(&config.Config{LogDir: dir})
	opts := Options{
		CameraID:          "cam1",
		AbsenceTimeout:    5 * time.Minute,
		AbsenceCheckEvery: time.Second,
		ScheduleRecheck:   5 * time.Minute,
		CleanupTimeout:    time.Hour,
	}
	return NewTracker(resolver, queue, opts, log)
}

func eventTypes(events []models.Event) []models.EventType {
	out := make([]models.EventType, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}

func hasEvent(events []models.Event, typ models.EventType) bool {
	for _, e := range events {
		if e.Type == typ {
			return true
		}
	}
	return false
}

var start = time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)

func scheduled(id string, late bool) *models.Schedule {
	return &models.Schedule{
		ID: id, CourseCode: "CS101", Room: "Room 204",
		IsValidSchedule: true, TimeMatch: true, RoomMatch: true, IsLate: late,
	}
}

func TestTracker_FirstDetectionWithSchedule(t *testing.T) {
	resolver := &fakeResolver{schedules: map[string]*models.Schedule{"Mark_Quibral": scheduled("s1", false)}}
	queue := &fakeQueue{}
	tr := testTracker(t, resolver, queue)

	events := tr.Observe(context.Background(), []string{"Mark_Quibral"}, start)

	if !hasEvent(events, models.EventTimeIn) || !hasEvent(events, models.EventFirstDetected) {
		t.Fatalf("events = %v", eventTypes(events))
	}
	if len(queue.timeIns) != 1 {
		t.Fatalf("timeIns = %d", len(queue.timeIns))
	}
	call := queue.timeIns[0]
	if call.instructor != "Mark_Quibral" || call.scheduleID != "s1" || call.logType != "time in" || call.isLate {
		t.Errorf("call = %+v", call)
	}
}

func TestTracker_TimeInLoggedExactlyOnce(t *testing.T) {
	resolver := &fakeResolver{schedules: map[string]*models.Schedule{"Mark_Quibral": scheduled("s1", false)}}
	queue := &fakeQueue{}
	tr := testTracker(t, resolver, queue)

	for i := 0; i < 10; i++ {
		tr.Observe(context.Background(), []string{"Mark_Quibral"}, start.Add(time.Duration(i)*time.Second))
	}
	if len(queue.timeIns) != 1 {
		t.Errorf("timeIns = %d, want exactly 1", len(queue.timeIns))
	}
}

func TestTracker_LateArrival(t *testing.T) {
	resolver := &fakeResolver{schedules: map[string]*models.Schedule{"Mark_Quibral": scheduled("s1", true)}}
	queue := &fakeQueue{}
	tr := testTracker(t, resolver, queue)

	events := tr.Observe(context.Background(), []string{"Mark_Quibral"}, start)

	if !hasEvent(events, models.EventLate) {
		t.Fatalf("events = %v", eventTypes(events))
	}
	if hasEvent(events, models.EventTimeIn) {
		t.Error("late arrival must not also emit a time in")
	}
	if queue.timeIns[0].logType != "late" || !queue.timeIns[0].isLate {
		t.Errorf("call = %+v", queue.timeIns[0])
	}
}

func TestTracker_NoScheduleTrackedOnly(t *testing.T) {
	resolver := &fakeResolver{schedules: map[string]*models.Schedule{}}
	queue := &fakeQueue{}
	tr := testTracker(t, resolver, queue)

	events := tr.Observe(context.Background(), []string{"Mark_Quibral"}, start)

	if !hasEvent(events, models.EventNoSchedule) {
		t.Fatalf("events = %v", eventTypes(events))
	}
	if len(queue.timeIns) != 0 {
		t.Error("unscheduled detection must not queue a time in")
	}
	if _, ok := tr.Summary("Mark_Quibral", start); !ok {
		t.Error("session must still be tracked")
	}
}

func TestTracker_AbsenceTimesOutScheduledSession(t *testing.T) {
	resolver := &fakeResolver{schedules: map[string]*models.Schedule{"Mark_Quibral": scheduled("s1", false)}}
	queue := &fakeQueue{}
	tr := testTracker(t, resolver, queue)

	tr.Observe(context.Background(), []string{"Mark_Quibral"}, start)
	tr.Observe(context.Background(), []string{"Mark_Quibral"}, start.Add(2*time.Minute))

	// Just under the timeout: still present.
	events := tr.Observe(context.Background(), nil, start.Add(6*time.Minute))
	if hasEvent(events, models.EventLeft) {
		t.Fatal("left too early")
	}

	// Past the timeout since last sighting.
	events = tr.Observe(context.Background(), nil, start.Add(8*time.Minute))
	if !hasEvent(events, models.EventLeft) || !hasEvent(events, models.EventTimeOut) {
		t.Fatalf("events = %v", eventTypes(events))
	}
	if len(queue.timeOuts) != 1 {
		t.Fatalf("timeOuts = %d", len(queue.timeOuts))
	}
	if got := queue.timeOuts[0].totalMinutes; got != 2 {
		t.Errorf("totalMinutes = %v, want 2 (time between sightings)", got)
	}

	summary, _ := tr.Summary("Mark_Quibral", start.Add(8*time.Minute))
	if summary.IsPresent || summary.LeftAt == nil {
		t.Errorf("summary = %+v", summary)
	}
}

func TestTracker_TimeOutLoggedExactlyOnce(t *testing.T) {
	resolver := &fakeResolver{schedules: map[string]*models.Schedule{"Mark_Quibral": scheduled("s1", false)}}
	queue := &fakeQueue{}
	tr := testTracker(t, resolver, queue)

	tr.Observe(context.Background(), []string{"Mark_Quibral"}, start)
	tr.Observe(context.Background(), nil, start.Add(10*time.Minute))
	tr.Observe(context.Background(), nil, start.Add(20*time.Minute))

	if len(queue.timeOuts) != 1 {
		t.Errorf("timeOuts = %d, want exactly 1", len(queue.timeOuts))
	}
}

func TestTracker_UnscheduledSessionNeverTimesOut(t *testing.T) {
	resolver := &fakeResolver{schedules: map[string]*models.Schedule{}}
	queue := &fakeQueue{}
	tr := testTracker(t, resolver, queue)

	tr.Observe(context.Background(), []string{"Mark_Quibral"}, start)
	events := tr.Observe(context.Background(), nil, start.Add(time.Hour/2))

	if hasEvent(events, models.EventLeft) || hasEvent(events, models.EventTimeOut) {
		t.Errorf("events = %v", eventTypes(events))
	}
	summary, _ := tr.Summary("Mark_Quibral", start.Add(time.Hour/2))
	if !summary.IsPresent {
		t.Error("unscheduled session must stay present")
	}
}

func TestTracker_ReturnAfterAbsence(t *testing.T) {
	resolver := &fakeResolver{schedules: map[string]*models.Schedule{"Mark_Quibral": scheduled("s1", false)}}
	queue := &fakeQueue{}
	tr := testTracker(t, resolver, queue)

	tr.Observe(context.Background(), []string{"Mark_Quibral"}, start)
	tr.Observe(context.Background(), nil, start.Add(10*time.Minute)) // times out

	events := tr.Observe(context.Background(), []string{"Mark_Quibral"}, start.Add(14*time.Minute))
	if !hasEvent(events, models.EventReturned) {
		t.Fatalf("events = %v", eventTypes(events))
	}
	for _, e := range events {
		if e.Type == models.EventReturned && e.AbsenceMinutes != 4 {
			t.Errorf("absence = %v minutes, want 4", e.AbsenceMinutes)
		}
	}
	summary, _ := tr.Summary("Mark_Quibral", start.Add(14*time.Minute))
	if !summary.IsPresent {
		t.Error("returned session must be present")
	}
	// Return within the same session must not queue a second time in.
	if len(queue.timeIns) != 1 {
		t.Errorf("timeIns = %d", len(queue.timeIns))
	}
}

func TestTracker_ScheduleRecheckLogsLateTimeIn(t *testing.T) {
	resolver := &fakeResolver{schedules: map[string]*models.Schedule{}}
	queue := &fakeQueue{}
	tr := testTracker(t, resolver, queue)

	// No schedule at first sight.
	tr.Observe(context.Background(), []string{"Mark_Quibral"}, start)
	if len(queue.timeIns) != 0 {
		t.Fatal("no time in expected yet")
	}

	// Class window opens; recheck interval passes.
	resolver.schedules["Mark_Quibral"] = scheduled("s1", false)
	events := tr.Observe(context.Background(), []string{"Mark_Quibral"}, start.Add(6*time.Minute))

	if !hasEvent(events, models.EventTimeIn) {
		t.Fatalf("events = %v", eventTypes(events))
	}
	if len(queue.timeIns) != 1 {
		t.Errorf("timeIns = %d", len(queue.timeIns))
	}
}

func TestTracker_RoomMismatchedScheduleNoTimeIn(t *testing.T) {
	mismatched := scheduled("s1", false)
	mismatched.IsValidSchedule = false
	mismatched.RoomMatch = false
	resolver := &fakeResolver{schedules: map[string]*models.Schedule{"Mark_Quibral": mismatched}}
	queue := &fakeQueue{}
	tr := testTracker(t, resolver, queue)

	events := tr.Observe(context.Background(), []string{"Mark_Quibral"}, start)

	if hasEvent(events, models.EventNoSchedule) {
		t.Error("a room-mismatched schedule is not the same as no schedule")
	}
	if len(queue.timeIns) != 0 {
		t.Errorf("timeIns = %d, mismatched room must not log attendance", len(queue.timeIns))
	}
	summary, _ := tr.Summary("Mark_Quibral", start)
	if summary.Schedule == nil || summary.Schedule.IsValidSchedule {
		t.Errorf("summary schedule = %+v, want held with IsValidSchedule false", summary.Schedule)
	}
}

func TestTracker_ScheduledSessionIsReResolved(t *testing.T) {
	resolver := &fakeResolver{schedules: map[string]*models.Schedule{"Mark_Quibral": scheduled("s1", false)}}
	queue := &fakeQueue{}
	tr := testTracker(t, resolver, queue)

	// Continuously present well past the recheck interval.
	for i := 0; i <= 12; i++ {
		tr.Observe(context.Background(), []string{"Mark_Quibral"}, start.Add(time.Duration(i)*time.Minute))
	}
	if resolver.calls < 3 {
		t.Errorf("resolver calls = %d, want admit plus rechecks", resolver.calls)
	}
	if len(queue.timeIns) != 1 {
		t.Errorf("timeIns = %d, re-resolving the same class must not re-log", len(queue.timeIns))
	}
}

func TestTracker_ClassEndMidSessionLogsTimeOut(t *testing.T) {
	resolver := &fakeResolver{schedules: map[string]*models.Schedule{"Mark_Quibral": scheduled("s1", false)}}
	queue := &fakeQueue{}
	tr := testTracker(t, resolver, queue)

	tr.Observe(context.Background(), []string{"Mark_Quibral"}, start)

	// The class window closes while the person stays in view.
	delete(resolver.schedules, "Mark_Quibral")
	events := tr.Observe(context.Background(), []string{"Mark_Quibral"}, start.Add(6*time.Minute))

	if !hasEvent(events, models.EventTimeOut) {
		t.Fatalf("events = %v", eventTypes(events))
	}
	if len(queue.timeOuts) != 1 {
		t.Fatalf("timeOuts = %d", len(queue.timeOuts))
	}
	if got := queue.timeOuts[0].totalMinutes; got != 6 {
		t.Errorf("totalMinutes = %v, want 6", got)
	}
	summary, _ := tr.Summary("Mark_Quibral", start.Add(6*time.Minute))
	if summary.Schedule != nil {
		t.Error("ended class must not stay attached to the session")
	}
	if !summary.IsPresent {
		t.Error("person is still in view")
	}
}

func TestTracker_ClassChangeStartsNewAttendance(t *testing.T) {
	resolver := &fakeResolver{schedules: map[string]*models.Schedule{"Mark_Quibral": scheduled("s1", false)}}
	queue := &fakeQueue{}
	tr := testTracker(t, resolver, queue)

	tr.Observe(context.Background(), []string{"Mark_Quibral"}, start)

	// Back-to-back classes: the next period resolves while still present.
	resolver.schedules["Mark_Quibral"] = scheduled("s2", false)
	events := tr.Observe(context.Background(), []string{"Mark_Quibral"}, start.Add(6*time.Minute))

	if !hasEvent(events, models.EventTimeOut) || !hasEvent(events, models.EventTimeIn) {
		t.Fatalf("events = %v", eventTypes(events))
	}
	if len(queue.timeOuts) != 1 || queue.timeOuts[0].scheduleID != "s1" {
		t.Errorf("timeOuts = %+v", queue.timeOuts)
	}
	if len(queue.timeIns) != 2 || queue.timeIns[1].scheduleID != "s2" {
		t.Errorf("timeIns = %+v", queue.timeIns)
	}
}

func TestTracker_RecheckRespectsInterval(t *testing.T) {
	resolver := &fakeResolver{schedules: map[string]*models.Schedule{}}
	queue := &fakeQueue{}
	tr := testTracker(t, resolver, queue)

	tr.Observe(context.Background(), []string{"Mark_Quibral"}, start)
	callsAfterAdmit := resolver.calls

	// Sightings inside the recheck interval must not hit the resolver.
	tr.Observe(context.Background(), []string{"Mark_Quibral"}, start.Add(time.Minute))
	tr.Observe(context.Background(), []string{"Mark_Quibral"}, start.Add(2*time.Minute))
	if resolver.calls != callsAfterAdmit {
		t.Errorf("resolver calls = %d, want %d", resolver.calls, callsAfterAdmit)
	}
}

func TestTracker_EvictionAllowsFreshSession(t *testing.T) {
	resolver := &fakeResolver{schedules: map[string]*models.Schedule{"Mark_Quibral": scheduled("s1", false)}}
	queue := &fakeQueue{}
	tr := testTracker(t, resolver, queue)

	tr.Observe(context.Background(), []string{"Mark_Quibral"}, start)
	tr.Observe(context.Background(), nil, start.Add(10*time.Minute)) // left

	// Past the cleanup timeout the session is evicted.
	tr.Observe(context.Background(), nil, start.Add(80*time.Minute))
	if _, ok := tr.Summary("Mark_Quibral", start.Add(80*time.Minute)); ok {
		t.Fatal("session should have been evicted")
	}

	// A reappearance is a brand new session with a fresh time in.
	events := tr.Observe(context.Background(), []string{"Mark_Quibral"}, start.Add(81*time.Minute))
	if !hasEvent(events, models.EventFirstDetected) {
		t.Fatalf("events = %v", eventTypes(events))
	}
	if len(queue.timeIns) != 2 {
		t.Errorf("timeIns = %d, want 2", len(queue.timeIns))
	}
}

func TestTracker_AccrualAcrossSightings(t *testing.T) {
	resolver := &fakeResolver{schedules: map[string]*models.Schedule{"Mark_Quibral": scheduled("s1", false)}}
	queue := &fakeQueue{}
	tr := testTracker(t, resolver, queue)

	tr.Observe(context.Background(), []string{"Mark_Quibral"}, start)
	tr.Observe(context.Background(), []string{"Mark_Quibral"}, start.Add(3*time.Minute))

	summary, _ := tr.Summary("Mark_Quibral", start.Add(3*time.Minute))
	if summary.TotalMinutes != 3 {
		t.Errorf("total = %v minutes, want 3", summary.TotalMinutes)
	}
}

func TestTracker_DuplicateNamesInOneFrame(t *testing.T) {
	resolver := &fakeResolver{schedules: map[string]*models.Schedule{"Mark_Quibral": scheduled("s1", false)}}
	queue := &fakeQueue{}
	tr := testTracker(t, resolver, queue)

	events := tr.Observe(context.Background(), []string{"Mark_Quibral", "Mark_Quibral"}, start)

	count := 0
	for _, e := range events {
		if e.Type == models.EventTimeIn {
			count++
		}
	}
	if count != 1 {
		t.Errorf("time in events = %d, want 1", count)
	}
}

func TestTracker_Summaries(t *testing.T) {
	resolver := &fakeResolver{schedules: map[string]*models.Schedule{"Mark_Quibral": scheduled("s1", false)}}
	queue := &fakeQueue{}
	tr := testTracker(t, resolver, queue)

	tr.Observe(context.Background(), []string{"Mark_Quibral", "Allen_Garcia"}, start)

	summaries := tr.Summaries(start)
	if len(summaries) != 2 {
		t.Fatalf("summaries = %d", len(summaries))
	}
	if summaries[0].Name != "Allen_Garcia" || summaries[1].Name != "Mark_Quibral" {
		t.Errorf("order: %s, %s", summaries[0].Name, summaries[1].Name)
	}
}
