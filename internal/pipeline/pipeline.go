package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"attendance/internal/embeddings"
	"attendance/internal/frame"
	"attendance/internal/logger"
	"attendance/internal/matcher"
	"attendance/internal/models"
	"attendance/internal/session"
)

// takeTimeout bounds how long the detection stage waits for a frame before
// re-checking the reload signal and ticking the absence monitor.
const takeTimeout = 100 * time.Millisecond

// Detector turns one encoded frame into detected faces with embeddings.
type Detector interface {
	DetectAndEmbed(data []byte) (faces []models.DetectedFace, width, height int, err error)
}

// Pipeline runs the detection stage: take the latest frame, recognize the
// faces in it, feed the session tracker and publish the current result for
// the emitter to pick up.
type Pipeline struct {
	channel  *frame.Channel
	store    *embeddings.Store
	encoder  embeddings.Encoder
	detector Detector
	matcher  *matcher.Matcher
	tracker  *session.Tracker
	log      *logger.Logger

	latest atomic.Pointer[models.Result]

	// Events queue up between emission ticks so none are lost when the
	// emitter skips an unchanged result.
	eventsMu sync.Mutex
	events   []models.Event

	now func() time.Time
}

func New(channel *frame.Channel, store *embeddings.Store, encoder embeddings.Encoder, detector Detector, m *matcher.Matcher, tracker *session.Tracker, log *logger.Logger) *Pipeline {
	p := &Pipeline{
		channel:  channel,
		store:    store,
		encoder:  encoder,
		detector: detector,
		matcher:  m,
		tracker:  tracker,
		log:      log,
		now:      time.Now,
	}
	p.latest.Store(&models.Result{})
	return p
}

// Run is the detection loop. It returns when the frame channel closes or the
// context is cancelled.
func (p *Pipeline) Run(ctx context.Context) {
	p.log.Info("Detection stage started")
	defer p.log.Info("Detection stage stopped")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if p.store.ReloadIfRequested(p.encoder) {
			p.log.Info("Known faces reloaded, %d identities live", p.store.Current().Count())
		}

		f, ok := p.channel.TakeLatest(takeTimeout)
		if !ok {
			return
		}
		if f == nil {
			// No frame this round; absence detection must still run so
			// that an idle camera times people out.
			p.collect(p.tracker.Observe(ctx, nil, p.now()))
			continue
		}

		p.process(ctx, f)
	}
}

func (p *Pipeline) process(ctx context.Context, f *frame.Frame) {
	now := p.now()

	faces, width, height, err := p.detector.DetectAndEmbed(f.Data)
	if err != nil {
		p.log.Warning("Frame %d dropped, inference failed: %v", f.Seq, err)
		p.latest.Store(&models.Result{})
		p.collect(p.tracker.Observe(ctx, nil, now))
		return
	}

	queries := make([][]float32, len(faces))
	for i := range faces {
		queries[i] = faces[i].Embedding
	}
	matches := p.matcher.Match(p.store.Current(), queries)

	var names []string
	for _, m := range matches {
		if m.Recognized {
			names = append(names, m.Name)
		}
	}
	events := p.tracker.Observe(ctx, names, now)

	result := &models.Result{
		Faces:       make([]models.FaceResult, 0, len(names)),
		Events:      events,
		FrameWidth:  width,
		FrameHeight: height,
	}
	for i, m := range matches {
		if !m.Recognized {
			continue
		}
		summary, ok := p.tracker.Summary(m.Name, now)
		if !ok {
			continue
		}
		result.Faces = append(result.Faces, models.FaceResult{
			Box:             [4]int{faces[i].X, faces[i].Y, faces[i].Width, faces[i].Height},
			Name:            m.Name,
			Score:           float64(m.Score),
			Session:         summary,
			HasSchedule:     summary.Schedule != nil,
			IsValidSchedule: summary.Schedule != nil && summary.Schedule.IsValidSchedule,
		})
	}

	p.latest.Store(result)
	p.collect(events)
}

// Latest returns the most recently published result snapshot.
func (p *Pipeline) Latest() *models.Result {
	return p.latest.Load()
}

func (p *Pipeline) collect(events []models.Event) {
	if len(events) == 0 {
		return
	}
	p.eventsMu.Lock()
	p.events = append(p.events, events...)
	p.eventsMu.Unlock()
}

// DrainEvents hands all queued events to the caller exactly once.
func (p *Pipeline) DrainEvents() []models.Event {
	p.eventsMu.Lock()
	defer p.eventsMu.Unlock()
	events := p.events
	p.events = nil
	return events
}
