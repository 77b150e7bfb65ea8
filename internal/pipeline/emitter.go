package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"attendance/internal/logger"
	"attendance/internal/models"
)

// Broadcaster delivers an emitted result to connected viewers.
type Broadcaster interface {
	Broadcast(data []byte)
}

// Emitter publishes the pipeline's latest result on a fixed tick, but only
// when something observable changed: the face signature differs from the
// last emission, or events queued up since then.
type Emitter struct {
	pipeline *Pipeline
	hub      Broadcaster
	interval time.Duration
	log      *logger.Logger

	lastSignature string
}

func NewEmitter(p *Pipeline, hub Broadcaster, interval time.Duration, log *logger.Logger) *Emitter {
	return &Emitter{
		pipeline: p,
		hub:      hub,
		interval: interval,
		log:      log,
		// Seeded with the empty result's signature so the first tick on an
		// idle pipeline does not broadcast.
		lastSignature: signature(&models.Result{}),
	}
}

// Run emits until the context ends.
func (e *Emitter) Run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.tick()
		}
	}
}

// tick performs one emission round.
func (e *Emitter) tick() {
	result := e.pipeline.Latest()
	events := e.pipeline.DrainEvents()
	sig := signature(result)

	if sig == e.lastSignature && len(events) == 0 {
		return
	}
	e.lastSignature = sig

	out := models.Result{
		Faces:       result.Faces,
		Events:      events,
		FrameWidth:  result.FrameWidth,
		FrameHeight: result.FrameHeight,
	}
	if out.Events == nil {
		out.Events = []models.Event{}
	}
	if out.Faces == nil {
		out.Faces = []models.FaceResult{}
	}

	data, err := json.Marshal(out)
	if err != nil {
		e.log.Error("Failed to encode result: %v", err)
		return
	}
	e.hub.Broadcast(data)
}

// signature identifies a result by its face count and the sorted recognized
// names, so per-frame box jitter does not cause re-emission.
func signature(r *models.Result) string {
	names := make([]string, len(r.Faces))
	for i, f := range r.Faces {
		names[i] = f.Name
	}
	sort.Strings(names)
	return fmt.Sprintf("%d|%s", len(names), strings.Join(names, ","))
}
