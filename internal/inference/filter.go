package inference

import (
	"attendance/internal/models"
)

// FilterOptions hold the geometric and confidence gates applied to raw
// detector output before any embedding work is spent on a face.
type FilterOptions struct {
	MinScore       float32
	MinSize        int
	MinAspectRatio float64
	MaxAspectRatio float64
}

// Keep reports whether a detection passes every gate. Partial faces at the
// frame edge produce unstable embeddings, so containment is strict.
func (o FilterOptions) Keep(f models.DetectedFace, frameWidth, frameHeight int) bool {
	if f.Score < o.MinScore {
		return false
	}
	if f.Width < o.MinSize || f.Height < o.MinSize {
		return false
	}
	if f.Height > 0 {
		ratio := float64(f.Width) / float64(f.Height)
		if ratio < o.MinAspectRatio || ratio > o.MaxAspectRatio {
			return false
		}
	}
	if f.X < 0 || f.Y < 0 || f.X+f.Width > frameWidth || f.Y+f.Height > frameHeight {
		return false
	}
	return true
}
