package models

// DetectedFace is a single face found in a frame: bounding box in source
// pixel space, detector confidence and the L2-normalized embedding vector.
type DetectedFace struct {
	X         int
	Y         int
	Width     int
	Height    int
	Score     float32
	Embedding []float32
}

// MatchResult pairs a detected face with the best known identity.
// Recognized is false when the similarity fell below the recognition
// threshold; such faces are excluded from all downstream processing.
type MatchResult struct {
	Face       DetectedFace
	Name       string
	Score      float32
	Recognized bool
}
