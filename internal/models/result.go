package models

// FaceResult is one recognized face in an emitted result.
type FaceResult struct {
	Box             [4]int         `json:"box"`
	Name            string         `json:"name"`
	Score           float64        `json:"score"`
	Session         SessionSummary `json:"session"`
	HasSchedule     bool           `json:"has_schedule"`
	IsValidSchedule bool           `json:"is_valid_schedule"`
}

// Result is the JSON object published to viewers on each emission tick.
type Result struct {
	Faces       []FaceResult `json:"faces"`
	Events      []Event      `json:"events"`
	FrameWidth  int          `json:"frame_width"`
	FrameHeight int          `json:"frame_height"`
}
