package models

// Schedule is one class schedule for an instructor, as stored in the local
// cache and returned by the remote lookup. StartTime/EndTime are "HH:MM",
// semester dates are "YYYY-MM-DD", Days maps "mon".."sun" to enabled.
type Schedule struct {
	ID            string          `json:"_id"`
	InstructorID  string          `json:"instructor_id,omitempty"`
	Instructor    string          `json:"instructor_name"`
	CourseCode    string          `json:"courseCode"`
	CourseTitle   string          `json:"courseTitle"`
	Room          string          `json:"room"`
	StartTime     string          `json:"startTime"`
	EndTime       string          `json:"endTime"`
	Days          map[string]bool `json:"days"`
	SemesterStart string          `json:"semesterStartDate"`
	SemesterEnd   string          `json:"semesterEndDate"`

	// Resolution results, filled in by the schedule resolver.
	IsValidSchedule bool `json:"isValidSchedule"`
	TimeMatch       bool `json:"timeMatch"`
	RoomMatch       bool `json:"roomMatch"`
	IsLate          bool `json:"isLate"`
}
