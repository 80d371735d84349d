package session

import (
	"time"
)

// Session kinds. Only webinars are live-hosted; the rest are self-paced
// content owned entirely by the CRUD layer.
const (
	KindWebinar = "WEBINAR"
	KindLesson  = "LESSON"
)

// Room statuses as reflected on the session record.
const (
	RoomStatusNew     = "NEW"
	RoomStatusRunning = "RUNNING"
	RoomStatusEnded   = "ENDED"
)

// Roster roles.
const (
	RegistrationRoleLearner    = "learner"
	RegistrationRoleInstructor = "instructor"
)

type (
	// Session is a scheduled live class instance. The record is owned by the
	// course CRUD layer; this core only reads it and mutates RoomStatus and
	// Recordings.
	Session struct {
		ID           string      `json:"id"`
		CourseID     string      `json:"course_id"`
		Name         string      `json:"name"`
		Kind         string      `json:"kind"`
		InstructorID string      `json:"instructor_id"`
		Begin        time.Time   `json:"begin"` // UTC
		End          time.Time   `json:"end"`   // UTC
		AccessCode   string      `json:"-"`     // optional; empty means open to the roster
		RoomStatus   string      `json:"room_status"`
		Recordings   []Recording `json:"recordings"`
		CreatedAt    time.Time   `json:"created_at"` // UTC
		UpdatedAt    time.Time   `json:"updated_at"` // UTC
	}

	// Recording references a provider-hosted recording of a past room.
	Recording struct {
		ID         string    `json:"id"` // provider recording id
		PlayURL    string    `json:"play_url"`
		ShareURL   string    `json:"share_url"`
		RecordedAt time.Time `json:"recorded_at"` // UTC
	}

	// Registration is a roster entry: a user permitted to attend (or teach) a
	// session. Managed outside this core.
	Registration struct {
		ID        string    `json:"id"`
		SessionID string    `json:"session_id"`
		CourseID  string    `json:"course_id"`
		UserID    string    `json:"user_id"`
		UserName  string    `json:"user_name"`
		UserEmail string    `json:"user_email"`
		Role      string    `json:"role"`
		IsActive  bool      `json:"is_active"`
		CreatedAt time.Time `json:"created_at"` // UTC
	}
)

// IsLiveHosted reports whether the session can be backed by a provider room.
func (s *Session) IsLiveHosted() bool { return s.Kind == KindWebinar }

// Duration is the scheduled window length; <= 0 when the window is degenerate.
func (s *Session) Duration() time.Duration { return s.End.Sub(s.Begin) }

// HasRecording reports whether a recording with this provider id was already appended.
func (s *Session) HasRecording(recordingID string) bool {
	for _, rec := range s.Recordings {
		if rec.ID == recordingID {
			return true
		}
	}
	return false
}

func (r *Registration) IsInstructor() bool { return r.Role == RegistrationRoleInstructor }
