package room

import (
	"context"
	"encoding/json"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
)

// Room statuses. A room is one hosting attempt; a restarted session gets a new
// row, the history is append-only.
const (
	StatusPending = "PENDING"
	StatusLiving  = "LIVING"
	StatusStop    = "STOP"
)

// Account online statuses.
const (
	AccountOnline  = "ONLINE"
	AccountOffline = "OFFLINE"
)

// Presence statuses.
const (
	PresenceWaiting = "WAITING"
	PresenceJoined  = "JOINED"
	PresenceLeft    = "LEFT"
)

// Provider webhook event names.
const (
	EventMeetingStarted    = "meeting.started"
	EventMeetingEnded      = "meeting.ended"
	EventRecordingComplete = "recording.completed"
	EventParticipantJoined = "meeting.participant_joined"
	EventParticipantLeft   = "meeting.participant_left"
)

type (
	// Room is one attempt to host a session live on a provider meeting.
	// Created by the allocator, mutated only by the lifecycle state machine,
	// never deleted.
	Room struct {
		ID           string    `json:"id"`
		SessionID    string    `json:"session_id"`
		AccountID    string    `json:"account_id"`    // snapshot of the host account used
		AccountEmail string    `json:"account_email"` // snapshot; webhooks match on it
		MeetingID    string    `json:"meeting_id"`    // provider meeting id
		MeetingUUID  string    `json:"meeting_uuid"`
		Topic        string    `json:"topic"`
		StartURL     string    `json:"-"` // host URL; never exposed to attendees
		JoinURL      string    `json:"join_url"`
		Status       string    `json:"status"`
		StartTime    null.Time `json:"start_time"`
		EndTime      null.Time `json:"end_time"`
		NotifiedAt   null.Time `json:"-"` // roster fanout guard; survives operator state resets
		LockToken    string    `json:"-"` // account-pool lock held until the started webhook
		CreatedAt    time.Time `json:"created_at"` // UTC
		UpdatedAt    time.Time `json:"updated_at"` // UTC
	}

	// Account is a credentialed external meeting-host identity drawn from the
	// shared pool.
	Account struct {
		ID           string    `json:"id"`
		Name         string    `json:"name"`
		Email        string    `json:"email"` // host email on the provider side
		APIKey       string    `json:"-"`
		APISecret    string    `json:"-"`
		HostUserID   string    `json:"host_user_id"` // provider user id; defaults to Email
		OnlineStatus string    `json:"online_status"`
		IsActive     bool      `json:"is_active"`
		CreatedAt    time.Time `json:"created_at"` // UTC
		UpdatedAt    time.Time `json:"updated_at"` // UTC
	}

	// Presence is a per-room per-user record of intent-to-join and actual
	// join/leave timestamps.
	Presence struct {
		ID           string    `json:"id"`
		RoomID       string    `json:"room_id"`
		UserID       string    `json:"user_id"` // empty when only the provider email is known
		Name         string    `json:"name"`
		Email        string    `json:"email"`
		RegistrantID string    `json:"registrant_id"` // provider registrant id
		JoinURL      string    `json:"join_url"`
		Status       string    `json:"status"`
		JoinedAt     null.Time `json:"joined_at"`
		LeftAt       null.Time `json:"left_at"`
		Duration     int       `json:"duration"` // seconds, reconciled from the provider report
		CreatedAt    time.Time `json:"created_at"` // UTC
		UpdatedAt    time.Time `json:"updated_at"` // UTC
	}

	// WebhookEvent is an immutable ledger row of a raw inbound provider event,
	// appended before any guard runs.
	WebhookEvent struct {
		ID         string          `json:"id"`
		Event      string          `json:"event"`
		EventTS    time.Time       `json:"event_ts"`
		MeetingID  string          `json:"meeting_id"`
		Payload    json.RawMessage `json:"payload"`
		ReceivedAt time.Time       `json:"received_at"` // UTC
	}

	// InboundEvent is the parsed form of a provider webhook delivery.
	InboundEvent struct {
		Name        string
		Timestamp   time.Time
		MeetingID   string
		HostEmail   string
		Participant EventParticipant
		Recording   EventRecording
		Raw         json.RawMessage
	}

	EventParticipant struct {
		ID       string
		UserID   string
		Name     string
		Email    string
		JoinedAt time.Time
		LeftAt   time.Time
	}

	EventRecording struct {
		ID         string
		PlayURL    string
		ShareURL   string
		RecordedAt time.Time
	}
)

func (r *Room) IsPending() bool { return r.Status == StatusPending }
func (r *Room) IsLiving() bool  { return r.Status == StatusLiving }
func (r *Room) IsStopped() bool { return r.Status == StatusStop }

func (a *Account) IsOnline() bool { return a.OnlineStatus == AccountOnline }

// HostID is the provider-side user the account's meetings are created under.
func (a *Account) HostID() string {
	if a.HostUserID != "" {
		return a.HostUserID
	}
	return a.Email
}

// Provider DTOs. The gateway contract is fixed (external collaborator);
// only what this core consumes is modeled.
type (
	NewMeeting struct {
		Topic     string
		StartTime time.Time
		Duration  time.Duration
		Timezone  string
		Agenda    string
	}

	Meeting struct {
		ID        string
		UUID      string
		Topic     string
		HostEmail string
		StartURL  string
		JoinURL   string
		Password  string
		StartTime time.Time
		Duration  time.Duration
	}

	NewRegistrant struct {
		Email     string
		FirstName string
		LastName  string
	}

	MeetingRegistrant struct {
		ID      string
		JoinURL string
	}

	ReportParticipant struct {
		ID       string
		Name     string
		Email    string
		JoinedAt time.Time
		LeftAt   time.Time
		Duration int // seconds
	}
)

type (
	// GetFilter fields are ANDed; the newest matching Room wins.
	GetFilter struct {
		ID        string
		SessionID string
		MeetingID string
		Status    string
	}

	// QueryFilter fields are ANDed.
	QueryFilter struct {
		SessionID string
		MeetingID string
		Status    string
	}

	AccountGetFilter struct {
		ID    string
		Email string
	}

	AccountQueryFilter struct {
		IsActive *bool
	}

	EventQueryFilter struct {
		MeetingID string
		Event     string
	}
)

type (
	Repository interface {
		CreateRoom(ctx context.Context, rm Room, exec ...core.DBExecutor) (Room, error)
		GetRoom(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (Room, error)
		QueryRooms(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Room, error)
		UpdateRoom(ctx context.Context, rm Room, exec ...core.DBExecutor) (Room, error)
	}

	AccountRepository interface {
		GetAccount(ctx context.Context, filter AccountGetFilter, exec ...core.DBExecutor) (Account, error)
		QueryAccounts(ctx context.Context, filter *AccountQueryFilter, exec ...core.DBExecutor) ([]Account, error)
		UpdateOrCreateAccount(ctx context.Context, acct Account, exec ...core.DBExecutor) (Account, error)
		SetAccountOnline(ctx context.Context, id string, online bool, exec ...core.DBExecutor) error
	}

	PresenceRepository interface {
		GetPresence(ctx context.Context, roomID, email string, exec ...core.DBExecutor) (Presence, error)
		// UpsertPresence creates or updates the row keyed by (RoomID, Email).
		UpsertPresence(ctx context.Context, pr Presence, exec ...core.DBExecutor) (Presence, error)
		QueryRoomPresences(ctx context.Context, roomID string, exec ...core.DBExecutor) ([]Presence, error)
		// CountJoined counts distinct users currently in JOINED state.
		CountJoined(ctx context.Context, roomID string, exec ...core.DBExecutor) (int, error)
	}

	EventRepository interface {
		CreateEvent(ctx context.Context, evt WebhookEvent, exec ...core.DBExecutor) (WebhookEvent, error)
		QueryEvents(ctx context.Context, filter *EventQueryFilter, exec ...core.DBExecutor) ([]WebhookEvent, error)
	}

	// Locker is a distributed, TTL-bound mutual exclusion primitive shared by
	// every server instance. An expired lock is stealable; Unlock with a stale
	// token is a no-op.
	Locker interface {
		TryLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
		Unlock(ctx context.Context, key, token string) error
	}

	// MeetingService wraps the external meeting-host API. Calls are network
	// I/O; callers apply their own deadline and treat a timeout as a provider
	// error, not as proof of failure.
	MeetingService interface {
		CreateMeeting(ctx context.Context, acct Account, nm NewMeeting) (Meeting, error)
		GetMeeting(ctx context.Context, acct Account, meetingID string) (Meeting, error)
		// CountLiveMeetings returns the number of currently running meetings
		// hosted by the account.
		CountLiveMeetings(ctx context.Context, acct Account) (int, error)
		AddRegistrant(ctx context.Context, acct Account, meetingID string, nr NewRegistrant) (MeetingRegistrant, error)
		GetParticipantReport(ctx context.Context, acct Account, meetingID string) ([]ReportParticipant, error)
	}
)
