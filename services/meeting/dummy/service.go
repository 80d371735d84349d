package dummymeeting

import (
	"context"
	"strconv"
	"sync"

	"github.com/trezcool/darasa/core/room"
)

// Service is an in-memory meeting gateway for tests. Behaviour is scripted
// per account via LiveCounts and the Err* hooks; every call is recorded.
type Service struct {
	mu sync.Mutex

	nextID int64

	// LiveCounts maps account ID to the number of live meetings reported.
	LiveCounts map[string]int

	Created     []room.Meeting
	Registrants map[string][]room.NewRegistrant // keyed by meeting ID
	Reports     map[string][]room.ReportParticipant

	ErrCreate     error
	ErrGet        error
	ErrCount      error
	ErrRegistrant error
	ErrReport     error

	CreateCalls int
	CountCalls  int
}

var _ room.MeetingService = (*Service)(nil)

func NewService() *Service {
	return &Service{
		nextID:      9000,
		LiveCounts:  make(map[string]int),
		Registrants: make(map[string][]room.NewRegistrant),
		Reports:     make(map[string][]room.ReportParticipant),
	}
}

func (svc *Service) CreateMeeting(ctx context.Context, acct room.Account, nm room.NewMeeting) (room.Meeting, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	svc.CreateCalls++
	if svc.ErrCreate != nil {
		return room.Meeting{}, svc.ErrCreate
	}

	svc.nextID++
	id := strconv.FormatInt(svc.nextID, 10)
	m := room.Meeting{
		ID:        id,
		UUID:      "uuid-" + id,
		Topic:     nm.Topic,
		HostEmail: acct.Email,
		StartURL:  "https://meet.test/s/" + id,
		JoinURL:   "https://meet.test/j/" + id,
		StartTime: nm.StartTime,
		Duration:  nm.Duration,
	}
	svc.Created = append(svc.Created, m)
	return m, nil
}

func (svc *Service) GetMeeting(ctx context.Context, acct room.Account, meetingID string) (room.Meeting, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if svc.ErrGet != nil {
		return room.Meeting{}, svc.ErrGet
	}
	for _, m := range svc.Created {
		if m.ID == meetingID {
			return m, nil
		}
	}
	return room.Meeting{
		ID:       meetingID,
		StartURL: "https://meet.test/s/" + meetingID,
		JoinURL:  "https://meet.test/j/" + meetingID,
	}, nil
}

func (svc *Service) CountLiveMeetings(ctx context.Context, acct room.Account) (int, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	svc.CountCalls++
	if svc.ErrCount != nil {
		return 0, svc.ErrCount
	}
	return svc.LiveCounts[acct.ID], nil
}

func (svc *Service) AddRegistrant(ctx context.Context, acct room.Account, meetingID string, nr room.NewRegistrant) (room.MeetingRegistrant, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if svc.ErrRegistrant != nil {
		return room.MeetingRegistrant{}, svc.ErrRegistrant
	}
	svc.Registrants[meetingID] = append(svc.Registrants[meetingID], nr)
	return room.MeetingRegistrant{
		ID:      "reg-" + nr.Email,
		JoinURL: "https://meet.test/j/" + meetingID + "?tk=" + nr.Email,
	}, nil
}

func (svc *Service) GetParticipantReport(ctx context.Context, acct room.Account, meetingID string) ([]room.ReportParticipant, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if svc.ErrReport != nil {
		return nil, svc.ErrReport
	}
	return svc.Reports[meetingID], nil
}
