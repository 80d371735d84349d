package room

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
)

type sessionStartedData struct {
	SessionID   string
	SessionName string
	Begin       time.Time
}

// notifyStarted fans the "session started" notification out to the roster.
// Each recipient is resolved once; the instructor is excluded from the learner
// batch and gets the host variant instead. Callers gate this on Room.NotifiedAt
// so a replayed webhook never re-notifies.
func (svc *Service) notifyStarted(ctx context.Context, rm Room) {
	sess, err := svc.sessions.GetSession(ctx, rm.SessionID)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("room: finding session %s for fanout: %v", rm.SessionID, err), err)
		return
	}
	roster, err := svc.sessions.QueryRoster(ctx, rm.SessionID)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("room: querying roster of session %s: %v", rm.SessionID, err), err)
		return
	}

	seen := make(map[string]bool, len(roster))
	var learners, hosts []mail.Address
	for _, reg := range roster {
		if !reg.IsActive || reg.UserEmail == "" || seen[reg.UserEmail] {
			continue
		}
		seen[reg.UserEmail] = true
		addr := mail.Address{Name: reg.UserName, Address: reg.UserEmail}
		if reg.UserID == sess.InstructorID || reg.IsInstructor() {
			hosts = append(hosts, addr)
		} else {
			learners = append(learners, addr)
		}
	}

	// the instructor may not be a roster entry; resolve them from the user store
	if sess.InstructorID != "" {
		if usr, uerr := svc.users.GetUser(ctx, user.GetFilter{ID: sess.InstructorID}); uerr == nil {
			if usr.Email != "" && !seen[usr.Email] {
				seen[usr.Email] = true
				hosts = append(hosts, mail.Address{Name: usr.Name, Address: usr.Email})
			}
		}
	}

	data := sessionStartedData{
		SessionID:   sess.ID,
		SessionName: sess.Name,
		Begin:       sess.Begin,
	}

	var msgs []*core.EmailMessage
	if len(learners) > 0 {
		msgs = append(msgs, &core.EmailMessage{
			Bcc:          learners, // keeps learner addresses private
			Subject:      fmt.Sprintf("%s is live", sess.Name),
			TemplateName: "session-started",
			TemplateData: data,
		})
	}
	if len(hosts) > 0 {
		msgs = append(msgs, &core.EmailMessage{
			To:           hosts,
			Subject:      fmt.Sprintf("Your class %s is live", sess.Name),
			TemplateName: "session-started-host",
			TemplateData: data,
		})
	}
	if len(msgs) > 0 {
		svc.mail.SendMessages(msgs...)
	}
}
