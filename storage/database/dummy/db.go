// Package dummydb provides in-memory repositories for tests.
package dummydb

import (
	"sync"
	"time"

	"github.com/trezcool/darasa/core/room"
	"github.com/trezcool/darasa/core/session"
	"github.com/trezcool/darasa/core/user"
)

type (
	DB struct {
		room         *roomTable
		account      *accountTable
		presence     *presenceTable
		event        *eventTable
		session      *sessionTable
		registration *registrationTable
		user         *userTable
		lock         *lockTable
	}

	roomTable struct {
		sync.RWMutex
		table map[string]*room.Room
	}
	accountTable struct {
		sync.RWMutex
		table map[string]*room.Account
	}
	presenceTable struct {
		sync.RWMutex
		table map[string]*room.Presence
	}
	eventTable struct {
		sync.RWMutex
		table map[string]*room.WebhookEvent
	}
	sessionTable struct {
		sync.RWMutex
		table map[string]*session.Session
	}
	registrationTable struct {
		sync.RWMutex
		table map[string]*session.Registration
	}
	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	lease struct {
		holder    string
		expiresAt time.Time
	}
	lockTable struct {
		sync.Mutex
		table map[string]lease
	}
)

func Open() (*DB, error) {
	db := &DB{
		room:         &roomTable{table: make(map[string]*room.Room)},
		account:      &accountTable{table: make(map[string]*room.Account)},
		presence:     &presenceTable{table: make(map[string]*room.Presence)},
		event:        &eventTable{table: make(map[string]*room.WebhookEvent)},
		session:      &sessionTable{table: make(map[string]*session.Session)},
		registration: &registrationTable{table: make(map[string]*session.Registration)},
		user:         &userTable{table: make(map[string]*user.User)},
		lock:         &lockTable{table: make(map[string]lease)},
	}
	return db, nil
}

// SetSession seeds the externally-owned session record.
func (db *DB) SetSession(sess session.Session) {
	db.session.Lock()
	defer db.session.Unlock()
	db.session.table[sess.ID] = &sess
}

// SetRegistration seeds a roster entry.
func (db *DB) SetRegistration(reg session.Registration) {
	db.registration.Lock()
	defer db.registration.Unlock()
	db.registration.table[reg.ID] = &reg
}

// SetUser seeds a user record.
func (db *DB) SetUser(usr user.User) {
	db.user.Lock()
	defer db.user.Unlock()
	db.user.table[usr.ID] = &usr
}
