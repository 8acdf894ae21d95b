package inmemdb

import (
	"sync"

	"github.com/mozedu/mozedu/core/chat"
	"github.com/mozedu/mozedu/core/school"
	"github.com/mozedu/mozedu/core/user"
)

type (
	// DB is a process-local store implementing the repositories. Used by tests and `chat.store=memory`.
	DB struct {
		user   *userTable
		school *schoolTable
		chat   *chatTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	schoolTable struct {
		sync.RWMutex
		children []school.Child
		events   []school.Event
	}

	chatTable struct {
		sync.RWMutex
		sessions map[string]*chat.Session
		messages map[string][]chat.Message // {sessionID: messages}
	}
)

func Open() *DB {
	return &DB{
		user:   &userTable{table: make(map[string]*user.User)},
		school: &schoolTable{},
		chat: &chatTable{
			sessions: make(map[string]*chat.Session),
			messages: make(map[string][]chat.Message),
		},
	}
}

// Reset empties every table.
func (db *DB) Reset() {
	db.user.Lock()
	db.user.table = make(map[string]*user.User)
	db.user.Unlock()

	db.school.Lock()
	db.school.children, db.school.events = nil, nil
	db.school.Unlock()

	db.chat.Lock()
	db.chat.sessions = make(map[string]*chat.Session)
	db.chat.messages = make(map[string][]chat.Message)
	db.chat.Unlock()
}
