// Package inmemdb provides mutex-protected, process-memory repositories.
// It backs unit tests and DEV mode; data does not survive the process.
package inmemdb

import (
	"sync"

	"github.com/trezcool/shule/core/chat"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
)

type DB struct {
	mutex    sync.RWMutex
	users    map[string]*user.User
	classes  map[string]*school.Class
	groups   map[string]*chat.Group
	messages []*chat.Message // append-only, insertion ordered
}

func Open() (*DB, error) {
	return &DB{
		users:   make(map[string]*user.User),
		classes: make(map[string]*school.Class),
		groups:  make(map[string]*chat.Group),
	}, nil
}
