package widget

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nilebyte/site/backend/internal/model/chat"
)

// Identity holds the session token of one widget mount.
type Identity struct {
	once    sync.Once
	session chat.Session
}

// EnsureSessionID returns the mount's session id, generating it on first use.
func (i *Identity) EnsureSessionID() string {
	return i.Session().ID
}

// Session returns the mount's session, generating it on first use.
func (i *Identity) Session() chat.Session {
	i.once.Do(func() {
		i.session = chat.Session{
			ID:        uuid.NewString(),
			CreatedAt: time.Now().UTC(),
		}
	})
	return i.session
}
