// Package identity supplies the acting user to the repositories and derives
// it from bearer tokens at the HTTP edge.
package identity

import "github.com/supportsphere/helpdesk/internal/domain"

// Session is the identity an operation runs as.
type Session interface {
	Actor() (domain.Actor, bool)
}

type session struct {
	actor domain.Actor
	ok    bool
}

func (s session) Actor() (domain.Actor, bool) {
	return s.actor, s.ok
}

// Authenticated returns a session acting as actor.
func Authenticated(actor domain.Actor) Session {
	return session{actor: actor, ok: actor.ID != ""}
}

// Anonymous returns a session with no actor.
func Anonymous() Session {
	return session{}
}
