package runtime

import (
	"chat-relay/domain"
)

// PresenceDirectory maps live connections to identities and back.
// It is owned by the routing engine and is not safe for concurrent use.
type PresenceDirectory struct {
	byConnection map[domain.ConnectionID]domain.Identity
	byNickname   map[string]domain.ConnectionID
}

func NewPresenceDirectory() *PresenceDirectory {
	return &PresenceDirectory{
		byConnection: make(map[domain.ConnectionID]domain.Identity),
		byNickname:   make(map[string]domain.ConnectionID),
	}
}

// Register binds a connection to an identity. A newer session under the same
// nickname takes over the nickname mapping, the older connection stays resolvable.
// It returns the connection that previously owned the nickname, if any.
func (p *PresenceDirectory) Register(conn domain.ConnectionID, identity domain.Identity) (domain.ConnectionID, bool) {
	previous, taken := p.byNickname[identity.Nickname]
	p.byConnection[conn] = identity
	p.byNickname[identity.Nickname] = conn
	return previous, taken && previous != conn
}

// Unregister forgets a connection. The nickname mapping is only dropped while
// it still points at this connection.
func (p *PresenceDirectory) Unregister(conn domain.ConnectionID) {
	identity, ok := p.byConnection[conn]
	if !ok {
		return
	}
	delete(p.byConnection, conn)
	if p.byNickname[identity.Nickname] == conn {
		delete(p.byNickname, identity.Nickname)
	}
}

func (p *PresenceDirectory) Resolve(conn domain.ConnectionID) (domain.Identity, bool) {
	identity, ok := p.byConnection[conn]
	return identity, ok
}

func (p *PresenceDirectory) ConnectionFor(nickname string) (domain.ConnectionID, bool) {
	conn, ok := p.byNickname[nickname]
	return conn, ok
}

// Rename moves every connection of oldNickname to newNickname.
func (p *PresenceDirectory) Rename(oldNickname, newNickname string) {
	for conn, identity := range p.byConnection {
		if identity.Nickname == oldNickname {
			identity.Nickname = newNickname
			p.byConnection[conn] = identity
		}
	}
	if conn, ok := p.byNickname[oldNickname]; ok {
		delete(p.byNickname, oldNickname)
		p.byNickname[newNickname] = conn
	}
}

// Forget drops the nickname mapping of a deleted identity so nothing new is routed to it.
// Live connections keep their session until they disconnect.
func (p *PresenceDirectory) Forget(nickname string) {
	delete(p.byNickname, nickname)
}

func (p *PresenceDirectory) Len() int {
	return len(p.byConnection)
}
