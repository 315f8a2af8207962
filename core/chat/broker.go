package chat

import (
	"context"
	"errors"
	"sync"

	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

var (
	// errors
	ErrNotAuthenticated = errors.New("connection not authenticated")
	ErrNotAuthorized    = errors.New("connection not authorized")

	notAuthorizedNotice = "You are not authorized to join this group"
	appendFailedNotice  = "Your message could not be saved"
)

type (
	// Conn is one open channel to a peer. Send must not block on the peer:
	// transport adapters queue outbound payloads and surface peer failures
	// through their own read loop.
	Conn interface {
		Send(p Payload) error
		Close() error
	}

	// SessionAuthenticator resolves a bearer credential to a user identity.
	// It fails open to anonymous (ok == false) on any validation error and
	// never errors out to the caller.
	SessionAuthenticator interface {
		Authenticate(ctx context.Context, credential string) (usr user.User, ok bool)
	}

	// Subscription is the ephemeral, process-memory-only association between
	// one authenticated user and one live group channel. It never outlives
	// the underlying transport.
	Subscription struct {
		usr     user.User
		groupID string
		conn    Conn
	}

	liveGroup struct {
		mu   sync.Mutex
		subs map[*Subscription]struct{}
	}

	// Broker owns the registry of live connections per group and relays
	// accepted messages: append to the store, then fan out to every live
	// connection in the same group. One broker instance is shared across all
	// connections; the registry is an injected broker-owned structure, not a
	// package singleton.
	Broker struct {
		sessions SessionAuthenticator
		svc      ServiceInterface
		logger   core.Logger

		mu     sync.Mutex
		groups map[string]*liveGroup
	}
)

func (s *Subscription) User() user.User { return s.usr }

func (s *Subscription) GroupID() string { return s.groupID }

func NewBroker(sessions SessionAuthenticator, svc ServiceInterface, logger core.Logger) *Broker {
	return &Broker{
		sessions: sessions,
		svc:      svc,
		logger:   logger,
		groups:   make(map[string]*liveGroup),
	}
}

func (b *Broker) group(id string) *liveGroup {
	b.mu.Lock()
	defer b.mu.Unlock()
	g, ok := b.groups[id]
	if !ok {
		g = &liveGroup{subs: make(map[*Subscription]struct{})}
		b.groups[id] = g
	}
	return g
}

// Connect runs the admission sequence for a new transport connection:
// authenticate the credential, authorize group membership, register the
// connection and replay stored history before any live traffic.
//
// An anonymous credential is rejected with no payload at all; a known but
// unauthorized identity receives exactly one Notice. The caller closes the
// transport in both cases.
func (b *Broker) Connect(ctx context.Context, credential, groupID string, conn Conn) (*Subscription, error) {
	usr, ok := b.sessions.Authenticate(ctx, credential)
	if !ok {
		return nil, ErrNotAuthenticated
	}

	if !b.svc.CanJoin(ctx, usr, groupID) {
		_ = conn.Send(Notice{Message: notAuthorizedNotice})
		return nil, ErrNotAuthorized
	}

	sub := &Subscription{usr: usr, groupID: groupID, conn: conn}
	g := b.group(groupID)
	g.mu.Lock()
	defer g.mu.Unlock()
	g.subs[sub] = struct{}{}

	// The group lock is held across the history fetch and send so concurrent
	// broadcasts queue up strictly after the replay payload.
	history, err := b.svc.GroupHistory(ctx, groupID)
	if err != nil {
		b.logger.Error("fetching group history", pkgerrors.Wrap(err, "fetching group history"), usr)
		history = nil
	}
	_ = conn.Send(ConnectionEstablished{Chats: history})
	return sub, nil
}

// Publish persists one inbound message body and rebroadcasts the persisted
// record to every live connection of the group, the sender included. Empty
// bodies are silently dropped. A persistence failure is reported back to the
// originating connection only; the subscription stays open.
//
// The per-group lock is held across append and fan-out: the store is the
// single ordering authority and broadcast order matches store-append order.
func (b *Broker) Publish(ctx context.Context, sub *Subscription, body string) error {
	if sub == nil || body == "" {
		return nil
	}

	g := b.group(sub.groupID)
	g.mu.Lock()
	defer g.mu.Unlock()

	msg, err := b.svc.AppendMessage(ctx, sub.groupID, sub.usr, body)
	if err != nil {
		_ = sub.conn.Send(Notice{Message: appendFailedNotice})
		return pkgerrors.Wrap(err, "appending message")
	}

	out := MessageBroadcast{Chat: msg.View()}
	for s := range g.subs {
		// a failed send surfaces in that peer's own read loop; it never
		// affects the other connections
		_ = s.conn.Send(out)
	}
	return nil
}

// Disconnect deregisters the connection from its group registry. It is
// idempotent: deregistering a nil, rejected or already-absent subscription is
// a no-op.
func (b *Broker) Disconnect(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	g, ok := b.groups[sub.groupID]
	b.mu.Unlock()
	if !ok {
		return
	}
	// the (empty) group entry is kept: dropping it here could orphan a
	// registration racing on the same liveGroup
	g.mu.Lock()
	delete(g.subs, sub)
	g.mu.Unlock()
}
