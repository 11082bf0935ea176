// Package orch wires the registry, rooms and relay into the operations the
// message router dispatches to.
package orch

import (
	"github.com/dkeye/Cypher/internal/app"
	"github.com/dkeye/Cypher/internal/core"
	"github.com/dkeye/Cypher/internal/domain"
	"github.com/rs/zerolog/log"
)

type Orchestrator struct {
	Registry *app.Registry
	Rooms    *app.RoomManager
	Relay    *app.SignalRelay
}

// New subscribes the orchestrator to disconnects. This is the only place
// disconnect cleanup happens.
func New(reg *app.Registry, rooms *app.RoomManager, relay *app.SignalRelay) *Orchestrator {
	o := &Orchestrator{Registry: reg, Rooms: rooms, Relay: relay}
	reg.OnDisconnect(o.onDisconnect)
	return o
}

func (o *Orchestrator) onDisconnect(c app.Connection) {
	o.Rooms.LeaveRoom(c.Room, c.SID)
	o.Relay.Forget(c.SID)
	log.Info().Str("module", "orch").Str("sid", string(c.SID)).Str("room", string(c.Room)).Msg("disconnect cleanup done")
}

func (o *Orchestrator) Connect(conn core.SignalConnection, user domain.User) core.SessionID {
	return o.Registry.Register(conn, user)
}

func (o *Orchestrator) Disconnect(sid core.SessionID) {
	o.Registry.Unregister(sid)
}

func (o *Orchestrator) Touch(sid core.SessionID) {
	o.Registry.Touch(sid)
}

func (o *Orchestrator) WhoAmI(sid core.SessionID) (app.Connection, error) {
	c, ok := o.Registry.Lookup(sid)
	if !ok {
		return app.Connection{}, domain.ErrSessionNotFound
	}
	return c, nil
}

// Signal forwards an opaque payload to a member of the sender's room.
func (o *Orchestrator) Signal(sid core.SessionID, to domain.UserID, payload core.SignalPayload) error {
	return o.Relay.Relay(sid, to, payload)
}

// Rename changes the display name carried by the connection.
func (o *Orchestrator) Rename(sid core.SessionID, name string) (domain.User, error) {
	return o.Registry.Rename(sid, name)
}
