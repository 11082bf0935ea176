package signal

import (
	"github.com/dkeye/Cypher/internal/core"
)

func (rt *Router) handlePing(_ core.SessionID, _ []byte) ([]core.Event, error) {
	return reply(core.NewSimple(core.EvtPong)), nil
}

func (rt *Router) handleWhoAmI(sid core.SessionID, _ []byte) ([]core.Event, error) {
	c, err := rt.orch.WhoAmI(sid)
	if err != nil {
		return nil, err
	}
	return reply(core.NewWhoAmI(c.User, c.Room)), nil
}

// handleRename answers with the updated whoami. Members already in a room
// keep the name they joined with.
func (rt *Router) handleRename(sid core.SessionID, data []byte) ([]core.Event, error) {
	p, err := decode[struct {
		Name string `json:"name"`
	}](data)
	if err != nil {
		return nil, err
	}
	if _, err := rt.orch.Rename(sid, p.Name); err != nil {
		return nil, err
	}
	return rt.handleWhoAmI(sid, nil)
}
