package room

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/wfunc/tabletop/logger"
	"github.com/wfunc/tabletop/models"
	"github.com/wfunc/tabletop/network"
)

// outcome tells Handle what to do after a transition ran.
type outcome int

const (
	dropRejected outcome = iota
	dropRateLimited
	persistDebounced
	persistNow
)

// transition runs with r.mu held. It must not block.
type transition func(r *Room, m *member, ev network.Event) outcome

var transitions = map[string]transition{
	network.TypeMoveTokenRequest: moveToken,
	network.TypeAddToken:         addToken,
	network.TypeRemoveToken:      removeToken,
	network.TypeUpdateToken:      updateToken,
	network.TypeRevealFog:        revealFog,
	network.TypeResetFog:         resetFog,
	network.TypeUpdateMap:        updateMap,
}

func moveToken(r *Room, m *member, ev network.Event) outcome {
	req := ev.(network.MoveTokenRequest)
	_, tok := r.findTokenLocked(req.TokenID)
	if tok == nil || !m.canModify(tok) {
		return dropRejected
	}
	if !r.allowMoveLocked(m.userID) {
		return dropRateLimited
	}

	tok.Position = SnapToGrid(req.Position, r.config.GridSize, r.config.SnapToGrid)
	// 发送者也会收到，客户端以服务端位置为准
	r.broadcastLocked(network.NewTokenMoved(tok.ID, tok.Position), nil)
	return persistDebounced
}

func addToken(r *Room, m *member, ev network.Event) outcome {
	req := ev.(network.AddToken)
	tok := req.Token.Clone()
	tok.ID = uuid.NewString()
	tok.OwnerUserID = m.userID

	r.tokens = append(r.tokens, tok)
	r.broadcastLocked(network.NewTokenAdded(tok.Clone()), nil)
	return persistDebounced
}

func removeToken(r *Room, m *member, ev network.Event) outcome {
	req := ev.(network.RemoveToken)
	i, tok := r.findTokenLocked(req.TokenID)
	if tok == nil || !m.canModify(tok) {
		return dropRejected
	}

	r.tokens = append(r.tokens[:i], r.tokens[i+1:]...)
	r.broadcastLocked(network.NewTokenRemoved(tok.ID), nil)
	return persistDebounced
}

func updateToken(r *Room, m *member, ev network.Event) outcome {
	if m.role != RoleGM {
		return dropRejected
	}
	req := ev.(network.UpdateToken)
	_, tok := r.findTokenLocked(req.TokenID)
	if tok == nil {
		return dropRejected
	}

	applied, err := tok.Merge(req.Changes)
	if err != nil {
		logger.Log.Debugw("update token rejected", "room", r.ID, "token", tok.ID, "error", err)
		return dropRejected
	}
	r.broadcastLocked(network.NewTokenUpdated(tok.ID, cloneChanges(applied)), nil)
	return persistDebounced
}

func revealFog(r *Room, m *member, ev network.Event) outcome {
	if m.role != RoleGM {
		return dropRejected
	}
	req := ev.(network.RevealFog)
	r.fog.reveal(req.Cells)

	// GM 本地已经先行揭开，不回发给他
	r.broadcastLocked(network.NewFogUpdated(models.FogState{RevealedCells: r.fog.list()}), m.client)
	return persistDebounced
}

func resetFog(r *Room, m *member, _ network.Event) outcome {
	if m.role != RoleGM {
		return dropRejected
	}
	r.fog.reset()
	r.broadcastLocked(network.NewFogUpdated(models.FogState{RevealedCells: r.fog.list()}), nil)
	return persistNow
}

func updateMap(r *Room, m *member, ev network.Event) outcome {
	if m.role != RoleGM {
		return dropRejected
	}
	req := ev.(network.UpdateMap)
	r.config = r.config.Apply(req.Config)
	r.broadcastLocked(network.NewMapUpdated(r.config), nil)
	return persistNow
}

func cloneChanges(in map[string]json.RawMessage) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
