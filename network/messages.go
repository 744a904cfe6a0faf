package network

import (
	"encoding/json"

	"github.com/wfunc/tabletop/models"
)

// RoomView 发给新连接的完整房间状态
type RoomView struct {
	ID             string           `json:"id"`
	Name           string           `json:"name,omitempty"`
	GMUserID       string           `json:"gmUserId,omitempty"`
	Config         models.MapConfig `json:"config"`
	Tokens         []*models.Token  `json:"tokens"`
	FogState       models.FogState  `json:"fogState"`
	ConnectedUsers []string         `json:"connectedUsers"`
}

type SyncState struct {
	Room       RoomView `json:"room"`
	YourRole   string   `json:"yourRole"`
	YourUserID string   `json:"yourUserId"`
}

type StateSync struct {
	Type  string    `json:"type"`
	State SyncState `json:"state"`
}

type UserPresence struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

type TokenMoved struct {
	Type     string          `json:"type"`
	TokenID  string          `json:"tokenId"`
	Position models.Position `json:"position"`
}

type TokenAdded struct {
	Type  string        `json:"type"`
	Token *models.Token `json:"token"`
}

type TokenRemoved struct {
	Type    string `json:"type"`
	TokenID string `json:"tokenId"`
}

type TokenUpdated struct {
	Type    string                     `json:"type"`
	TokenID string                     `json:"tokenId"`
	Changes map[string]json.RawMessage `json:"changes"`
}

type FogUpdated struct {
	Type     string          `json:"type"`
	FogState models.FogState `json:"fogState"`
}

type MapUpdated struct {
	Type   string           `json:"type"`
	Config models.MapConfig `json:"config"`
}

func NewStateSync(view RoomView, role, userID string) StateSync {
	if view.Tokens == nil {
		view.Tokens = []*models.Token{}
	}
	if view.ConnectedUsers == nil {
		view.ConnectedUsers = []string{}
	}
	return StateSync{Type: TypeStateSync, State: SyncState{Room: view, YourRole: role, YourUserID: userID}}
}

func NewUserJoined(userID string) UserPresence {
	return UserPresence{Type: TypeUserJoined, UserID: userID}
}

func NewUserLeft(userID string) UserPresence {
	return UserPresence{Type: TypeUserLeft, UserID: userID}
}

func NewTokenMoved(tokenID string, pos models.Position) TokenMoved {
	return TokenMoved{Type: TypeTokenMoved, TokenID: tokenID, Position: pos}
}

func NewTokenAdded(t *models.Token) TokenAdded {
	return TokenAdded{Type: TypeTokenAdded, Token: t}
}

func NewTokenRemoved(tokenID string) TokenRemoved {
	return TokenRemoved{Type: TypeTokenRemoved, TokenID: tokenID}
}

func NewTokenUpdated(tokenID string, changes map[string]json.RawMessage) TokenUpdated {
	return TokenUpdated{Type: TypeTokenUpdated, TokenID: tokenID, Changes: changes}
}

func NewFogUpdated(fog models.FogState) FogUpdated {
	return FogUpdated{Type: TypeFogUpdated, FogState: fog}
}

func NewMapUpdated(cfg models.MapConfig) MapUpdated {
	return MapUpdated{Type: TypeMapUpdated, Config: cfg}
}

// Encode serializes an outbound message into one text frame.
func Encode(msg any) ([]byte, error) {
	return json.Marshal(msg)
}
