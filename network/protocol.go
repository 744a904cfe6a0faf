package network

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/wfunc/tabletop/models"
)

// 客户端 -> 服务端
const (
	TypeMoveTokenRequest = "MOVE_TOKEN_REQUEST"
	TypeAddToken         = "ADD_TOKEN"
	TypeRemoveToken      = "REMOVE_TOKEN"
	TypeUpdateToken      = "UPDATE_TOKEN"
	TypeRevealFog        = "REVEAL_FOG"
	TypeResetFog         = "RESET_FOG"
	TypeUpdateMap        = "UPDATE_MAP"
)

// 服务端 -> 客户端
const (
	TypeStateSync    = "STATE_SYNC"
	TypeUserJoined   = "USER_JOINED"
	TypeUserLeft     = "USER_LEFT"
	TypeTokenMoved   = "TOKEN_MOVED"
	TypeTokenAdded   = "TOKEN_ADDED"
	TypeTokenRemoved = "TOKEN_REMOVED"
	TypeTokenUpdated = "TOKEN_UPDATED"
	TypeFogUpdated   = "FOG_UPDATED"
	TypeMapUpdated   = "MAP_UPDATED"
)

// WebSocket close codes
const (
	CloseMissingParams = 4000
	CloseReplaced      = 4001
	CloseRoomDeleted   = 4004
)

var (
	ErrUnknownEvent   = errors.New("unknown event type")
	ErrMalformedEvent = errors.New("malformed event")
)

// Event is one parsed inbound frame. The set of implementations is closed.
type Event interface {
	EventType() string
}

type MoveTokenRequest struct {
	TokenID  string
	Position models.Position
}

type AddToken struct {
	Token models.Token
}

type RemoveToken struct {
	TokenID string
}

type UpdateToken struct {
	TokenID string
	Changes map[string]json.RawMessage
}

type RevealFog struct {
	Cells []string
}

type ResetFog struct{}

type UpdateMap struct {
	Config models.MapConfigPatch
}

func (MoveTokenRequest) EventType() string { return TypeMoveTokenRequest }
func (AddToken) EventType() string         { return TypeAddToken }
func (RemoveToken) EventType() string      { return TypeRemoveToken }
func (UpdateToken) EventType() string      { return TypeUpdateToken }
func (RevealFog) EventType() string        { return TypeRevealFog }
func (ResetFog) EventType() string         { return TypeResetFog }
func (UpdateMap) EventType() string        { return TypeUpdateMap }

// envelope is the raw shape of every inbound frame.
type envelope struct {
	Type     string          `json:"type"`
	TokenID  *string         `json:"tokenId"`
	Position json.RawMessage `json:"position"`
	Token    json.RawMessage `json:"token"`
	Changes  json.RawMessage `json:"changes"`
	Cells    json.RawMessage `json:"cells"`
	Config   json.RawMessage `json:"config"`
}

// ParseEvent decodes and validates one text frame. Errors wrap ErrUnknownEvent
// or ErrMalformedEvent.
func ParseEvent(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	switch env.Type {
	case TypeMoveTokenRequest:
		id, err := requireTokenID(env.TokenID)
		if err != nil {
			return nil, err
		}
		if len(env.Position) == 0 {
			return nil, fmt.Errorf("%w: position required", ErrMalformedEvent)
		}
		pos, err := models.ParsePosition(env.Position)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		return MoveTokenRequest{TokenID: id, Position: pos}, nil

	case TypeAddToken:
		if !isObject(env.Token) {
			return nil, fmt.Errorf("%w: token must be an object", ErrMalformedEvent)
		}
		var t models.Token
		if err := json.Unmarshal(env.Token, &t); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		return AddToken{Token: t}, nil

	case TypeRemoveToken:
		id, err := requireTokenID(env.TokenID)
		if err != nil {
			return nil, err
		}
		return RemoveToken{TokenID: id}, nil

	case TypeUpdateToken:
		id, err := requireTokenID(env.TokenID)
		if err != nil {
			return nil, err
		}
		if !isObject(env.Changes) {
			return nil, fmt.Errorf("%w: changes must be an object", ErrMalformedEvent)
		}
		var changes map[string]json.RawMessage
		if err := json.Unmarshal(env.Changes, &changes); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		return UpdateToken{TokenID: id, Changes: changes}, nil

	case TypeRevealFog:
		var cells []string
		if err := json.Unmarshal(env.Cells, &cells); err != nil || cells == nil {
			return nil, fmt.Errorf("%w: cells must be an array of strings", ErrMalformedEvent)
		}
		return RevealFog{Cells: cells}, nil

	case TypeResetFog:
		return ResetFog{}, nil

	case TypeUpdateMap:
		if !isObject(env.Config) {
			return nil, fmt.Errorf("%w: config must be an object", ErrMalformedEvent)
		}
		var patch models.MapConfigPatch
		if err := json.Unmarshal(env.Config, &patch); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
		}
		return UpdateMap{Config: patch}, nil

	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformedEvent)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Type)
	}
}

func requireTokenID(id *string) (string, error) {
	if id == nil || *id == "" {
		return "", fmt.Errorf("%w: tokenId required", ErrMalformedEvent)
	}
	return *id, nil
}

func isObject(raw json.RawMessage) bool {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		case '{':
			return true
		default:
			return false
		}
	}
	return false
}
