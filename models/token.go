package models

import (
	"encoding/json"
	"errors"
)

// ErrInvalidPosition is returned when a position field is not an {x, y} object.
var ErrInvalidPosition = errors.New("invalid token position")

// Token 地图上的棋子。除 id/ownerUserId/position 外的字段原样保存，不做校验
type Token struct {
	ID          string
	OwnerUserID string
	Position    Position
	Attrs       map[string]json.RawMessage
}

const (
	tokenKeyID       = "id"
	tokenKeyOwner    = "ownerUserId"
	tokenKeyPosition = "position"
)

// MarshalJSON flattens the opaque attributes next to the known fields.
func (t Token) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(t.Attrs)+3)
	for k, v := range t.Attrs {
		out[k] = v
	}
	out[tokenKeyID] = t.ID
	out[tokenKeyOwner] = t.OwnerUserID
	out[tokenKeyPosition] = t.Position
	return json.Marshal(out)
}

// UnmarshalJSON accepts any JSON object; unknown keys land in Attrs.
func (t *Token) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		return errors.New("token must be an object")
	}

	*t = Token{Attrs: make(map[string]json.RawMessage)}
	for k, v := range raw {
		switch k {
		case tokenKeyID:
			_ = json.Unmarshal(v, &t.ID)
		case tokenKeyOwner:
			_ = json.Unmarshal(v, &t.OwnerUserID)
		case tokenKeyPosition:
			pos, err := ParsePosition(v)
			if err != nil {
				return err
			}
			t.Position = pos
		default:
			t.Attrs[k] = v
		}
	}
	return nil
}

// Merge applies changes to the token and returns the changes actually applied.
// id and ownerUserId are immutable and silently stripped.
func (t *Token) Merge(changes map[string]json.RawMessage) (map[string]json.RawMessage, error) {
	applied := make(map[string]json.RawMessage, len(changes))
	var pos *Position
	for k, v := range changes {
		switch k {
		case tokenKeyID, tokenKeyOwner:
			continue
		case tokenKeyPosition:
			p, err := ParsePosition(v)
			if err != nil {
				return nil, err
			}
			pos = &p
		}
		applied[k] = v
	}

	if pos != nil {
		t.Position = *pos
	}
	if t.Attrs == nil {
		t.Attrs = make(map[string]json.RawMessage)
	}
	for k, v := range applied {
		if k == tokenKeyPosition {
			continue
		}
		t.Attrs[k] = v
	}
	return applied, nil
}

// Clone returns a copy that shares no mutable state with t.
func (t *Token) Clone() *Token {
	c := *t
	c.Attrs = make(map[string]json.RawMessage, len(t.Attrs))
	for k, v := range t.Attrs {
		c.Attrs[k] = v
	}
	return &c
}

// ParsePosition decodes an {x, y} object; both coordinates are required.
func ParsePosition(raw json.RawMessage) (Position, error) {
	var p struct {
		X *float64 `json:"x"`
		Y *float64 `json:"y"`
	}
	if err := json.Unmarshal(raw, &p); err != nil || p.X == nil || p.Y == nil {
		return Position{}, ErrInvalidPosition
	}
	return Position{X: *p.X, Y: *p.Y}, nil
}
