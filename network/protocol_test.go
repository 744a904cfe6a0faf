package network

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/tabletop/models"
)

func TestParseEventVariants(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		want  Event
	}{
		{
			name:  "move",
			frame: `{"type":"MOVE_TOKEN_REQUEST","tokenId":"t1","position":{"x":101,"y":59}}`,
			want:  MoveTokenRequest{TokenID: "t1", Position: models.Position{X: 101, Y: 59}},
		},
		{
			name:  "remove",
			frame: `{"type":"REMOVE_TOKEN","tokenId":"t1"}`,
			want:  RemoveToken{TokenID: "t1"},
		},
		{
			name:  "reveal",
			frame: `{"type":"REVEAL_FOG","cells":["3,4","3,5"]}`,
			want:  RevealFog{Cells: []string{"3,4", "3,5"}},
		},
		{
			name:  "reset",
			frame: `{"type":"RESET_FOG"}`,
			want:  ResetFog{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := ParseEvent([]byte(tt.frame))
			require.NoError(t, err)
			assert.Equal(t, tt.want, ev)
			assert.Equal(t, tt.want.EventType(), ev.EventType())
		})
	}
}

func TestParseAddToken(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"type":"ADD_TOKEN","token":{"name":"Goblin","size":2}}`))
	require.NoError(t, err)

	add, ok := ev.(AddToken)
	require.True(t, ok)
	assert.JSONEq(t, `"Goblin"`, string(add.Token.Attrs["name"]))
	assert.JSONEq(t, `2`, string(add.Token.Attrs["size"]))
}

func TestParseUpdateTokenAndMap(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"type":"UPDATE_TOKEN","tokenId":"t1","changes":{"hp":3}}`))
	require.NoError(t, err)
	upd := ev.(UpdateToken)
	assert.Equal(t, "t1", upd.TokenID)
	assert.JSONEq(t, `3`, string(upd.Changes["hp"]))

	ev, err = ParseEvent([]byte(`{"type":"UPDATE_MAP","config":{"gridSize":60,"fogEnabled":true}}`))
	require.NoError(t, err)
	m := ev.(UpdateMap)
	require.NotNil(t, m.Config.GridSize)
	assert.Equal(t, 60.0, *m.Config.GridSize)
	require.NotNil(t, m.Config.FogEnabled)
	assert.True(t, *m.Config.FogEnabled)
	assert.Nil(t, m.Config.BackgroundImage)
}

func TestParseEventRejects(t *testing.T) {
	malformed := []string{
		`not json`,
		`{"tokenId":"t1"}`,
		`{"type":"MOVE_TOKEN_REQUEST","position":{"x":1,"y":2}}`,
		`{"type":"MOVE_TOKEN_REQUEST","tokenId":"t1"}`,
		`{"type":"MOVE_TOKEN_REQUEST","tokenId":"t1","position":{"x":1}}`,
		`{"type":"MOVE_TOKEN_REQUEST","tokenId":7,"position":{"x":1,"y":2}}`,
		`{"type":"ADD_TOKEN"}`,
		`{"type":"ADD_TOKEN","token":"goblin"}`,
		`{"type":"REMOVE_TOKEN","tokenId":""}`,
		`{"type":"UPDATE_TOKEN","tokenId":"t1","changes":[1]}`,
		`{"type":"REVEAL_FOG","cells":"3,4"}`,
		`{"type":"REVEAL_FOG"}`,
		`{"type":"UPDATE_MAP","config":null}`,
		`{"type":"UPDATE_MAP","config":{"gridSize":"big"}}`,
	}
	for _, frame := range malformed {
		_, err := ParseEvent([]byte(frame))
		assert.ErrorIs(t, err, ErrMalformedEvent, frame)
	}

	_, err := ParseEvent([]byte(`{"type":"ROLL_DICE","sides":20}`))
	assert.ErrorIs(t, err, ErrUnknownEvent)
}

func TestEncodeMessages(t *testing.T) {
	tok := &models.Token{ID: "t1", OwnerUserID: "p1", Position: models.Position{X: 120, Y: 60},
		Attrs: map[string]json.RawMessage{"name": json.RawMessage(`"Goblin"`)}}

	data, err := Encode(NewTokenMoved("t1", models.Position{X: 120, Y: 60}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"TOKEN_MOVED","tokenId":"t1","position":{"x":120,"y":60}}`, string(data))

	data, err = Encode(NewTokenAdded(tok))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"TOKEN_ADDED","token":{"id":"t1","ownerUserId":"p1","position":{"x":120,"y":60},"name":"Goblin"}}`, string(data))

	data, err = Encode(NewFogUpdated(models.FogState{}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"FOG_UPDATED","fogState":{"revealedCells":[]}}`, string(data))

	data, err = Encode(NewUserLeft("p1"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"USER_LEFT","userId":"p1"}`, string(data))
}

func TestEncodeStateSync(t *testing.T) {
	view := RoomView{ID: "AB12", GMUserID: "gm1", Config: models.MapConfig{GridSize: 50, SnapToGrid: true}}
	data, err := Encode(NewStateSync(view, "gm", "gm1"))
	require.NoError(t, err)

	var got struct {
		Type  string `json:"type"`
		State struct {
			Room struct {
				ID             string            `json:"id"`
				Tokens         []json.RawMessage `json:"tokens"`
				ConnectedUsers []string          `json:"connectedUsers"`
			} `json:"room"`
			YourRole   string `json:"yourRole"`
			YourUserID string `json:"yourUserId"`
		} `json:"state"`
	}
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, TypeStateSync, got.Type)
	assert.Equal(t, "AB12", got.State.Room.ID)
	assert.NotNil(t, got.State.Room.Tokens)
	assert.Empty(t, got.State.Room.Tokens)
	assert.Equal(t, "gm", got.State.YourRole)
	assert.Equal(t, "gm1", got.State.YourUserID)
	assert.Contains(t, string(data), `"tokens":[]`)
}
