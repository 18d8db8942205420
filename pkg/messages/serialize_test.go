package messages

import (
	"errors"
	"testing"

	"github.com/cbodonnell/tilesync/pkg/game/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeServerMessage(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		check   func(t *testing.T, msg ServerMessage)
		wantErr error
	}{
		{
			name: "game summary update",
			data: `{"GameSummaryUpdate": {"id": "g1", "version": 4, "player_id": "p1", "hand": [{"id": 42, "concealed": true}], "draw_wall_count": 80}}`,
			check: func(t *testing.T, msg ServerMessage) {
				update, ok := msg.(*GameSummaryUpdate)
				require.True(t, ok, "got %T", msg)
				assert.Equal(t, types.GameID("g1"), update.Summary.ID)
				assert.Equal(t, 4, update.Summary.Version)
				assert.Equal(t, []types.TileID{42}, update.Summary.Hand.IDs())
				assert.Equal(t, 80, update.Summary.DrawWallCount)
			},
		},
		{
			name: "game update",
			data: `{"GameUpdate": {"id": "g1", "name": "friday", "draw_wall": [1, 2]}}`,
			check: func(t *testing.T, msg ServerMessage) {
				update, ok := msg.(*GameUpdate)
				require.True(t, ok, "got %T", msg)
				assert.Equal(t, "friday", update.Game.Name)
				assert.Equal(t, []types.TileID{1, 2}, update.Game.DrawWall)
			},
		},
		{
			name:    "null game summary update",
			data:    `{"GameSummaryUpdate": null}`,
			wantErr: ErrUnknownMessage,
		},
		{
			name:    "null game update",
			data:    `{"GameUpdate":  null }`,
			wantErr: ErrUnknownMessage,
		},
		{
			name:    "unknown shape",
			data:    `{"Chat": {"text": "hi"}}`,
			wantErr: ErrUnknownMessage,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := DecodeServerMessage(FrameText, []byte(tt.data))
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				assert.Nil(t, msg)
				return
			}
			require.NoError(t, err)
			tt.check(t, msg)
		})
	}
}

func TestDecodeServerMessage_invalidJSON(t *testing.T) {
	_, err := DecodeServerMessage(FrameText, []byte(`not json`))
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrUnknownMessage))
}

func TestDecodeServerMessage_compressedBinaryFrame(t *testing.T) {
	b, err := EncodeServerMessage(&GameSummaryUpdate{Summary: &types.GameSummary{ID: "g2", Version: 9}})
	require.NoError(t, err)
	compressed, err := Compress(b)
	require.NoError(t, err)

	msg, err := DecodeServerMessage(FrameBinary, compressed)
	require.NoError(t, err)
	update, ok := msg.(*GameSummaryUpdate)
	require.True(t, ok)
	assert.Equal(t, types.GameID("g2"), update.Summary.ID)
	assert.Equal(t, 9, update.Summary.Version)
}

func TestEncodeClientMessage(t *testing.T) {
	b, err := EncodeClientMessage(ClientMessage{Type: ClientMessageTypeGetDeck})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type": "GetDeck"}`, string(b))

	msg, err := DecodeClientMessage(b)
	require.NoError(t, err)
	assert.Equal(t, ClientMessageTypeGetDeck, msg.Type)

	_, err = DecodeClientMessage([]byte(`{}`))
	assert.ErrorIs(t, err, ErrUnknownMessage)
}
