package messages

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/cbodonnell/tilesync/pkg/game/types"
	"github.com/klauspost/compress/zstd"
)

// ErrUnknownMessage is returned for frames that are valid JSON objects but
// match none of the known message shapes.
var ErrUnknownMessage = errors.New("unknown message")

// DecodeServerMessage decodes a frame received from the server. Text frames
// hold JSON; binary frames hold zstd-compressed JSON.
func DecodeServerMessage(frameType int, data []byte) (ServerMessage, error) {
	if frameType == FrameBinary {
		b, err := Decompress(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress message: %v", err)
		}
		data = b
	}

	envelope := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message: %v", err)
	}

	if raw, ok := envelope[KeyGameSummaryUpdate]; ok && !isNull(raw) {
		summary := &types.GameSummary{}
		if err := json.Unmarshal(raw, summary); err != nil {
			return nil, fmt.Errorf("failed to unmarshal game summary update: %v", err)
		}
		return &GameSummaryUpdate{Summary: summary}, nil
	}
	if raw, ok := envelope[KeyGameUpdate]; ok && !isNull(raw) {
		game := &types.Game{}
		if err := json.Unmarshal(raw, game); err != nil {
			return nil, fmt.Errorf("failed to unmarshal game update: %v", err)
		}
		return &GameUpdate{Game: game}, nil
	}

	return nil, ErrUnknownMessage
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// EncodeServerMessage encodes msg as the JSON tagged union.
func EncodeServerMessage(msg ServerMessage) ([]byte, error) {
	var envelope map[string]interface{}
	switch m := msg.(type) {
	case *GameSummaryUpdate:
		envelope = map[string]interface{}{KeyGameSummaryUpdate: m.Summary}
	case *GameUpdate:
		envelope = map[string]interface{}{KeyGameUpdate: m.Game}
	default:
		return nil, fmt.Errorf("unsupported server message %T", msg)
	}

	b, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal server message: %v", err)
	}
	return b, nil
}

// EncodeClientMessage encodes a client request.
func EncodeClientMessage(msg ClientMessage) ([]byte, error) {
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal client message: %v", err)
	}
	return b, nil
}

// DecodeClientMessage decodes a client request.
func DecodeClientMessage(data []byte) (ClientMessage, error) {
	msg := ClientMessage{}
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, fmt.Errorf("failed to unmarshal client message: %v", err)
	}
	if msg.Type == "" {
		return msg, ErrUnknownMessage
	}
	return msg, nil
}

// Compress compresses b with zstd for sending as a binary frame.
func Compress(b []byte) ([]byte, error) {
	compressed := bytes.NewBuffer(nil)
	compWriter, err := zstd.NewWriter(compressed, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd writer: %v", err)
	}
	if _, err := compWriter.Write(b); err != nil {
		return nil, fmt.Errorf("failed to compress message: %v", err)
	}
	if err := compWriter.Close(); err != nil {
		return nil, fmt.Errorf("failed to close zstd writer: %v", err)
	}

	return compressed.Bytes(), nil
}

// Decompress reverses Compress.
func Decompress(b []byte) ([]byte, error) {
	compReader, err := zstd.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd reader: %v", err)
	}
	defer compReader.Close()

	decompressed, err := io.ReadAll(compReader)
	if err != nil {
		return nil, fmt.Errorf("failed to read decompressed message: %v", err)
	}
	return decompressed, nil
}
