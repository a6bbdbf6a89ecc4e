package ws

import (
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// EncodeFrame wraps fields in a protobuf Struct and marshals it for a binary
// websocket frame.
func EncodeFrame(fields map[string]any) ([]byte, error) {
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("ws: build frame: %w", err)
	}
	b, err := proto.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("ws: marshal frame: %w", err)
	}
	return b, nil
}

// DecodeFrame is the inverse of EncodeFrame.
func DecodeFrame(b []byte) (map[string]any, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("ws: unmarshal frame: %w", err)
	}
	return s.AsMap(), nil
}

// noticeFrame turns a JSON notice from the bus into a frame tagged with the
// concrete channel it belongs to. Board notices received through a pattern
// subscription are attributed to board:<sport>.
func noticeFrame(subscription string, payload []byte) (string, []byte, error) {
	fields := make(map[string]any)
	if err := json.Unmarshal(payload, &fields); err != nil {
		return "", nil, fmt.Errorf("ws: decode notice: %w", err)
	}

	channel := subscription
	if typ, _ := fields["type"].(string); typ == "board" {
		if sport, _ := fields["sport"].(string); sport != "" {
			channel = "board:" + strings.ToLower(sport)
		}
	}
	fields["channel"] = channel

	frame, err := EncodeFrame(fields)
	if err != nil {
		return "", nil, err
	}
	return channel, frame, nil
}
