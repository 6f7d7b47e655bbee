package rag

import (
	"bytes"
	"encoding/json"
)

// PartKind tells which variant a MessagePart holds.
type PartKind int

const (
	UnsupportedPart PartKind = iota
	StringPart
	ObjectPart
)

// MessagePart is a piece of a chat message. It is either a bare string, an
// object with arbitrary fields, or something unsupported. Unsupported parts
// keep their JSON encoding in Raw.
type MessagePart struct {
	Kind   PartKind
	Text   string
	Fields map[string]any
	Raw    json.RawMessage
}

// NewMessagePart wraps a decoded Go value.
func NewMessagePart(v any) MessagePart {
	switch p := v.(type) {
	case MessagePart:
		return p
	case *MessagePart:
		if p == nil {
			return MessagePart{}
		}
		return *p
	case string:
		return MessagePart{Kind: StringPart, Text: p}
	case map[string]any:
		return MessagePart{Kind: ObjectPart, Fields: p}
	case map[string]string:
		fields := make(map[string]any, len(p))
		for k, v := range p {
			fields[k] = v
		}
		return MessagePart{Kind: ObjectPart, Fields: fields}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return MessagePart{}
	}
	return MessagePart{Raw: raw}
}

func (p MessagePart) MarshalJSON() ([]byte, error) {
	switch p.Kind {
	case StringPart:
		return json.Marshal(p.Text)
	case ObjectPart:
		return json.Marshal(p.Fields)
	}
	if len(p.Raw) > 0 {
		return p.Raw, nil
	}
	return []byte("null"), nil
}

func (p *MessagePart) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		*p = MessagePart{}
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = MessagePart{Kind: StringPart, Text: s}
	case '{':
		var fields map[string]any
		if err := json.Unmarshal(data, &fields); err != nil {
			return err
		}
		*p = MessagePart{Kind: ObjectPart, Fields: fields}
	default:
		*p = MessagePart{Raw: append(json.RawMessage(nil), data...)}
	}
	return nil
}

// ExtractUserQuery returns the plain text query carried by part: the string
// itself, or the "text" field of an object, or its "content" field. Any other
// shape yields "".
func ExtractUserQuery(part MessagePart) string {
	switch part.Kind {
	case StringPart:
		return part.Text
	case ObjectPart:
		if s, ok := part.Fields["text"].(string); ok {
			return s
		}
		if s, ok := part.Fields["content"].(string); ok {
			return s
		}
	}
	return ""
}
