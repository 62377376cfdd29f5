package normalize

import (
	"bytes"
	"encoding/json"
)

// Shape is the detected layout of a history response.
// Exactly one of Enhanced, Legacy or Invalid.
type Shape interface {
	shape()
}

// Enhanced is `{"data": [...], "summary": {...}}`; summary may be absent
type Enhanced struct {
	Items   []json.RawMessage
	Summary json.RawMessage // nil when absent or null
}

// Legacy is a bare array of observations
type Legacy struct {
	Items []json.RawMessage
}

// Invalid is anything else
type Invalid struct {
	Reason string
}

func (Enhanced) shape() {}
func (Legacy) shape()   {}
func (Invalid) shape()  {}

// Detect classifies body. Shapes are tried in order: Enhanced, Legacy.
func Detect(body []byte) Shape {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return Invalid{Reason: "empty body"}
	}

	switch trimmed[0] {
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return Invalid{Reason: "malformed JSON object"}
		}
		raw, ok := obj["data"]
		if !ok {
			return Invalid{Reason: "unrecognized response shape"}
		}
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil || items == nil {
			return Invalid{Reason: "unrecognized response shape"}
		}
		e := Enhanced{Items: items}
		if s, ok := obj["summary"]; ok && !isNull(s) && !isEmptyObject(s) {
			e.Summary = s
		}
		return e

	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return Invalid{Reason: "malformed JSON array"}
		}
		return Legacy{Items: items}
	}

	return Invalid{Reason: "unrecognized response shape"}
}

// UpstreamError extracts a top-level "error" field from an object body
func UpstreamError(body []byte) (string, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return "", false
	}
	raw, ok := obj["error"]
	if !ok || isNull(raw) {
		return "", false
	}
	var msg string
	if err := json.Unmarshal(raw, &msg); err != nil {
		return string(raw), true
	}
	return msg, true
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func isEmptyObject(raw json.RawMessage) bool {
	var obj map[string]json.RawMessage
	return json.Unmarshal(raw, &obj) == nil && len(obj) == 0
}
