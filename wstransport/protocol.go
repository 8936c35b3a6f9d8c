package wstransport

import (
	"encoding/json"

	"github.com/planline/livefeed"
)

// message is the envelope every frame on the socket uses, in both
// directions.
type message struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Ref     string          `json:"ref,omitempty"`
}

type joinPayload struct {
	Config joinConfig `json:"config"`
}

type joinConfig struct {
	PostgresChanges []changeFilter `json:"postgres_changes"`
}

type changeFilter struct {
	Event  string `json:"event"`
	Schema string `json:"schema"`
}

type replyPayload struct {
	Status string `json:"status"`
}

func replyOK(raw json.RawMessage) bool {
	var r replyPayload
	if err := json.Unmarshal(raw, &r); err != nil {
		return false
	}
	return r.Status == "ok"
}

// changePayload mirrors the server's postgres_changes frame payload. Only
// the fields the bus reads are decoded; the rest of the rows stay opaque.
type changePayload struct {
	Data struct {
		Table     string         `json:"table"`
		Type      string         `json:"type"`
		Record    map[string]any `json:"record"`
		OldRecord map[string]any `json:"old_record"`
	} `json:"data"`
}

// decodeChange converts a postgres_changes frame payload into a raw
// livefeed payload. It returns false for payloads that do not carry the
// expected shape; the bus applies its own defensive decode on top.
func decodeChange(raw json.RawMessage) (livefeed.Payload, bool) {
	var cp changePayload
	if err := json.Unmarshal(raw, &cp); err != nil {
		return livefeed.Payload{}, false
	}
	return livefeed.Payload{
		Table: cp.Data.Table,
		Type:  cp.Data.Type,
		New:   cp.Data.Record,
		Old:   cp.Data.OldRecord,
	}, true
}
