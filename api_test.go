package livefeed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name       string
		payload    Payload
		wantOK     bool
		wantType   EventType
		wantRecord string
	}{
		{
			name:       "insert with new row id",
			payload:    Payload{Table: "tasks", Type: "INSERT", New: map[string]any{"id": "x"}},
			wantOK:     true,
			wantType:   EventInsert,
			wantRecord: "x",
		},
		{
			name:       "delete with old row id",
			payload:    Payload{Table: "tasks", Type: "DELETE", Old: map[string]any{"id": "y"}},
			wantOK:     true,
			wantType:   EventDelete,
			wantRecord: "y",
		},
		{
			name:       "update prefers new row id",
			payload:    Payload{Table: "tasks", Type: "UPDATE", New: map[string]any{"id": "new"}, Old: map[string]any{"id": "old"}},
			wantOK:     true,
			wantType:   EventUpdate,
			wantRecord: "new",
		},
		{
			name:       "no id on either row",
			payload:    Payload{Table: "tasks", Type: "UPDATE", New: map[string]any{"title": "t"}},
			wantOK:     true,
			wantType:   EventUpdate,
			wantRecord: "",
		},
		{
			name:       "numeric id stringified",
			payload:    Payload{Table: "tasks", Type: "INSERT", New: map[string]any{"id": float64(42)}},
			wantOK:     true,
			wantType:   EventInsert,
			wantRecord: "42",
		},
		{
			name:    "missing table dropped",
			payload: Payload{Type: "INSERT", New: map[string]any{"id": "x"}},
			wantOK:  false,
		},
		{
			name:    "unknown mutation type dropped",
			payload: Payload{Table: "tasks", Type: "TRUNCATE"},
			wantOK:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, ok := decode(tt.payload)
			require.Equal(t, tt.wantOK, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.payload.Table, e.Table)
			assert.Equal(t, tt.wantType, e.Type)
			assert.Equal(t, tt.wantRecord, e.RecordID)
			assert.False(t, e.Time.IsZero())
		})
	}
}

func TestEnumStrings(t *testing.T) {
	assert.Equal(t, "INSERT", EventInsert.String())
	assert.Equal(t, "UPDATE", EventUpdate.String())
	assert.Equal(t, "DELETE", EventDelete.String())
	assert.Equal(t, "SUBSCRIBED", StatusSubscribed.String())
	assert.Equal(t, "CHANNEL_ERROR", StatusChannelError.String())
	assert.Equal(t, "TIMED_OUT", StatusTimedOut.String())
	assert.Equal(t, "CLOSED", StatusClosed.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "erroring", StateErroring.String())
}
