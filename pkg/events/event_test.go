package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type customEvent struct{}

func (customEvent) EventType() string               { return TypePipelineFailed }
func (customEvent) Payload() map[string]interface{} { return map[string]interface{}{"stage": "RETRIEVAL"} }
func (customEvent) Timestamp() time.Time            { return time.Unix(100, 0).UTC() }

func TestNew(t *testing.T) {
	e := New(TypeDocumentIngested, nil)
	assert.Equal(t, TypeDocumentIngested, e.EventType())
	assert.NotNil(t, e.Payload())
	assert.False(t, e.Timestamp().IsZero())
}

func TestFrom_RoundTripsThroughJSON(t *testing.T) {
	wire := From(customEvent{})
	data, err := json.Marshal(wire)
	require.NoError(t, err)

	var decoded BaseEvent
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, TypePipelineFailed, decoded.Type)
	assert.Equal(t, "RETRIEVAL", decoded.Data["stage"])
	assert.True(t, decoded.OccurredAt.Equal(time.Unix(100, 0)))
}
