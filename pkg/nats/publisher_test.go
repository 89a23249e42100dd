package nats

import (
	"testing"

	"finance-rag-be/pkg/events"

	"github.com/stretchr/testify/assert"
)

func TestSubject(t *testing.T) {
	assert.Equal(t, "events.DOCUMENT_INGESTED", Subject(events.TypeDocumentIngested))
	assert.Equal(t, "events.PIPELINE_FAILED", Subject(events.TypePipelineFailed))
}
