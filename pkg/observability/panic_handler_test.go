package observability

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGuard_RecoversAndLogs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	job := Guard(logger, "users gauge refresh", func() { panic("nil store") })

	assert.NotPanics(t, job)
	assert.Contains(t, buf.String(), "PANIC recovered")
	assert.Contains(t, buf.String(), "nil store")
	assert.Contains(t, buf.String(), "users gauge refresh")
}
