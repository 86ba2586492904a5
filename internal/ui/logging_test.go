package ui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerTo(&buf, false)

	log.Debugf("hidden %d\n", 1)
	assert.Empty(t, buf.String())

	log.Component("transport").Infof("relay %s ok\n", "r1")
	assert.Contains(t, buf.String(), `"component":"transport"`)
	assert.Contains(t, buf.String(), `"message":"relay r1 ok"`)
}

func TestDebugLoggerEmitsDebug(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerTo(&buf, true)

	log.Debugf("visible")
	assert.Contains(t, buf.String(), `"level":"debug"`)
}
