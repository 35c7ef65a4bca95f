package logger

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetLogsFiltersByLevel(t *testing.T) {
	Warning("disk almost full")
	Debug("noisy detail")
	Error("store failure")

	logs := GetLogs(10, "WARNING")
	joined := strings.Join(logs, "\n")

	assert.Contains(t, joined, "disk almost full")
	assert.Contains(t, joined, "store failure")
	assert.NotContains(t, joined, "noisy detail")
}

func TestGetLogsNewestFirstAndBounded(t *testing.T) {
	Error("first")
	Error("second")

	logs := GetLogs(1, "ERROR")
	if assert.Len(t, logs, 1) {
		assert.Contains(t, logs[0], "second")
	}
}
