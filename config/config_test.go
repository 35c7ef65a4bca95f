package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetLogLevel(t *testing.T) {
	tests := []struct {
		name  string
		debug string
		level string
		want  LogLevel
	}{
		{name: "default", want: Info},
		{name: "explicit warn", level: "warn", want: Warn},
		{name: "debug wins", debug: "true", level: "error", want: Debug},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TROJAN_UI_DEBUG", tt.debug)
			t.Setenv("TROJAN_UI_LOG_LEVEL", tt.level)
			assert.Equal(t, tt.want, GetLogLevel())
		})
	}
}

func TestGetDBPath(t *testing.T) {
	t.Setenv("TROJAN_UI_DB_FOLDER", "/tmp/tu")
	assert.Equal(t, "/tmp/tu/trojan-ui.db", GetDBPath())

	t.Setenv("TROJAN_UI_DB_FOLDER", "")
	assert.Equal(t, "/etc/trojan-ui/trojan-ui.db", GetDBPath())
}

func TestNameAndVersion(t *testing.T) {
	assert.Equal(t, "trojan-ui", GetName())
	assert.NotEmpty(t, GetVersion())
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(file, []byte("TROJAN_UI_LOG_FOLDER=/srv/logs\n"), 0o600))

	t.Setenv("TROJAN_UI_ENV_FILE", file)
	t.Setenv("TROJAN_UI_LOG_FOLDER", "")
	os.Unsetenv("TROJAN_UI_LOG_FOLDER")

	require.NoError(t, LoadEnv())
	assert.Equal(t, "/srv/logs", GetLogFolder())
}
