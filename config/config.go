// Package config reads process-level configuration for trojan-ui from the
// environment. A .env file in the working directory is loaded first when present.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

//go:embed version
var version string

//go:embed name
var name string

type LogLevel string

const (
	Debug  LogLevel = "debug"
	Info   LogLevel = "info"
	Notice LogLevel = "notice"
	Warn   LogLevel = "warn"
	Error  LogLevel = "error"
)

var loadEnvOnce sync.Once

// LoadEnv loads variables from .env (or the file named by TROJAN_UI_ENV_FILE)
// without overriding values already present in the environment.
func LoadEnv() error {
	var err error
	loadEnvOnce.Do(func() {
		file := os.Getenv("TROJAN_UI_ENV_FILE")
		if file == "" {
			file = ".env"
		}
		if _, statErr := os.Stat(file); statErr != nil {
			return
		}
		err = godotenv.Load(file)
	})
	return err
}

func GetVersion() string {
	return strings.TrimSpace(version)
}

func GetName() string {
	return strings.TrimSpace(name)
}

func GetLogLevel() LogLevel {
	if IsDebug() {
		return Debug
	}
	logLevel := os.Getenv("TROJAN_UI_LOG_LEVEL")
	if logLevel == "" {
		return Info
	}
	return LogLevel(logLevel)
}

func IsDebug() bool {
	return os.Getenv("TROJAN_UI_DEBUG") == "true"
}

func GetDBFolderPath() string {
	dbFolderPath := os.Getenv("TROJAN_UI_DB_FOLDER")
	if dbFolderPath == "" {
		dbFolderPath = "/etc/trojan-ui"
	}
	return dbFolderPath
}

func GetDBPath() string {
	return fmt.Sprintf("%s/%s.db", GetDBFolderPath(), GetName())
}

func GetLogFolder() string {
	logFolderPath := os.Getenv("TROJAN_UI_LOG_FOLDER")
	if logFolderPath == "" {
		logFolderPath = "/var/log"
	}
	return logFolderPath
}
