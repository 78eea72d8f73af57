package main

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/keeva/tunepractice/internal/report"
	"github.com/keeva/tunepractice/internal/store"
	"github.com/keeva/tunepractice/internal/sync"
	"github.com/keeva/tunepractice/internal/util"
)

// GetConfigString retrieves a string config value with proper precedence:
// 1. Command-line flag (if set)
// 2. Environment variable (TPT_*)
// 3. Config file
// 4. Default value
func GetConfigString(key string, defaultValue string) string {
	val := viper.GetString(key)
	if val == "" {
		return defaultValue
	}
	return val
}

// GetConfigInt retrieves an int config value with proper precedence
func GetConfigInt(key string, defaultValue int) int {
	val := viper.GetInt(key)
	if val == 0 {
		return defaultValue
	}
	return val
}

// GetConfigDuration retrieves a duration config value with proper precedence
func GetConfigDuration(key string, defaultValue time.Duration) time.Duration {
	val := viper.GetDuration(key)
	if val == 0 {
		return defaultValue
	}
	return val
}

// applyLogLevel sets the leveled logger from the global flags
func applyLogLevel() {
	util.SetVerbose(viper.GetBool("verbose"))
	util.SetQuiet(viper.GetBool("quiet"))
}

// requireUser returns the configured user ID or an error
func requireUser() (string, error) {
	user := viper.GetString("user")
	if user == "" {
		return "", fmt.Errorf("user ID is required (use --user or set in config)")
	}
	return user, nil
}

// openStore opens the configured local database
func openStore() (*store.Store, error) {
	dbPath := viper.GetString("db")
	util.DebugLog("Opening database: %s", dbPath)

	s, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return s, nil
}

// newEventLogger creates the JSONL audit logger honoring verbosity flags
func newEventLogger() (*report.EventLogger, error) {
	logLevel := report.LevelInfo
	if viper.GetBool("quiet") {
		logLevel = report.LevelWarning
	} else if viper.GetBool("verbose") {
		logLevel = report.LevelDebug
	}

	logger, err := report.NewEventLogger(GetConfigString("artifacts", "artifacts"), logLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to create event logger: %w", err)
	}
	return logger, nil
}

// newSyncEngine wires the sync engine against the configured remote
func newSyncEngine(s *store.Store, events *report.EventLogger, userID string) (*sync.Engine, error) {
	remoteURL := viper.GetString("remote.url")
	if remoteURL == "" {
		return nil, fmt.Errorf("remote URL is required (set remote.url in config)")
	}

	client := sync.NewClient(remoteURL, s.DeviceID(), GetConfigDuration("remote.timeout", 30*time.Second))
	return sync.NewEngine(s, client, events, userID, GetConfigInt("sync.batch_size", 100)), nil
}

// localTZOffsetMinutes is the device timezone offset used for queue days
func localTZOffsetMinutes() int {
	_, offset := time.Now().Zone()
	return offset / 60
}
