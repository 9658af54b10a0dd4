// Package settings loads the user-tunable configuration for the player.
package settings

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// AVSyncType selects which clock acts as the master timeline.
type AVSyncType int

const (
	AudioMaster AVSyncType = iota
	VideoMaster
	ExternalMaster
)

func (t AVSyncType) String() string {
	switch t {
	case AudioMaster:
		return "audio_master"
	case VideoMaster:
		return "video_master"
	case ExternalMaster:
		return "external_master"
	default:
		return "unknown"
	}
}

// Settings is the player's runtime configuration. Nothing here is persisted
// across runs: it is re-derived from the environment (and an optional .env
// file) on every launch.
type Settings struct {
	// SyncType selects the master clock (spec §4.3).
	SyncType AVSyncType

	// MaxQueueSize bounds every packet/frame queue (spec §3).
	MaxQueueSize int

	// SeekShortSeconds / SeekLongSeconds are the Left/Right and Down/Up
	// seek increments (spec §4.6).
	SeekShortSeconds float64
	SeekLongSeconds  float64

	// QueueWaitTimeoutMs bounds how long a worker blocks on an empty queue
	// before re-checking is_close (spec §4.2, §4.4: "1 s").
	QueueWaitTimeoutMs int
}

var defaultSettings = Settings{
	SyncType:           AudioMaster,
	MaxQueueSize:       1024,
	SeekShortSeconds:   10.0,
	SeekLongSeconds:    60.0,
	QueueWaitTimeoutMs: 1000,
}

// Load reads configuration from a local .env file (if present) and the
// process environment, falling back to sane defaults for anything unset or
// malformed. It never fails: a broken environment degrades to defaults
// rather than blocking playback.
func Load() Settings {
	if err := godotenv.Load(); err != nil {
		log.Printf("settings: no .env file loaded: %v", err)
	}

	s := defaultSettings

	if v := os.Getenv("AV_SYNC_TYPE"); v != "" {
		switch v {
		case "audio":
			s.SyncType = AudioMaster
		case "video":
			s.SyncType = VideoMaster
		case "external":
			s.SyncType = ExternalMaster
		default:
			log.Printf("settings: unknown AV_SYNC_TYPE %q, keeping %s", v, s.SyncType)
		}
	}

	if v := envInt("MAX_QUEUE_SIZE"); v > 0 {
		s.MaxQueueSize = v
	}
	if v := envFloat("SEEK_SHORT_SECONDS"); v > 0 {
		s.SeekShortSeconds = v
	}
	if v := envFloat("SEEK_LONG_SECONDS"); v > 0 {
		s.SeekLongSeconds = v
	}
	if v := envInt("QUEUE_WAIT_TIMEOUT_MS"); v > 0 {
		s.QueueWaitTimeoutMs = v
	}

	return s
}

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("settings: %s=%q is not an integer, ignoring", key, v)
		return 0
	}
	return n
}

func envFloat(key string) float64 {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("settings: %s=%q is not a number, ignoring", key, v)
		return 0
	}
	return f
}
