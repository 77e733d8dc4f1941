// Package config reads the runtime settings of the tractor tools from the
// environment, optionally seeded from a .env file.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/vsariola/tractor"
	"github.com/vsariola/tractor/logger"
)

// Config holds the settings. Command line flags override them.
type Config struct {
	ClientName  string        // client name the engines are opened under
	SampleRate  uint32        // default sample rate for new sessions and the virtual clock
	Tempo       float64       // default tempo for new sessions
	BlockFrames int           // frames per block of the virtual clock
	MidiOut     string        // MIDI output port name prefix; empty opens a virtual port
	Stabilize   time.Duration // wait after structural changes
	Log         logger.Config
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil && f > 0 {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

// Load reads the given .env files (".env" if none given) without overriding
// variables already set, then builds the Config from the TRACTOR_*
// variables. Missing files are not an error.
func Load(files ...string) *Config {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		_ = godotenv.Load(f)
	}
	sampleRate := getEnvInt("TRACTOR_SAMPLE_RATE", tractor.DefaultSampleRate)
	if sampleRate <= 0 {
		sampleRate = tractor.DefaultSampleRate
	}
	return &Config{
		ClientName:  getEnv("TRACTOR_CLIENT_NAME", "tractor"),
		SampleRate:  uint32(sampleRate),
		Tempo:       getEnvFloat("TRACTOR_TEMPO", tractor.DefaultTempo),
		BlockFrames: getEnvInt("TRACTOR_BLOCK_FRAMES", 512),
		MidiOut:     getEnv("TRACTOR_MIDI_OUT", ""),
		Stabilize:   getEnvDuration("TRACTOR_STABILIZE", tractor.DefaultStabilizeTime),
		Log: logger.Config{
			Level:      getEnv("TRACTOR_LOG_LEVEL", "info"),
			JSON:       getEnv("TRACTOR_LOG_JSON", "") == "1",
			OutputPath: getEnv("TRACTOR_LOG_FILE", ""),
			MaxSize:    getEnvInt("TRACTOR_LOG_MAX_SIZE", 10),
			MaxBackups: getEnvInt("TRACTOR_LOG_MAX_BACKUPS", 3),
			MaxAge:     getEnvInt("TRACTOR_LOG_MAX_AGE", 28),
		},
	}
}
