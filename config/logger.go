package config

import (
	"os"

	log "github.com/sirupsen/logrus"
)

// InitLogger configures the process-wide logrus logger.
func InitLogger(cfg *Config) {
	log.SetOutput(os.Stdout)

	if cfg.Log.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Warnf("Unknown LOG_LEVEL %q, falling back to info", cfg.Log.Level)
		level = log.InfoLevel
	}
	log.SetLevel(level)
}
