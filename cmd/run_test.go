package cmd

import (
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/lbryio/lbry-social-tipbot/config"
)

func TestConfigureLogging(t *testing.T) {
	originalFormatter := log.StandardLogger().Formatter
	originalLevel := log.GetLevel()
	t.Cleanup(func() {
		log.SetFormatter(originalFormatter)
		log.SetLevel(originalLevel)
	})

	configureLogging(&config.Config{Environment: "production"})
	assert.IsType(t, &log.JSONFormatter{}, log.StandardLogger().Formatter)

	configureLogging(&config.Config{Environment: "development"})
	assert.IsType(t, &log.TextFormatter{}, log.StandardLogger().Formatter)
	assert.Equal(t, log.DebugLevel, log.GetLevel())
}
