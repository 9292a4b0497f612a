package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateRejectsBadLogLevel(t *testing.T) {
	c := &Config{
		DefaultBufferCapacity: 1,
		MaxCommandTokens:      1,
		LogLevel:              "bogus",
		LogFormat:             "json",
		MaxNodes:              1,
	}
	assert.Error(t, c.Validate())
}

func TestValidateRejectsBadCPUThreshold(t *testing.T) {
	c := &Config{
		DefaultBufferCapacity: 1,
		MaxCommandTokens:      1,
		LogLevel:              "info",
		LogFormat:             "json",
		MaxNodes:              1,
		CPURejectThreshold:    150,
	}
	assert.Error(t, c.Validate())
}

func TestValidateAcceptsDefaults(t *testing.T) {
	c := &Config{
		DefaultBufferCapacity: 16,
		MaxCommandTokens:      32,
		LogLevel:              "info",
		LogFormat:             "json",
		MaxNodes:              10000,
		CPURejectThreshold:    90,
	}
	assert.NoError(t, c.Validate())
}
