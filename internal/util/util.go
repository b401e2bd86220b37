package util

import (
	"github.com/tuupertunut/fanning/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		MQTT: config.MQTTConfig{
			Enable:           true,
			Host:             "localhost",
			Port:             1883,
			BaseTopic:        "fanning",
			HADiscoveryTopic: "homeassistant",
		},
		Control: config.ControlConfig{
			PollIntervalMillis: 100,
			StoreTimeoutMillis: 1000,
		},
		Port: 8080,
	}
}
