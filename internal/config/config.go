package config

import (
	"errors"
	"regexp"
	"strings"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	LogLevel zapcore.Level
	MQTT     MQTTConfig     `mapstructure:"mqtt"`
	Control  ControlConfig  `mapstructure:"control"`
	Hardware HardwareConfig `mapstructure:"hardware"`
	Port     uint           `mapstructure:"port"`
	HttpLog  bool           `mapstructure:"http_log"`
}

type ControlConfig struct {
	PollIntervalMillis uint32 `mapstructure:"poll_interval_millis"`
	CurvesFile         string `mapstructure:"curves_file"`
	StoreTimeoutMillis uint32 `mapstructure:"store_timeout_millis"`
}

const (
	HardwareBackendMock   = "mock"
	HardwareBackendModbus = "modbus"
)

type HardwareConfig struct {
	Backend string
	Modbus  ModbusConfig
}

// ModbusConfig describes a single fan controller unit reachable over
// Modbus TCP. Every sensor maps to one register and every controller to one
// holding register.
type ModbusConfig struct {
	Host          string
	Port          uint
	UnitId        uint8  `mapstructure:"unit_id"`
	TimeoutMillis uint32 `mapstructure:"timeout_millis"`
	Name          string
	Sensors       []ModbusSensorConfig
	Controllers   []ModbusControllerConfig
}

type ModbusSensorConfig struct {
	Id          string
	Name        string
	Type        string
	Unit        string
	Register    uint16
	Input       bool
	ScaleFactor int16 `mapstructure:"scale_factor"`
	Signed      bool
}

type ModbusControllerConfig struct {
	Id           string
	Sensor       string
	Register     uint16
	ScaleFactor  int16 `mapstructure:"scale_factor"`
	Min          float64
	Max          float64
	ReleaseValue *float64 `mapstructure:"release_value"`
}

type MQTTConfig struct {
	Enable            bool
	Host              string
	Port              int
	Username          string
	Password          string
	BaseTopic         string `mapstructure:"base_topic"`
	HADiscoveryEnable bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic  string `mapstructure:"ha_discovery_topic"`
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}

// ParseLogLevel maps a configured level name to a zap level, info by default.
func ParseLogLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "trace", "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}
