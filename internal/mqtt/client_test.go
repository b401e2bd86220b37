package mqtt

import (
	"testing"

	"github.com/tuupertunut/fanning/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient() *MQTTClient {
	cfg := config.Config{
		MQTT: config.MQTTConfig{
			Host:             "localhost",
			Port:             1883,
			BaseTopic:        "loremTopic",
			HADiscoveryTopic: "homeassistant",
		},
	}
	return CreateMQTTClient(&cfg, OptsFromConfig(&cfg), nil, nil)
}

func TestCurveCommandParse(t *testing.T) {

	assert := assert.New(t)

	r := curveCommandExtractor("loremTopic")
	matches := r.FindAllStringSubmatch("loremTopic/curve/my_fan/set", 1)

	assert.Equal("my_fan", matches[0][1], "controller extract")
	assert.Equal("set", matches[0][2], "command extract")
}

func TestCurveCommandParseFail(t *testing.T) {

	assert := assert.New(t)

	r := curveCommandExtractor("loremTopic")

	assert.Len(r.FindAllStringSubmatch("loremTopic/curve/my_fan/state", 1), 0, "no matches")
	assert.Len(r.FindAllStringSubmatch("loremTopic/controller/my_fan/state", 1), 0, "no matches")
	assert.Len(r.FindAllStringSubmatch("other/loremTopic/curve/my_fan/set", 1), 0, "anchored")
}

func TestParseCommand(t *testing.T) {

	require := require.New(t)

	c := testClient()

	cmd, err := c.parseCommand(c.CurveCommandTopic("ca", COMMAND_CURVE_CLEAR), "")
	require.NoError(err)
	require.Equal("ca", cmd.DeviceId)
	require.Equal(COMMAND_CURVE_CLEAR, cmd.Command)

	cmd, err = c.parseCommand(c.StoreCommandTopic(), "")
	require.NoError(err)
	require.Equal(COMMAND_CURVES_STORE, cmd.Command)

	_, err = c.parseCommand(c.SensorStateTopic("sa"), "42.00")
	require.ErrorIs(err, ErrInvalidCommand, "own state publishes are ignored")
}

func TestTopics(t *testing.T) {

	assert := assert.New(t)

	c := testClient()

	assert.Equal("loremTopic/bridge/state", c.BridgeStateTopic())
	assert.Equal("loremTopic/sensor/sa/state", c.SensorStateTopic("sa"))
	assert.Equal("loremTopic/controller/ca/state", c.ControllerStateTopic("ca"))
	assert.Equal("loremTopic/curve/ca/set", c.CurveCommandTopic("ca", COMMAND_CURVE_SET))
}
