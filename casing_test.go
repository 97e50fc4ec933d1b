package ocppj

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCamelToSnakeRaw(t *testing.T) {
	input := `{"chargingStation":{"model":"X","vendorName":"Y","serialNumber":null},"reason":"PowerUp","meterValues":[{"sampledValue":1}]}`
	output, err := CamelToSnakeRaw([]byte(input))
	assert.NoError(t, err)
	assert.JSONEq(t, `{"charging_station":{"model":"X","vendor_name":"Y","serial_number":null},"reason":"PowerUp","meter_values":[{"sampled_value":1}]}`, string(output))
}

func TestSnakeToCamelRaw(t *testing.T) {
	input := `{"charging_station":{"model":"X","vendor_name":"Y","serial_number":null},"reason":"PowerUp"}`
	output, err := SnakeToCamelRaw([]byte(input))
	assert.NoError(t, err)
	// nulls are stripped on the encode path
	assert.JSONEq(t, `{"chargingStation":{"model":"X","vendorName":"Y"},"reason":"PowerUp"}`, string(output))
}

func TestSnakeToCamelRawEmpty(t *testing.T) {
	output, err := SnakeToCamelRaw(nil)
	assert.NoError(t, err)
	assert.JSONEq(t, `{}`, string(output))
}

func TestCamelToSnakeRawInvalid(t *testing.T) {
	_, err := CamelToSnakeRaw([]byte(`{"a":`))
	assert.Error(t, err)
}

func TestRemoveNulls(t *testing.T) {
	input := map[string]interface{}{
		"status": "Accepted",
		"statusInfo": map[string]interface{}{
			"reasonCode":     "ok",
			"additionalInfo": nil,
		},
		"interval": nil,
		"items":    []interface{}{nil, map[string]interface{}{"keep": 1, "drop": nil}},
	}
	result := RemoveNulls(input).(map[string]interface{})
	assert.NotContains(t, result, "interval")
	assert.Contains(t, result, "status")
	info := result["statusInfo"].(map[string]interface{})
	assert.NotContains(t, info, "additionalInfo")
	items := result["items"].([]interface{})
	assert.Len(t, items, 2)
	assert.Nil(t, items[0])
	assert.NotContains(t, items[1].(map[string]interface{}), "drop")
}

func TestKeyConversion(t *testing.T) {
	testCases := []struct {
		camel string
		snake string
	}{
		{"chargingStation", "charging_station"},
		{"evseId", "evse_id"},
		{"model", "model"},
		{"versionNumber", "version_number"},
	}
	for _, testCase := range testCases {
		assert.Equal(t, testCase.snake, camelToSnake(testCase.camel))
		assert.Equal(t, testCase.camel, snakeToCamel(testCase.snake))
	}
}
