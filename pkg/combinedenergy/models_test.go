package combinedenergy

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestamp(t *testing.T) {
	t.Run("UnmarshalsEpochSeconds", func(t *testing.T) {
		var ts Timestamp
		require.NoError(t, json.Unmarshal([]byte(`1666583413`), &ts))
		assert.Equal(t, time.Date(2022, 10, 24, 3, 50, 13, 0, time.UTC), ts.Time)
	})

	t.Run("UnmarshalsNull", func(t *testing.T) {
		var ts Timestamp
		require.NoError(t, json.Unmarshal([]byte(`null`), &ts))
		assert.True(t, ts.IsZero())
	})

	t.Run("RejectsNonNumeric", func(t *testing.T) {
		var ts Timestamp
		assert.Error(t, json.Unmarshal([]byte(`"soon"`), &ts))
	})

	t.Run("Marshals", func(t *testing.T) {
		data, err := json.Marshal(Timestamp{Time: time.Date(2022, 10, 24, 3, 50, 13, 0, time.UTC)})
		require.NoError(t, err)
		assert.Equal(t, `1666583413`, string(data))
	})

	t.Run("MarshalsZeroAsNull", func(t *testing.T) {
		data, err := json.Marshal(Timestamp{})
		require.NoError(t, err)
		assert.Equal(t, `null`, string(data))
	})
}

func TestMillisTimestamp(t *testing.T) {
	t.Run("UnmarshalsEpochMillis", func(t *testing.T) {
		var ts MillisTimestamp
		require.NoError(t, json.Unmarshal([]byte(`1666583413254`), &ts))
		assert.Equal(t, time.Date(2022, 10, 24, 3, 50, 13, 254000000, time.UTC), ts.Time)
	})

	t.Run("UnmarshalsNull", func(t *testing.T) {
		var ts MillisTimestamp
		require.NoError(t, json.Unmarshal([]byte(`null`), &ts))
		assert.True(t, ts.IsZero())
	})

	t.Run("Marshals", func(t *testing.T) {
		data, err := json.Marshal(MillisTimestamp{Time: time.UnixMilli(1666583413254).UTC()})
		require.NoError(t, err)
		assert.Equal(t, `1666583413254`, string(data))
	})
}

func TestLoginExpires(t *testing.T) {
	login := Login{
		ExpireMinutes: 30,
		Created:       time.Date(2022, 10, 24, 3, 50, 23, 0, time.UTC),
	}

	assert.Equal(t,
		time.Date(2022, 10, 24, 4, 15, 23, 0, time.UTC),
		login.Expires(5*time.Minute),
	)
	assert.Equal(t,
		time.Date(2022, 10, 24, 4, 20, 23, 0, time.UTC),
		login.Expires(0),
	)
}

func TestConnectionStatusDecode(t *testing.T) {
	var status ConnectionStatus
	require.NoError(t, json.Unmarshal([]byte(`{
		"status": "ok",
		"installationId": 123,
		"connected": true,
		"since": 1666583413
	}`), &status))

	assert.Equal(t, "ok", status.Status)
	assert.True(t, status.Connected)
	assert.Equal(t, time.Date(2022, 10, 24, 3, 50, 13, 0, time.UTC), status.Since.Time)
}

func TestInstallationDecode(t *testing.T) {
	var installation Installation
	require.NoError(t, json.Unmarshal([]byte(`{
		"status": "ok",
		"installationId": 123,
		"source": "SOLAR",
		"role": "OWNER",
		"readOnly": false,
		"dmgId": 4,
		"tags": ["vip"],
		"timezone": "Australia/Sydney",
		"streetAddress": "1 Example St",
		"locality": "Exampleville",
		"state": "NSW",
		"postcode": "2000",
		"devices": [
			{
				"deviceId": 2,
				"refName": "Solar PV",
				"displayName": "Solar",
				"deviceType": "SOLAR_PV",
				"deviceManufacturer": null,
				"deviceModelName": null,
				"supplierDevice": true,
				"storageDevice": false,
				"consumerDevice": false,
				"status": "ACTIVE",
				"maxPowerSupply": 5000,
				"maxPowerConsumption": null,
				"iconOverride": null,
				"orderOverride": null,
				"category": "SOLAR_PV"
			}
		]
	}`), &installation))

	assert.Equal(t, 123, installation.InstallationID)
	assert.Equal(t, "Australia/Sydney", installation.Timezone)
	require.Len(t, installation.Devices, 1)
	device := installation.Devices[0]
	assert.Equal(t, "SOLAR_PV", device.DeviceType)
	assert.Nil(t, device.DeviceManufacturer)
	require.NotNil(t, device.MaxPowerSupply)
	assert.Equal(t, 5000, *device.MaxPowerSupply)
}
