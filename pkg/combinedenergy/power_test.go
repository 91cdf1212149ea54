package combinedenergy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnergyToPower(t *testing.T) {
	t.Run("Converts", func(t *testing.T) {
		kw, err := EnergyToPower(5.0, 5.0)
		require.NoError(t, err)
		assert.Equal(t, 3.6, kw)
	})

	t.Run("ScalesWithInterval", func(t *testing.T) {
		for _, seconds := range []float64{1, 5, 30, 300, 86400} {
			kw, err := EnergyToPower(2.5, seconds)
			require.NoError(t, err)
			assert.InDelta(t, 2.5*3.6/seconds, kw, 1e-12)
		}
	})

	t.Run("RejectsNonPositiveInterval", func(t *testing.T) {
		for _, seconds := range []float64{0, -1, -3600} {
			_, err := EnergyToPower(1.0, seconds)

			var invalidErr *InvalidArgumentError
			require.ErrorAs(t, err, &invalidErr)

			var apiErr APIError
			assert.True(t, errors.As(err, &apiErr), "converter errors should be part of the client taxonomy")
		}
	})
}
