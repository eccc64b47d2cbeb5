package telemetry

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aistatsd/aistatsd/internal/fixtures"
)

func TestInitFactory(t *testing.T) {
	t.Parallel()
	for _, name := range []string{"appinsights", "null", "stdout"} {
		factory, err := InitFactory(name, viper.New(), fixtures.NewTestLogger(t))
		require.NoError(t, err, name)
		assert.NotNil(t, factory, name)
	}
}

func TestInitFactoryErrors(t *testing.T) {
	t.Parallel()
	_, err := InitFactory("", viper.New(), fixtures.NewTestLogger(t))
	require.Error(t, err)

	_, err = InitFactory("unknown", viper.New(), fixtures.NewTestLogger(t))
	require.EqualError(t, err, `unknown telemetry client "unknown"`)

	v := viper.New()
	v.Set("appinsights.endpoint-url", "relative/path")
	_, err = InitFactory("appinsights", v, fixtures.NewTestLogger(t))
	require.Error(t, err)
}

func TestNullClient(t *testing.T) {
	t.Parallel()
	factory, err := InitFactory("null", viper.New(), fixtures.NewTestLogger(t))
	require.NoError(t, err)
	client, err := factory("")
	require.NoError(t, err)
	client.TrackException(nil)
	client.TrackMetric(nil)
}
