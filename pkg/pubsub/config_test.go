package pubsub

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aistatsd/aistatsd/pkg/util"
)

func TestNewConfig(t *testing.T) {
	t.Parallel()
	for _, tc := range []struct {
		name   string
		v      *viper.Viper
		expect *Config
		errVal string
	}{
		{
			name: "defaults",
			v:    viper.New(),
			expect: &Config{
				Address:  DefaultAddress,
				Channel:  DefaultChannel,
				Encoding: DefaultEncoding,
			},
		},
		{
			name: "overrides",
			v: func() *viper.Viper {
				v := viper.New()
				v.Set("address", "redis:6380")
				v.Set("channel", "flushes")
				v.Set("encoding", "msgpack")
				v.Set("db", 2)
				return v
			}(),
			expect: &Config{
				Address:  "redis:6380",
				Channel:  "flushes",
				Encoding: EncodingMsgpack,
				DB:       2,
			},
		},
		{
			name: "invalid",
			v: func() *viper.Viper {
				v := viper.New()
				v.Set("address", "")
				v.Set("channel", "")
				v.Set("encoding", "yaml")
				v.Set("db", -1)
				return v
			}(),
			errVal: `address must not be empty; channel must not be empty; encoding must be one of json or msgpack: "yaml"; db must not be negative`,
		},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg, err := NewConfig(tc.v)
			assert.Equal(t, tc.expect, cfg, "Must match the expected configuration")
			if tc.errVal != "" {
				require.EqualError(t, err, tc.errVal, "Must match the expected error")
			} else {
				require.NoError(t, err, "Must not error")
			}
		})
	}
}

func TestCodecRejectsUnknownEncoding(t *testing.T) {
	t.Parallel()
	_, err := Encode("xml", nil)
	require.EqualError(t, err, `unknown encoding "xml"`)
	_, err = Decode("xml", nil)
	require.EqualError(t, err, `unknown encoding "xml"`)
}

func TestDecodeMsgpackRejectsJSON(t *testing.T) {
	t.Parallel()
	_, err := Decode(EncodingMsgpack, []byte(`{"counters":{"a":1}}`))
	require.Error(t, err)
}

func TestNewConfigFromEnvironment(t *testing.T) {
	t.Setenv("AIS_REDIS_ADDRESS", "redis.internal:6380")
	t.Setenv("AIS_REDIS_CHANNEL", "env-channel")
	t.Setenv("AIS_REDIS_ENCODING", "msgpack")
	t.Setenv("AIS_REDIS_DB", "3")

	cfg, err := NewConfig(util.GetSubViper(viper.New(), ParamRedis))
	require.NoError(t, err)
	assert.Equal(t, &Config{
		Address:  "redis.internal:6380",
		Channel:  "env-channel",
		Encoding: EncodingMsgpack,
		DB:       3,
	}, cfg)
}
