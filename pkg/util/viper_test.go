package util

import (
	"os"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestGetSubViperMissingSection(t *testing.T) {
	t.Parallel()
	v := viper.New()
	sub := GetSubViper(v, "missing")
	sub.SetDefault("address", "default")
	assert.Equal(t, "default", sub.GetString("address"))
}

func TestGetSubViperNested(t *testing.T) {
	t.Parallel()
	v := viper.New()
	v.Set("redis.address", "127.0.0.1:1234")
	sub := GetSubViper(v, "redis")
	assert.Equal(t, "127.0.0.1:1234", sub.GetString("address"))
}

func TestSubViperEnvironment(t *testing.T) {
	os.Setenv("AIS_HTTP_INGEST_ENABLE_INGESTION", "true")
	defer os.Unsetenv("AIS_HTTP_INGEST_ENABLE_INGESTION")

	sub := GetSubViper(viper.New(), "http.ingest")
	sub.SetDefault("enable-ingestion", false)
	assert.True(t, sub.GetBool("enable-ingestion"))
}
