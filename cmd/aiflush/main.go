package main

import (
	"context"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/aistatsd/aistatsd"
	"github.com/aistatsd/aistatsd/pkg/httpclient"
	"github.com/aistatsd/aistatsd/pkg/pubsub"
)

const flushPath = "/v1/flush"

func main() {
	opts := parseArgs(os.Args[1:])

	logger := logrus.StandardLogger()
	if opts.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	payload, err := buildPayload(opts)
	if err != nil {
		logger.Fatalf("%v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := send(ctx, logger, opts, payload); err != nil {
		logger.Fatalf("%v", err)
	}
}

func send(ctx context.Context, logger logrus.FieldLogger, opts commandOptions, payload *aistatsd.FlushPayload) error {
	logger = logger.WithField("metrics", payload.Len())

	if opts.Redis != "" {
		client := redis.NewClient(&redis.Options{Addr: opts.Redis})
		defer client.Close()
		n, err := pubsub.Publish(ctx, client, opts.Channel, opts.Encoding, payload)
		if err != nil {
			return err
		}
		logger.WithField("subscribers", n).Info("Published flush")
		return nil
	}

	target, err := flushURL(opts.Address)
	if err != nil {
		return err
	}
	client, err := newHttpClient(logger, opts)
	if err != nil {
		return err
	}
	if err := client.PostFlush(ctx, target, payload); err != nil {
		return err
	}
	logger.WithField("url", target).Info("Sent flush")
	return nil
}

// newHttpClient builds the client from the command line, which may be overridden by AIS_HTTP_CLIENT_* variables.
func newHttpClient(logger logrus.FieldLogger, opts commandOptions) (*httpclient.Client, error) {
	v := viper.New()
	v.SetDefault("http-client.client-timeout", opts.Timeout)
	v.SetDefault("http-client.compression", opts.Compression)
	v.SetDefault("http-client.retry-policy", opts.RetryPolicy)
	v.SetDefault("http-client.retry-max-time", opts.RetryMaxTime)
	v.SetDefault("http-client.retry-max-interval", 5*time.Second)
	return httpclient.NewClientFromViper(logger, v)
}

// flushURL points address at the flush endpoint unless it already names a path.
func flushURL(address string) (string, error) {
	u, err := url.Parse(address)
	if err != nil {
		return "", err
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = flushPath
	}
	return u.String(), nil
}
