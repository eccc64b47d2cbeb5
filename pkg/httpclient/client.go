package httpclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/aistatsd/aistatsd"
	"github.com/aistatsd/aistatsd/pkg/util"
	"github.com/aistatsd/aistatsd/pkg/web"
)

const (
	defaultClientTimeout = 10 * time.Second
	defaultCompression   = "zlib"
	defaultNetwork       = "tcp"
)

// Client posts flushes to the http ingestion endpoint of a forwarder.
type Client struct {
	logger      logrus.FieldLogger
	client      http.Client
	compression web.CompressionType
	newBackoff  util.BackoffFactory
}

// statusError is returned for a response which was not accepted.
type statusError struct {
	status int
	body   string
}

func (se *statusError) Error() string {
	return fmt.Sprintf("received bad status code %d: %s", se.status, se.body)
}

// permanent reports whether retrying the request can not change the outcome.
func (se *statusError) permanent() bool {
	return se.status >= 400 && se.status < 500
}

func NewClientFromViper(logger logrus.FieldLogger, v *viper.Viper) (*Client, error) {
	subViper := util.GetSubViper(v, "http-client")
	subViper.SetDefault("client-timeout", defaultClientTimeout)
	subViper.SetDefault("compression", defaultCompression)
	subViper.SetDefault("network", defaultNetwork)

	compression, err := web.ReadCompressionType(subViper.GetString("compression"))
	if err != nil {
		return nil, err
	}
	newBackoff, err := util.GetRetryFromViper(subViper)
	if err != nil {
		return nil, err
	}

	return NewClient(
		logger,
		subViper.GetString("network"),
		compression,
		subViper.GetDuration("client-timeout"),
		newBackoff,
	)
}

func NewClient(logger logrus.FieldLogger, network string, compression web.CompressionType, clientTimeout time.Duration, newBackoff util.BackoffFactory) (*Client, error) {
	if clientTimeout <= 0 {
		return nil, errors.New("client-timeout must be positive")
	}

	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		TLSHandshakeTimeout: 3 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		DialContext: func(ctx context.Context, _, address string) (net.Conn, error) {
			// replace the network with our own
			return dialer.DialContext(ctx, network, address)
		},
		MaxIdleConns:    10,
		IdleConnTimeout: 1 * time.Minute,
	}

	return &Client{
		logger: logger,
		client: http.Client{
			Transport: transport,
			Timeout:   clientTimeout,
		},
		compression: compression,
		newBackoff:  newBackoff,
	}, nil
}

// PostFlush sends payload to url, retrying according to the retry policy until it is accepted,
// rejected outright, or ctx is done.
func (hc *Client) PostFlush(ctx context.Context, url string, payload *aistatsd.FlushPayload) error {
	raw, err := payload.Encode()
	if err != nil {
		return fmt.Errorf("failed to marshal flush: %v", err)
	}
	var body bytes.Buffer
	if err := hc.compression.Compress(raw, &body); err != nil {
		return fmt.Errorf("failed to compress flush: %v", err)
	}

	b := hc.newBackoff()
	for {
		err = hc.post(ctx, url, body.Bytes())
		if err == nil {
			return nil
		}
		var se *statusError
		if errors.As(err, &se) && se.permanent() {
			return err
		}

		next := b.NextBackOff()
		if next == backoff.Stop {
			return fmt.Errorf("failed to send, giving up: %v", err)
		}
		hc.logger.WithError(err).WithField("retry-in", next).Info("failed to send, retrying")

		if interruptableSleep(ctx, next) {
			return ctx.Err()
		}
	}
}

func (hc *Client) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("unable to create http.Request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "aiflush")
	if encoding := hc.compression.ContentEncoding(); encoding != "" {
		req.Header.Set("Content-Encoding", encoding)
	}

	resp, err := hc.client.Do(req)
	if err != nil {
		return fmt.Errorf("error POSTing: %v", err)
	}
	defer consumeAndClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyStart, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &statusError{status: resp.StatusCode, body: string(bodyStart)}
	}
	return nil
}
