package pubsub

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/tilinna/clock"
	"golang.org/x/time/rate"

	"github.com/aistatsd/aistatsd"
	"github.com/aistatsd/aistatsd/pkg/healthcheck"
	"github.com/aistatsd/aistatsd/pkg/util"
)

// ParamRedis is the configuration section of the subscriber.
const ParamRedis = "redis"

type RedisClient interface {
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Subscriber reads flushes published to a Redis channel and emits them.
type Subscriber struct {
	subscribed uint32 // atomic
	received   uint64 // atomic
	invalid    uint64 // atomic

	logger     logrus.FieldLogger
	client     RedisClient
	config     Config
	emitter    aistatsd.FlushEmitter
	newBackoff util.BackoffFactory
	// closeClient is set when the Subscriber owns its client.
	closeClient func() error

	decodeFailureLog *rate.Limiter
}

// NewSubscriberFromViper creates a Subscriber and its Redis client from the redis section of v.
func NewSubscriberFromViper(v *viper.Viper, logger logrus.FieldLogger, emitter aistatsd.FlushEmitter) (*Subscriber, error) {
	sub := util.GetSubViper(v, ParamRedis)
	cfg, err := NewConfig(sub)
	if err != nil {
		return nil, fmt.Errorf("[%s] invalid configuration: %v", ParamRedis, err)
	}
	newBackoff, err := util.GetRetryFromViper(sub)
	if err != nil {
		return nil, fmt.Errorf("[%s] invalid retry configuration: %v", ParamRedis, err)
	}
	client := redis.NewClient(&redis.Options{
		Addr: cfg.Address,
		DB:   cfg.DB,
	})
	s := NewSubscriber(logger, client, *cfg, emitter, newBackoff)
	s.closeClient = client.Close
	return s, nil
}

func NewSubscriber(logger logrus.FieldLogger, client RedisClient, config Config, emitter aistatsd.FlushEmitter, newBackoff util.BackoffFactory) *Subscriber {
	return &Subscriber{
		logger: logger.WithFields(logrus.Fields{
			"address": config.Address,
			"channel": config.Channel,
		}),
		client:           client,
		config:           config,
		emitter:          emitter,
		newBackoff:       newBackoff,
		decodeFailureLog: rate.NewLimiter(rate.Every(time.Minute), 5),
	}
}

// Run subscribes to the channel and emits every flush received until ctx is done. A lost
// subscription is retried according to the retry policy.
func (s *Subscriber) Run(ctx context.Context) {
	clck := clock.FromContext(ctx)
	bo := s.newBackoff()
	defer s.close()

	for {
		if s.subscribe(ctx, clck) {
			bo.Reset()
		}
		if ctx.Err() != nil {
			return
		}

		next := bo.NextBackOff()
		if next == backoff.Stop {
			s.logger.Error("Giving up on redis subscription")
			return
		}
		s.logger.WithField("retry-in", next).Warn("Redis subscription lost, resubscribing")

		timer := clck.NewTimer(next)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (s *Subscriber) close() {
	if s.closeClient == nil {
		return
	}
	if err := s.closeClient(); err != nil {
		s.logger.WithError(err).Warn("Failed to close redis client")
	}
}

// subscribe holds a single subscription open, and returns true if it was ever confirmed.
func (s *Subscriber) subscribe(ctx context.Context, clck clock.Clock) bool {
	ps := s.client.Subscribe(ctx, s.config.Channel)
	defer ps.Close()

	if _, err := ps.Receive(ctx); err != nil {
		if ctx.Err() == nil {
			s.logger.WithError(err).Warn("Failed to subscribe")
		}
		return false
	}

	atomic.StoreUint32(&s.subscribed, 1)
	defer atomic.StoreUint32(&s.subscribed, 0)
	s.logger.Info("Subscribed")

	psChan := ps.Channel() // Closed when ps is Closed
	for {
		select {
		case <-ctx.Done():
			return true
		case msg, ok := <-psChan:
			if !ok {
				return true
			}
			s.handleMessage(msg.Payload, clck.Now())
		}
	}
}

func (s *Subscriber) handleMessage(message string, now time.Time) {
	atomic.AddUint64(&s.received, 1)
	payload, err := Decode(s.config.Encoding, []byte(message))
	if err != nil {
		atomic.AddUint64(&s.invalid, 1)
		if s.decodeFailureLog.Allow() {
			s.logger.WithError(err).WithField("encoding", s.config.Encoding).Warn("Dropping undecodable flush")
		}
		return
	}
	s.emitter.Emit(aistatsd.EventFlush, payload.Time(now), payload)
}

func (s *Subscriber) DeepChecks() []healthcheck.HealthcheckFunc {
	return []healthcheck.HealthcheckFunc{s.deepCheckSubscribed}
}

func (s *Subscriber) deepCheckSubscribed() (string, healthcheck.HealthyStatus) {
	received := atomic.LoadUint64(&s.received)
	invalid := atomic.LoadUint64(&s.invalid)
	if atomic.LoadUint32(&s.subscribed) == 0 {
		return fmt.Sprintf("redis %s not subscribed", s.config.Channel), healthcheck.Unhealthy
	}
	return fmt.Sprintf("redis %s subscribed, %d received, %d invalid", s.config.Channel, received, invalid), healthcheck.Healthy
}

// Publish encodes payload and publishes it to channel, returning the number of subscribers which received it.
func Publish(ctx context.Context, client RedisClient, channel, encoding string, payload *aistatsd.FlushPayload) (int64, error) {
	b, err := Encode(encoding, payload)
	if err != nil {
		return 0, err
	}
	return client.Publish(ctx, channel, b).Result()
}
