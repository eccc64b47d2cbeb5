package pubsub

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ash2k/stager/wait"
	"github.com/go-redis/redis/v8"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aistatsd/aistatsd"
	"github.com/aistatsd/aistatsd/internal/fixtures"
	"github.com/aistatsd/aistatsd/pkg/events"
	"github.com/aistatsd/aistatsd/pkg/healthcheck"
	"github.com/aistatsd/aistatsd/pkg/util"
)

type flush struct {
	timestamp time.Time
	payload   *aistatsd.FlushPayload
}

func newCapturingEmitter() (*events.Emitter, chan flush) {
	flushes := make(chan flush, 10)
	emitter := events.NewEmitter()
	emitter.On(aistatsd.EventFlush, func(timestamp time.Time, payload *aistatsd.FlushPayload) {
		flushes <- flush{timestamp: timestamp, payload: payload}
	})
	return emitter, flushes
}

func newTestSubscriber(t *testing.T, client RedisClient, encoding string, emitter aistatsd.FlushEmitter) *Subscriber {
	cfg := newDefaultConfig()
	cfg.Encoding = encoding
	return NewSubscriber(fixtures.NewTestLogger(t), client, cfg, emitter, util.NewBackoffFactory(1.0, 0, 10*time.Millisecond, 10*time.Millisecond))
}

func waitSubscribed(t *testing.T, s *Subscriber) {
	require.Eventually(t, func() bool {
		_, status := s.deepCheckSubscribed()
		return status == healthcheck.Healthy
	}, 2*time.Second, 5*time.Millisecond)
}

func nextFlush(t *testing.T, flushes <-chan flush) flush {
	select {
	case f := <-flushes:
		return f
	case <-time.After(2 * time.Second):
		require.FailNow(t, "timed out waiting for flush")
		return flush{}
	}
}

func TestSubscriberEmitsPublishedFlushes(t *testing.T) {
	t.Parallel()
	for _, encoding := range []string{EncodingJSON, EncodingMsgpack} {
		encoding := encoding
		t.Run(encoding, func(t *testing.T) {
			t.Parallel()
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			defer client.Close()

			emitter, flushes := newCapturingEmitter()
			s := newTestSubscriber(t, client, encoding, emitter)

			ctx, cancel := context.WithCancel(context.Background())
			ctxClock, _ := fixtures.NewMockClockContext(ctx, 10)
			var wg wait.Group
			defer wg.Wait()
			defer cancel()
			wg.StartWithContext(ctxClock, s.Run)
			waitSubscribed(t, s)

			sent := fixtures.MakePayload(
				fixtures.At(1500000000),
				fixtures.Counter("mycounter", 87),
				fixtures.Timer("mytimer", 1, 2, 3, 4, 5),
				fixtures.Gauge("mygauge", 42),
			)
			n, err := Publish(ctx, client, DefaultChannel, encoding, sent)
			require.NoError(t, err)
			assert.EqualValues(t, 1, n)

			f := nextFlush(t, flushes)
			assert.Equal(t, time.Unix(1500000000, 0), f.timestamp)
			assert.Equal(t, sent, f.payload)

			// Without a timestamp the flush is stamped with the receive time.
			_, err = Publish(ctx, client, DefaultChannel, encoding, fixtures.MakePayload(fixtures.Counter("other", 1)))
			require.NoError(t, err)
			f = nextFlush(t, flushes)
			assert.Equal(t, time.Unix(10, 0), f.timestamp)
			assert.Equal(t, 1.0, f.payload.Counters["other"])
		})
	}
}

func TestSubscriberDropsUndecodableMessages(t *testing.T) {
	t.Parallel()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	emitter, flushes := newCapturingEmitter()
	s := newTestSubscriber(t, client, EncodingJSON, emitter)

	ctx, cancel := context.WithCancel(context.Background())
	var wg wait.Group
	defer wg.Wait()
	defer cancel()
	wg.StartWithContext(ctx, s.Run)
	waitSubscribed(t, s)

	require.NoError(t, client.Publish(ctx, DefaultChannel, "not a flush").Err())
	_, err := Publish(ctx, client, DefaultChannel, EncodingJSON, fixtures.MakePayload(fixtures.Gauge("mygauge", 3)))
	require.NoError(t, err)

	f := nextFlush(t, flushes)
	assert.Equal(t, 3.0, f.payload.Gauges["mygauge"])

	report, status := s.deepCheckSubscribed()
	assert.Equal(t, healthcheck.Healthy, status)
	assert.Equal(t, "redis aistatsd:flush subscribed, 2 received, 1 invalid", report)
}

type countingClient struct {
	RedisClient
	subscribes int32
}

func (cc *countingClient) Subscribe(ctx context.Context, channels ...string) *redis.PubSub {
	atomic.AddInt32(&cc.subscribes, 1)
	return cc.RedisClient.Subscribe(ctx, channels...)
}

func TestSubscriberRetriesUnavailableRedis(t *testing.T) {
	t.Parallel()
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	cc := &countingClient{RedisClient: client}

	emitter, _ := newCapturingEmitter()
	s := newTestSubscriber(t, cc, EncodingJSON, emitter)

	ctxTest, cancelTest := fixtures.TestContext(5 * time.Second)
	defer cancelTest()
	ctx, cancel := context.WithCancel(ctxTest)
	ctxClock, clck := fixtures.NewMockClockContext(ctx, 10)

	var wg wait.Group
	wg.StartWithContext(ctxClock, s.Run)
	for i := 0; i < 2; i++ {
		fixtures.NextStep(ctxTest, clck)
	}
	cancel()
	wg.Wait()

	require.NoError(t, ctxTest.Err(), "timed out")
	assert.GreaterOrEqual(t, atomic.LoadInt32(&cc.subscribes), int32(2))
	_, status := s.deepCheckSubscribed()
	assert.Equal(t, healthcheck.Unhealthy, status)
}

func TestSubscriberGivesUpWhenRetryDisabled(t *testing.T) {
	t.Parallel()
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	v := viper.New()
	v.Set("redis.address", addr)
	v.Set("redis.retry-policy", "disabled")
	emitter, _ := newCapturingEmitter()
	s, err := NewSubscriberFromViper(v, fixtures.NewTestLogger(t), emitter)
	require.NoError(t, err)

	ctx, cancel := fixtures.TestContext(5 * time.Second)
	defer cancel()
	s.Run(ctx)
	require.NoError(t, ctx.Err(), "Run must return without being cancelled")

	err = s.client.(*redis.Client).Ping(context.Background()).Err()
	assert.EqualError(t, err, "redis: client is closed", "Run must close the client it owns")
}

func TestSubscriberClosesOwnedClientOnCancel(t *testing.T) {
	t.Parallel()
	mr := miniredis.RunT(t)

	v := viper.New()
	v.Set("redis.address", mr.Addr())
	emitter, _ := newCapturingEmitter()
	s, err := NewSubscriberFromViper(v, fixtures.NewTestLogger(t), emitter)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()
	require.Eventually(t, func() bool {
		return atomic.LoadUint32(&s.subscribed) == 1
	}, 5*time.Second, 10*time.Millisecond)
	cancel()
	<-done

	err = s.client.(*redis.Client).Ping(context.Background()).Err()
	assert.EqualError(t, err, "redis: client is closed")
}

func TestNewSubscriberFromViperErrors(t *testing.T) {
	t.Parallel()
	emitter, _ := newCapturingEmitter()

	v := viper.New()
	v.Set("redis.encoding", "xml")
	_, err := NewSubscriberFromViper(v, fixtures.NewTestLogger(t), emitter)
	require.EqualError(t, err, `[redis] invalid configuration: encoding must be one of json or msgpack: "xml"`)

	v = viper.New()
	v.Set("redis.retry-policy", "sometimes")
	_, err = NewSubscriberFromViper(v, fixtures.NewTestLogger(t), emitter)
	require.Error(t, err)
}
