package main

import (
	"context"

	"github.com/ash2k/stager"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/aistatsd/aistatsd"
	"github.com/aistatsd/aistatsd/pkg/events"
	"github.com/aistatsd/aistatsd/pkg/forwarder"
	"github.com/aistatsd/aistatsd/pkg/healthcheck"
	"github.com/aistatsd/aistatsd/pkg/pubsub"
	"github.com/aistatsd/aistatsd/pkg/telemetry"
	"github.com/aistatsd/aistatsd/pkg/web"
)

// daemon ties the flush sources to the forwarder through a single emitter.
type daemon struct {
	logger    logrus.FieldLogger
	emitter   *events.Emitter
	forwarder *forwarder.Forwarder

	// sinks stop after sources.
	sinks   []aistatsd.Runnable
	sources []aistatsd.Runnable
}

func constructDaemon(v *viper.Viper, logger logrus.FieldLogger) (*daemon, error) {
	factory, err := telemetry.InitFactory(v.GetString(aistatsd.ParamTelemetryClient), v, logger)
	if err != nil {
		return nil, err
	}

	emitter := events.NewEmitter()
	fwd, err := forwarder.NewForwarderFromViper(v, logger.WithField("component", "forwarder"), factory)
	if err != nil {
		return nil, err
	}
	if err := fwd.Initialize(emitter); err != nil {
		return nil, err
	}

	d := &daemon{
		logger:    logger,
		emitter:   emitter,
		forwarder: fwd,
	}

	client := fwd.TelemetryClient()
	d.sinks = aistatsd.MaybeAppendRunnable(d.sinks, client)

	healthChecks, deepChecks := healthcheck.MaybeAppendHealthChecks(nil, nil, fwd)
	healthChecks, deepChecks = healthcheck.MaybeAppendHealthChecks(healthChecks, deepChecks, client)

	if v.GetBool(aistatsd.ParamRedisEnabled) {
		sub, err := pubsub.NewSubscriberFromViper(v, logger.WithField("component", "redis"), emitter)
		if err != nil {
			return nil, err
		}
		d.sources = aistatsd.MaybeAppendRunnable(d.sources, sub)
		healthChecks, deepChecks = healthcheck.MaybeAppendHealthChecks(healthChecks, deepChecks, sub)
	}

	servers, err := web.NewHttpServersFromViper(v, logger, emitter, healthChecks, deepChecks)
	if err != nil {
		return nil, err
	}
	for _, server := range servers {
		d.sources = aistatsd.MaybeAppendRunnable(d.sources, server)
	}

	return d, nil
}

// Run runs every component until ctx is done.
func (d *daemon) Run(ctx context.Context) {
	stgr := stager.New()
	defer stgr.Shutdown()

	stage := stgr.NextStage()
	for _, r := range d.sinks {
		stage.StartWithContext(r)
	}

	stage = stgr.NextStage()
	for _, r := range d.sources {
		stage.StartWithContext(r)
	}

	d.logger.WithFields(logrus.Fields{
		"sources":   len(d.sources),
		"listeners": d.emitter.ListenerCount(aistatsd.EventFlush),
	}).Info("Forwarder running")

	<-ctx.Done()
	d.logger.Info("Shutting down")
}
