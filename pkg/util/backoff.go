package util

import (
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/spf13/viper"
)

const (
	paramRetryInterval    = "retry-interval"
	paramRetryMaxInterval = "retry-max-interval" // exponential
	paramRetryMaxTime     = "retry-max-time"
	paramRetryPolicy      = "retry-policy"

	defaultRetryInterval    = 500 * time.Millisecond
	defaultRetryMaxInterval = 30 * time.Second
	defaultRetryMaxTime     = time.Duration(0) // retry forever
	defaultRetryPolicy      = policyExponential

	policyConstant    = "constant"
	policyDisabled    = "disabled"
	policyExponential = "exponential"
)

type BackoffFactory func() backoff.BackOff

// NewBackoffFactory creates a new BackoffFactory based on a backoff.ExponentialBackoff. A maxElapsedTime of 0
// never stops.
//
// backoff.ConstantBackoff lacks randomization of the interval, so a multiplier of 1.0 is used for a constant
// policy instead.
func NewBackoffFactory(multiplier float64, maxElapsedTime, interval, maxInterval time.Duration) BackoffFactory {
	return func() backoff.BackOff {
		bo := backoff.NewExponentialBackOff()
		bo.Multiplier = multiplier
		bo.MaxElapsedTime = maxElapsedTime
		bo.InitialInterval = interval
		bo.MaxInterval = maxInterval
		bo.Reset() // Reset is required to make the InitialInterval change take effect.
		return bo
	}
}

// GetRetryFromViper reads a retry policy from v, applying defaults suited to reconnecting a long lived connection.
func GetRetryFromViper(v *viper.Viper) (BackoffFactory, error) {
	v.SetDefault(paramRetryInterval, defaultRetryInterval)
	v.SetDefault(paramRetryMaxInterval, defaultRetryMaxInterval)
	v.SetDefault(paramRetryMaxTime, defaultRetryMaxTime)
	v.SetDefault(paramRetryPolicy, defaultRetryPolicy)

	retryInterval := v.GetDuration(paramRetryInterval)
	retryMaxInterval := v.GetDuration(paramRetryMaxInterval)
	retryMaxTime := v.GetDuration(paramRetryMaxTime)
	retryPolicy := v.GetString(paramRetryPolicy)

	if retryInterval <= 0 {
		return nil, errors.New(paramRetryInterval + " must be positive")
	}
	if retryMaxInterval < retryInterval {
		return nil, errors.New(paramRetryMaxInterval + " must not be less than " + paramRetryInterval)
	}
	if retryMaxTime < 0 {
		return nil, errors.New(paramRetryMaxTime + " must be zero or positive")
	}

	switch retryPolicy {
	case policyDisabled:
		return func() backoff.BackOff { return &backoff.StopBackOff{} }, nil
	case policyExponential:
		return NewBackoffFactory(backoff.DefaultMultiplier, retryMaxTime, retryInterval, retryMaxInterval), nil
	case policyConstant:
		return NewBackoffFactory(1.0, retryMaxTime, retryInterval, retryInterval), nil
	default:
		return nil, fmt.Errorf("%s (%s) not one of %s, %s, or %s", paramRetryPolicy, retryPolicy, policyDisabled, policyConstant, policyExponential)
	}
}
