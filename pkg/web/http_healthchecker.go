package web

import (
	"net/http"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	"github.com/aistatsd/aistatsd/pkg/healthcheck"
)

type healthChecker struct {
	logger       logrus.FieldLogger
	healthChecks []healthcheck.HealthcheckFunc
	deepChecks   []healthcheck.HealthcheckFunc
}

func respondToHealthChecks(resp http.ResponseWriter, checks []healthcheck.HealthcheckFunc) {
	good, bad := healthcheck.Run(checks)
	resp.Header().Set("content-type", "application/json")
	if len(bad) > 0 {
		resp.WriteHeader(http.StatusInternalServerError)
	} else {
		resp.WriteHeader(http.StatusOK)
	}

	enc := jsoniter.NewEncoder(resp)
	_ = enc.Encode(map[string][]string{
		"ok":     good,
		"failed": bad,
	})
}

// healthCheck reports if the server is ready to accept flushes.
func (hc *healthChecker) healthCheck(resp http.ResponseWriter, req *http.Request) {
	hc.logger.Debug("healthCheck")
	respondToHealthChecks(resp, hc.healthChecks)
}

// deepCheck reports on the status of downstream dependencies.
func (hc *healthChecker) deepCheck(resp http.ResponseWriter, req *http.Request) {
	hc.logger.Debug("deepCheck")
	respondToHealthChecks(resp, hc.deepChecks)
}
