package web

import (
	"context"
	"expvar"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/tilinna/clock"

	"github.com/aistatsd/aistatsd"
	"github.com/aistatsd/aistatsd/pkg/healthcheck"
	"github.com/aistatsd/aistatsd/pkg/util"
)

type httpServer struct {
	logger  logrus.FieldLogger
	address string
	Router  *mux.Router // should be private, but tests drive it through httptest.
	flush   *flushHttpHandler
}

type route struct {
	path    string
	handler http.HandlerFunc
	method  string
	name    string
}

var done = struct{}{}

func NewHttpServersFromViper(
	v *viper.Viper,
	logger logrus.FieldLogger,
	emitter aistatsd.FlushEmitter,
	healthChecks []healthcheck.HealthcheckFunc,
	deepChecks []healthcheck.HealthcheckFunc,
) ([]*httpServer, error) {
	httpServerNames := v.GetStringSlice(aistatsd.ParamHttpServers)
	servers := make([]*httpServer, 0, len(httpServerNames))
	for _, httpServerName := range httpServerNames {
		server, err := newHttpServerFromViper(logger, v, httpServerName, emitter, healthChecks, deepChecks)
		if err != nil {
			return nil, fmt.Errorf("failed to make http-server %s: %v", httpServerName, err)
		}
		servers = append(servers, server)
	}
	return servers, nil
}

func newHttpServerFromViper(
	logger logrus.FieldLogger,
	vMain *viper.Viper,
	serverName string,
	emitter aistatsd.FlushEmitter,
	healthChecks []healthcheck.HealthcheckFunc,
	deepChecks []healthcheck.HealthcheckFunc,
) (*httpServer, error) {
	vSub := util.GetSubViper(vMain, "http."+serverName)
	vSub.SetDefault("address", "127.0.0.1:8080")
	vSub.SetDefault("enable-expvar", false)
	vSub.SetDefault("enable-ingestion", false)
	vSub.SetDefault("enable-healthcheck", true)

	return NewHttpServer(
		logger.WithField("http-server", serverName),
		emitter,
		healthChecks,
		deepChecks,
		serverName,
		vSub.GetString("address"),
		vSub.GetBool("enable-expvar"),
		vSub.GetBool("enable-ingestion"),
		vSub.GetBool("enable-healthcheck"),
	)
}

func NewHttpServer(
	logger logrus.FieldLogger,
	emitter aistatsd.FlushEmitter,
	healthChecks []healthcheck.HealthcheckFunc,
	deepChecks []healthcheck.HealthcheckFunc,
	serverName, address string,
	enableExpVar,
	enableIngestion,
	enableHealthcheck bool,
) (*httpServer, error) {
	var routes []route

	server := &httpServer{
		logger:  logger,
		address: address,
	}

	if enableExpVar {
		routes = append(routes,
			route{path: "/expvar", handler: expvar.Handler().ServeHTTP, method: "GET", name: "expvar_get"},
		)
	}

	if enableIngestion {
		if emitter == nil {
			return nil, fmt.Errorf("ingestion requires a flush emitter")
		}
		server.flush = newFlushHttpHandler(logger, serverName, emitter)
		routes = append(routes,
			route{path: "/v1/flush", handler: server.flush.FlushHandler, method: "POST", name: "flushv1_post"},
		)
	}

	if enableHealthcheck {
		hc := &healthChecker{logger, healthChecks, deepChecks}
		routes = append(routes,
			route{path: "/healthcheck", handler: hc.healthCheck, method: "GET", name: "healthcheck_get"},
			route{path: "/deepcheck", handler: hc.deepCheck, method: "GET", name: "deepcheck_get"},
		)
	}

	if len(routes) == 0 {
		return nil, fmt.Errorf("must enable at least one of expvar, ingestion, or healthcheck")
	}

	router, err := createRoutes(routes)
	if err != nil {
		return nil, err
	}
	router.NotFoundHandler = server.logRequest(http.HandlerFunc(server.notFound))
	router.Use(server.logRequest)
	server.Router = router

	logger.WithFields(logrus.Fields{
		"address":            address,
		"enable-expvar":      enableExpVar,
		"enable-ingestion":   enableIngestion,
		"enable-healthcheck": enableHealthcheck,
	}).Info("Created server")

	return server, nil
}

func (hs *httpServer) notFound(w http.ResponseWriter, req *http.Request) {
	w.WriteHeader(404)
	_, _ = w.Write([]byte("not found"))
}

func createRoutes(routes []route) (*mux.Router, error) {
	router := mux.NewRouter()

	for _, route := range routes {
		r := router.HandleFunc(route.path, route.handler).Methods(route.method).Name(route.name)
		if err := r.GetError(); err != nil {
			return nil, fmt.Errorf("error creating route %s: %v", route.name, err)
		}
	}

	return router, nil
}

func (hs *httpServer) logRequest(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		logFields := logrus.Fields{
			"srcip": strings.Split(req.RemoteAddr, ":")[0],
			"path":  req.URL.Path,
		}
		if route := mux.CurrentRoute(req); route == nil {
			logFields["method"] = req.Method
		} else {
			logFields["route"] = route.GetName()
		}
		if source := req.Header.Get("X-Forwarded-For"); source != "" {
			logFields["forwarded_for"] = source
		}

		start := time.Now()
		handler.ServeHTTP(w, req)
		dur := time.Since(start)

		logFields["duration"] = float64(dur) / float64(time.Millisecond)
		hs.logger.WithFields(logFields).Debug("request")
	})
}

func (hs *httpServer) Run(ctx context.Context) {
	if hs.flush != nil {
		hs.flush.clock = clock.FromContext(ctx)
	}

	server := &http.Server{
		Addr:    hs.address,
		Handler: hs.Router,
	}

	chStopped := make(chan struct{}, 1)
	go hs.waitAndStop(ctx, server, chStopped)

	hs.logger.WithField("address", server.Addr).Info("listening")

	err := server.ListenAndServe()
	if err != http.ErrServerClosed {
		hs.logger.WithError(err).Error("web server failed")
		return
	}

	// Wait for graceful shutdown of existing connections

	select {
	case <-chStopped:
		// happy
	case <-time.After(6 * time.Second):
		hs.logger.Info("timeout waiting for webserver to stop")
	}
}

// waitAndStop will gracefully shut down the Server when the Context passed is cancelled.  It signals
// on chStopped when it is done.  There is no guarantee that it will actually signal, if the server
// does not shutdown.
func (hs *httpServer) waitAndStop(ctx context.Context, server *http.Server, chStopped chan<- struct{}) {
	<-ctx.Done()

	hs.logger.Info("shutting down web server")
	timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := server.Shutdown(timeoutCtx)
	if err != nil {
		hs.logger.WithError(err).Warn("failed to stop web server")
	}
	chStopped <- done
}
