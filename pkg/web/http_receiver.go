package web

import (
	"errors"
	"expvar"
	"io"
	"net/http"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"github.com/tilinna/clock"

	"github.com/aistatsd/aistatsd"
)

const (
	// maxBodyBytes bounds the request body as sent on the wire.
	maxBodyBytes = 4 << 20
	// maxDecompressedBytes bounds the request body after reversing its Content-Encoding.
	maxDecompressedBytes = 16 << 20
)

type flushHttpHandler struct {
	requestSuccess           uint64 // atomic
	requestFailureRead       uint64 // atomic
	requestFailureDecompress uint64 // atomic
	requestFailureEncoding   uint64 // atomic
	requestFailureUnmarshal  uint64 // atomic
	requestFailureTooLarge   uint64 // atomic
	metricsReceived          uint64 // atomic

	logger     logrus.FieldLogger
	emitter    aistatsd.FlushEmitter
	serverName string
	clock      clock.Clock
}

func newFlushHttpHandler(logger logrus.FieldLogger, serverName string, emitter aistatsd.FlushEmitter) *flushHttpHandler {
	fhh := &flushHttpHandler{
		logger:     logger,
		emitter:    emitter,
		serverName: serverName,
		clock:      clock.Realtime(),
	}
	publishExpvar("http."+serverName+".incoming", fhh.stats)
	return fhh
}

// publishExpvar publishes fn under name, unless something is already published there.
func publishExpvar(name string, fn func() interface{}) {
	if expvar.Get(name) == nil {
		expvar.Publish(name, expvar.Func(fn))
	}
}

func (fhh *flushHttpHandler) stats() interface{} {
	return map[string]uint64{
		"success":            atomic.LoadUint64(&fhh.requestSuccess),
		"failure_read":       atomic.LoadUint64(&fhh.requestFailureRead),
		"failure_decompress": atomic.LoadUint64(&fhh.requestFailureDecompress),
		"failure_encoding":   atomic.LoadUint64(&fhh.requestFailureEncoding),
		"failure_unmarshal":  atomic.LoadUint64(&fhh.requestFailureUnmarshal),
		"failure_too_large":  atomic.LoadUint64(&fhh.requestFailureTooLarge),
		"metrics":            atomic.LoadUint64(&fhh.metricsReceived),
	}
}

func (fhh *flushHttpHandler) readBody(w http.ResponseWriter, req *http.Request) ([]byte, int) {
	b, err := io.ReadAll(http.MaxBytesReader(w, req.Body, maxBodyBytes))
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			atomic.AddUint64(&fhh.requestFailureTooLarge, 1)
			fhh.logger.WithField("limit", maxBytesErr.Limit).Info("body too large")
			return nil, http.StatusRequestEntityTooLarge
		}
		atomic.AddUint64(&fhh.requestFailureRead, 1)
		fhh.logger.WithError(err).Info("failed reading body")
		return nil, http.StatusInternalServerError
	}
	req.Body.Close()

	encoding := req.Header.Get("Content-Encoding")
	b, err = decompressBody(encoding, b, maxDecompressedBytes)
	if err != nil {
		if errors.Is(err, errBodyTooLarge) {
			atomic.AddUint64(&fhh.requestFailureTooLarge, 1)
			fhh.logger.WithField("limit", maxDecompressedBytes).Info("decompressed body too large")
			return nil, http.StatusRequestEntityTooLarge
		}
		if errors.Is(err, errUnknownEncoding) {
			atomic.AddUint64(&fhh.requestFailureEncoding, 1)
			if len(encoding) > 64 {
				encoding = encoding[0:64]
			}
			fhh.logger.WithField("encoding", encoding).Info("invalid encoding")
		} else {
			atomic.AddUint64(&fhh.requestFailureDecompress, 1)
			fhh.logger.WithError(err).Info("failed decompressing body")
		}
		return nil, http.StatusBadRequest
	}

	return b, 0
}

// FlushHandler accepts a JSON encoded flush payload and emits it as a flush event.
func (fhh *flushHttpHandler) FlushHandler(w http.ResponseWriter, req *http.Request) {
	b, errCode := fhh.readBody(w, req)

	if errCode != 0 {
		w.WriteHeader(errCode)
		return
	}

	payload, err := aistatsd.UnmarshalFlushPayload(b)
	if err != nil {
		atomic.AddUint64(&fhh.requestFailureUnmarshal, 1)
		fhh.logger.WithError(err).Error("failed to unmarshal")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	fhh.emitter.Emit(aistatsd.EventFlush, payload.Time(fhh.clock.Now()), payload)

	atomic.AddUint64(&fhh.metricsReceived, uint64(payload.Len()))
	atomic.AddUint64(&fhh.requestSuccess, 1)
	w.WriteHeader(http.StatusAccepted)
}
