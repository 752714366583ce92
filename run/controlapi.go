package run

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/relex/frame-agent/base"
	"github.com/relex/frame-agent/defs"
	"github.com/relex/gotils/logger"
)

const maxRequestSize = 1 << 20

type controlResponse struct {
	Code  int    `json:"code"`
	Error string `json:"error,omitempty"`
}

type controlAPI struct {
	logger  logger.Logger
	service *Service
}

// NewControlHandler creates the HTTP handler of the control surface:
//
//	PUT /config   start a pipeline with a JSON ConfigureRequest
//	POST /kill    terminate the active pipeline
//	GET /status   status of the active or the last pipeline
func NewControlHandler(parentLogger logger.Logger, service *Service) http.Handler {
	api := &controlAPI{
		logger:  parentLogger.WithField(defs.LabelComponent, "ControlAPI"),
		service: service,
	}
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Put("/config", api.configure)
	r.Post("/kill", api.kill)
	r.Get("/status", api.status)
	return r
}

// LaunchControlListener starts a HTTP server for the control surface and returns it with the actual listening address
func LaunchControlListener(parentLogger logger.Logger, address string, service *Service) (*http.Server, net.Addr, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, nil, err
	}
	clogger := parentLogger.WithField(defs.LabelComponent, "ControlListener")
	server := &http.Server{
		Handler:           NewControlHandler(parentLogger, service),
		ReadHeaderTimeout: defs.ControlShutdownTimeout,
	}
	go func() {
		clogger.Infof("listening on %s for control requests...", listener.Addr())
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			clogger.Error("control listener error: ", err)
		}
	}()
	return server, listener.Addr(), nil
}

func (api *controlAPI) configure(w http.ResponseWriter, r *http.Request) {
	var req ConfigureRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestSize))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		api.respond(w, r, http.StatusBadRequest, err)
		return
	}
	err := api.service.Configure(r.Context(), req)
	api.respond(w, r, statusCodeOf(err), err)
}

func (api *controlAPI) kill(w http.ResponseWriter, r *http.Request) {
	err := api.service.Terminate(r.Context())
	api.respond(w, r, statusCodeOf(err), err)
}

func (api *controlAPI) status(w http.ResponseWriter, r *http.Request) {
	st, err := api.service.Status()
	if err != nil {
		api.respond(w, r, statusCodeOf(err), err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (api *controlAPI) respond(w http.ResponseWriter, r *http.Request, code int, err error) {
	resp := controlResponse{Code: code}
	if err != nil {
		resp.Error = err.Error()
		api.logger.WithField("requestId", chimiddleware.GetReqID(r.Context())).Warnf("%s %s: %d %s", r.Method, r.URL.Path, code, resp.Error)
	}
	writeJSON(w, code, resp)
}

func writeJSON(w http.ResponseWriter, code int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(value)
}

func statusCodeOf(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, base.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, base.ErrNotRunning), errors.Is(err, base.ErrConfigurationConflict):
		return http.StatusConflict
	case errors.Is(err, base.ErrSourceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}
