/*
 Licensed under the Apache License, Version 2.0 (the "License");
 you may not use this file except in compliance with the License.
 You may obtain a copy of the License at

     https://www.apache.org/licenses/LICENSE-2.0

 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

package api

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-openapi/loads"
	"github.com/go-openapi/runtime/middleware"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"jinr.ru/greenlab/go-unidig/pkg/config"
	"jinr.ru/greenlab/go-unidig/pkg/device"
	"jinr.ru/greenlab/go-unidig/pkg/device/ifc"
	"jinr.ru/greenlab/go-unidig/pkg/log"
	"jinr.ru/greenlab/go-unidig/pkg/state"
	"jinr.ru/greenlab/go-unidig/pkg/unidig"
)

const (
	ApiPrefix = "/api"
	DocsPath  = "docs"
)

//go:embed swagger.json
var swaggerJSON []byte

// Code is the body of successful write requests
type Code struct {
	Code int `json:"code"`
}

// Bits carries an input word as a hexadecimal string
type Bits struct {
	Value string `json:"value"`
}

// Mask carries a bit mask as a hexadecimal string
type Mask struct {
	Mask string `json:"mask"`
}

// Lines pulls the lines in Mask of a simulated module to Value
type Lines struct {
	Mask  string `json:"mask"`
	Value string `json:"value"`
}

type DAC struct {
	Value uint16 `json:"value"`
}

func Hex(v uint32) string {
	return fmt.Sprintf("0x%08x", v)
}

func ParseHex(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, errors.Wrapf(err, "bad mask %q", s)
	}
	return uint32(v), nil
}

// StateReader is the part of the state store the API reads
type StateReader interface {
	Get(deviceName string) (*state.Snapshot, error)
}

type ApiServer struct {
	context.Context
	*config.Config
	*mux.Router
	pool  ifc.Pool
	state StateReader
	spec  *loads.Document
}

func NewApiServer(ctx context.Context, cfg *config.Config, pool ifc.Pool, st StateReader) (*ApiServer, error) {
	log.Debug("Initializing API server with address: %s port: %d", cfg.IP, cfg.ApiPort)

	doc, err := loads.Analyzed(json.RawMessage(swaggerJSON), "")
	if err != nil {
		return nil, errors.Wrap(err, "load embedded swagger spec")
	}
	s := &ApiServer{
		Context: ctx,
		Config:  cfg,
		pool:    pool,
		state:   st,
		spec:    doc,
	}
	s.configureRouter()
	return s, nil
}

// Handler wraps the router with the swagger document, docs, CORS and access log middlewares
func (s *ApiServer) Handler() http.Handler {
	var h http.Handler = s.Router
	h = middleware.Redoc(middleware.RedocOpts{
		BasePath: ApiPrefix,
		Path:     DocsPath,
		SpecURL:  ApiPrefix + "/swagger.json",
		Title:    s.spec.Spec().Info.Title,
	}, h)
	h = middleware.Spec(ApiPrefix, s.spec.Raw(), h)
	h = handlers.CORS(
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)(h)
	return handlers.LoggingHandler(logWriter{}, h)
}

// Run serves until the context is done
func (s *ApiServer) Run() error {
	addr := fmt.Sprintf("%s:%d", s.Config.IP, s.Config.ApiPort)
	log.Info("Starting API server: %s", addr)
	httpServer := &http.Server{
		Handler:           s.Handler(),
		Addr:              addr,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return s.Context },
	}
	errChan := make(chan error, 1)
	go func() {
		errChan <- httpServer.ListenAndServe()
	}()
	select {
	case <-s.Context.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
		return s.Context.Err()
	case err := <-errChan:
		return err
	}
}

// logWriter sends access log lines to the debug log
type logWriter struct{}

func (logWriter) Write(p []byte) (int, error) {
	if log.IsDebug() {
		log.Debug("%s", strings.TrimRight(string(p), "\n"))
	}
	return len(p), nil
}

func (s *ApiServer) configureRouter() {
	s.Router = mux.NewRouter()
	subRouter := s.Router.PathPrefix(ApiPrefix).Subrouter()
	subRouter.HandleFunc("/devices", s.handleDevices()).Methods("GET")
	subRouter.HandleFunc("/bits/{device}", s.handleReadBits()).Methods("GET")
	subRouter.HandleFunc("/bits/{device}/{action:set|clear}", s.handleWriteBits()).Methods("POST")
	subRouter.HandleFunc("/dac/{device}", s.handleDAC()).Methods("POST")
	subRouter.HandleFunc("/mask/{device}/{edge:rising|falling}", s.handleGetMask()).Methods("GET")
	subRouter.HandleFunc("/mask/{device}/{edge:rising|falling}/{action:set|clear}", s.handleSetMask()).Methods("POST")
	subRouter.HandleFunc("/lines/{device}", s.handleLines()).Methods("POST")
	subRouter.HandleFunc("/state/{device}", s.handleState()).Methods("GET")
	subRouter.HandleFunc("/report/{device}", s.handleReport()).Methods("GET")
}

// statusFor maps driver errors to HTTP status codes
func statusFor(err error) int {
	switch cause := errors.Cause(err); cause.(type) {
	case config.ErrDeviceNotFound, state.ErrNoSnapshot:
		return http.StatusNotFound
	case device.ErrNotSimulated:
		return http.StatusConflict
	default:
		switch cause {
		case unidig.ErrUnsupportedOperation:
			return http.StatusConflict
		case unidig.ErrShuttingDown:
			return http.StatusServiceUnavailable
		case unidig.ErrRegistrationLimit:
			return http.StatusTooManyRequests
		}
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), statusFor(err))
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeOk(w http.ResponseWriter) {
	writeJSON(w, &Code{Code: http.StatusOK})
}

func (s *ApiServer) getDevice(w http.ResponseWriter, r *http.Request) (ifc.Device, bool) {
	d, err := s.pool.GetDeviceByName(mux.Vars(r)["device"])
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return d, true
}

func decodeMask(w http.ResponseWriter, r *http.Request) (uint32, bool) {
	req := &Mask{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return 0, false
	}
	mask, err := ParseHex(req.Mask)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return 0, false
	}
	return mask, true
}

func (s *ApiServer) handleDevices() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		infos := []unidig.Info{}
		for _, d := range s.pool.GetAllDevices() {
			infos = append(infos, d.Info())
		}
		writeJSON(w, infos)
	}
}

func (s *ApiServer) handleReadBits() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, ok := s.getDevice(w, r)
		if !ok {
			return
		}
		bits, err := d.ReadBits()
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, &Bits{Value: Hex(bits)})
	}
}

func (s *ApiServer) handleWriteBits() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		d, ok := s.getDevice(w, r)
		if !ok {
			return
		}
		mask, ok := decodeMask(w, r)
		if !ok {
			return
		}
		log.Debug("Handling bits %s request: device: %s mask: %x", vars["action"], vars["device"], mask)
		var err error
		switch vars["action"] {
		case "set":
			err = d.SetBits(mask)
		case "clear":
			err = d.ClearBits(mask)
		}
		if err != nil {
			writeError(w, err)
			return
		}
		writeOk(w)
	}
}

func (s *ApiServer) handleDAC() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, ok := s.getDevice(w, r)
		if !ok {
			return
		}
		req := &DAC{}
		if err := json.NewDecoder(r.Body).Decode(req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := d.SetDAC(req.Value); err != nil {
			writeError(w, err)
			return
		}
		writeOk(w)
	}
}

func (s *ApiServer) handleGetMask() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, ok := s.getDevice(w, r)
		if !ok {
			return
		}
		mask := d.RisingMask()
		if mux.Vars(r)["edge"] == "falling" {
			mask = d.FallingMask()
		}
		writeJSON(w, &Mask{Mask: Hex(mask)})
	}
}

func (s *ApiServer) handleSetMask() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		d, ok := s.getDevice(w, r)
		if !ok {
			return
		}
		mask, ok := decodeMask(w, r)
		if !ok {
			return
		}
		log.Debug("Handling %s mask %s request: device: %s mask: %x", vars["edge"], vars["action"], vars["device"], mask)
		var err error
		switch vars["edge"] + "/" + vars["action"] {
		case "rising/set":
			err = d.SetRisingMaskBits(mask)
		case "rising/clear":
			err = d.ClearRisingMaskBits(mask)
		case "falling/set":
			err = d.SetFallingMaskBits(mask)
		case "falling/clear":
			err = d.ClearFallingMaskBits(mask)
		}
		if err != nil {
			writeError(w, err)
			return
		}
		writeOk(w)
	}
}

func (s *ApiServer) handleLines() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lines, err := s.pool.GetLines(mux.Vars(r)["device"])
		if err != nil {
			writeError(w, err)
			return
		}
		req := &Lines{}
		if err := json.NewDecoder(r.Body).Decode(req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		mask, err := ParseHex(req.Mask)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		value, err := ParseHex(req.Value)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		lines.SetLines(mask, value)
		writeOk(w)
	}
}

func (s *ApiServer) handleState() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, ok := s.getDevice(w, r)
		if !ok {
			return
		}
		if s.state == nil {
			http.Error(w, "state store is disabled", http.StatusNotFound)
			return
		}
		snap, err := s.state.Get(d.Name())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, snap)
	}
}

func (s *ApiServer) handleReport() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, ok := s.getDevice(w, r)
		if !ok {
			return
		}
		details := 0
		if v := r.URL.Query().Get("details"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			details = n
		}
		w.Header().Set("Content-Type", "text/plain")
		d.Report(w, details)
	}
}
