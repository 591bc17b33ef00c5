package util

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"
)

type MonitorServer struct {
	running *sync.Mutex
	srv     *http.Server
	srvMu   sync.RWMutex // protects srv field
	mux     *http.ServeMux
	addr    func() string
}

func NewMonitorServer() *MonitorServer {
	var s MonitorServer
	s.running = &sync.Mutex{}
	s.srv = &http.Server{}
	s.mux = http.NewServeMux()
	s.addr = func() string { return fmt.Sprintf(":%d", Config.GetInt("details_port")) }
	return &s
}

func (s *MonitorServer) Start() error {
	if !s.running.TryLock() {
		return fmt.Errorf("already running")
	} else {
		s.running.Unlock()
	}
	go func() {
		s.running.Lock()

		newSrv := &http.Server{
			Addr:              s.addr(),
			Handler:           s.mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		s.srvMu.Lock()
		s.srv = newSrv
		s.srvMu.Unlock()

		if err := newSrv.ListenAndServe(); err != http.ErrServerClosed {
			Logger.Warn().Msgf("Problem loading monitor server: %v", err)
		}
		Logger.Debug().Msg("monitor server shutdown")
		s.running.Unlock()
	}()
	return nil
}

func (s *MonitorServer) AddHandler(path string, handler func(http.ResponseWriter, *http.Request)) {
	s.mux.HandleFunc(path, handler)
}

func (s *MonitorServer) AddRawHandler(path string, handler http.Handler) {
	s.mux.Handle(path, handler)
}

// Handler exposes the routes, mainly for httptest.
func (s *MonitorServer) Handler() http.Handler {
	return s.mux
}

func (s *MonitorServer) Restart() {
	Logger.Debug().Msg("restarting monitor server")
	s.shutdown()
	if err := s.Start(); err != nil {
		Logger.Error().Msgf("Error starting monitor server: %v", err)
	}
}

// Stop shuts the server down and waits for it.
func (s *MonitorServer) Stop() {
	s.shutdown()
}

func (s *MonitorServer) shutdown() {
	if !s.running.TryLock() { // only shutdown if running
		Logger.Debug().Msg("monitor server running, shutting it down")

		s.srvMu.RLock()
		currentSrv := s.srv
		s.srvMu.RUnlock()

		if currentSrv != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := currentSrv.Shutdown(ctx); err != nil {
				Logger.Error().Msgf("Error shutting down monitor server: %v", err)
			}
			cancel()
		}
	} else {
		s.running.Unlock()
	}
	Logger.Debug().Msg("waiting for shutdown")
	s.running.Lock() // when server shuts down it will unlock, so wait for unlock
	Logger.Debug().Msg("http not running - good for startup")
	s.running.Unlock()
}
