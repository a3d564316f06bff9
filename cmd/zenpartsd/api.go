package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ============================================================================
// HTTP API
// ============================================================================
// REST view of the settings panel plus the state websocket and metrics.
// Every request goes through the daemon loop via panelClient.
// ============================================================================

// maxRequestBody bounds PUT bodies; widget values are tiny.
const maxRequestBody = 4 << 10

type apiServer struct {
	client *panelClient
	logger *slog.Logger
}

// preferenceValue is the PUT /api/preferences/{key} body.
type preferenceValue struct {
	Value any `json:"value"`
}

// newRouter builds the daemon's HTTP handler. ws may be nil.
func newRouter(client *panelClient, ws *Server, logger *slog.Logger) http.Handler {
	api := &apiServer{client: client, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/preferences", api.handleList)
		r.Get("/preferences/{key}", api.handleGet)
		r.Put("/preferences/{key}", api.handleSet)
		r.Post("/preferences/{key}/click", api.handleClick)
		r.Post("/panel/rebuild", api.handleRebuild)
	})

	if ws != nil {
		ws.Register(r, "/ws/state")
	}
	return r
}

func (a *apiServer) handleList(w http.ResponseWriter, r *http.Request) {
	snap, err := a.client.Snapshot(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (a *apiServer) handleGet(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	snap, err := a.client.Snapshot(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if !snap.Built {
		writeError(w, ErrPanelNotBuilt)
		return
	}
	p, ok := snap.Visible(key)
	if !ok {
		writeError(w, fmt.Errorf("%w: %s", ErrUnknownPreference, key))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *apiServer) handleSet(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var body preferenceValue
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if body.Value == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "value is required"})
		return
	}

	if err := a.client.Change(r.Context(), key, body.Value); err != nil {
		writeError(w, err)
		return
	}
	a.writePreference(w, r, key)
}

func (a *apiServer) handleClick(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if err := a.client.Click(r.Context(), key); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "ok"})
}

func (a *apiServer) handleRebuild(w http.ResponseWriter, r *http.Request) {
	if err := a.client.Rebuild(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	a.handleList(w, r)
}

// writePreference answers with the widget state after a change.
func (a *apiServer) writePreference(w http.ResponseWriter, r *http.Request, key string) {
	snap, err := a.client.Snapshot(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	p, ok := snap.Visible(key)
	if !ok {
		writeError(w, fmt.Errorf("%w: %s", ErrUnknownPreference, key))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, errorStatus(err), map[string]string{"error": err.Error()})
}

// errorStatus maps panel errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, ErrUnknownPreference):
		return http.StatusNotFound
	case errors.Is(err, ErrPreferenceDisabled):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidValue), errors.Is(err, ErrNotClickable):
		return http.StatusBadRequest
	case errors.Is(err, ErrPanelNotBuilt):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrRequestTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// requestLogger logs one line per request with the chi request id.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

// runHTTPServer serves handler on listenAddr and shuts it down gracefully
// when ctx is canceled.
func runHTTPServer(ctx context.Context, listenAddr string, handler http.Handler, logger *slog.Logger) error {
	logger.Info("HTTP server listening", "addr", listenAddr)

	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		// ListenAndServe returns http.ErrServerClosed on Shutdown; treat that as clean exit.
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP server shutdown: %w", err)
		}
		<-errCh
		return nil

	case err := <-errCh:
		return err
	}
}
