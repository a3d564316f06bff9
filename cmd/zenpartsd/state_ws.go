package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

// ============================================================================
// State feed: websocket endpoint + broadcaster
// ============================================================================
// Frames are JSON text messages {type, ts, data}. A subscriber first gets
// "state_init" with the full StateSnapshot, then "preference_changed" for each
// accepted change and "panel_rebuilt" after every rebuild. Frames come only
// from reducer broadcasts; the snapshot is requested through the event loop.
// ============================================================================

const (
	wsTypeStateInit         = "state_init"
	wsTypePreferenceChanged = "preference_changed"
	wsTypePanelRebuilt      = "panel_rebuilt"
)

// wsOutboundEvent is a typed frame before serialization.
type wsOutboundEvent struct {
	Type string
	Data any
	At   time.Time // zero means now
}

type envelope struct {
	Type string     `json:"type"`
	Ts   *time.Time `json:"ts,omitempty"`
	Data any        `json:"data,omitempty"`
}

func marshalEnvelope(ev wsOutboundEvent) ([]byte, error) {
	ts := ev.At
	if ts.IsZero() {
		ts = time.Now()
	}
	ts = ts.UTC()
	return json.Marshal(envelope{Type: ev.Type, Ts: &ts, Data: ev.Data})
}

// Server serves the state feed.
type Server struct {
	logger *slog.Logger
	hub    *Hub
	client *panelClient
}

type ServerConfig struct {
	Hub HubConfig
}

// NewServer builds the feed. Run Hub().Run and RunBroadcaster alongside it.
func NewServer(logger *slog.Logger, client *panelClient, cfg ServerConfig) *Server {
	return &Server{
		logger: logger,
		hub:    NewHub(logger, cfg.Hub),
		client: client,
	}
}

func (s *Server) Hub() *Hub { return s.hub }

// Register mounts the websocket endpoint at path.
func (s *Server) Register(r chi.Router, path string) {
	r.Get(path, s.handleStateWS)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleStateWS joins the connection to the hub before taking the snapshot,
// so no change accepted after the snapshot can be missed.
func (s *Server) handleStateWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", "error", err)
		return
	}

	sub := newSubscriber(conn, r.RemoteAddr, s.hub.queueLen, s.logger)
	s.hub.join(sub)
	go sub.serve(s.hub)

	if s.client == nil {
		return
	}
	snap, err := s.client.Snapshot(r.Context())
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.logger.Warn("state snapshot for subscriber failed", "subscriber", sub.id, "error", err)
		}
		return
	}
	frame, err := marshalEnvelope(wsOutboundEvent{Type: wsTypeStateInit, Data: snap})
	if err != nil {
		s.logger.Warn("marshal state_init failed", "error", err)
		return
	}
	s.hub.sendTo(sub, frame)
}

// RunBroadcaster turns reducer broadcasts into frames for every subscriber.
// It returns when ctx is done or src is closed.
func RunBroadcaster(ctx context.Context, hub *Hub, src <-chan StateBroadcast, logger *slog.Logger) {
	if hub == nil || src == nil {
		return
	}
	for {
		var b StateBroadcast
		select {
		case <-ctx.Done():
			return
		case next, ok := <-src:
			if !ok {
				logger.Info("state broadcaster stopping (source closed)")
				return
			}
			b = next
		}

		ev, ok := convertBroadcast(b)
		if !ok {
			continue
		}
		frame, err := marshalEnvelope(ev)
		if err != nil {
			logger.Warn("state broadcaster marshal failed", "type", ev.Type, "error", err)
			continue
		}
		hub.BroadcastBytes(frame)
	}
}

func convertBroadcast(b StateBroadcast) (wsOutboundEvent, bool) {
	switch ev := b.(type) {
	case BroadcastPreferenceChanged:
		return wsOutboundEvent{Type: wsTypePreferenceChanged, Data: ev.Preference, At: ev.At}, true
	case BroadcastPanelRebuilt:
		return wsOutboundEvent{Type: wsTypePanelRebuilt, Data: ev.Snapshot, At: ev.At}, true
	}
	return wsOutboundEvent{}, false
}
