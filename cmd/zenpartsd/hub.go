package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Hub fans state frames out to websocket subscribers. The subscriber set is
// owned by the Run goroutine; other goroutines reach it through unbuffered
// channels, so a handed-over subscriber is always seen by Run or shut.
type Hub struct {
	logger *slog.Logger

	frames chan []byte
	direct chan directFrame
	joins  chan *subscriber
	leaves chan leave

	subs     map[string]*subscriber
	count    atomic.Int64
	queueLen int

	// stopped is closed when Run returns; later joins and leaves are no-ops.
	stopped chan struct{}
}

type HubConfig struct {
	// SendBuf is the per-subscriber outbound queue length. Zero uses 32.
	SendBuf int
	// BroadcastBuf is the hub's inbound frame queue length. Zero uses 128.
	BroadcastBuf int
}

// directFrame is a frame for one subscriber only (state_init).
type directFrame struct {
	to    *subscriber
	frame []byte
}

type leave struct {
	sub    *subscriber
	reason string
}

func NewHub(logger *slog.Logger, cfg HubConfig) *Hub {
	if cfg.SendBuf <= 0 {
		cfg.SendBuf = 32
	}
	if cfg.BroadcastBuf <= 0 {
		cfg.BroadcastBuf = 128
	}
	return &Hub{
		logger:   logger,
		frames:   make(chan []byte, cfg.BroadcastBuf),
		direct:   make(chan directFrame),
		joins:    make(chan *subscriber),
		leaves:   make(chan leave),
		subs:     make(map[string]*subscriber),
		queueLen: cfg.SendBuf,
		stopped:  make(chan struct{}),
	}
}

// Run serves joins, leaves and frames until ctx is done, then drops every
// subscriber.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("state hub running")
	defer func() {
		for _, s := range h.subs {
			h.drop(s, "shutdown")
		}
		close(h.stopped)
		h.logger.Info("state hub stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case s := <-h.joins:
			h.subs[s.id] = s
			h.setCount()
			h.logger.Info("state subscriber joined", "subscriber", s.id, "remote_addr", s.remote, "subscribers", len(h.subs))
		case l := <-h.leaves:
			h.drop(l.sub, l.reason)
		case d := <-h.direct:
			if h.subs[d.to.id] == d.to && !d.to.offer(d.frame) {
				h.drop(d.to, "slow_client")
			}
		case frame := <-h.frames:
			for _, s := range h.subs {
				if !s.offer(frame) {
					h.drop(s, "slow_client")
				}
			}
		}
	}
}

func (h *Hub) drop(s *subscriber, reason string) {
	if h.subs[s.id] != s {
		return
	}
	delete(h.subs, s.id)
	h.setCount()
	s.shut()
	if reason == "slow_client" {
		stateFramesDropped.WithLabelValues(reason).Inc()
	}
	h.logger.Info("state subscriber left", "subscriber", s.id, "remote_addr", s.remote, "reason", reason, "subscribers", len(h.subs))
}

func (h *Hub) setCount() {
	h.count.Store(int64(len(h.subs)))
	stateSubscribers.Set(float64(len(h.subs)))
}

// ClientCount returns the number of joined subscribers.
func (h *Hub) ClientCount() int { return int(h.count.Load()) }

func (h *Hub) join(s *subscriber) {
	select {
	case h.joins <- s:
	case <-h.stopped:
		s.shut()
	}
}

func (h *Hub) leave(s *subscriber, reason string) {
	select {
	case h.leaves <- leave{sub: s, reason: reason}:
	case <-h.stopped:
	}
}

// sendTo queues frame for s alone. It is dropped if s has left.
func (h *Hub) sendTo(s *subscriber, frame []byte) {
	select {
	case h.direct <- directFrame{to: s, frame: frame}:
	case <-h.stopped:
	}
}

// BroadcastBytes queues a frame for every subscriber. It never blocks: when
// the hub queue is full the frame is dropped.
func (h *Hub) BroadcastBytes(frame []byte) {
	select {
	case h.frames <- frame:
	default:
		stateFramesDropped.WithLabelValues("hub_queue_full").Inc()
		h.logger.Warn("state hub queue full, dropping frame", "bytes", len(frame))
	}
}

// subscriber is one websocket connection on the state feed.
type subscriber struct {
	id     string
	remote string
	conn   *websocket.Conn
	out    chan []byte
	logger *slog.Logger

	closeOnce sync.Once
}

func newSubscriber(conn *websocket.Conn, remote string, queueLen int, logger *slog.Logger) *subscriber {
	return &subscriber{
		id:     uuid.NewString(),
		remote: remote,
		conn:   conn,
		out:    make(chan []byte, queueLen),
		logger: logger,
	}
}

func (s *subscriber) offer(frame []byte) bool {
	select {
	case s.out <- frame:
		return true
	default:
		return false
	}
}

// shut closes the outbound queue, which ends the writer, and the connection,
// which ends the reader.
func (s *subscriber) shut() {
	s.closeOnce.Do(func() {
		close(s.out)
		if s.conn != nil {
			_ = s.conn.Close()
		}
	})
}

const (
	writeWait  = 5 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 20 * time.Second
)

// serve runs the connection until either side gives up. The reader only
// watches for disconnects and pongs; clients never send data.
func (s *subscriber) serve(h *Hub) {
	go func() {
		_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
		s.conn.SetPongHandler(func(string) error {
			return s.conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := s.conn.ReadMessage(); err != nil {
				s.logEnd("read", err)
				h.leave(s, "read_error")
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		var err error
		select {
		case frame, ok := <-s.out:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			err = s.conn.WriteMessage(websocket.TextMessage, frame)
		case <-ping.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err = s.conn.WriteMessage(websocket.PingMessage, nil)
		}
		if err != nil {
			s.logEnd("write", err)
			h.leave(s, "write_error")
			return
		}
	}
}

func (s *subscriber) logEnd(side string, err error) {
	var ce *websocket.CloseError
	switch {
	case errors.Is(err, websocket.ErrCloseSent), errors.Is(err, net.ErrClosed):
		return
	case errors.As(err, &ce):
		s.logger.Info("state subscriber closed", "subscriber", s.id, "side", side, "code", ce.Code, "reason", ce.Text)
	default:
		s.logger.Info("state subscriber connection ended", "subscriber", s.id, "side", side, "error", err)
	}
}
