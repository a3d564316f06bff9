package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

// zenparts-watch follows the daemon's state websocket and prints one line per
// panel change.

type envelope struct {
	Type string          `json:"type"`
	Ts   time.Time       `json:"ts"`
	Data json.RawMessage `json:"data"`
}

type preference struct {
	Key     string `json:"key"`
	Enabled bool   `json:"enabled"`
	Value   any    `json:"value"`
	Summary string `json:"summary"`
}

type snapshot struct {
	Device      string       `json:"device"`
	Built       bool         `json:"built"`
	Preferences []preference `json:"preferences"`
}

func main() {
	var (
		wsURL = flag.String("ws", "ws://127.0.0.1:8765/ws/state", "zenpartsd state websocket URL")
		raw   = flag.Bool("raw", false, "Print raw JSON envelopes")
	)
	flag.Parse()

	u, err := url.Parse(*wsURL)
	if err != nil {
		log.Fatalf("invalid websocket URL: %v", err)
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	d := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	log.Printf("connecting to %s...", u.String())
	conn, _, err := d.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()

	log.Printf("connected! (press Ctrl+C to exit)")

	// The daemon pings every 20s; each ping extends the read deadline.
	var writeMu sync.Mutex
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(5*time.Second))
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			messageType, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("websocket error: %v", err)
				}
				return
			}
			if messageType != websocket.TextMessage {
				continue
			}
			if *raw {
				fmt.Println(string(message))
				continue
			}
			fmt.Print(formatMessage(message))
		}
	}()

	select {
	case <-sigc:
		log.Printf("shutting down...")
		writeMu.Lock()
		err := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		writeMu.Unlock()
		if err != nil {
			log.Printf("error closing connection: %v", err)
		}
	case <-done:
		log.Printf("connection closed")
	}
}

// formatMessage renders one state envelope as human-readable lines.
func formatMessage(message []byte) string {
	var env envelope
	if err := json.Unmarshal(message, &env); err != nil {
		return fmt.Sprintf("[TEXT] %s\n", message)
	}

	switch env.Type {
	case "state_init", "panel_rebuilt":
		var snap snapshot
		if err := json.Unmarshal(env.Data, &snap); err != nil {
			return fmt.Sprintf("[%s] undecodable snapshot: %v\n", strings.ToUpper(env.Type), err)
		}
		var b strings.Builder
		fmt.Fprintf(&b, "[%s] device=%s built=%v preferences=%d\n", strings.ToUpper(env.Type), snap.Device, snap.Built, len(snap.Preferences))
		for _, p := range snap.Preferences {
			b.WriteString("  " + formatPreference(p) + "\n")
		}
		return b.String()

	case "preference_changed":
		var p preference
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return fmt.Sprintf("[CHANGED] undecodable preference: %v\n", err)
		}
		return "[CHANGED] " + formatPreference(p) + "\n"

	default:
		return fmt.Sprintf("[%s] %s\n", strings.ToUpper(env.Type), env.Data)
	}
}

func formatPreference(p preference) string {
	state := "enabled"
	if !p.Enabled {
		state = "disabled"
	}
	s := fmt.Sprintf("%s=%v (%s)", p.Key, p.Value, state)
	if p.Summary != "" {
		s += " " + p.Summary
	}
	return s
}
