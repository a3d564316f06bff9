package main

import (
	"encoding/json"
	"fmt"
	"net"
	"time"
)

// Wire types (duplicated from the daemon package for the standalone binary).

type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type ipcResponse struct {
	Status string          `json:"status"`
	Error  string          `json:"error,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

type listEntry struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

type preference struct {
	Key      string      `json:"key"`
	Category string      `json:"category"`
	Kind     string      `json:"kind"`
	Enabled  bool        `json:"enabled"`
	Value    any         `json:"value,omitempty"`
	Summary  string      `json:"summary,omitempty"`
	Entries  []listEntry `json:"entries,omitempty"`
}

type panel struct {
	Device      string       `json:"device"`
	Built       bool         `json:"built"`
	BuiltAt     time.Time    `json:"built_at"`
	Preferences []preference `json:"preferences"`
}

// ipcClient talks to zenpartsd over its Unix socket, one request per connection.
type ipcClient struct {
	socketPath string
	timeout    time.Duration
}

func (c ipcClient) send(msgType string, data any) (json.RawMessage, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", c.socketPath, err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(c.timeout))

	line, err := json.Marshal(envelope{Type: msgType, Data: data})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	if _, err := fmt.Fprintf(conn, "%s\n", line); err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}

	var resp ipcResponse
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if resp.Status != "ok" {
		return nil, fmt.Errorf("daemon: %s", resp.Error)
	}
	return resp.Data, nil
}

func (c ipcClient) panel() (panel, error) {
	data, err := c.send("get_panel", nil)
	if err != nil {
		return panel{}, err
	}
	var p panel
	if err := json.Unmarshal(data, &p); err != nil {
		return panel{}, fmt.Errorf("decode panel: %w", err)
	}
	return p, nil
}

func (c ipcClient) change(key string, value any) error {
	_, err := c.send("preference_change", map[string]any{"key": key, "value": value})
	return err
}

func (c ipcClient) click(key string) error {
	_, err := c.send("preference_click", map[string]string{"key": key})
	return err
}

func (c ipcClient) rebuild() error {
	_, err := c.send("rebuild_panel", nil)
	return err
}
