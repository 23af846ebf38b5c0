package watch

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mattjoyce/relaycmd/internal/events"
)

// --- Message types ---

type eventMsg events.Event

type healthMsg struct {
	Status         string `json:"status"`
	UptimeSeconds  int64  `json:"uptime_seconds"`
	Commands       int    `json:"commands"`
	ActiveProgress int    `json:"active_progress"`
}

type commandsMsg []CommandState

type tickMsg time.Time

type errMsg error

type sseDisconnectedMsg struct{}
type reconnectMsg struct{}

// --- Commands ---

// subscribeToEvents connects to the SSE /events endpoint and feeds events
// into the provided channel. Returns sseDisconnectedMsg when the connection drops.
func subscribeToEvents(apiURL, apiKey string, ch chan<- events.Event) tea.Cmd {
	return func() tea.Msg {
		req, err := http.NewRequest(http.MethodGet, apiURL+"/events", nil)
		if err != nil {
			return errMsg(err)
		}
		req.Header.Set("Authorization", "Bearer "+apiKey)

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return sseDisconnectedMsg{}
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return errMsg(fmt.Errorf("events: %s", resp.Status))
		}

		readSSE(resp.Body, ch)
		return sseDisconnectedMsg{}
	}
}

// sseEnvelope mirrors the data line written by the API's event stream.
type sseEnvelope struct {
	Subject string          `json:"subject"`
	At      time.Time       `json:"at"`
	Data    json.RawMessage `json:"data"`
}

// readSSE parses server-sent events from r until it ends.
func readSSE(r io.Reader, ch chan<- events.Event) {
	scanner := bufio.NewScanner(r)
	var (
		id   int64
		typ  string
		data string
	)

	for scanner.Scan() {
		line := scanner.Text()

		if line == "" {
			if data != "" {
				ch <- decodeEvent(id, typ, data)
			}
			id, typ, data = 0, "", ""
			continue
		}

		switch {
		case strings.HasPrefix(line, "id: "):
			if n, err := strconv.ParseInt(line[4:], 10, 64); err == nil {
				id = n
			}
		case strings.HasPrefix(line, "event: "):
			typ = line[7:]
		case strings.HasPrefix(line, "data: "):
			data = line[6:]
		}
	}
}

func decodeEvent(id int64, typ, data string) events.Event {
	ev := events.Event{ID: id, Type: typ, At: time.Now(), Data: []byte(data)}

	var env sseEnvelope
	if err := json.Unmarshal([]byte(data), &env); err == nil && env.Data != nil {
		ev.Subject = env.Subject
		ev.Data = env.Data
		if !env.At.IsZero() {
			ev.At = env.At
		}
	}
	return ev
}

// receiveNextEvent waits for the next event from the channel.
func receiveNextEvent(ch <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		return eventMsg(<-ch)
	}
}

func get(apiURL, apiKey, path string, out any) error {
	client := &http.Client{Timeout: 2 * time.Second}
	req, err := http.NewRequest(http.MethodGet, apiURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: %s", path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// fetchHealth queries the /healthz endpoint.
func fetchHealth(apiURL, apiKey string) tea.Msg {
	var h healthMsg
	if err := get(apiURL, apiKey, "/healthz", &h); err != nil {
		return errMsg(err)
	}
	return h
}

// fetchCommands loads the initial command list.
func fetchCommands(apiURL, apiKey string) tea.Msg {
	var body struct {
		Commands []CommandState `json:"commands"`
	}
	if err := get(apiURL, apiKey, "/commands", &body); err != nil {
		return errMsg(err)
	}
	return commandsMsg(body.Commands)
}
