package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/alfredjeanlab/synapse/internal/events"
	"github.com/alfredjeanlab/synapse/internal/ui"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Short:   "Stream graph, session and tab events",
	GroupID: "system",
	Args:    cobra.NoArgs,
	// Streams over NATS or SSE, never the command transport.
	PersistentPreRunE: skipConnect,
	RunE: func(cmd *cobra.Command, args []string) error {
		topics, _ := cmd.Flags().GetStringSlice("topics")
		natsURL, _ := cmd.Flags().GetString("nats")
		prefix, _ := cmd.Flags().GetString("nats-prefix")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		out := cmd.OutOrStdout()
		emit := func(m events.Message) { printEvent(out, m) }
		if natsURL != "" {
			return watchNATS(ctx, natsURL, prefix, topics, emit)
		}
		return watchSSE(ctx, httpURL, topics, emit)
	},
}

// watchNATS subscribes to every topic pattern until ctx is done.
func watchNATS(ctx context.Context, natsURL, prefix string, topics []string, emit func(events.Message)) error {
	sub, err := events.NewNATSSubscriber(natsURL, prefix,
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("nats: disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Printf("nats: reconnected")
		}),
	)
	if err != nil {
		return fmt.Errorf("connecting to NATS: %w", err)
	}
	defer sub.Close()

	merged := make(chan events.Message, 64)
	for _, topic := range topics {
		ch, cancel, err := sub.Subscribe(topic)
		if err != nil {
			return fmt.Errorf("subscribing to %s: %w", topic, err)
		}
		defer cancel()
		go func() {
			for m := range ch {
				select {
				case merged <- m:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case m := <-merged:
			emit(m)
		}
	}
}

// watchSSE follows the server's event stream, reconnecting with the last
// seen event id so nothing in the replay window is missed.
func watchSSE(ctx context.Context, baseURL string, topics []string, emit func(events.Message)) error {
	lastID := ""
	backoff := time.Second
	for {
		err := streamSSE(ctx, baseURL, topics, &lastID, emit)
		if ctx.Err() != nil {
			return nil
		}
		log.Printf("event stream: %v; reconnecting in %s", err, backoff)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, 30*time.Second)
	}
}

func streamSSE(ctx context.Context, baseURL string, topics []string, lastID *string, emit func(events.Message)) error {
	u := strings.TrimRight(baseURL, "/") + "/v1/events/stream?topics=" + url.QueryEscape(strings.Join(topics, ","))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	if *lastID != "" {
		req.Header.Set("Last-Event-ID", *lastID)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	if err := readSSE(resp.Body, func(id string, m events.Message) {
		if id != "" {
			*lastID = id
		}
		emit(m)
	}); err != nil {
		return err
	}
	return io.ErrUnexpectedEOF
}

// readSSE parses an event stream until EOF. Comment lines are ignored.
func readSSE(r io.Reader, handle func(id string, m events.Message)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	var id, topic string
	var data []string
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if topic != "" || len(data) > 0 {
				handle(id, events.Message{Topic: topic, Data: []byte(strings.Join(data, "\n"))})
			}
			id, topic, data = "", "", nil
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "id:"):
			id = strings.TrimSpace(strings.TrimPrefix(line, "id:"))
		case strings.HasPrefix(line, "event:"):
			topic = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	return sc.Err()
}

func printEvent(w io.Writer, m events.Message) {
	if jsonOutput {
		_ = json.NewEncoder(w).Encode(struct {
			Topic string          `json:"topic"`
			Data  json.RawMessage `json:"data"`
		}{m.Topic, json.RawMessage(m.Data)})
		return
	}
	fmt.Fprintf(w, "%s  %s  %s\n", ui.RenderMuted(time.Now().Format("15:04:05")), ui.RenderAccent(m.Topic), eventSubject(m.Data))
}

// eventSubject picks the most telling field out of an event payload.
func eventSubject(data []byte) string {
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(data, &payload); err != nil {
		return ui.Truncate(string(data), 80)
	}
	for _, key := range []string{"node", "tab", "edge", "session", "tree"} {
		raw, ok := payload[key]
		if !ok {
			continue
		}
		var inner struct {
			ID   string `json:"id"`
			URL  string `json:"url"`
			Name string `json:"name"`
		}
		if json.Unmarshal(raw, &inner) != nil {
			continue
		}
		label := inner.URL
		if label == "" {
			label = inner.Name
		}
		return strings.TrimSpace(inner.ID + " " + ui.Truncate(label, 60))
	}
	for _, key := range []string{"nodeId", "edgeId", "treeId", "sessionId", "to", "id"} {
		var s string
		if raw, ok := payload[key]; ok && json.Unmarshal(raw, &s) == nil {
			return s
		}
	}
	return ""
}

func defaultNATSURL() string {
	if s := os.Getenv("SYNAPSE_NATS_URL"); s != "" {
		return s
	}
	return activeRemoteNATSURL()
}

func init() {
	watchCmd.Flags().StringSlice("topics", []string{events.AllTopics}, "topic patterns (e.g. graph.>,tab.created)")
	watchCmd.Flags().String("nats", defaultNATSURL(), "NATS URL; empty streams over SSE from --http-url")
	watchCmd.Flags().String("nats-prefix", "synapse", "NATS subject prefix")
}
