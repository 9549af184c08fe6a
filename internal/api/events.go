// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/insight-platform/insightd/internal/bus"
	"github.com/insight-platform/insightd/internal/log"
)

// keepAliveInterval bounds how long an idle SSE connection goes without
// traffic, so proxies do not reap it.
const keepAliveInterval = 25 * time.Second

var streamTopics = map[string]bool{
	bus.TopicPollUpdated:     true,
	bus.TopicEngagementAlert: true,
	bus.TopicMasteryUpdated:  true,
}

// handleEventStream serves realtime classroom events over Server-Sent
// Events. ?topics= selects a comma-separated subset; the default is all
// topics.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "streaming_unsupported"})
		return
	}

	topics := []string{bus.TopicPollUpdated, bus.TopicEngagementAlert, bus.TopicMasteryUpdated}
	if raw := r.URL.Query().Get("topics"); raw != "" {
		topics = topics[:0]
		for _, t := range strings.Split(raw, ",") {
			t = strings.TrimSpace(t)
			if !streamTopics[t] {
				writeBadRequest(w, fmt.Sprintf("unknown topic %q", t))
				return
			}
			topics = append(topics, t)
		}
	}

	ctx := r.Context()
	logger := log.WithComponentFromContext(ctx, "sse")

	type tagged struct {
		topic string
		msg   bus.Message
	}
	merged := make(chan tagged, 16)

	for _, topic := range topics {
		sub, err := s.bus.Subscribe(ctx, topic)
		if err != nil {
			writeInternal(w)
			return
		}
		defer func() { _ = sub.Close() }()

		go func(topic string, sub bus.Subscriber) {
			for msg := range sub.C() {
				select {
				case merged <- tagged{topic: topic, msg: msg}:
				case <-ctx.Done():
					return
				}
			}
		}(topic, sub)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case ev := <-merged:
			data, err := json.Marshal(ev.msg)
			if err != nil {
				logger.Warn().Err(err).Str("topic", ev.topic).Msg("dropping unmarshalable event")
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.topic, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
