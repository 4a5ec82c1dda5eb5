package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"marketplace/internal/middleware"
	"marketplace/internal/notify"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultHeartbeat keeps idle streams alive through proxies.
const DefaultHeartbeat = 25 * time.Second

// Subscriber delivers a message whenever a user's orders change
type Subscriber interface {
	Subscribe(ctx context.Context, userID uuid.UUID) (<-chan notify.Message, error)
}

var errStreamingUnsupported = errors.New("streaming unsupported")

// eventStream writes Server-Sent Events
type eventStream struct {
	w       http.ResponseWriter
	flusher http.Flusher
	seq     int
}

func openEventStream(w http.ResponseWriter) (*eventStream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errStreamingUnsupported
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &eventStream{w: w, flusher: flusher}, nil
}

func (s *eventStream) send(event string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	s.seq++
	if _, err := fmt.Fprintf(s.w, "id: %d\nevent: %s\ndata: %s\n\n", s.seq, event, payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *eventStream) ping() error {
	if _, err := fmt.Fprint(s.w, ": ping\n\n"); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// serveOrderStream sends the projection produced by load once, then again on
// every change notification for userID, until the client goes away or
// closing is closed.
func serveOrderStream(
	w http.ResponseWriter,
	r *http.Request,
	closing <-chan struct{},
	subscriber Subscriber,
	heartbeat time.Duration,
	logger *zap.Logger,
	userID uuid.UUID,
	load func(ctx context.Context) (interface{}, error),
) {
	ctx := r.Context()

	// Subscribe before the first load so no change slips between them.
	updates, err := subscriber.Subscribe(ctx, userID)
	if err != nil {
		logger.Error("Failed to subscribe to order updates",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
		middleware.RespondWithError(w, http.StatusServiceUnavailable, "live updates unavailable")
		return
	}

	// Streams outlive the server write timeout.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		logger.Debug("Could not clear write deadline", zap.Error(err))
	}

	stream, err := openEventStream(w)
	if err != nil {
		middleware.RespondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	push := func() error {
		view, err := load(ctx)
		if err != nil {
			logger.Error("Failed to load orders for stream",
				zap.String("user_id", userID.String()),
				zap.Error(err),
			)
			return stream.send("error", map[string]string{"message": "failed to load orders"})
		}
		return stream.send("orders", view)
	}

	if err := push(); err != nil {
		return
	}

	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-closing:
			// EventSource clients reconnect to another instance.
			return
		case _, ok := <-updates:
			if !ok {
				return
			}
			if err := push(); err != nil {
				return
			}
		case <-ticker.C:
			if err := stream.ping(); err != nil {
				return
			}
		}
	}
}
