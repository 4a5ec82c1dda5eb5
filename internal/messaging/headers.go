package messaging

import (
	"context"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
)

const (
	HeaderContentType = "content-type"
	ContentTypeJSON   = "application/json"
)

// headerCarrier exposes kafka message headers to OTel propagators.
// Set replaces an existing key so headers never repeat.
type headerCarrier struct {
	msg *kafka.Message
}

func (c headerCarrier) index(key string) int {
	for i := range c.msg.Headers {
		if c.msg.Headers[i].Key == key {
			return i
		}
	}
	return -1
}

func (c headerCarrier) Get(key string) string {
	if i := c.index(key); i >= 0 {
		return string(c.msg.Headers[i].Value)
	}
	return ""
}

func (c headerCarrier) Set(key, value string) {
	if i := c.index(key); i >= 0 {
		c.msg.Headers[i].Value = []byte(value)
		return
	}
	c.msg.Headers = append(c.msg.Headers, kafka.Header{Key: key, Value: []byte(value)})
}

func (c headerCarrier) Keys() []string {
	keys := make([]string, len(c.msg.Headers))
	for i, h := range c.msg.Headers {
		keys[i] = h.Key
	}
	return keys
}

// stampHeaders marks msg as a JSON envelope and injects the span context
// of ctx so consumers can continue the checkout trace.
func stampHeaders(ctx context.Context, msg *kafka.Message) {
	carrier := headerCarrier{msg: msg}
	carrier.Set(HeaderContentType, ContentTypeJSON)
	otel.GetTextMapPropagator().Inject(ctx, carrier)
}
