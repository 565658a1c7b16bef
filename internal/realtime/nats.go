package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// NATSBridge subscribes to the layout subjects of a tenant and hands every
// event to a sink.
type NATSBridge struct {
	conn     *nats.Conn
	sink     LayoutSink
	tenantID string
	sub      *nats.Subscription

	// skipOrigin drops the events this process published itself
	skipOrigin string
	logger     zerolog.Logger
}

func NewNATSBridge(conn *nats.Conn, tenantID string, sink LayoutSink, logger zerolog.Logger) *NATSBridge {
	return &NATSBridge{
		conn:     conn,
		sink:     sink,
		tenantID: tenantID,
		logger:   logger.With().Str("component", "nats-bridge").Logger(),
	}
}

// SkipOrigin makes the bridge ignore events published with this origin,
// which the local sink already received.
func (b *NATSBridge) SkipOrigin(origin string) {
	b.skipOrigin = origin
}

// Subscribe listens on tenant.<tenantID>.pipeline.*.layout
func (b *NATSBridge) Subscribe() error {
	subject := layoutWildcard(b.tenantID)
	sub, err := b.conn.Subscribe(subject, b.handle)
	if err != nil {
		return fmt.Errorf("nats subscribe %q: %w", subject, err)
	}
	b.sub = sub

	b.logger.Info().Str("subject", subject).Msg("NATS bridge subscribed")
	return nil
}

func (b *NATSBridge) handle(msg *nats.Msg) {
	ev, err := decodeLayoutEvent(msg.Subject, msg.Data)
	if err != nil {
		b.logger.Warn().Err(err).Str("subject", msg.Subject).Msg("Dropping layout event")
		return
	}
	if b.skipOrigin != "" && ev.Origin == b.skipOrigin {
		return
	}
	b.sink.PublishLayout(ev)
}

// Close removes the subscription. The connection itself belongs to the caller.
func (b *NATSBridge) Close() {
	if b.sub == nil {
		return
	}
	if err := b.sub.Unsubscribe(); err != nil {
		b.logger.Warn().Err(err).Msg("NATS unsubscribe failed")
	}
}

// decodeLayoutEvent trusts the subject over the payload for the pipeline id
func decodeLayoutEvent(subject string, data []byte) (LayoutEvent, error) {
	pipelineID, err := parsePipelineIDFromSubject(subject)
	if err != nil {
		return LayoutEvent{}, err
	}
	var ev LayoutEvent
	if err = json.Unmarshal(data, &ev); err != nil {
		return LayoutEvent{}, fmt.Errorf("decode layout event: %w", err)
	}
	ev.PipelineID = pipelineID
	return ev, nil
}
