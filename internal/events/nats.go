package events

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/mementolabs/memento/internal/domain"
)

// StatusEvent is the payload published on every ingestion state change.
// Subject layout: thoughts.{team_id}.status, so a client subscribes to its
// team with a single subject and no server-side filtering.
type StatusEvent struct {
	ThoughtID string    `json:"thought_id"`
	TeamID    string    `json:"team_id"`
	Status    string    `json:"status"`
	At        time.Time `json:"at"`
}

// NATSPublisher publishes ingestion status events to NATS.
type NATSPublisher struct {
	nc *nats.Conn
}

// Connect dials NATS and returns a publisher. Reconnects are retried in the
// background; a short outage drops events rather than blocking ingestion.
func Connect(url string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(1*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	return &NATSPublisher{nc: nc}, nil
}

// PublishStatus emits a status change. Errors are logged, never returned to
// the ingestion pipeline; event delivery is best effort.
func (p *NATSPublisher) PublishStatus(teamID, thoughtID string, status domain.EmbeddingStatus) {
	event := StatusEvent{
		ThoughtID: thoughtID,
		TeamID:    teamID,
		Status:    string(status),
		At:        time.Now().UTC(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("events: marshal status event: %v", err)
		return
	}

	subject := fmt.Sprintf("thoughts.%s.status", teamID)
	if err := p.nc.Publish(subject, data); err != nil {
		log.Printf("events: publish %s: %v", subject, err)
	}
}

// Close drains in-flight publishes before closing the connection.
func (p *NATSPublisher) Close() {
	if err := p.nc.Drain(); err != nil {
		p.nc.Close()
	}
}

// NoopPublisher is used when no NATS URL is configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishStatus(teamID, thoughtID string, status domain.EmbeddingStatus) {}
