// internal/engine/publisher.go
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// VersionEvent announces a newly created master menu version to interested
// consumers (notification service, cache invalidation) over Redis pub/sub.
type VersionEvent struct {
	MasterMenuID  string    `json:"masterMenuId"`
	VersionNumber int       `json:"versionNumber"`
	ChangeType    string    `json:"changeType"`
	CreatedAt     time.Time `json:"createdAt"`
}

// VersionPublisher publishes version-created events. Delivery is best
// effort: a publish failure never fails the version creation itself.
type VersionPublisher struct {
	client  *redis.Client
	channel string
}

func NewVersionPublisher(client *redis.Client, channel string) *VersionPublisher {
	return &VersionPublisher{client: client, channel: channel}
}

func (p *VersionPublisher) Publish(ctx context.Context, ev VersionEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal version event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish version event: %w", err)
	}
	return nil
}
