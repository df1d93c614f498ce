// Package pubsub opens the Pub/Sub topic the usage reporter publishes
// conversation metrics to. Topic creation/existence-check is the only
// piece of the teacher's pubsub service this repo still needs; the
// tenant usage-event plumbing it used to carry lived on astra-protocol
// and has no home here (see the pkg/pubsub row of DESIGN.md's
// supplemental component ledger).
package pubsub

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
	"github.com/covecrm/dialer-bridge/pkg/logger"
	"go.uber.org/zap"
)

// Config names the project and topic the bridge publishes
// conversation-metrics events to.
type Config struct {
	ProjectID string
	TopicName string
}

// OpenTopic dials the Pub/Sub client and returns the named topic,
// creating it if it does not already exist. Callers gate on
// config.PubSubEnabled() before calling this and leave
// usage.Config.Topic nil when disabled.
func OpenTopic(ctx context.Context, cfg Config) (*pubsub.Client, *pubsub.Topic, error) {
	if cfg.ProjectID == "" {
		return nil, nil, fmt.Errorf("pubsub: project ID is required")
	}

	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("pubsub: create client: %w", err)
	}

	topic := client.Topic(cfg.TopicName)
	exists, err := topic.Exists(ctx)
	if err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("pubsub: check topic exists: %w", err)
	}

	if !exists {
		logger.Base().Info("pubsub topic does not exist, creating", zap.String("topic", cfg.TopicName))
		topic, err = client.CreateTopic(ctx, cfg.TopicName)
		if err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("pubsub: create topic %s: %w", cfg.TopicName, err)
		}
	}

	return client, topic, nil
}
