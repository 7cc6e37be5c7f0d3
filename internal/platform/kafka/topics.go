// Package kafka holds broker-level helpers shared by the producer and
// consumer wrappers.
package kafka

import (
	"context"
	"fmt"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
)

// EnsureTopics creates any missing topics so the first publish does not race
// topic auto-creation. Existing topics are left untouched.
func EnsureTopics(ctx context.Context, brokers []string, topics []string) error {
	client, err := kgo.NewClient(kgo.SeedBrokers(brokers...))
	if err != nil {
		return fmt.Errorf("create admin client: %w", err)
	}
	defer client.Close()

	adm := kadm.NewClient(client)
	existing, err := adm.ListTopics(ctx)
	if err != nil {
		return fmt.Errorf("list topics: %w", err)
	}

	var missing []string
	for _, topic := range topics {
		if !existing.Has(topic) {
			missing = append(missing, topic)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	if _, err := adm.CreateTopics(ctx, 1, 1, nil, missing...); err != nil {
		return fmt.Errorf("create topics %v: %w", missing, err)
	}
	return nil
}
