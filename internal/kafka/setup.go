package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/Dhoini/subscription-sync/internal/kafka/producer"
	"github.com/Dhoini/subscription-sync/pkg/logger"
	kafkaGo "github.com/segmentio/kafka-go"
)

// RequiredTopics возвращает конфигурацию топиков, которые пишет сервис.
func RequiredTopics(deadLetterTopic string) []kafkaGo.TopicConfig {
	if deadLetterTopic == "" {
		deadLetterTopic = DefaultTopicDeadLetter
	}
	return []kafkaGo.TopicConfig{
		{Topic: TopicSubscriptionChanges, NumPartitions: 3, ReplicationFactor: 1},
		{Topic: deadLetterTopic, NumPartitions: 1, ReplicationFactor: 1},
		{Topic: producer.TopicPaymentCompleted, NumPartitions: 2, ReplicationFactor: 1},
		{Topic: producer.TopicPaymentFailed, NumPartitions: 2, ReplicationFactor: 1},
	}
}

// EnsureKafkaTopics создает недостающие топики.
func EnsureKafkaTopics(ctx context.Context, brokers []string, deadLetterTopic string, log *logger.Logger) error {
	if len(brokers) == 0 || strings.TrimSpace(brokers[0]) == "" {
		return errors.New("kafka broker address is empty")
	}
	broker := strings.TrimSpace(brokers[0])
	if _, _, err := net.SplitHostPort(broker); err != nil {
		return fmt.Errorf("invalid broker address %s: %w", broker, err)
	}

	connCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	conn, err := kafkaGo.DialLeader(connCtx, "tcp", broker, "", 0)
	if err != nil {
		return fmt.Errorf("kafka connection failed: %w", err)
	}
	defer conn.Close()

	partitions, err := conn.ReadPartitions()
	if err != nil {
		return fmt.Errorf("kafka read partitions failed: %w", err)
	}

	existing := make(map[string]bool, len(partitions))
	for _, p := range partitions {
		existing[p.Topic] = true
	}

	missing := missingTopics(RequiredTopics(deadLetterTopic), existing)
	if len(missing) == 0 {
		log.Infow("All required Kafka topics already exist")
		return nil
	}

	log.Infow("Creating Kafka topics", "topics", topicNames(missing))
	if err := conn.CreateTopics(missing...); err != nil {
		if errors.Is(err, kafkaGo.TopicAlreadyExists) {
			log.Warnw("One or more topics already existed during creation attempt", "topics", topicNames(missing))
			return nil
		}
		return fmt.Errorf("kafka create topics failed: %w", err)
	}
	return nil
}

func missingTopics(required []kafkaGo.TopicConfig, existing map[string]bool) []kafkaGo.TopicConfig {
	var out []kafkaGo.TopicConfig
	for _, tc := range required {
		if !existing[tc.Topic] {
			out = append(out, tc)
		}
	}
	return out
}

func topicNames(configs []kafkaGo.TopicConfig) []string {
	names := make([]string, 0, len(configs))
	for _, tc := range configs {
		names = append(names, tc.Topic)
	}
	sort.Strings(names)
	return names
}
