package messaging

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/athebyme/admanager-platform/integration-service/pkg/interfaces"
	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/google/uuid"
)

// KafkaMessaging реализация MessagingPort с использованием Kafka
type KafkaMessaging struct {
	producer       *kafka.Producer
	consumers      map[string]*kafka.Consumer
	consumersMutex sync.Mutex
	brokers        []string
	groupID        string
	logger         interfaces.LoggerPort
	closed         chan struct{}
}

// NewKafkaMessaging создает новый экземпляр KafkaMessaging
func NewKafkaMessaging(brokers []string, groupID string, logger interfaces.LoggerPort) (interfaces.MessagingPort, error) {
	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": strings.Join(brokers, ","),
		"client.id":         "integration-service-producer",
		"acks":              "all", // максимальная надежность
		"retries":           5,
		"retry.backoff.ms":  500,
		"compression.type":  "snappy",
		"linger.ms":         10, // небольшая задержка для батчинга
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка создания Kafka producer: %w", err)
	}

	m := &KafkaMessaging{
		producer:  producer,
		consumers: make(map[string]*kafka.Consumer),
		brokers:   brokers,
		groupID:   groupID,
		logger:    logger,
		closed:    make(chan struct{}),
	}

	// фоновая обработка отчетов о доставке
	go m.handleDeliveryReports()

	return m, nil
}

// handleDeliveryReports логирует неудачные доставки из канала событий продюсера
func (k *KafkaMessaging) handleDeliveryReports() {
	for e := range k.producer.Events() {
		switch ev := e.(type) {
		case *kafka.Message:
			if ev.TopicPartition.Error != nil {
				k.logger.Error("Ошибка доставки сообщения в Kafka",
					interfaces.LogField{Key: "topic", Value: *ev.TopicPartition.Topic},
					interfaces.LogField{Key: "error", Value: ev.TopicPartition.Error.Error()},
				)
			}
		case kafka.Error:
			k.logger.Error("Ошибка Kafka producer",
				interfaces.LogField{Key: "error", Value: ev.Error()},
			)
		}
	}
}

// buildKafkaMessage собирает kafka.Message со служебными заголовками
func buildKafkaMessage(topic string, key string, message []byte) *kafka.Message {
	headers := []kafka.Header{
		{Key: "message_id", Value: []byte(uuid.New().String())},
		{Key: "timestamp", Value: []byte(time.Now().UTC().Format(time.RFC3339Nano))},
	}

	var keyBytes []byte
	if key != "" {
		keyBytes = []byte(key)
	}

	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Value:          message,
		Key:            keyBytes,
		Headers:        headers,
	}
}

// kafkaMessageToMessage преобразует kafka.Message во внутреннее представление
func kafkaMessageToMessage(msg *kafka.Message) *interfaces.Message {
	headers := make(map[string]string)
	for _, header := range msg.Headers {
		headers[header.Key] = string(header.Value)
	}

	var key string
	if msg.Key != nil {
		key = string(msg.Key)
	}

	publishedAt := time.Now()
	if tsStr, ok := headers["timestamp"]; ok {
		if ts, err := time.Parse(time.RFC3339Nano, tsStr); err == nil {
			publishedAt = ts
		}
	}

	return &interfaces.Message{
		ID:          headers["message_id"],
		Topic:       *msg.TopicPartition.Topic,
		Key:         key,
		Value:       msg.Value,
		Headers:     headers,
		MerchantID:  headers["merchant_id"],
		PublishedAt: publishedAt,
	}
}

// Publish публикует сообщение в указанную тему
func (k *KafkaMessaging) Publish(ctx context.Context, topic string, message []byte) error {
	return k.PublishWithKey(ctx, topic, "", message)
}

// PublishWithKey публикует сообщение с ключом партиционирования.
// Сообщения одного товара попадают в одну партицию и сохраняют порядок
func (k *KafkaMessaging) PublishWithKey(ctx context.Context, topic string, key string, message []byte) error {
	msg := buildKafkaMessage(topic, key, message)

	if err := k.producer.Produce(msg, nil); err != nil {
		return fmt.Errorf("ошибка публикации сообщения в тему %s: %w", topic, err)
	}

	return nil
}

// Subscribe подписывается на тему и запускает цикл обработки сообщений.
// Возвращает функцию отписки
func (k *KafkaMessaging) Subscribe(ctx context.Context, topic string, handler interfaces.MessageHandler) (func() error, error) {
	consumer, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":  strings.Join(k.brokers, ","),
		"group.id":           k.groupID,
		"auto.offset.reset":  "earliest",
		"enable.auto.commit": false,
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка создания Kafka consumer: %w", err)
	}

	if err := consumer.Subscribe(topic, nil); err != nil {
		consumer.Close()
		return nil, fmt.Errorf("ошибка подписки на тему %s: %w", topic, err)
	}

	k.consumersMutex.Lock()
	k.consumers[topic] = consumer
	k.consumersMutex.Unlock()

	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-k.closed:
				return
			default:
			}

			ev := consumer.Poll(500)
			if ev == nil {
				continue
			}

			switch e := ev.(type) {
			case *kafka.Message:
				msg := kafkaMessageToMessage(e)
				if err := handler(ctx, msg); err != nil {
					k.logger.Error("Ошибка обработки сообщения",
						interfaces.LogField{Key: "topic", Value: topic},
						interfaces.LogField{Key: "message_id", Value: msg.ID},
						interfaces.LogField{Key: "error", Value: err.Error()},
					)
					// оффсет не подтверждаем: сообщение будет доставлено повторно
					continue
				}
				if _, err := consumer.CommitMessage(e); err != nil {
					k.logger.Error("Ошибка подтверждения оффсета",
						interfaces.LogField{Key: "topic", Value: topic},
						interfaces.LogField{Key: "error", Value: err.Error()},
					)
				}
			case kafka.Error:
				k.logger.Error("Ошибка Kafka consumer",
					interfaces.LogField{Key: "topic", Value: topic},
					interfaces.LogField{Key: "error", Value: e.Error()},
				)
			}
		}
	}()

	unsubscribe := func() error {
		close(done)
		k.consumersMutex.Lock()
		delete(k.consumers, topic)
		k.consumersMutex.Unlock()
		return consumer.Close()
	}

	return unsubscribe, nil
}

// Close закрывает продюсер и все активные консюмеры
func (k *KafkaMessaging) Close() error {
	select {
	case <-k.closed:
		return nil
	default:
		close(k.closed)
	}

	// даем продюсеру дослать буферизованные сообщения
	k.producer.Flush(5000)
	k.producer.Close()

	k.consumersMutex.Lock()
	defer k.consumersMutex.Unlock()
	for topic, consumer := range k.consumers {
		if err := consumer.Close(); err != nil {
			k.logger.Error("Ошибка закрытия консюмера",
				interfaces.LogField{Key: "topic", Value: topic},
				interfaces.LogField{Key: "error", Value: err.Error()},
			)
		}
		delete(k.consumers, topic)
	}

	return nil
}
