package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"ms-meals/internal/models"
)

// Producer streams confirmation events to the dispatch and billing systems
// downstream.
type Producer struct {
	Writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers: brokers,
		Topic:   topic,
	})
	return &Producer{Writer: writer}
}

// PublishShiftConfirmed streams a shift confirmation to Kafka. The key is
// restaurant:date:shift so replays of the same shift land in one partition.
func (p *Producer) PublishShiftConfirmed(ev models.ShiftConfirmedEvent) error {
	msgBytes, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	key := fmt.Sprintf("%s:%s:%s", ev.RestaurantID, ev.MealDate, ev.Shift)
	return p.Writer.WriteMessages(context.Background(),
		kafka.Message{
			Key:   []byte(key),
			Value: msgBytes,
		},
	)
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
