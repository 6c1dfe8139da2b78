package event

import (
	"encoding/json"

	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"ctf-event-service/internal/logger"
)

// Publisher emits domain events (question.updated, event.joined,
// answer.submitted, ...) to a topic exchange. The routing key is the event
// type. A nil *Publisher is safe to call; events are then dropped.
type Publisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

func NewPublisher(amqpURL, exchange string) (*Publisher, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	err = ch.ExchangeDeclare(
		exchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, err
	}
	return &Publisher{conn: conn, channel: ch, exchange: exchange}, nil
}

func (p *Publisher) Publish(eventType string, payload any) {
	if p == nil {
		return
	}
	body, err := json.Marshal(map[string]any{
		"type":    eventType,
		"payload": payload,
	})
	if err != nil {
		logger.Log.Error("failed to marshal event", zap.String("type", eventType), zap.Error(err))
		return
	}

	err = p.channel.Publish(
		p.exchange,
		eventType, // routing key
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
	if err != nil {
		logger.Log.Error("failed to publish event", zap.String("type", eventType), zap.Error(err))
		return
	}
	logger.Log.Debug("published event", zap.String("type", eventType))
}

func (p *Publisher) Close() {
	if p == nil {
		return
	}
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}
