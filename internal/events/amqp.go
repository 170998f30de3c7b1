package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const DefaultExchange = "reservo.events"

// AMQPPublisher publishes envelopes to a durable topic exchange with the event
// type as routing key. A closed channel is reopened on the next publish.
type AMQPPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	log      zerolog.Logger
}

func DialAMQP(url, exchange string, log zerolog.Logger) (*AMQPPublisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	p := &AMQPPublisher{
		conn:     conn,
		exchange: exchange,
		log:      log.With().Str("component", "events.amqp").Str("exchange", exchange).Logger(),
	}
	if err := p.openChannel(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return p, nil
}

func (p *AMQPPublisher) openChannel() error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("amqp channel: %w", err)
	}
	err = ch.ExchangeDeclare(
		p.exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		return fmt.Errorf("amqp exchange declare: %w", err)
	}
	p.ch = ch
	return nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, e Envelope) error {
	body, err := json.Marshal(e)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil || p.ch.IsClosed() {
		if p.conn.IsClosed() {
			return errors.New("amqp connection closed")
		}
		p.log.Warn().Msg("amqp channel closed, reopening")
		if err := p.openChannel(); err != nil {
			return err
		}
	}

	return p.ch.PublishWithContext(
		ctx,
		p.exchange,
		e.Type,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    e.OccurredAt,
			Type:         e.Type,
			Body:         body,
		},
	)
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	if p.ch != nil {
		errs = append(errs, p.ch.Close())
	}
	errs = append(errs, p.conn.Close())
	return errors.Join(errs...)
}
