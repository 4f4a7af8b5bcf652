package broadcast

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const amqpQueueSize = 1024

// AMQPPublisher отправляет события в durable fanout-exchange RabbitMQ для внешних потребителей
// (рейтинги, уведомления). Соединение открывается лениво и переоткрывается после ошибки.
// Publish не блокирует: события буферизуются и отправляются из Run.
type AMQPPublisher struct {
	url      string
	exchange string
	queue    chan Event

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewAMQPPublisher(url, exchange string) *AMQPPublisher {
	return &AMQPPublisher{
		url:      url,
		exchange: exchange,
		queue:    make(chan Event, amqpQueueSize),
	}
}

func (p *AMQPPublisher) Publish(_ context.Context, event Event) {
	select {
	case p.queue <- event:
	default:
		log.Printf("rabbitmq: queue full, dropping event %s", event.Type)
	}
}

// Run отправляет накопленные события до отмены ctx.
func (p *AMQPPublisher) Run(ctx context.Context) {
	defer p.close()
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-p.queue:
			if err := p.send(ctx, event); err != nil {
				log.Printf("rabbitmq: publish %s failed: %v", event.Type, err)
				p.close()
			}
		}
	}
}

func (p *AMQPPublisher) channel() (*amqp.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	if p.conn == nil || p.conn.IsClosed() {
		conn, err := amqp.Dial(p.url)
		if err != nil {
			return nil, fmt.Errorf("dial: %w", err)
		}
		p.conn = conn
	}
	ch, err := p.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("channel open: %w", err)
	}
	if err := ch.ExchangeDeclare(
		p.exchange, // name
		"fanout",   // kind
		true,       // durable
		false,      // autoDelete
		false,      // internal
		false,      // noWait
		nil,        // args
	); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("exchange declare: %w", err)
	}
	p.ch = ch
	return ch, nil
}

func (p *AMQPPublisher) send(ctx context.Context, event Event) error {
	ch, err := p.channel()
	if err != nil {
		return err
	}
	body, err := event.Marshal()
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return ch.PublishWithContext(pubCtx,
		p.exchange,
		routingKey(event),
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    event.OccurredAt,
			Type:         string(event.Type),
			Body:         body,
		},
	)
}

func (p *AMQPPublisher) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

// routingKey игнорируется fanout-exchange, но пригодится при смене типа exchange на topic.
func routingKey(event Event) string {
	return strings.ReplaceAll(string(event.Type), "_", ".")
}
