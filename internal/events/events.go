// events — события жизненного цикла сессии поверх watermill.
//
// Клиент публикует их в топик session.events; потребители (health-сервер,
// другие инстансы админки через Redis Streams) реагируют на смену состояния.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
)

const DefaultTopic = "session.events"

// Kind — тип события сессии.
type Kind string

const (
	KindLoggedIn  Kind = "session.logged_in"
	KindRefreshed Kind = "session.refreshed"
	KindExpired   Kind = "session.expired"
	KindLoggedOut Kind = "session.logged_out"
)

// Active сообщает, остаётся ли сессия действующей после события.
func (k Kind) Active() bool {
	return k == KindLoggedIn || k == KindRefreshed
}

// Event — полезная нагрузка сообщения.
type Event struct {
	Kind    Kind      `json:"kind"`
	Profile string    `json:"profile"`
	UserID  string    `json:"user_id,omitempty"`
	At      time.Time `json:"at"`
}

// Publisher публикует события сессии в watermill-топик.
type Publisher struct {
	pub   message.Publisher
	topic string
}

func NewPublisher(pub message.Publisher, topic string) *Publisher {
	if topic == "" {
		topic = DefaultTopic
	}

	return &Publisher{pub: pub, topic: topic}
}

func (p *Publisher) Publish(ctx context.Context, ev Event) error {
	const op = "events.Publisher.Publish"

	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("%s: marshal: %w", op, err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("kind", string(ev.Kind))
	msg.SetContext(ctx)

	if err := p.pub.Publish(p.topic, msg); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Handler обрабатывает одно событие. Ошибка приводит к Nack.
type Handler func(ctx context.Context, ev Event) error

// Consume читает топик до отмены ctx. Сообщения с битым JSON подтверждаются
// и пропускаются, чтобы не зациклить доставку.
func Consume(ctx context.Context, sub message.Subscriber, topic string, log *slog.Logger, h Handler) error {
	const op = "events.Consume"

	if topic == "" {
		topic = DefaultTopic
	}

	msgs, err := sub.Subscribe(ctx, topic)
	if err != nil {
		return fmt.Errorf("%s: subscribe: %w", op, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}

			var ev Event
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				log.Warn("session_event_malformed",
					slog.String("op", op),
					slog.String("message_id", msg.UUID),
					slog.String("err", err.Error()),
				)
				msg.Ack()
				continue
			}

			if err := h(ctx, ev); err != nil {
				log.Warn("session_event_handler_failed",
					slog.String("op", op),
					slog.String("kind", string(ev.Kind)),
					slog.String("err", err.Error()),
				)
				msg.Nack()
				continue
			}

			msg.Ack()
		}
	}
}

// NewGoChannel создаёт in-process pub/sub (один инстанс админки).
func NewGoChannel(log *slog.Logger) *gochannel.GoChannel {
	return gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, watermill.NewSlogLogger(log))
}

// NewRedisStream создаёт publisher/subscriber поверх Redis Streams для
// нескольких инстансов, разделяющих одну сессию.
func NewRedisStream(rdb redis.UniversalClient, consumerGroup string, log *slog.Logger) (message.Publisher, message.Subscriber, error) {
	const op = "events.NewRedisStream"

	logger := watermill.NewSlogLogger(log)

	pub, err := redisstream.NewPublisher(redisstream.PublisherConfig{Client: rdb}, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: publisher: %w", op, err)
	}

	sub, err := redisstream.NewSubscriber(redisstream.SubscriberConfig{
		Client:        rdb,
		ConsumerGroup: consumerGroup,
	}, logger)
	if err != nil {
		_ = pub.Close()
		return nil, nil, fmt.Errorf("%s: subscriber: %w", op, err)
	}

	return pub, sub, nil
}
