package notify

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	historyCollection = "notifications"
	defaultDBName     = "kiosk_admin"
)

// historyDoc — документ истории уведомлений.
type historyDoc struct {
	Title       string    `bson:"title"`
	Description string    `bson:"description"`
	Severity    string    `bson:"severity"`
	CreatedAt   time.Time `bson:"created_at"`
	ExpiresAt   time.Time `bson:"expires_at"`
}

// History сохраняет уведомления в MongoDB, чтобы оператор мог просмотреть
// пропущенные toast-сообщения. Записи удаляются TTL-индексом через retention.
type History struct {
	client    *mongodriver.Client
	coll      *mongodriver.Collection
	retention time.Duration
	now       func() time.Time
}

// NewHistory подключается к MongoDB, проверяет соединение и создаёт индексы.
func NewHistory(ctx context.Context, uri string, retention time.Duration) (*History, error) {
	if uri == "" {
		return nil, fmt.Errorf("mongo: empty uri")
	}

	cli, err := mongodriver.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	if err := cli.Ping(ctx, readpref.Primary()); err != nil {
		_ = cli.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}

	h := &History{
		client:    cli,
		coll:      cli.Database(databaseFromURI(uri)).Collection(historyCollection),
		retention: retention,
		now:       time.Now,
	}

	if err := h.ensureIndexes(ctx); err != nil {
		_ = h.Close(ctx)
		return nil, err
	}

	return h, nil
}

func (h *History) Close(ctx context.Context) error {
	return h.client.Disconnect(ctx)
}

// ensureIndexes:
// - TTL по expires_at;
// - лента по created_at(desc).
func (h *History) ensureIndexes(ctx context.Context) error {
	models := []mongodriver.IndexModel{
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetName("ttl_expires_at").SetExpireAfterSeconds(0),
		},
		{
			Keys:    bson.D{{Key: "created_at", Value: -1}},
			Options: options.Index().SetName("created_desc"),
		},
	}

	if _, err := h.coll.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("mongo ensure indexes: %w", err)
	}
	return nil
}

func (h *History) Notify(ctx context.Context, n Notification) error {
	const op = "notify.History.Notify"

	now := h.now().UTC()
	doc := historyDoc{
		Title:       n.Title,
		Description: n.Description,
		Severity:    string(n.Severity),
		CreatedAt:   now,
		ExpiresAt:   now.Add(h.retention),
	}

	if _, err := h.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Recent возвращает последние limit уведомлений, новые первыми.
func (h *History) Recent(ctx context.Context, limit int64) ([]Notification, error) {
	const op = "notify.History.Recent"

	if limit <= 0 || limit > 100 {
		limit = 20
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)
	cur, err := h.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer cur.Close(ctx)

	out := make([]Notification, 0, limit)
	for cur.Next(ctx) {
		var d historyDoc
		if err := cur.Decode(&d); err != nil {
			return nil, fmt.Errorf("%s: decode: %w", op, err)
		}
		out = append(out, Notification{Title: d.Title, Description: d.Description, Severity: Severity(d.Severity)})
	}

	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// databaseFromURI извлекает имя базы из пути mongodb URI.
func databaseFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err == nil {
		if name := strings.Trim(u.Path, "/"); name != "" {
			return name
		}
	}
	return defaultDBName
}
