package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	downloadsCollection = "manga_downloads"
	usersCollection     = "auth_users"
)

type Mongo struct {
	client    *mongo.Client
	downloads *mongo.Collection
	users     *mongo.Collection
}

type downloadDoc struct {
	ID         bson.ObjectID `bson:"_id,omitempty"`
	URL        string        `bson:"url"`
	OutputName string        `bson:"pdf_name"`
	Timestamp  time.Time     `bson:"timestamp"`
}

type userDoc struct {
	Username string `bson:"username"`
	Secret   string `bson:"password"`
}

func OpenMongo(ctx context.Context, uri, database string) (*Mongo, error) {
	if uri == "" {
		return nil, fmt.Errorf("mongo uri is required")
	}
	if database == "" {
		database = "mangapdf"
	}

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(database)
	m := &Mongo{
		client:    client,
		downloads: db.Collection(downloadsCollection),
		users:     db.Collection(usersCollection),
	}

	_, err = m.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("create user index: %w", err)
	}

	return m, nil
}

func (m *Mongo) RecordDownload(ctx context.Context, rec DownloadRecord) error {
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	_, err := m.downloads.InsertOne(ctx, downloadDoc{
		URL:        rec.URL,
		OutputName: rec.OutputName,
		Timestamp:  ts.UTC(),
	})
	if err != nil {
		return fmt.Errorf("record download: %w", err)
	}

	return nil
}

func (m *Mongo) ListDownloads(ctx context.Context) ([]DownloadRecord, error) {
	cur, err := m.downloads.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list downloads: %w", err)
	}

	var docs []downloadDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode downloads: %w", err)
	}

	out := make([]DownloadRecord, 0, len(docs))
	for _, d := range docs {
		out = append(out, DownloadRecord{
			ID:         d.ID.Hex(),
			URL:        d.URL,
			OutputName: d.OutputName,
			Timestamp:  d.Timestamp,
		})
	}

	return out, nil
}

func (m *Mongo) ListUsers(ctx context.Context) (map[string]string, error) {
	cur, err := m.users.Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}

	out := make(map[string]string, len(docs))
	for _, d := range docs {
		out[d.Username] = d.Secret
	}

	return out, nil
}

func (m *Mongo) AddUser(ctx context.Context, username, secret string) error {
	_, err := m.users.InsertOne(ctx, userDoc{Username: username, Secret: secret})
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %s", ErrUserExists, username)
	}
	if err != nil {
		return fmt.Errorf("add user: %w", err)
	}

	return nil
}

func (m *Mongo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return m.client.Disconnect(ctx)
}
