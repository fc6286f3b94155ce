package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/hnsnap/hnsnap/internal/types"
)

// MongoStorage writes the snapshot to a MongoDB collection, one document
// per story, keyed by (day, rank). Re-running a day replaces its stories.
type MongoStorage struct {
	client     *mongo.Client
	collection *mongo.Collection
	day        string
	logger     *slog.Logger
}

type storyDoc struct {
	Day          string       `bson:"day"`
	Rank         int          `bson:"rank"`
	Title        string       `bson:"title"`
	URL          string       `bson:"url"`
	Points       int          `bson:"points"`
	Author       string       `bson:"author"`
	SubmittedAt  string       `bson:"submitted_at"`
	CommentCount int          `bson:"comment_count"`
	Comments     []commentDoc `bson:"comments"`
	ScrapedAt    time.Time    `bson:"scraped_at"`
}

type commentDoc struct {
	Author   string       `bson:"author"`
	Text     string       `bson:"text"`
	Depth    int          `bson:"depth"`
	Children []commentDoc `bson:"children"`
}

// NewMongoStorage connects to MongoDB and prepares the collection. The
// day label identifies which front page the snapshot covers.
func NewMongoStorage(uri, database, collection, day string, logger *slog.Logger) (*MongoStorage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, &types.StorageError{Backend: "mongodb", Err: fmt.Errorf("connect: %w", err)}
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, &types.StorageError{Backend: "mongodb", Err: fmt.Errorf("ping: %w", err)}
	}

	return &MongoStorage{
		client:     client,
		collection: client.Database(database).Collection(collection),
		day:        day,
		logger:     logger.With("component", "mongo_storage"),
	}, nil
}

func (s *MongoStorage) Name() string { return "mongodb" }

// Store replaces the day's stories with the snapshot contents.
func (s *MongoStorage) Store(snapshot *types.Snapshot) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := s.collection.DeleteMany(ctx, bson.M{"day": s.day}); err != nil {
		return &types.StorageError{Backend: "mongodb", Err: fmt.Errorf("clear day %s: %w", s.day, err)}
	}

	if len(snapshot.Stories) == 0 {
		return nil
	}

	now := time.Now().UTC()
	docs := make([]any, len(snapshot.Stories))
	for i, story := range snapshot.Stories {
		docs[i] = storyDoc{
			Day:          s.day,
			Rank:         story.Rank,
			Title:        story.Title,
			URL:          story.URL,
			Points:       story.Points,
			Author:       story.Author,
			SubmittedAt:  story.SubmittedAt,
			CommentCount: story.CommentCount,
			Comments:     toCommentDocs(story.Comments),
			ScrapedAt:    now,
		}
	}

	if _, err := s.collection.InsertMany(ctx, docs); err != nil {
		return &types.StorageError{Backend: "mongodb", Err: fmt.Errorf("insert: %w", err)}
	}

	s.logger.Info("snapshot stored", "day", s.day, "stories", len(docs))
	return nil
}

// Close disconnects from MongoDB.
func (s *MongoStorage) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func toCommentDocs(nodes []types.CommentNode) []commentDoc {
	docs := make([]commentDoc, len(nodes))
	for i, n := range nodes {
		docs[i] = commentDoc{
			Author:   n.Author,
			Text:     n.Text,
			Depth:    n.Depth,
			Children: toCommentDocs(n.Children),
		}
	}
	return docs
}
