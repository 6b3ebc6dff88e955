package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/your-org/facesearch/internal/config"
	"github.com/your-org/facesearch/internal/models"
)

// MongoDirectory reads users from the identity service's users collection.
type MongoDirectory struct {
	client *mongo.Client
	users  *mongo.Collection
}

func NewMongoDirectory(ctx context.Context, cfg config.MongoConfig) (*MongoDirectory, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	clientOpts := options.Client().ApplyURI(cfg.URI)
	clientOpts.SetMaxPoolSize(10)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	return &MongoDirectory{
		client: client,
		users:  client.Database(cfg.Database).Collection(cfg.UsersCollection),
	}, nil
}

type userDoc struct {
	ID       interface{} `bson:"_id"`
	Name     string      `bson:"name"`
	Username string      `bson:"username"`
	Avatar   string      `bson:"avatar"`
	Class    string      `bson:"class"`
	Role     string      `bson:"role"`
}

func (d userDoc) user() models.User {
	return models.User{
		ID:       idString(d.ID),
		Name:     d.Name,
		Username: d.Username,
		Avatar:   d.Avatar,
		Class:    d.Class,
		Role:     models.Role(d.Role),
	}
}

// GetUser returns nil, nil for an unknown id.
func (m *MongoDirectory) GetUser(ctx context.Context, id string) (*models.User, error) {
	var doc userDoc
	err := m.users.FindOne(ctx, bson.M{"_id": idValue(id)}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	u := doc.user()
	return &u, nil
}

// GetUsers resolves ids to users of role. An empty role matches any role.
func (m *MongoDirectory) GetUsers(ctx context.Context, ids []string, role models.Role) (map[string]models.User, error) {
	out := make(map[string]models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	values := make([]interface{}, len(ids))
	requested := make(map[string][]string, len(ids))
	for i, id := range ids {
		values[i] = idValue(id)
		k := idKey(id)
		requested[k] = append(requested[k], id)
	}
	filter := bson.M{"_id": bson.M{"$in": values}}
	if role != "" {
		filter["role"] = string(role)
	}

	cur, err := m.users.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var doc userDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode user: %w", err)
		}
		u := doc.user()
		// results are keyed by the caller's spelling of the id, which may be
		// upper-case hex while ObjectID.Hex is always lower-case
		for _, id := range requested[idKey(u.ID)] {
			out[id] = u
		}
	}
	return out, cur.Err()
}

func (m *MongoDirectory) UpdateAvatar(ctx context.Context, id, avatarURL string) error {
	res, err := m.users.UpdateOne(ctx,
		bson.M{"_id": idValue(id)},
		bson.M{"$set": bson.M{"avatar": avatarURL, "updated_at": time.Now()}})
	if err != nil {
		return fmt.Errorf("update avatar %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoDirectory) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

func (m *MongoDirectory) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// idValue maps hex ids to ObjectIDs; anything else is matched as a string.
func idValue(id string) interface{} {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return oid
	}
	return id
}

// idKey is the canonical form used to match requested ids to decoded ones.
func idKey(id string) string {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return oid.Hex()
	}
	return id
}

func idString(v interface{}) string {
	switch id := v.(type) {
	case primitive.ObjectID:
		return id.Hex()
	case string:
		return id
	default:
		return fmt.Sprint(id)
	}
}
