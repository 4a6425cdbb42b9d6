package store

import (
	"context"
	"encoding/json"

	"blogclone/pkg/common"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore keeps every document in a single collection keyed by
// "<path>/<key>". Change notification comes from a collection-wide change
// stream: watchers re-read their path after every event, which keeps the
// last-snapshot-wins contract without inspecting event payloads.
type MongoStore struct {
	collection common.CollectionHelper
}

type mongoDocument struct {
	ID   string `bson:"_id"`
	Path string `bson:"path"`
	Key  string `bson:"key"`
	Doc  string `bson:"doc"`
}

func NewMongoClient(ctx context.Context, uri string) (*mongo.Client, error) {
	return mongo.Connect(ctx, options.Client().ApplyURI(uri))
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{collection: &common.MongoCollection{Collection: db.Collection("documents")}}
}

// NewMongoStoreWithCollection is used by tests to substitute a mock collection.
func NewMongoStoreWithCollection(collection common.CollectionHelper) *MongoStore {
	return &MongoStore{collection: collection}
}

func (ms *MongoStore) Get(ctx context.Context, path, key string) (json.RawMessage, error) {
	res := ms.collection.FindOne(ctx, bson.M{"_id": path + "/" + key})

	d := &mongoDocument{}
	err := res.Decode(d)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNoDocument
	}
	if err != nil {
		return nil, err
	}

	return json.RawMessage(d.Doc), nil
}

func (ms *MongoStore) Put(ctx context.Context, path, key string, doc json.RawMessage) error {
	d := &mongoDocument{ID: path + "/" + key, Path: path, Key: key, Doc: string(doc)}
	_, err := ms.collection.ReplaceOne(ctx, bson.M{"_id": d.ID}, d,
		options.Replace().SetUpsert(true))

	return err
}

func (ms *MongoStore) Patch(ctx context.Context, path, key string, fields map[string]interface{}) error {
	// Read-merge-write; concurrent patches are last-write-wins, which the
	// interaction semantics tolerate (each user only flips their own id).
	doc, err := ms.Get(ctx, path, key)
	if err != nil {
		return err
	}

	merged, err := mergeFields(doc, fields)
	if err != nil {
		return err
	}

	return ms.Put(ctx, path, key, merged)
}

func (ms *MongoStore) Delete(ctx context.Context, path, key string) error {
	_, err := ms.collection.DeleteOne(ctx, bson.M{"_id": path + "/" + key})
	return err
}

func (ms *MongoStore) List(ctx context.Context, path string) (Snapshot, error) {
	cur, err := ms.collection.Find(ctx, bson.M{"path": path})
	if err != nil {
		return nil, err
	}

	defer cur.Close(ctx)

	var docs []*mongoDocument
	err = cur.All(ctx, &docs)
	if err != nil {
		return nil, err
	}

	snap := make(Snapshot, len(docs))
	for _, d := range docs {
		snap[d.Key] = json.RawMessage(d.Doc)
	}

	return snap, nil
}

func (ms *MongoStore) Watch(ctx context.Context, path string) (<-chan Snapshot, func(), error) {
	stream, err := ms.collection.Watch(ctx, mongo.Pipeline{})
	if err != nil {
		return nil, nil, err
	}

	initial, err := ms.List(ctx, path)
	if err != nil {
		stream.Close(ctx)
		return nil, nil, err
	}

	streamCtx, stop := context.WithCancel(ctx)

	out := make(chan Snapshot, 1)
	out <- initial

	go func() {
		defer close(out)
		defer stream.Close(context.Background())
		for stream.Next(streamCtx) {
			snap, err := ms.List(streamCtx, path)
			if err != nil {
				continue
			}
			offer(out, snap)
		}
	}()

	return out, stop, nil
}
