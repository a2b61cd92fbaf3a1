//go:build integration

// Package containers starts throwaway databases for integration tests.
package containers

import (
	"context"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	tcmongo "github.com/testcontainers/testcontainers-go/modules/mongodb"
)

type MongoContainer struct {
	Container *tcmongo.MongoDBContainer
	URI       string
	Client    *mongo.Client
}

// NewMongoContainer starts MongoDB and terminates it when the test ends.
func NewMongoContainer(t *testing.T) *MongoContainer {
	t.Helper()
	ctx := context.Background()

	container, err := tcmongo.Run(ctx, "mongo:7")
	if err != nil {
		t.Fatalf("failed to start mongo container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	uri, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("failed to get mongo connection string: %v", err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Fatalf("failed to connect to mongo: %v", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		t.Fatalf("failed to ping mongo: %v", err)
	}
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	return &MongoContainer{Container: container, URI: uri, Client: client}
}

// Database returns a fresh database named after the test.
func (m *MongoContainer) Database(t *testing.T) *mongo.Database {
	t.Helper()
	db := m.Client.Database(sanitize(t.Name()))
	t.Cleanup(func() { _ = db.Drop(context.Background()) })
	return db
}

func sanitize(name string) string {
	out := make([]byte, 0, len(name))
	for i := 0; i < len(name) && len(out) < 60; i++ {
		c := name[i]
		if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' {
			out = append(out, c)
		} else {
			out = append(out, '_')
		}
	}
	return string(out)
}
