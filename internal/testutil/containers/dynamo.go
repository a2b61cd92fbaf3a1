//go:build integration

package containers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/uteshop/uteshop-api/internal/store/dynamo"
)

type DynamoContainer struct {
	Container testcontainers.Container
	Endpoint  string
	Client    *dynamo.Client
}

// NewDynamoContainer starts DynamoDB Local with the application tables.
func NewDynamoContainer(t *testing.T) *DynamoContainer {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "amazon/dynamodb-local:2.5.2",
			Cmd:          []string{"-jar", "DynamoDBLocal.jar", "-inMemory", "-sharedDb"},
			ExposedPorts: []string{"8000/tcp"},
			WaitingFor:   wait.ForListeningPort("8000/tcp"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("failed to start dynamodb container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to get dynamodb host: %v", err)
	}
	port, err := container.MappedPort(ctx, "8000/tcp")
	if err != nil {
		t.Fatalf("failed to get dynamodb port: %v", err)
	}
	endpoint := fmt.Sprintf("http://%s:%s", host, port.Port())

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	client, err := dynamo.NewClient(ctx, dynamo.Config{Region: "us-east-1", Endpoint: endpoint}, log)
	if err != nil {
		t.Fatalf("failed to connect to dynamodb: %v", err)
	}
	if err := dynamo.EnsureTables(ctx, client.DB, log); err != nil {
		t.Fatalf("failed to create dynamodb tables: %v", err)
	}

	return &DynamoContainer{Container: container, Endpoint: endpoint, Client: client}
}
