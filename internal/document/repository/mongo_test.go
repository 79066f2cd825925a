package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gogotex/docstore/internal/database"
)

func TestMongoRepoContract(t *testing.T) {
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set")
	}
	ctx := context.Background()
	client, err := database.ConnectMongo(ctx, uri, 5*time.Second)
	require.NoError(t, err)
	defer func() { _ = client.Disconnect(ctx) }()

	col := client.Database("docstore_test").Collection("documents_contract")
	defer func() { _ = col.Drop(ctx) }()

	runContract(t, NewMongoRepo(col))
}
