//go:build integration

package postgres

import (
	"context"
	"log"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xenking/productos/internal/domain/product"
)

var testProvider *Provider

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_DB":       "tienda",
				"POSTGRES_USER":     "app",
				"POSTGRES_PASSWORD": "app",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("start postgres: %v", err)
	}
	defer func() {
		if err := container.Terminate(context.Background()); err != nil {
			log.Printf("terminate postgres: %v", err)
		}
	}()

	host, err := container.Host(ctx)
	if err != nil {
		log.Fatalf("host: %v", err)
	}
	mapped, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		log.Fatalf("mapped port: %v", err)
	}
	port, err := strconv.Atoi(mapped.Port())
	if err != nil {
		log.Fatalf("parse port: %v", err)
	}

	testProvider = NewProvider(Config{
		Host:           host,
		Port:           port,
		Database:       "tienda",
		User:           "app",
		Password:       "app",
		ConnectTimeout: 5 * time.Second,
	}, nil)
	defer testProvider.Close()

	if err := RunMigrations(ctx, testProvider); err != nil {
		log.Fatalf("migrations: %v", err)
	}

	return m.Run()
}

func cleanTable(t *testing.T) {
	t.Helper()

	q, err := testProvider.Querier(context.Background())
	require.NoError(t, err)
	_, err = q.Exec(context.Background(), "TRUNCATE productos")
	require.NoError(t, err)
}

func TestIntegration_Scenario(t *testing.T) {
	cleanTable(t)
	ctx := context.Background()
	repo := NewProductRepository(testProvider)

	require.NoError(t, repo.Insert(ctx, product.Product{Code: "P1", Name: "Widget", Price: 9.99, Available: true}))

	all, err := repo.List(ctx)
	require.NoError(t, err)
	var count int
	for _, p := range all {
		if p.Code == "P1" {
			count++
		}
	}
	assert.Equal(t, 1, count)

	require.NoError(t, repo.Update(ctx, product.Product{Code: "P1", Name: "Widget2", Price: 12.50, Available: false}))

	got, err := repo.FindByCode(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, "Widget2", got.Name)
	assert.Equal(t, float32(12.50), got.Price)
	assert.False(t, got.Available)

	require.NoError(t, repo.Delete(ctx, "P1"))

	_, err = repo.FindByCode(ctx, "P1")
	require.ErrorIs(t, err, product.ErrNotFound)
}

func TestIntegration_InsertFindRoundTrip(t *testing.T) {
	cleanTable(t)
	ctx := context.Background()
	repo := NewProductRepository(testProvider)

	inputs := []product.Product{
		{Code: "A", Name: "Alpha", Price: 0, Available: false},
		{Code: "B", Name: "Beta", Price: 1234.56, Available: true},
		{Code: "C-ñ", Name: "Ünïcode", Price: 0.01, Available: true},
	}
	for _, in := range inputs {
		require.NoError(t, repo.Insert(ctx, in))

		got, err := repo.FindByCode(ctx, in.Code)
		require.NoError(t, err)
		assert.True(t, in.Equal(*got))
		assert.Equal(t, in.Name, got.Name)
		assert.Equal(t, in.Price, got.Price)
		assert.Equal(t, in.Available, got.Available)
	}
}

func TestIntegration_DuplicateCode(t *testing.T) {
	cleanTable(t)
	ctx := context.Background()
	repo := NewProductRepository(testProvider)

	require.NoError(t, repo.Insert(ctx, product.Product{Code: "DUP", Name: "First"}))
	err := repo.Insert(ctx, product.Product{Code: "DUP", Name: "Second"})
	require.ErrorIs(t, err, product.ErrConflict)
}

func TestIntegration_EmptyCodeRejected(t *testing.T) {
	cleanTable(t)
	repo := NewProductRepository(testProvider)

	err := repo.Insert(context.Background(), product.Product{Code: "", Name: "Nameless"})
	require.ErrorIs(t, err, product.ErrInvalid)
}

func TestIntegration_UnknownCode(t *testing.T) {
	cleanTable(t)
	ctx := context.Background()
	repo := NewProductRepository(testProvider)

	_, err := repo.FindByCode(ctx, "nope")
	require.ErrorIs(t, err, product.ErrNotFound)
	require.ErrorIs(t, repo.Delete(ctx, "nope"), product.ErrNotFound)
	require.ErrorIs(t, repo.Update(ctx, product.Product{Code: "nope"}), product.ErrNotFound)
}

func TestIntegration_ImagePresence(t *testing.T) {
	cleanTable(t)
	ctx := context.Background()
	repo := NewProductRepository(testProvider)

	require.NoError(t, repo.Insert(ctx, product.Product{Code: "NOIMG", Name: "n"}))
	require.NoError(t, repo.Insert(ctx, product.Product{Code: "EMPTY", Name: "e", Image: []byte{}}))
	require.NoError(t, repo.Insert(ctx, product.Product{Code: "IMG", Name: "i", Image: []byte{0x89, 'P', 'N', 'G'}}))

	noImg, err := repo.FindByCode(ctx, "NOIMG")
	require.NoError(t, err)
	assert.False(t, noImg.HasImage())

	empty, err := repo.FindByCode(ctx, "EMPTY")
	require.NoError(t, err)
	assert.True(t, empty.HasImage())
	assert.Empty(t, empty.Image)

	img, err := repo.FindByCode(ctx, "IMG")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, img.Image)
}

func TestIntegration_ListStable(t *testing.T) {
	cleanTable(t)
	ctx := context.Background()
	repo := NewProductRepository(testProvider)

	for _, code := range []string{"X1", "X2", "X3"} {
		require.NoError(t, repo.Insert(ctx, product.Product{Code: code, Name: code, Price: 1.5}))
	}

	first, err := repo.List(ctx)
	require.NoError(t, err)
	second, err := repo.List(ctx)
	require.NoError(t, err)

	type tuple struct {
		code      string
		name      string
		price     float32
		available bool
	}
	toTuples := func(ps []product.Product) []tuple {
		out := make([]tuple, len(ps))
		for i, p := range ps {
			out[i] = tuple{p.Code, p.Name, p.Price, p.Available}
		}
		return out
	}
	assert.ElementsMatch(t, toTuples(first), toTuples(second))
}

func TestIntegration_ReconnectAfterClose(t *testing.T) {
	cleanTable(t)
	ctx := context.Background()
	repo := NewProductRepository(testProvider)

	_, err := repo.List(ctx)
	require.NoError(t, err)
	require.True(t, testProvider.IsAlive())

	testProvider.Close()
	require.False(t, testProvider.IsAlive())

	_, err = repo.List(ctx)
	require.NoError(t, err)
	assert.True(t, testProvider.IsAlive())
}
