//go:build integration

package app

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap/zaptest"

	"github.com/xenking/productos/internal/storage/postgres"
)

type noopTelemetry struct{}

func (noopTelemetry) TracerProvider() trace.TracerProvider { return tracenoop.NewTracerProvider() }
func (noopTelemetry) MeterProvider() metric.MeterProvider  { return metricnoop.NewMeterProvider() }

func startPostgres(t *testing.T) postgres.Config {
	t.Helper()
	ctx := context.Background()

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
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	mapped, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)
	port, err := strconv.Atoi(mapped.Port())
	require.NoError(t, err)

	return postgres.Config{
		Host:           host,
		Port:           port,
		Database:       "tienda",
		User:           "app",
		Password:       "app",
		ConnectTimeout: 5 * time.Second,
	}
}

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestIntegration_Server(t *testing.T) {
	cfg := &Config{
		Addr:     freeAddr(t),
		Database: startPostgres(t),
		Graceful: GracefulConfig{ShutdownTimeout: 5 * time.Second},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, zaptest.NewLogger(t), noopTelemetry{}, cfg) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})

	base := "http://" + cfg.Addr
	client := &http.Client{Timeout: 5 * time.Second}
	call := func(method, path string, body []byte) (int, []byte) {
		t.Helper()
		req, err := http.NewRequest(method, base+path, bytes.NewReader(body))
		require.NoError(t, err)
		resp, err := client.Do(req)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		data, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, data
	}

	require.Eventually(t, func() bool {
		resp, err := client.Get(base + "/readyz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 30*time.Second, 100*time.Millisecond)

	status, _ := call(http.MethodPost, "/api/products", []byte(`{"code":"P1","name":"Widget","price":9.99,"available":true}`))
	require.Equal(t, http.StatusCreated, status)

	status, _ = call(http.MethodPost, "/api/products", []byte(`{"code":"P1","name":"Again","price":1}`))
	assert.Equal(t, http.StatusConflict, status)

	png := []byte("\x89PNG\r\n\x1a\n-payload-")
	status, _ = call(http.MethodPut, "/api/products/P1/image", png)
	require.Equal(t, http.StatusNoContent, status)

	status, body := call(http.MethodPut, "/api/products/P1", []byte(`{"name":"Widget2","price":"12,50"}`))
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Contains(t, string(body), `"name":"Widget2"`)
	assert.Contains(t, string(body), `"hasImage":true`)

	status, body = call(http.MethodGet, "/api/products/P1/image", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, png, body)

	status, body = call(http.MethodGet, "/api/products", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), `"code":"P1"`)

	status, _ = call(http.MethodDelete, "/api/products/P1", nil)
	require.Equal(t, http.StatusNoContent, status)

	status, _ = call(http.MethodGet, "/api/products/P1", nil)
	assert.Equal(t, http.StatusNotFound, status)
}
