package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/BearBump/CustomsBox/config"
	customsapi "github.com/BearBump/CustomsBox/internal/api/customs_api"
	"github.com/BearBump/CustomsBox/internal/app"
	"github.com/BearBump/CustomsBox/internal/integrations/soap/fake"
	"github.com/BearBump/CustomsBox/internal/services/taxids"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	trmocks "github.com/BearBump/CustomsBox/internal/services/tracks/mocks"
	txmocks "github.com/BearBump/CustomsBox/internal/services/transactions/mocks"
)

type txRepo struct{ *txmocks.MockRepository }
type trRepo struct{ *trmocks.MockRepository }

type fakeStorage struct {
	txRepo
	trRepo
}

func (fakeStorage) WithTx(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }

func newTestAPI() *customsapi.CustomsAPI {
	st := fakeStorage{txRepo{&txmocks.MockRepository{}}, trRepo{&trmocks.MockRepository{}}}
	stack := app.NewStack(&config.Config{}, st, fake.New(), nil)
	return customsapi.New(customsapi.Deps{
		TaxIDs:       taxids.NewValidator(nil, 0),
		Registry:     stack.Registry,
		MicDta:       stack.MicDta,
		Orchestrator: stack.Orchestrator,
		Transactions: stack.Transactions,
		Tracks:       stack.Tracks,
		Status:       stack.Status,
	})
}

func TestRunCustomsAPI_ServesSwaggerAndHealth(t *testing.T) {
	dir := t.TempDir()
	sw := filepath.Join(dir, "swagger.json")
	require.NoError(t, os.WriteFile(sw, []byte(`{"swagger":"2.0"}`), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addrCh := make(chan string, 1)
	opts := customsAPIOpts{
		httpAddr:    "127.0.0.1:0",
		swaggerPath: sw,
		onListen:    func(httpAddr string) { addrCh <- httpAddr },
	}

	errCh := make(chan error, 1)
	go func() { errCh <- runCustomsAPI(ctx, opts, newTestAPI()) }()

	var addr string
	select {
	case addr = <-addrCh:
	case err := <-errCh:
		t.Fatalf("server exited early: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for listener")
	}

	resp, err := http.Get("http://" + addr + "/swagger.json")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), `"swagger"`)

	resp, err = http.Get("http://" + addr + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post("http://"+addr+"/v1/taxids/suggest", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	cancel()
	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting server to stop")
	}
}

func TestRunCustomsAPI_RequiresSwagger(t *testing.T) {
	err := runCustomsAPI(context.Background(), customsAPIOpts{httpAddr: "127.0.0.1:0"}, newTestAPI())
	require.Error(t, err)

	err = runCustomsAPI(context.Background(), customsAPIOpts{
		httpAddr:    "127.0.0.1:0",
		swaggerPath: filepath.Join(t.TempDir(), "missing.json"),
	}, newTestAPI())
	require.ErrorContains(t, err, "swagger file not found")
}

func TestSwaggerDocumentsEveryRoute(t *testing.T) {
	raw, err := os.ReadFile(filepath.Join("..", "..", "api", "customs.swagger.json"))
	require.NoError(t, err)
	var doc struct {
		Paths map[string]map[string]json.RawMessage `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(raw, &doc))

	r := chi.NewRouter()
	newTestAPI().Routes(r)
	err = chi.Walk(r, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		ops, ok := doc.Paths[route]
		require.True(t, ok, "route %s missing from swagger", route)
		_, ok = ops[strings.ToLower(method)]
		require.True(t, ok, "%s %s missing from swagger", method, route)
		return nil
	})
	require.NoError(t, err)
}
