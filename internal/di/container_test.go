package di

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"product-catalog/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Store = config.StoreMemory
	cfg.LogLevel = "error"
	cfg.Auth.Secret = "di-secret"
	cfg.Auth.Issuer = "https://issuer.one"
	return &cfg
}

func TestInitializeContainer(t *testing.T) {
	t.Run("Should wire a working in-memory application", func(t *testing.T) {
		container, cleanup, err := InitializeContainer(context.Background(), memoryConfig())
		require.NoError(t, err)
		defer cleanup()

		w := httptest.NewRecorder()
		container.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/products", nil))
		assert.Equal(t, http.StatusOK, w.Code)

		w = httptest.NewRecorder()
		container.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Should apply reloaded region, table and issuer", func(t *testing.T) {
		container, cleanup, err := InitializeContainer(context.Background(), memoryConfig())
		require.NoError(t, err)
		defer cleanup()

		next := memoryConfig()
		next.Region = "eu-west-1"
		next.TableName = "CatalogV2"
		next.Auth.Issuer = "https://issuer.two"
		container.applyReload(next)

		region, table := container.Dynamo.Target()
		assert.Equal(t, "eu-west-1", region)
		assert.Equal(t, "CatalogV2", table)
		assert.Equal(t, "https://issuer.two", container.Validator.Issuer())
	})

	t.Run("Should skip the validator without a secret", func(t *testing.T) {
		cfg := memoryConfig()
		cfg.Auth.Secret = ""

		container, cleanup, err := InitializeContainer(context.Background(), cfg)
		require.NoError(t, err)
		defer cleanup()

		assert.Nil(t, container.Validator)
	})
}
