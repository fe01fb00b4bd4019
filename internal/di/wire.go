//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"product-catalog/internal/config"

	"github.com/google/wire"
)

// InitializeContainer builds the application container.
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	wire.Build(SuperSet)
	return nil, nil, nil
}
