// Command catalog-server serves the product catalogue over HTTP.
package main

import (
	"context"
	"os"

	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	appkg "github.com/xenking/productos/internal/app"
)

func main() {
	app.Run(func(ctx context.Context, lg *zap.Logger, m *app.Telemetry) error {
		cfg, err := appkg.LoadConfig(appkg.LoadOptions{Args: os.Args[1:]})
		if err != nil {
			return err
		}
		return appkg.Run(ctx, lg, m, cfg)
	})
}
