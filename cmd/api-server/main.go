// Command api-server runs the GreenCart storefront API.
package main

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	greencart "github.com/xenking/greencart/internal/app"
)

func main() {
	app.Run(func(ctx context.Context, lg *zap.Logger, t *app.Telemetry) error {
		cfg, err := greencart.LoadConfig()
		if err != nil {
			return errors.Wrap(err, "load config")
		}
		return greencart.Run(ctx, lg.Named("api"), t, cfg)
	})
}
