//go:build wireinject

package app

import (
	"log/slog"
	"net/http"

	"github.com/chanakyavasantha/violens/internal/conf"
	"github.com/chanakyavasantha/violens/internal/data"
	"github.com/chanakyavasantha/violens/internal/web/api"
	"github.com/google/wire"
)

func wireApp(bc *conf.Bootstrap, log *slog.Logger) (http.Handler, func(), error) {
	panic(wire.Build(data.ProviderSet, api.ProviderVersionSet, api.ProviderSet))
}
