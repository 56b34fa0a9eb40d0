package http

import (
	"github.com/nats-io/nats.go"

	"github.com/KristerJLawlor/wildfire-tracker/internal/adapters/postgres"
	"github.com/KristerJLawlor/wildfire-tracker/internal/adapters/valkey"
	"github.com/KristerJLawlor/wildfire-tracker/internal/core/domain"
	"github.com/KristerJLawlor/wildfire-tracker/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
// Infrastructure handles are optional and only feed the readiness probe.
type Dependencies struct {
	Maps     *usecases.EventMapService
	Defaults domain.MapDefaults
	NATS     *nats.Conn
	DB       *postgres.DB
	Cache    *valkey.Cache
}
