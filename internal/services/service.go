package services

import (
	"context"

	"github.com/pollstake/pollstake/internal/config"
	"github.com/pollstake/pollstake/internal/db"
	"github.com/pollstake/pollstake/internal/host"
)

// Service glues the execution host to the query index: calls routed through
// it are executed on the host and their committed events are translated
// into mongo writes, so the HTTP API can answer without touching the ledger.
type Service struct {
	cfg        *config.Config
	db         db.DbInterface
	host       *host.Host
	controller host.Address
}

func NewService(
	cfg *config.Config,
	db db.DbInterface,
	h *host.Host,
	controller host.Address,
) *Service {
	return &Service{
		cfg:        cfg,
		db:         db,
		host:       h,
		controller: controller,
	}
}

// StartServiceSync starts the ended-market checker and serves the query API
// in the calling goroutine.
func (s *Service) StartServiceSync(ctx context.Context) {
	s.StartEndedMarketChecker(ctx)
	s.StartQueryAPI(ctx)
}
