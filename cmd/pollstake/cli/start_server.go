package cli

import (
	"fmt"

	"cosmossdk.io/math"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/pollstake/pollstake/internal/config"
	"github.com/pollstake/pollstake/internal/controller"
	"github.com/pollstake/pollstake/internal/db"
	dbmodel "github.com/pollstake/pollstake/internal/db/model"
	"github.com/pollstake/pollstake/internal/host"
	"github.com/pollstake/pollstake/internal/market"
	"github.com/pollstake/pollstake/internal/observability/metrics"
	"github.com/pollstake/pollstake/internal/observability/tracing"
	"github.com/pollstake/pollstake/internal/services"
	"github.com/pollstake/pollstake/internal/token"
	"github.com/pollstake/pollstake/pkg"
)

func StartServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start-server",
		Short: "Starts the pollstake server",
		Args:  cobra.ExactArgs(0),
		RunE:  startServer,
	}

	return cmd
}

func startServer(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	ctx = tracing.InjectTraceID(ctx)
	log := log.Ctx(ctx)

	// load config
	cfgPath := GetConfigPath()
	cfg, err := config.New(cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg(fmt.Sprintf("error while loading config file: %s", cfgPath))
	}

	if err := pkg.ValidateAccountAddress(cfg.Chain.Owner, cfg.Chain.AddressPrefix); err != nil {
		log.Fatal().Err(err).Msg("invalid owner address")
	}
	if err := pkg.ValidateAccountAddress(cfg.Chain.BlitzSink, cfg.Chain.AddressPrefix); err != nil {
		log.Fatal().Err(err).Msg("invalid blitz sink address")
	}

	err = dbmodel.Setup(ctx, &cfg.Db)
	if err != nil {
		log.Fatal().Err(err).Msg("error while setting up market db model")
	}

	// create new db client
	var dbClient db.DbInterface
	dbClient, err = db.New(ctx, cfg.Db)
	if err != nil {
		log.Fatal().Err(err).Msg("error while creating db client")
	}
	dbClient = db.NewDbWithMetrics(dbClient)

	// bootstrap the execution host with the component templates and the factory
	h := host.New(cfg.Chain.AddressPrefix, nil)
	tokenCode := h.StoreCode(token.Factory)
	marketCode := h.StoreCode(market.Factory)
	controllerCode := h.StoreCode(controller.Factory)

	controllerAddr, _, err := h.Instantiate(ctx, host.Address(cfg.Chain.Owner), controllerCode, controller.InstantiateMsg{
		Owner:          cfg.Chain.Owner,
		CreationFee:    math.NewInt(cfg.Chain.CreationFee),
		ProtocolFeeBps: cfg.Chain.ProtocolFeeBps,
		MarketCodeID:   marketCode,
		TokenCodeID:    tokenCode,
		Denom:          cfg.Chain.Denom,
		RewardPool:     math.NewInt(cfg.Chain.RewardPool),
		BlitzSink:      cfg.Chain.BlitzSink,
	}, nil, "pollstake-factory-"+pkg.RandString(6))
	if err != nil {
		log.Fatal().Err(err).Msg("error while instantiating the factory")
	}
	log.Info().Stringer("controller", controllerAddr).Msg("factory instantiated")

	service := services.NewService(cfg, dbClient, h, controllerAddr)

	// initialize metrics with the metrics port from config
	metricsPort := cfg.Metrics.GetMetricsPort()
	metrics.Init(metricsPort)

	service.StartServiceSync(ctx)
	return nil
}
