package nakama

import (
	"context"
	"database/sql"
	"os"

	"github.com/heroiclabs/nakama-common/runtime"

	"seotda/internal/app"
	"seotda/internal/config"
)

// configPathEnv points at the optional JSON game config; defaults apply
// when unset or unreadable.
const configPathEnv = "SEOTDA_CONFIG_PATH"

// InitModule wires the Seotda engine into the Nakama runtime: storage,
// wallet and notification adapters, the RPC surface, the onboarding
// hook, and the timeout supervisor.
func InitModule(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, initializer runtime.Initializer) error {
	if path := os.Getenv(configPathEnv); path != "" {
		if err := config.LoadGameConfig(path); err != nil {
			logger.Warn("Game config %s not loaded, using defaults: %v", path, err)
		}
	}
	cfg := config.GetGameConfig()

	store := NewNakamaStoreAdapter(nk)
	svc := app.NewService(store, NewNakamaEconomyAdapter(nk), NewNakamaNotifierAdapter(nk), logger, cfg, nil)

	if err := RegisterRPCs(initializer, svc); err != nil {
		return err
	}
	if err := initializer.RegisterAfterAuthenticateDevice(AfterAuthenticateDevice); err != nil {
		return err
	}

	supervisor := app.NewSupervisor(svc, logger)
	go supervisor.Run(context.Background())

	logger.Info("Seotda Go module loaded.")
	return nil
}
