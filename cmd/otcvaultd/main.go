package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"otcvault/config"
	"otcvault/core"
	"otcvault/core/genesis"
	"otcvault/observability/logging"
	"otcvault/rpc"
	"otcvault/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to a genesis allocation file (overrides config GenesisFile)")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("OTCVAULT_ENV"))

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger := logging.Setup("otcvaultd", env, cfg.LogFile)

	commission, err := cfg.CommissionPolicy()
	if err != nil {
		logger.Error("Invalid commission configuration", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	node, err := core.NewNode(db, commission)
	if err != nil {
		logger.Error("Failed to start node", slog.Any("error", err))
		os.Exit(1)
	}

	genesisPath := strings.TrimSpace(*genesisFlag)
	if genesisPath == "" {
		genesisPath = strings.TrimSpace(cfg.GenesisFile)
	}
	alloc, err := genesis.Load(genesisPath)
	if err != nil {
		logger.Error("Failed to load genesis allocation", slog.Any("error", err))
		os.Exit(1)
	}
	if err := node.ApplyGenesis(alloc); err != nil {
		logger.Error("Failed to apply genesis allocation", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("Starting JSON-RPC server",
		slog.String("address", cfg.RPCAddress),
		slog.String("network", cfg.NetworkName),
	)
	server := rpc.NewServer(node)
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("RPC server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
