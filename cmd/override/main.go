// Command override is the operator tool for a running engine: it publishes
// override commands on the engine's override stream and reads or edits the
// Redis-backed runtime configuration.
//
// Usage:
//
//	override -config config.toml pause
//	override -config config.toml resume
//	override -config config.toml flatten
//	override -config config.toml disable AAPL
//	override -config config.toml enable AAPL
//	override -config config.toml watchlist AAPL,MSFT,SPY
//	override -config config.toml poll 5
//	override -config config.toml engines
//	override -config config.toml status
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/quantfold/algotrader/internal/config"
	"github.com/quantfold/algotrader/internal/domain"
	"github.com/quantfold/algotrader/internal/transport/redis"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to configuration file")
	engineID := flag.String("engine", "", "engine id (defaults to engine.id from config)")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: override [-config file] [-engine id] <command> [arg]")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal("load config: %v", err)
	}
	id := *engineID
	if id == "" {
		id = cfg.Engine.ID
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
	})
	if err != nil {
		fatal("%v", err)
	}
	defer client.Close()

	if err := run(ctx, client, id, flag.Args()); err != nil {
		fatal("%v", err)
	}
}

func run(ctx context.Context, client *redis.Client, engineID string, args []string) error {
	command := strings.ToLower(args[0])

	switch command {
	case "pause", "resume", "flatten":
		return publish(ctx, client, engineID, command, nil)

	case "disable", "enable":
		if len(args) < 2 {
			return fmt.Errorf("%s requires a symbol", command)
		}
		symbol := strings.ToUpper(strings.TrimSpace(args[1]))
		return publish(ctx, client, engineID, command+"_symbol", map[string]string{"symbol": symbol})

	case "watchlist":
		if len(args) < 2 {
			return fmt.Errorf("watchlist requires a comma-separated symbol list")
		}
		symbols := strings.Split(args[1], ",")
		rc := redis.NewRuntimeConfig(client)
		if err := rc.SetWatchlist(ctx, engineID, symbols); err != nil {
			return err
		}
		fmt.Printf("watchlist for %s set to %s\n", engineID, args[1])
		return nil

	case "poll":
		if len(args) < 2 {
			return fmt.Errorf("poll requires a seconds value")
		}
		seconds, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("parse seconds %q: %w", args[1], err)
		}
		rc := redis.NewRuntimeConfig(client)
		if err := rc.SetPollSeconds(ctx, engineID, seconds); err != nil {
			return err
		}
		fmt.Printf("poll interval for %s set to %vs\n", engineID, seconds)
		return nil

	case "engines":
		reg := redis.NewEngineRegistry(client)
		engines, err := reg.ListEngines(ctx)
		if err != nil {
			return err
		}
		for _, e := range engines {
			fmt.Println(e)
		}
		return nil

	case "status":
		reg := redis.NewEngineRegistry(client)
		status, err := reg.GetStatus(ctx, engineID)
		if err != nil {
			return err
		}
		if status == nil {
			fmt.Printf("%s: no live heartbeat\n", engineID)
			return nil
		}
		out, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil

	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func publish(ctx context.Context, client *redis.Client, engineID, command string, args map[string]string) error {
	bus, err := redis.NewOverrideBus(ctx, client, engineID)
	if err != nil {
		return err
	}
	event := domain.OverrideEvent{
		TS:      time.Now().UTC(),
		Command: command,
		Args:    args,
	}
	if err := bus.PublishOverride(ctx, event); err != nil {
		return err
	}
	fmt.Printf("published %s to %s\n", command, engineID)
	return nil
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "override: "+format+"\n", args...)
	os.Exit(1)
}
