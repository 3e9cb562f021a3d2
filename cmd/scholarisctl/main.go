package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/scholaris/scholaris/cmd/scholarisctl/cli"
	"github.com/scholaris/scholaris/internal/client"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := client.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		return cli.ExitError
	}

	var store client.SessionStore
	switch cfg.SessionStore {
	case client.StoreRedis:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		store = client.NewRedisSessionStore(rdb, cfg.RedisKey, cfg.SessionTTL)
	case client.StoreMemory:
		store = client.NewMemorySessionStore()
	default:
		store = client.NewFileSessionStore(cfg.SessionFile)
	}

	api, err := client.New(cfg.APIURL, store, &http.Client{Timeout: cfg.Timeout})
	if err != nil {
		slog.Default().Error("init client", slog.Any("error", err))
		return cli.ExitError
	}

	env := cli.Env{
		Client: api,
		Guard:  client.NewGuard(store),
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
	if cfg.QueueRedisAddr != "" {
		jobsCLI := cli.NewJobsCLI(cfg.QueueRedisAddr)
		defer jobsCLI.Close()
		env.Jobs = jobsCLI
	}

	return cli.Run(ctx, env, os.Args[1:])
}
