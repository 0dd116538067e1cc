// Package main implements cachectl, the administrative CLI for the query
// result cache: it clears entries by identifier, resets a cache store, and
// prunes expired rows from table-backed stores.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/AmirulAndalib/typeorm/internal/cachestore"
	"github.com/AmirulAndalib/typeorm/internal/config"
	"github.com/AmirulAndalib/typeorm/internal/logging"
)

func main() {
	code := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr)
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseOptions(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			_, _ = fmt.Fprintln(stdout, err.Error())
			return 0
		}
		_, _ = fmt.Fprintln(stderr, err.Error())
		return 1
	}

	logger := logging.New(logging.Options{
		Verbose: opts.Verbose,
		Writer:  stderr,
	}).With("run", uuid.NewString())

	res, err := config.Load(opts.ConfigPath, config.LoadOptions{Strict: opts.StrictConfig})
	for _, warning := range res.Warnings {
		logger.Warn(warning)
	}
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err.Error())
		return 1
	}

	store, cleanup, err := openStore(res.Plan)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err.Error())
		return 1
	}
	defer cleanup()

	if err := store.Connect(ctx); err != nil {
		_, _ = fmt.Fprintln(stderr, err.Error())
		return 1
	}
	defer func() {
		if err := store.Disconnect(ctx); err != nil {
			logger.Warn("store disconnect failed", "error", err)
		}
	}()

	switch opts.Command {
	case "clear":
		if opts.Identifier != "" {
			if err := store.Clear(ctx, opts.Identifier); err != nil {
				_, _ = fmt.Fprintln(stderr, err.Error())
				return 1
			}
			logger.Info("cleared cache entry", "identifier", opts.Identifier)
			return 0
		}
		if err := store.ClearAll(ctx); err != nil {
			_, _ = fmt.Fprintln(stderr, err.Error())
			return 1
		}
		logger.Info("cleared all cache entries")
		return 0

	case "prune":
		table, ok := store.(*cachestore.TableStore)
		if !ok {
			_, _ = fmt.Fprintln(stderr, "cachectl: prune requires the table provider")
			return 1
		}
		pruned, err := table.ClearExpired(ctx, time.Now())
		if err != nil {
			_, _ = fmt.Fprintln(stderr, err.Error())
			return 1
		}
		logger.Info("pruned expired cache entries", "count", pruned)
		return 0
	}

	// parseOptions only admits known commands.
	return 1
}

// openStore builds the configured provider. The returned cleanup releases
// resources the store does not own, such as the table provider's database
// handle.
func openStore(plan config.Plan) (cachestore.Store, func(), error) {
	switch plan.Provider {
	case config.ProviderTable:
		db, err := sql.Open(plan.Table.Driver, plan.Table.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("cachectl: open database: %w", err)
		}
		store, err := cachestore.NewTableStore(db, cachestore.TableOptions{
			Name:    plan.Table.Name,
			Dialect: plan.Table.Dialect,
		})
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return store, func() { _ = db.Close() }, nil

	case config.ProviderRedis:
		store := cachestore.NewRedisStore(cachestore.RedisOptions{
			Addrs:  plan.Redis.Addrs,
			DB:     plan.Redis.DB,
			Prefix: plan.Redis.Prefix,
		})
		return store, func() {}, nil

	case config.ProviderMemory:
		return cachestore.NewMemoryStore(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("cachectl: unsupported provider %q", plan.Provider)
}
