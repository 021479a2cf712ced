package main

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"xpose-triage/internal/domain/services"
	"xpose-triage/internal/infrastructure/cache"
	"xpose-triage/internal/infrastructure/database"
	"xpose-triage/internal/infrastructure/database/repository"
	"xpose-triage/internal/infrastructure/ledger"
	"xpose-triage/internal/queue"
)

const (
	reanchorLock    = "reanchor"
	reanchorLockTTL = 10 * time.Minute
)

func newLedgerCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Audit and repair ledger anchoring",
	}

	client := func() *ledger.Client {
		return ledger.NewClient(c.cfg.Ledger.URL, c.cfg.Ledger.Timeout, c.log)
	}

	chain := &cobra.Command{
		Use:   "chain",
		Short: "Print every block of the ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			blocks, err := client().ListChain(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), blocks)
		},
	}

	validate := &cobra.Command{
		Use:   "validate",
		Short: "Ask the ledger to verify its hash chain",
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := client().Validate(cmd.Context())
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("ledger chain is NOT valid")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ledger chain is valid")
			return nil
		},
	}

	var (
		limit  int
		direct bool
	)
	reanchor := &cobra.Command{
		Use:   "reanchor",
		Short: "Retry anchoring for accepted reports that have no ledger proof",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			db, err := database.NewPostgres(ctx, c.cfg.Database, c.log)
			if err != nil {
				return err
			}
			defer db.Close()

			reports := repository.NewReportRepository(db.Pool())
			ids, err := reports.ListUnanchored(ctx, limit)
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing to anchor")
				return nil
			}

			if direct || !c.cfg.Queue.Enabled {
				// a second inline run would anchor the same reports twice
				if rc, err := cache.NewRedis(ctx, c.cfg.Redis, c.log); err == nil {
					defer rc.Close()
					acquired, err := rc.AcquireLock(ctx, reanchorLock, reanchorLockTTL)
					if err != nil {
						return err
					}
					if !acquired {
						return fmt.Errorf("another reanchor run holds the lock")
					}
					defer func() { _ = rc.ReleaseLock(context.WithoutCancel(ctx), reanchorLock) }()
				} else {
					c.log.Warn().Err(err).Msg("redis unavailable, running without the reanchor lock")
				}

				anchorer := services.NewLedgerAnchorer(client(), reports, nil, nil, nil, c.cfg.Ledger.Timeout, c.log)
				failed := 0
				for _, id := range ids {
					if err := anchorer.Reanchor(ctx, id); err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "%s\t%v\n", id, err)
						failed++
						continue
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s\tanchored\n", id)
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d reports could not be anchored", failed, len(ids))
				}
				return nil
			}

			q := queue.NewClient(asynq.NewClient(asynq.RedisClientOpt{
				Addr:     c.cfg.Redis.Addr(),
				Password: c.cfg.Redis.Password,
				DB:       c.cfg.Redis.DB,
			}), c.cfg.Queue.MaxRetry, c.log)
			defer q.Close()

			for _, id := range ids {
				if err := q.EnqueueAnchor(ctx, id); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "queued %d reports\n", len(ids))
			return nil
		},
	}
	reanchor.Flags().IntVar(&limit, "limit", 100, "maximum reports to process")
	reanchor.Flags().BoolVar(&direct, "direct", false, "anchor inline instead of through the queue")

	cmd.AddCommand(chain, validate, reanchor)
	return cmd
}
