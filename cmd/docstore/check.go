package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/gogotex/docstore/internal/config"
	"github.com/gogotex/docstore/internal/document/repository"
	"github.com/gogotex/docstore/internal/document/service"
	"github.com/gogotex/docstore/pkg/logger"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run recovery against the configured storage and report what it found",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger.Init(cfg.LogLevel)

			repo, err := repository.Open(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("open storage: %w", err)
			}
			store, report, err := service.New(cmd.Context(), repo, service.Options{
				PayloadCacheSize: 0,
				RecoveryWorkers:  cfg.Store.RecoveryWorkers,
			})
			if err != nil {
				_ = repo.Close()
				return fmt.Errorf("recover documents: %w", err)
			}
			defer store.Close()

			return printReport(cmd, cfg.Storage.Backend, report)
		},
	}
}

func printReport(cmd *cobra.Command, backend string, report *service.RecoveryReport) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "backend:    %s\n", backend)
	fmt.Fprintf(out, "documents:  %s\n", humanize.Comma(int64(report.Documents)))
	fmt.Fprintf(out, "next id:    %d\n", report.NextID)
	fmt.Fprintf(out, "payloads:   %s\n", humanize.Bytes(uint64(report.PayloadBytes)))
	fmt.Fprintf(out, "skipped:    %d\n", len(report.Skipped))
	for _, s := range report.Skipped {
		fmt.Fprintf(out, "  %s: %s\n", s.Key, s.Reason)
	}
	if len(report.Skipped) > 0 {
		return fmt.Errorf("%d records could not be recovered", len(report.Skipped))
	}
	return nil
}
