package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func runFetch(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return err
	}
	h := hubFor(cfg)
	repo := cfg.TokenizerRepo
	if repo == "" {
		repo = cfg.BaseModel
	}
	dir, err := h.FetchTokenizer(repo)
	if err != nil {
		return fmt.Errorf("fetch tokenizer: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "tokenizer\t%s\t%s\n", repo, dir)
	if cfg.AdapterRepo == "" {
		fmt.Fprintln(cmd.OutOrStdout(), "adapter\tskipped (no adapter repo configured)")
		return nil
	}
	dir, err = h.FetchAdapter(cfg.AdapterRepo)
	if err != nil {
		return fmt.Errorf("fetch adapter: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "adapter\t%s\t%s\n", cfg.AdapterRepo, dir)
	return nil
}
