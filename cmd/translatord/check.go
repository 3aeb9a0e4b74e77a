package main

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"translatord/internal/device"
	"translatord/internal/engine"
)

func runCheck(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd.Flags())
	if err != nil {
		return err
	}
	sel := device.Select(cfg.Device, device.HostProbe())
	eng := engine.New(engineConfig(cfg, sel))

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()
	rep := eng.SanityCheck(ctx)
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		return err
	}
	if !rep.OK() {
		return errors.New("sanity check failed")
	}
	return nil
}
