package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/segmentio/encoding/json"

	"github.com/mattfryer/bookstack-addon/internal/bookstack"
	"github.com/mattfryer/bookstack-addon/internal/config"
	"github.com/mattfryer/bookstack-addon/internal/configsync"
	"github.com/mattfryer/bookstack-addon/internal/coordinator"
	"github.com/mattfryer/bookstack-addon/internal/model"
)

func loadInstances(ctx context.Context, cfg config.Config) ([]model.Options, error) {
	result, err := configsync.NewClient(cfg.OptionsPath).FetchConfig(ctx)
	if err != nil {
		return nil, err
	}
	if !result.Configured {
		return nil, fmt.Errorf("no BookStack instance configured in %s or BOOKSTACK_* variables", cfg.OptionsPath)
	}
	return result.Instances, nil
}

// check calls the system endpoint of every instance and prints one row each.
// It fails if any instance is unreachable or rejects its token.
func check(ctx context.Context, cfg config.Config, out io.Writer) error {
	instances, err := loadInstances(ctx, cfg)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tURL\tSTATUS\tVERSION")
	failed := 0
	for _, opts := range instances {
		status, version := "ok", ""
		client, err := bookstack.NewClient(opts)
		if err == nil {
			var info bookstack.SystemInfo
			info, err = client.System(ctx)
			version = info.Version()
		}
		switch {
		case err == nil:
		case bookstack.IsAuthError(err):
			status = "auth failed"
		case bookstack.IsConnectionError(err):
			status = "unreachable"
		default:
			status = err.Error()
		}
		if err != nil {
			failed++
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", opts.ID, opts.BaseURL(), status, version)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d instances failed", failed, len(instances))
	}
	return nil
}

// refreshOnce runs a single cycle without storage and prints the snapshot.
func refreshOnce(ctx context.Context, cfg config.Config, id string, out io.Writer, logger *slog.Logger) error {
	instances, err := loadInstances(ctx, cfg)
	if err != nil {
		return err
	}

	var target *model.Options
	for i := range instances {
		if id == "" || instances[i].ID == id {
			target = &instances[i]
			break
		}
	}
	switch {
	case target == nil:
		return fmt.Errorf("instance %q is not configured", id)
	case id == "" && len(instances) > 1:
		return fmt.Errorf("%d instances configured; pass the instance id", len(instances))
	}

	client, err := bookstack.NewClient(*target)
	if err != nil {
		return err
	}
	coord := coordinator.New(client, *target, nil, logger)
	defer coord.Close()
	if err := coord.Refresh(ctx); err != nil {
		return err
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(coord.State())
}
