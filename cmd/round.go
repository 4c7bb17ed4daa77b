package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/desertthunder/jukebox/internal/formatter"
	"github.com/desertthunder/jukebox/internal/round"
	"github.com/urfave/cli/v3"
)

// RoundStage1 resolves candidate artists for the request in --request and prints the result as JSON.
func (r *Runner) RoundStage1(ctx context.Context, cmd *cli.Command) error {
	var req round.Stage1Request
	if err := r.readJSON(cmd.String("request"), &req); err != nil {
		return err
	}
	if err := r.wire(); err != nil {
		return err
	}

	token, err := r.token(ctx, cmd)
	if err != nil {
		return err
	}

	res, err := r.resolver.Resolve(ctx, token, req)
	if err != nil {
		return err
	}

	r.logger.Info("stage 1 resolved",
		"seed", res.SeedArtistName, "candidates", len(res.CandidateProfiles), "calls", res.Debug.APICalls.Total)
	return r.writeJSON(res, cmd.Bool("pretty"))
}

// RoundStage2 assembles the candidate pool for the request in --request.
//
// With --output the pool is written in the format the file extension names; otherwise the result is printed as JSON.
func (r *Runner) RoundStage2(ctx context.Context, cmd *cli.Command) error {
	var req round.Stage2Request
	if err := r.readJSON(cmd.String("request"), &req); err != nil {
		return err
	}
	if err := r.wire(); err != nil {
		return err
	}

	token, err := r.token(ctx, cmd)
	if err != nil {
		return err
	}

	res, err := r.assembler.Assemble(ctx, token, req)
	if err != nil {
		return err
	}

	if res.Debug.BelowFloor {
		r.logger.Warn("candidate pool below floor", "size", len(res.Seeds), "floor", res.Debug.PoolFloor)
	}

	output := cmd.String("output")
	switch {
	case output == "":
		return r.writeJSON(res, cmd.Bool("pretty"))
	case formatter.FormatFromPath(output) == formatter.FormatJSON:
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		if err := os.WriteFile(output, data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", output, err)
		}
	default:
		if err := formatter.WritePool(output, res.Seeds, res.Profiles); err != nil {
			return err
		}
	}

	r.writePlain("%s %d tracks to %s\n", styles.ok.Render("✓ Wrote"), len(res.Seeds), output)
	return nil
}
