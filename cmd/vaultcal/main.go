// Package main implements the MCP server for vault calendars.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/fang"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/taigrr/vaultcal/internal/calendar"
	"github.com/taigrr/vaultcal/internal/config"
	"github.com/taigrr/vaultcal/internal/filesystem"
	"github.com/taigrr/vaultcal/internal/frontmatter"
	applog "github.com/taigrr/vaultcal/internal/log"
	"github.com/taigrr/vaultcal/internal/pathfilter"
	"github.com/taigrr/vaultcal/internal/syncer"
	"github.com/taigrr/vaultcal/internal/types"
)

var (
	coordinator *syncer.Coordinator
	fileSystem  *filesystem.Service
)

func main() {
	var configPath string

	cmd := &cobra.Command{
		Use:   "vaultcal [vault-path]",
		Short: "MCP calendar engine for Obsidian vaults",
		Long: `vaultcal is a Model Context Protocol (MCP) server that maintains a
synchronized event index over an Obsidian vault. It reads events from
note frontmatter, daily notes and remote feeds, exposes them with
stable identifiers, and writes edits back to the owning notes.`,
		Example: `vaultcal --config ~/.config/vaultcal/config.yaml ~/obsidian`,
		Args:    cobra.MaximumNArgs(1),
		RunE:    runServer,
	}
	cmd.Flags().StringVar(&configPath, "config", defaultConfigPath(), "path to the config file")

	if err := fang.Execute(
		context.Background(),
		cmd,
		fang.WithVersion(version),
		fang.WithoutCompletions(),
		fang.WithoutManpage(),
	); err != nil {
		os.Exit(1)
	}
}

func defaultConfigPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return dir + "/vaultcal/config.yaml"
	}
	return "config.yaml"
}

func runServer(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	vaultPath := cfg.Vault
	if len(args) > 0 {
		vaultPath = args[0]
	}
	if vaultPath == "" {
		vaultPath, err = os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get current directory: %w", err)
		}
	}

	// Initialize services
	pf := pathfilter.New(nil)
	fh := frontmatter.New()
	fileSystem = filesystem.New(vaultPath, pf, fh)

	registry, err := buildRegistry(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	coordinator = syncer.New(registry, nil, nil)
	coordinator.InitialScan(cmd.Context())

	// Periodic remote refresh on the configured schedule.
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.RefreshCron, func() {
		if err := coordinator.RefreshRemotes(context.Background()); err != nil {
			applog.Error("scheduled remote refresh failed", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid refresh schedule %q: %w", cfg.RefreshCron, err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	// Create MCP server
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "vaultcal",
		Version: version,
	}, nil)

	registerTools(server)

	if err := server.Run(cmd.Context(), &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("error running server: %w", err)
	}

	return nil
}

// buildRegistry constructs one calendar per config declaration, in config
// order.
func buildRegistry(ctx context.Context, cfg *config.Config) (*calendar.Registry, error) {
	registry := calendar.NewRegistry()

	for _, cc := range cfg.Calendars {
		info := types.CalendarInfo{ID: cc.ID, Name: cc.Name, Color: cc.Color}

		var cal calendar.Calendar
		switch types.CalendarKind(cc.Kind) {
		case types.KindFullNote:
			cal = calendar.NewFullNote(fileSystem, info, cc.Dir)
		case types.KindDailyNote:
			cal = calendar.NewDailyNote(fileSystem, info, cc.Folder)
		case types.KindShelve:
			cal = calendar.NewShelve(fileSystem, info, cc.Property, cc.Value)
		case types.KindRemoteICS:
			cal = calendar.NewICS(info, cc.URL)
		case types.KindRemoteGoogle:
			svc, err := calendar.NewGoogleService(ctx, cc.Credentials, cc.Token)
			if err != nil {
				return nil, fmt.Errorf("calendar %q: %w", cc.ID, err)
			}
			lookBehind := time.Duration(cfg.LookBehindDays) * 24 * time.Hour
			lookAhead := time.Duration(cfg.LookAheadDays) * 24 * time.Hour
			cal = calendar.NewGoogle(info, svc, cc.CalendarID, lookBehind, lookAhead)
		default:
			return nil, fmt.Errorf("calendar %q: unknown kind %q", cc.ID, cc.Kind)
		}

		if err := registry.Register(cal); err != nil {
			return nil, err
		}
	}

	return registry, nil
}
