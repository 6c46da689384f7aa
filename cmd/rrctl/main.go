// main.go - Admin control tool for rankrent
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/term"

	"rankrent/internal"
	"rankrent/internal/analytics"
	"rankrent/internal/seeder"
	"rankrent/internal/sites"
	"rankrent/internal/timeframe"
	"rankrent/internal/tracking"
)

const (
	defaultShutdownTimeout = 30 * time.Second
)

// Command defines the interface for all command implementations
type Command interface {
	// Name returns the command name
	Name() string
	// Description returns the command description
	Description() string
	// Execute runs the command with the given app and args
	Execute(ctx context.Context, app *internal.Application, args []string) error
}

// The set of available commands
var commands = []Command{
	&MigrateCommand{},
	&ReprocessCommand{},
	&ReportCommand{},
	&SeedCommand{},
	&StatusCommand{},
	&HelpCommand{},
}

// stdout is where command results are written; tests swap it.
var stdout io.Writer = os.Stdout

func main() {
	flag.Parse()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := <-sigChan
		log.Printf("Received signal: %v, initiating cleanup...", sig)
		cancel()
	}()

	cmdName, args := parseArgs(os.Args[1:])

	cmd := findCommand(cmdName)
	if cmd == nil {
		showUsageAndExit()
	}

	app, err := internal.NewApp()
	if err != nil {
		log.Printf("Warning: Failed to initialize app: %v", err)
		log.Println("Proceeding with limited functionality...")
	}

	if err := cmd.Execute(ctx, app, args); err != nil {
		shutdown(app)
		log.Fatalf("Command failed: %v", err)
	}
	shutdown(app)

	log.Printf("Command %s completed successfully", cmd.Name())
}

func shutdown(app *internal.Application) {
	if app == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := app.Shutdown(shutdownCtx); err != nil {
		log.Printf("Warning: Cleanup error: %v", err)
	}
}

// MigrateCommand runs database migrations
type MigrateCommand struct{}

func (c *MigrateCommand) Name() string        { return "migrate" }
func (c *MigrateCommand) Description() string { return "Runs database migrations" }

func (c *MigrateCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if app == nil {
		return fmt.Errorf("app initialization failed, cannot run migrations")
	}

	log.Println("Running database migrations...")
	if err := app.DBManager.MigrateDatabase(); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	log.Println("Migrations completed successfully")
	return nil
}

// windowArgs parses "<site> <from> <to> [tz]" into a site and a window.
func windowArgs(name string, args []string) (uint, timeframe.Range, error) {
	if len(args) < 3 {
		return 0, timeframe.Range{}, fmt.Errorf("usage: %s <site_id> <from YYYY-MM-DD> <to YYYY-MM-DD> [tz]", name)
	}
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil || id == 0 {
		return 0, timeframe.Range{}, fmt.Errorf("invalid site id %q", args[0])
	}
	params := timeframe.ParserParams{FromDate: args[1], ToDate: args[2]}
	if len(args) > 3 {
		params.Tz = args[3]
	}
	rng, err := timeframe.NewParser().Parse(params)
	if err != nil {
		return 0, timeframe.Range{}, err
	}
	return uint(id), rng, nil
}

// ReprocessCommand re-matches a window against the site's current goals
type ReprocessCommand struct{}

func (c *ReprocessCommand) Name() string { return "reprocess" }
func (c *ReprocessCommand) Description() string {
	return "Re-matches events of <site_id> <from> <to> against the current goals"
}

func (c *ReprocessCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	siteID, rng, err := windowArgs(c.Name(), args)
	if err != nil {
		return err
	}
	if app == nil {
		return fmt.Errorf("app initialization failed, cannot reprocess")
	}

	res, err := app.Services().Processor.Reprocess(ctx, siteID, rng)
	if err != nil {
		return fmt.Errorf("reprocess failed: %w", err)
	}
	fmt.Fprintf(stdout, "Scanned %d events, recorded %d conversions in %s\n", res.Scanned, res.Recorded, rng)
	return nil
}

// ReportCommand prints the aggregate report of a window as JSON
type ReportCommand struct{}

func (c *ReportCommand) Name() string { return "report" }
func (c *ReportCommand) Description() string {
	return "Prints the aggregate report of <site_id> <from> <to> [tz] as JSON"
}

func (c *ReportCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	siteID, rng, err := windowArgs(c.Name(), args)
	if err != nil {
		return err
	}
	if app == nil {
		return fmt.Errorf("app initialization failed, cannot build report")
	}

	report, err := app.Services().Engine.Aggregate(ctx, siteID, rng, analytics.Filter{})
	if err != nil {
		return err
	}
	enc := json.NewEncoder(stdout)
	if isTerminal(stdout) {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(map[string]any{"range": rng, "report": report})
}

// isTerminal reports whether w is an interactive terminal; piped output stays compact.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// SeedCommand populates a site with demo traffic and matches it against its goals
type SeedCommand struct{}

func (c *SeedCommand) Name() string { return "seed" }
func (c *SeedCommand) Description() string {
	return "Seeds a site with demo traffic (-domain, -sessions, -days)"
}

func (c *SeedCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	domain := fs.String("domain", "demo.localhost", "site domain, registered when missing")
	count := fs.Int("sessions", 2000, "number of sessions to generate")
	days := fs.Int("days", 30, "spread sessions over the last n days")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if app == nil {
		return fmt.Errorf("unable to initialise app")
	}

	db := app.DBManager.GetConnection()
	site, err := sites.GetSiteByDomain(db, *domain)
	if err != nil {
		site = &sites.Site{Domain: *domain, Name: *domain}
		if err := sites.CreateSite(db, site); err != nil {
			return fmt.Errorf("failed to register %s: %w", *domain, err)
		}
	}

	services := app.Services()
	stored, err := seeder.New(tracking.NewStore(db, app.Logger), nil, app.Logger, *count, seeder.WithDays(*days)).Seed(ctx, site.ID)
	if err != nil {
		return err
	}
	res, err := services.Processor.Drain(ctx, site.ID)
	if err != nil {
		return fmt.Errorf("failed to process seeded events: %w", err)
	}
	fmt.Fprintf(stdout, "Seeded %d events for %s (site %d), recorded %d conversions\n", stored, site.Domain, site.ID, res.Recorded)
	return nil
}

// StatusCommand implements a command to check the system status
type StatusCommand struct{}

func (c *StatusCommand) Name() string        { return "status" }
func (c *StatusCommand) Description() string { return "Shows the current system status" }

func (c *StatusCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	if app == nil {
		return fmt.Errorf("cannot check status: app initialization failed")
	}

	db := app.DBManager.GetConnection()

	list, err := sites.ListSites(db)
	if err != nil {
		return fmt.Errorf("database error: %w", err)
	}
	var events int64
	if err := db.Model(&tracking.TrackingEvent{}).Count(&events).Error; err != nil {
		return fmt.Errorf("database error: %w", err)
	}

	fmt.Fprintln(stdout, "System Status:")
	fmt.Fprintln(stdout, "- Database: Connected")
	fmt.Fprintf(stdout, "- Sites: %d\n", len(list))
	fmt.Fprintf(stdout, "- Tracking events: %d\n", events)
	fmt.Fprintf(stdout, "- GeoIP: %t\n", app.Geo != nil && app.Geo.Enabled())

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get SQL DB: %w", err)
	}
	stats := sqlDB.Stats()
	fmt.Fprintf(stdout, "- Max Open Connections: %d\n", stats.MaxOpenConnections)
	fmt.Fprintf(stdout, "- Open Connections: %d\n", stats.OpenConnections)
	fmt.Fprintf(stdout, "- In Use: %d\n", stats.InUse)
	fmt.Fprintf(stdout, "- Idle: %d\n", stats.Idle)
	return nil
}

// HelpCommand implements a command to show usage information
type HelpCommand struct{}

func (c *HelpCommand) Name() string        { return "help" }
func (c *HelpCommand) Description() string { return "Shows usage information" }

func (c *HelpCommand) Execute(ctx context.Context, app *internal.Application, args []string) error {
	printUsage(stdout)
	return nil
}

// Helper functions

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: rrctl [command] [args...]")
	fmt.Fprintln(w, "Available commands:")
	for _, cmd := range commands {
		fmt.Fprintf(w, "  %s: %s\n", cmd.Name(), cmd.Description())
	}
}

// parseArgs splits the command name from its arguments
func parseArgs(args []string) (string, []string) {
	if len(args) == 0 {
		return "help", []string{}
	}
	return args[0], args[1:]
}

// findCommand finds a command by name
func findCommand(name string) Command {
	for _, cmd := range commands {
		if cmd.Name() == name {
			return cmd
		}
	}
	return nil
}

// showUsageAndExit shows usage information and exits
func showUsageAndExit() {
	printUsage(os.Stdout)
	os.Exit(1)
}
