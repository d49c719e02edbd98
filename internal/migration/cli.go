package migration

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
)

// Usage lists the subcommands understood by CLI.Run.
const Usage = "migrate up|down|reset|status|info|version|verify|steps N|goto V|force V"

// CLI renders migrator operations for `sceneflow migrate`.
type CLI struct {
	migrator Migrator
	output   io.Writer
}

// NewCLI writes to stdout until SetOutput is called.
func NewCLI(migrator Migrator) *CLI {
	return &CLI{migrator: migrator, output: os.Stdout}
}

// SetOutput sets the output writer for CLI messages
func (c *CLI) SetOutput(w io.Writer) {
	c.output = w
}

// Run dispatches a subcommand and its argument, as typed after "migrate".
func (c *CLI) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: " + Usage)
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "up":
		return c.RunUp(ctx)
	case "down":
		return c.RunDown(ctx)
	case "reset":
		return c.RunDownAll(ctx)
	case "status":
		return c.RunStatus(ctx)
	case "info":
		return c.RunInfo(ctx)
	case "version":
		return c.RunVersion(ctx)
	case "verify":
		return c.RunVerify(ctx)
	}

	n, err := intArg(cmd, rest)
	if err != nil {
		return err
	}
	switch cmd {
	case "steps":
		return c.RunSteps(ctx, n)
	case "goto":
		if n < 0 {
			return fmt.Errorf("goto: version must not be negative")
		}
		return c.RunGoto(ctx, uint(n))
	case "force":
		return c.RunForce(ctx, n)
	}
	return fmt.Errorf("unknown migrate command %q (usage: %s)", cmd, Usage)
}

func intArg(cmd string, args []string) (int, error) {
	switch cmd {
	case "steps", "goto", "force":
	default:
		return 0, fmt.Errorf("unknown migrate command %q (usage: %s)", cmd, Usage)
	}
	if len(args) == 0 {
		return 0, fmt.Errorf("%s: missing numeric argument", cmd)
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("%s: %w", cmd, err)
	}
	return n, nil
}

// apply prints banner, runs op and reports the resulting version with the
// narrative tables it implies.
func (c *CLI) apply(ctx context.Context, banner string, op func(context.Context) error) error {
	fmt.Fprintln(c.output, banner)
	if err := op(ctx); err != nil {
		return err
	}
	version, dirty, err := c.migrator.Version(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.output, "Done. Current version: %d", version)
	if dirty {
		fmt.Fprint(c.output, " (dirty)")
	}
	fmt.Fprintln(c.output)
	if tables := TablesAt(version); len(tables) > 0 {
		fmt.Fprintf(c.output, "Narrative tables: %s\n", strings.Join(tables, ", "))
	}
	return nil
}

func (c *CLI) RunUp(ctx context.Context) error {
	return c.apply(ctx, "Applying pending migrations...", c.migrator.Up)
}

func (c *CLI) RunDown(ctx context.Context) error {
	return c.apply(ctx, "Rolling back the last migration...", c.migrator.Down)
}

// RunDownAll drops every narrative table.
func (c *CLI) RunDownAll(ctx context.Context) error {
	return c.apply(ctx, "Rolling back all migrations...", c.migrator.DownAll)
}

func (c *CLI) RunSteps(ctx context.Context, n int) error {
	banner := fmt.Sprintf("Applying %d migration(s)...", n)
	if n < 0 {
		banner = fmt.Sprintf("Rolling back %d migration(s)...", -n)
	}
	return c.apply(ctx, banner, func(ctx context.Context) error { return c.migrator.Steps(ctx, n) })
}

func (c *CLI) RunGoto(ctx context.Context, version uint) error {
	return c.apply(ctx, fmt.Sprintf("Migrating to version %d...", version),
		func(ctx context.Context) error { return c.migrator.Goto(ctx, version) })
}

// RunForce records version without running migrations.
func (c *CLI) RunForce(ctx context.Context, version int) error {
	return c.apply(ctx, fmt.Sprintf("Forcing version to %d...", version),
		func(ctx context.Context) error { return c.migrator.Force(ctx, version) })
}

func (c *CLI) RunVersion(ctx context.Context) error {
	version, dirty, err := c.migrator.Version(ctx)
	if err != nil {
		return err
	}
	if version == 0 {
		fmt.Fprintln(c.output, "No migrations applied yet.")
		return nil
	}

	fmt.Fprintf(c.output, "Current version: %d", version)
	if dirty {
		fmt.Fprint(c.output, " (dirty)")
	}
	fmt.Fprintln(c.output)
	return nil
}

// RunStatus prints one row per embedded migration, then the totals.
func (c *CLI) RunStatus(ctx context.Context) error {
	statuses, err := c.migrator.Status(ctx)
	if err != nil {
		return err
	}
	if len(statuses) == 0 {
		fmt.Fprintln(c.output, "No migrations found.")
		return nil
	}

	w := tabwriter.NewWriter(c.output, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tNAME\tSTATUS\tTABLES")
	applied := 0
	for _, s := range statuses {
		state := "Pending"
		switch {
		case s.Dirty:
			state = "Dirty"
		case s.Applied:
			state = "Applied"
		}
		if s.Applied {
			applied++
		}
		fmt.Fprintf(w, "%06d\t%s\t%s\t%s\n", s.Version, s.Name, state, strings.Join(s.Tables, ","))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(c.output, "\nTotal: %d, Applied: %d, Pending: %d\n", len(statuses), applied, len(statuses)-applied)
	return nil
}

func (c *CLI) RunInfo(ctx context.Context) error {
	info, err := c.migrator.Info(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(c.output, "Migration Information:")
	fmt.Fprintf(c.output, "  Current Version:    %d\n", info.CurrentVersion)
	fmt.Fprintf(c.output, "  Dirty:              %v\n", info.Dirty)
	fmt.Fprintf(c.output, "  Total Migrations:   %d\n", info.TotalMigrations)
	fmt.Fprintf(c.output, "  Applied Migrations: %d\n", info.AppliedMigrations)
	fmt.Fprintf(c.output, "  Pending Migrations: %d\n", info.PendingMigrations)
	return nil
}

// RunVerify checks that the tables of the applied version exist.
func (c *CLI) RunVerify(ctx context.Context) error {
	if err := c.migrator.Verify(ctx); err != nil {
		return err
	}
	version, _, err := c.migrator.Version(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.output, "Schema OK at version %d: %s\n", version, strings.Join(TablesAt(version), ", "))
	return nil
}
