package migration

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
)

// CLI prints migration results for the `frogteam migrate` command.
type CLI struct {
	migrator Migrator
	out      io.Writer
}

// NewCLI writes to stdout by default.
func NewCLI(m Migrator) *CLI {
	return &CLI{migrator: m, out: os.Stdout}
}

func (c *CLI) SetOutput(w io.Writer) { c.out = w }

func (c *CLI) RunUp(ctx context.Context) error {
	fmt.Fprintln(c.out, "Applying migrations...")
	if err := c.migrator.Up(ctx); err != nil {
		return err
	}
	return c.printVersion(ctx, "Migrations complete")
}

func (c *CLI) RunDown(ctx context.Context) error {
	fmt.Fprintln(c.out, "Rolling back last migration...")
	if err := c.migrator.Down(ctx); err != nil {
		return err
	}
	return c.printVersion(ctx, "Rollback complete")
}

func (c *CLI) RunDownAll(ctx context.Context) error {
	fmt.Fprintln(c.out, "Rolling back all migrations...")
	if err := c.migrator.DownAll(ctx); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "All migrations rolled back.")
	return nil
}

func (c *CLI) RunSteps(ctx context.Context, n int) error {
	if n == 0 {
		return fmt.Errorf("steps must not be zero")
	}
	if n > 0 {
		fmt.Fprintf(c.out, "Applying %d migration(s)...\n", n)
	} else {
		fmt.Fprintf(c.out, "Rolling back %d migration(s)...\n", -n)
	}
	if err := c.migrator.Steps(ctx, n); err != nil {
		return err
	}
	return c.printVersion(ctx, "Complete")
}

func (c *CLI) RunGoto(ctx context.Context, version uint) error {
	fmt.Fprintf(c.out, "Migrating to version %d...\n", version)
	if err := c.migrator.Goto(ctx, version); err != nil {
		return err
	}
	return c.printVersion(ctx, "Migration complete")
}

func (c *CLI) RunForce(ctx context.Context, version int) error {
	if err := c.migrator.Force(ctx, version); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Version forced to %d\n", version)
	return nil
}

func (c *CLI) RunVersion(ctx context.Context) error {
	version, dirty, err := c.migrator.Version(ctx)
	if err != nil {
		return err
	}
	if version == 0 {
		fmt.Fprintln(c.out, "No migrations applied yet.")
		return nil
	}
	fmt.Fprintf(c.out, "Current version: %d", version)
	if dirty {
		fmt.Fprint(c.out, color.New(color.FgRed).Sprint(" (dirty)"))
	}
	fmt.Fprintln(c.out)
	return nil
}

// RunStatus prints one row per embedded migration followed by totals.
func (c *CLI) RunStatus(ctx context.Context) error {
	versions, err := c.migrator.Status(ctx)
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		fmt.Fprintln(c.out, "No migrations found.")
		return nil
	}

	w := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tNAME\tSTATUS")
	for _, v := range versions {
		fmt.Fprintf(w, "%06d\t%s\t%s\n", v.Number, v.Name, statusLabel(v))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	info, err := c.migrator.Info(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "\nTotal: %d, Applied: %d, Pending: %d\n", info.Total, info.Applied, info.Pending)
	return nil
}

func (c *CLI) RunInfo(ctx context.Context) error {
	info, err := c.migrator.Info(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, "Migration Information:")
	fmt.Fprintf(c.out, "  Current Version:    %d\n", info.Current)
	fmt.Fprintf(c.out, "  Dirty:              %v\n", info.Dirty)
	fmt.Fprintf(c.out, "  Total Migrations:   %d\n", info.Total)
	fmt.Fprintf(c.out, "  Applied Migrations: %d\n", info.Applied)
	fmt.Fprintf(c.out, "  Pending Migrations: %d\n", info.Pending)
	return nil
}

func (c *CLI) printVersion(ctx context.Context, prefix string) error {
	info, err := c.migrator.Info(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s. Current version: %d\n", prefix, info.Current)
	return nil
}

func statusLabel(v Version) string {
	switch {
	case v.Dirty:
		return color.New(color.FgRed).Sprint("Dirty")
	case v.Applied:
		return color.New(color.FgGreen).Sprint("Applied")
	default:
		return color.New(color.FgYellow).Sprint("Pending")
	}
}
