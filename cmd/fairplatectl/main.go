// Command fairplatectl runs analytics and maintenance jobs from the shell and
// reads stored reports, using the same configuration as the server.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v2"

	"github.com/ZanzyTHEbar/fairplate-analytics/internal/app"
	"github.com/ZanzyTHEbar/fairplate-analytics/internal/config"
	"github.com/ZanzyTHEbar/fairplate-analytics/internal/database"
	"github.com/ZanzyTHEbar/fairplate-analytics/internal/monitoring"
	"github.com/ZanzyTHEbar/fairplate-analytics/internal/ratelimit"
	"github.com/ZanzyTHEbar/fairplate-analytics/internal/reports"
	"github.com/ZanzyTHEbar/fairplate-analytics/internal/scheduler"
	"github.com/ZanzyTHEbar/fairplate-analytics/internal/security"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newApp(os.Stdout).RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:      "fairplatectl",
		Usage:     "run FairPlate analytics jobs and inspect reports",
		Writer:    out,
		ErrWriter: os.Stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config.yaml",
				EnvVars: []string{config.ConfigPathEnvVar},
			},
		},
		Before: func(c *cli.Context) error {
			if path := c.String("config"); path != "" {
				return os.Setenv(config.ConfigPathEnvVar, path)
			}
			return nil
		},
		Commands: []*cli.Command{
			jobCommand(app.JobQuality, "compute and store the data quality report"),
			jobCommand(app.JobFairness, "compute and store the recommendation fairness report"),
			{
				Name:      "maintenance",
				Usage:     "run one maintenance job",
				ArgsUsage: "<" + strings.Join(app.MaintenanceJobs(), "|") + ">",
				Action: func(c *cli.Context) error {
					job := c.Args().First()
					if !slices.Contains(app.MaintenanceJobs(), job) {
						return fmt.Errorf("unknown maintenance job %q", job)
					}
					return runJob(c, job)
				},
			},
			{
				Name:  "report",
				Usage: "read stored reports",
				Subcommands: []*cli.Command{
					{
						Name:      "get",
						Usage:     "print a report document",
						ArgsUsage: "<collection> [doc]",
						Action:    getReport,
					},
					{
						Name:      "history",
						Usage:     "list history documents, newest first",
						ArgsUsage: "<collection>",
						Flags: []cli.Flag{
							&cli.IntFlag{Name: "limit", Value: 30},
						},
						Action: reportHistory,
					},
				},
			},
			{
				Name:  "migrate",
				Usage: "create or update the database schema",
				Action: func(c *cli.Context) error {
					cfg, err := config.Load()
					if err != nil {
						return err
					}
					db, err := database.Open(c.Context, cfg.Database)
					if err != nil {
						return err
					}
					defer db.Close()
					fmt.Fprintf(c.App.Writer, "schema up to date (%s)\n", db.Driver())
					return nil
				},
			},
			{
				Name:  "token",
				Usage: "issue an admin token for the trigger API",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "subject", Value: "fairplatectl"},
					&cli.DurationFlag{Name: "ttl", Value: time.Hour},
				},
				Action: func(c *cli.Context) error {
					cfg, err := config.Load()
					if err != nil {
						return err
					}
					sm := security.NewSecurityMiddleware(security.SecurityConfig{JWTSecret: cfg.Security.JWTSecret})
					token, err := sm.IssueAdminToken(c.String("subject"), c.Duration("ttl"))
					if err != nil {
						return err
					}
					fmt.Fprintln(c.App.Writer, token)
					return nil
				},
			},
			{
				Name:      "ratelimit-reset",
				Usage:     "clear the trigger budget of a client IP",
				ArgsUsage: "<ip>",
				Action: func(c *cli.Context) error {
					ip := c.Args().First()
					if ip == "" {
						return errors.New("an IP address is required")
					}
					cfg, err := config.Load()
					if err != nil {
						return err
					}
					redisClient, err := ratelimit.NewRedisClient(c.Context, cfg.Redis)
					if err != nil {
						return err
					}
					defer redisClient.Close()
					limiter := ratelimit.NewRateLimiter(redisClient, ratelimit.DefaultConfig())
					return limiter.Reset(c.Context, ratelimit.ScopeTrigger, ip)
				},
			},
		},
	}
}

func jobCommand(name, usage string) *cli.Command {
	return &cli.Command{
		Name:  name,
		Usage: usage,
		Action: func(c *cli.Context) error {
			return runJob(c, name)
		},
	}
}

func withApp(c *cli.Context, fn func(a *app.App) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := monitoring.NewLoggerWithWriter(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)

	a, err := app.New(c.Context, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func runJob(c *cli.Context, name string) error {
	return withApp(c, func(a *app.App) error {
		summary, err := a.Jobs.Run(c.Context, name, scheduler.TriggerCLI)
		if err != nil {
			return err
		}
		return printJSON(c.App.Writer, summary)
	})
}

func getReport(c *cli.Context) error {
	collection := c.Args().Get(0)
	if collection == "" {
		return errors.New("a collection is required")
	}
	doc := c.Args().Get(1)
	if doc == "" {
		doc = reports.LatestDocID
	}

	return withApp(c, func(a *app.App) error {
		report, err := a.Reports.GetReport(c.Context, collection, doc)
		if err != nil {
			return err
		}
		return printJSON(c.App.Writer, json.RawMessage(report.Payload))
	})
}

func reportHistory(c *cli.Context) error {
	collection := c.Args().First()
	if collection == "" {
		return errors.New("a collection is required")
	}

	return withApp(c, func(a *app.App) error {
		refs, err := a.Reports.ListReports(c.Context, collection, c.Int("limit"))
		if err != nil {
			return err
		}
		return printJSON(c.App.Writer, refs)
	})
}

func printJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}
