package main

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/target/mmk-autoapply/internal/adapters/submitters"
	"github.com/target/mmk-autoapply/internal/bootstrap"
	"github.com/target/mmk-autoapply/internal/devseed"
	"github.com/target/mmk-autoapply/internal/domain/model"
	"github.com/target/mmk-autoapply/internal/service"
)

func migrateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withDatabase(cmd.Context(), func(ctx context.Context, db *sql.DB) error {
				if err := bootstrap.RunMigrations(ctx, db, c.logger); err != nil {
					return err
				}
				return writef(cmd.OutOrStdout(), "migrations applied\n")
			})
		},
	}
}

func seedCmd(c *cli) *cobra.Command {
	var allowRemote bool
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the development job and resume catalog into Postgres",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.guardRemoteHost(cmd.ErrOrStderr(), allowRemote, "insert development fixtures"); err != nil {
				return err
			}
			fixtures, err := devseed.DefaultFixtures()
			if err != nil {
				return err
			}
			return c.withDatabase(cmd.Context(), func(ctx context.Context, db *sql.DB) error {
				if err := bootstrap.RunMigrations(ctx, db, c.logger); err != nil {
					return err
				}
				if err := devseed.Run(ctx, devseed.SQLTarget{DB: db}, fixtures, c.logger); err != nil {
					return err
				}
				return writef(cmd.OutOrStdout(), "seeded %d jobs and %d resumes\n", len(fixtures.Jobs), len(fixtures.Resumes))
			})
		},
	}
	cmd.Flags().BoolVar(&allowRemote, "allow-remote", false, "Permit seeding a database that is not on localhost")
	return cmd
}

func submittersCmd(c *cli) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "submitters",
		Short: "Validate the submitter registry file and list its submitters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := file
			if path == "" {
				path = c.cfg.Submitters.File
			}
			cfg := c.cfg.Submitters
			cfg.File = path
			// Browser submitters are declared but never launched here.
			cfg.BrowserEnabled = false
			set, err := bootstrap.BuildSubmitters(cfg, c.logger)
			if err != nil {
				return err
			}
			defer func() { _ = set.Close() }()
			return printSubmitters(cmd, set.Registry)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "Submitter registry file (defaults to SUBMITTERS_FILE)")
	return cmd
}

func printSubmitters(cmd *cobra.Command, registry *submitters.Registry) error {
	out := cmd.OutOrStdout()
	for _, name := range registry.Names() {
		if err := writef(out, "%s\n", name); err != nil {
			return err
		}
	}
	return nil
}

func applyCmd(c *cli) *cobra.Command {
	var (
		userID   string
		resumeID string
		reapply  bool
	)
	cmd := &cobra.Command{
		Use:   "apply <job-id>",
		Short: "Queue an automated submission for a user and job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withRuntime(cmd.Context(), func(ctx context.Context, rt *runtime) error {
				res, err := rt.Services.Applications.RequestApply(ctx, service.RequestApplyParams{
					UserID:   userID,
					JobID:    args[0],
					ResumeID: resumeID,
					Reapply:  reapply,
				})
				if err != nil {
					return err
				}
				state := "existing"
				if res.Created {
					state = "queued"
				}
				return writef(cmd.OutOrStdout(), "%s application=%s task=%s status=%s\n",
					state, res.Application.ID, res.TaskID, res.Application.Status)
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User the application belongs to")
	cmd.Flags().StringVar(&resumeID, "resume", "", "Resume to submit (defaults to the user's default resume)")
	cmd.Flags().BoolVar(&reapply, "reapply", false, "Retry a failed or rejected application")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func listCmd(c *cli) *cobra.Command {
	var (
		userID string
		status string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a user's applications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := model.ApplicationListOptions{Limit: limit}
			if status != "" {
				st := model.ApplicationStatus(strings.ToLower(status))
				opts.Status = &st
			}
			return c.withRuntime(cmd.Context(), func(ctx context.Context, rt *runtime) error {
				views, err := rt.Services.Applications.ListApplications(ctx, userID, opts)
				if err != nil {
					return err
				}
				return printApplications(cmd, views)
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User whose applications to list")
	cmd.Flags().StringVar(&status, "status", "", "Only list applications in this status")
	cmd.Flags().IntVar(&limit, "limit", model.DefaultApplicationListLimit, "Maximum rows to print")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func printApplications(cmd *cobra.Command, views []*model.ApplicationView) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	if err := writef(tw, "ID\tJOB\tCOMPANY\tSTATUS\tUPDATED\tREASON\n"); err != nil {
		return err
	}
	for _, v := range views {
		company, title := "", v.JobID
		if v.Job != nil {
			company, title = v.Job.Company, v.Job.Title
		}
		reason := ""
		if v.FailureReason != nil {
			reason = *v.FailureReason
		}
		if err := writef(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			v.ID, title, company, v.Status, v.UpdatedAt.Format(time.RFC3339), reason); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func cancelCmd(c *cli) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "cancel <task-id>",
		Short: "Cancel a pending submission task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withRuntime(cmd.Context(), func(ctx context.Context, rt *runtime) error {
				app, err := rt.Services.Applications.CancelApply(ctx, userID, args[0])
				if err != nil {
					return err
				}
				return writef(cmd.OutOrStdout(), "canceled task=%s application=%s status=%s\n", args[0], app.ID, app.Status)
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User that owns the task")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func logsCmd(c *cli) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "logs <application-id>",
		Short: "Print the submission step log of an application",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withRuntime(cmd.Context(), func(ctx context.Context, rt *runtime) error {
				entries, err := rt.Services.Applications.ListLogs(ctx, userID, args[0])
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				if err := writef(tw, "TIME\tATTEMPT\tSTEP\tSTATUS\tMESSAGE\n"); err != nil {
					return err
				}
				for _, e := range entries {
					msg := ""
					if e.Message != nil {
						msg = *e.Message
					}
					if err := writef(tw, "%s\t%d\t%s\t%s\t%s\n",
						e.CreatedAt.Format(time.RFC3339), e.Attempt, e.Step, e.Status, msg); err != nil {
						return err
					}
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User that owns the application")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func reapCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "reap",
		Short: "Run one lease recovery and log retention pass",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withRuntime(cmd.Context(), func(ctx context.Context, rt *runtime) error {
				reaper, err := service.NewReaperService(service.ReaperServiceOptions{
					Repo:   rt.Store.Reaper,
					Config: c.cfg.Reaper,
					Logger: c.logger,
				})
				if err != nil {
					return err
				}
				if err := reaper.RunOnce(ctx); err != nil {
					return err
				}
				return writef(cmd.OutOrStdout(), "reaper pass complete\n")
			})
		},
	}
}

func workerCmd(c *cli) *cobra.Command {
	var concurrency int
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run submission workers in the foreground until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			runnerCfg := c.cfg.ApplyRunner
			if concurrency > 0 {
				runnerCfg.Concurrency = concurrency
			}
			set, err := bootstrap.BuildSubmitters(c.cfg.Submitters, c.logger)
			if err != nil {
				return err
			}
			defer func() { _ = set.Close() }()

			return c.withRuntime(cmd.Context(), func(ctx context.Context, rt *runtime) error {
				defer rt.Services.Queue.Stop()
				err := bootstrap.RunApplyRunner(ctx, bootstrap.ApplyRunnerConfig{
					Config:     runnerCfg,
					Services:   rt.Services,
					Submitters: set.Registry,
					Logger:     c.logger,
				})
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
		},
	}
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Worker count (defaults to APPLY_RUNNER_CONCURRENCY)")
	return cmd
}
