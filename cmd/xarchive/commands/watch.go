package commands

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ibeckermayer/xarchive/internal/app"
	"github.com/ibeckermayer/xarchive/internal/config"
	"github.com/ibeckermayer/xarchive/internal/logger"
	"github.com/ibeckermayer/xarchive/internal/scheduler"
)

var watchNow bool

func init() {
	watchCmd.Flags().BoolVar(&watchNow, "now", false, "Run every job once at startup, before its first scheduled time")
	rootCmd.AddCommand(watchCmd)
}

// scheduledRun is one validated [[schedule.jobs]] entry bound to the app.
type scheduledRun struct {
	name string
	cron string
	job  scheduler.Job
}

func scheduledRuns(a *app.App, jobs []config.Job) ([]scheduledRun, error) {
	if len(jobs) == 0 {
		return nil, errors.New("no [[schedule.jobs]] configured")
	}

	runs := make([]scheduledRun, 0, len(jobs))
	for _, job := range jobs {
		run, err := job.RunConfig()
		if err != nil {
			return nil, err
		}
		runs = append(runs, scheduledRun{
			name: job.Name,
			cron: job.Cron,
			job: func(ctx context.Context) error {
				out, err := a.Archive(ctx, run, nil)
				if out != nil {
					logger.Info("scheduled run finished", "job", job.Name,
						"status", out.Run.Status, "posts", out.Run.PostCount, "new", out.Run.NewPosts)
				}
				return err
			},
		})
	}
	return runs, nil
}

// replaceJobs swaps every scheduled job for runs.
func replaceJobs(s *scheduler.Scheduler, runs []scheduledRun) error {
	for _, info := range s.ListJobs() {
		s.RemoveJob(info.Name)
	}
	for _, r := range runs {
		if err := s.AddJob(r.name, r.cron, r.job); err != nil {
			return err
		}
	}
	return nil
}

// reloadJobs rereads the config and reschedules its jobs. On any error the
// current jobs stay in place.
func reloadJobs(a *app.App, s *scheduler.Scheduler) error {
	if err := a.ReloadConfig(); err != nil {
		return err
	}
	runs, err := scheduledRuns(a, a.Config().Schedule.Jobs)
	if err != nil {
		return err
	}
	s.SetTimeout(a.Config().Schedule.JobTimeout())
	return replaceJobs(s, runs)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Runs the [[schedule.jobs]] from the config until interrupted. SIGHUP reloads the config.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, closeApp, err := newApp(browserOpener(cfg))
		if err != nil {
			return err
		}
		defer closeApp()

		runs, err := scheduledRuns(a, cfg.Schedule.Jobs)
		if err != nil {
			return err
		}

		s, err := scheduler.New(cfg.Schedule.Timezone)
		if err != nil {
			return err
		}
		s.SetTimeout(cfg.Schedule.JobTimeout())
		if err := replaceJobs(s, runs); err != nil {
			return err
		}

		ctx := cmd.Context()
		s.Start(ctx)
		for _, info := range s.ListJobs() {
			logger.Info("next run", "job", info.Name, "at", info.NextRun)
		}

		if watchNow {
			go func() {
				for _, r := range runs {
					if ctx.Err() != nil {
						return
					}
					s.RunNow(r.name, r.job)
				}
			}()
		}

		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)

		for {
			select {
			case <-hup:
				if err := reloadJobs(a, s); err != nil {
					logger.Error("reload failed, keeping current jobs", "error", err)
					continue
				}
				logger.Info("configuration reloaded", "jobs", len(s.ListJobs()))
			case <-ctx.Done():
				logger.Info("shutting down, waiting for running jobs")
				<-s.Stop().Done()
				return nil
			}
		}
	},
}
