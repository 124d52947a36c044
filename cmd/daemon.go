package cmd

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	renewerrors "github.com/srl-labs/vault-ssh-renew/errors"
)

func daemonCmd(o *Options) (*cobra.Command, error) {
	c := &cobra.Command{
		Use:   "daemon",
		Short: "run the renewal on a schedule until interrupted",
		Long: "daemon runs the renewal on a cron schedule. Runs never overlap, a failed run " +
			"triggers the failure hook and the daemon keeps going.",
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			return daemonFn(cobraCmd.Context(), o)
		},
	}

	c.Flags().StringVarP(&o.Daemon.Schedule, "schedule", "", o.Daemon.Schedule,
		"cron expression or descriptor, e.g: \"0 3 * * *\", \"@daily\", \"@every 12h\"")
	c.Flags().BoolVarP(&o.Daemon.RunOnStart, "run-on-start", "", o.Daemon.RunOnStart,
		"run the renewal once before waiting for the first scheduled time")

	return c, nil
}

func daemonFn(ctx context.Context, o *Options) error {
	w, err := o.ToWorkflow()
	if err != nil {
		return err
	}

	job := func() {
		id := newRunID()
		log.Infof("Starting renewal run %s", id)

		// failures are logged and hooked by the workflow
		if err := w.Run(ctx); err != nil {
			log.Warnf("Renewal run %s failed", id)
			return
		}

		log.Infof("Renewal run %s finished", id)
	}

	sched, err := newScheduler(o.Daemon.Schedule, job)
	if err != nil {
		return err
	}

	if o.Daemon.RunOnStart {
		job()
	}

	sched.Start()
	log.Infof("Renewal scheduled with %q", o.Daemon.Schedule)

	<-ctx.Done()

	log.Info("Stopping scheduler")
	<-sched.Stop().Done()

	return nil
}

// newScheduler returns a stopped scheduler running job on schedule.
// A job that is still running when it is due again is skipped.
func newScheduler(schedule string, job func()) (*cron.Cron, error) {
	logger := cron.PrintfLogger(log.StandardLogger())

	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	if _, err := c.AddFunc(schedule, job); err != nil {
		return nil, errors.Wrapf(renewerrors.ErrIncorrectInput, "invalid schedule %q: %v", schedule, err)
	}

	return c, nil
}

// newRunID returns a short random id that tells scheduled runs apart in the log.
func newRunID() string {
	s, _ := uuid.New().MarshalText() // .MarshalText() always return a nil error
	return string(s[:8])
}
