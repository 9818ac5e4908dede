// reminderctl is an operator tool that works on the reminder store directly,
// bypassing the dialogue layer. It shares the service configuration, so it
// points at whatever database the service uses.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kikilabs/kiki-reminders/internal/config"
	"github.com/kikilabs/kiki-reminders/internal/factory"
	"github.com/kikilabs/kiki-reminders/internal/logger"
	"github.com/kikilabs/kiki-reminders/internal/reminders"
	"github.com/kikilabs/kiki-reminders/internal/timeparse"
)

var (
	ownerFlag string
	rootCmd   = &cobra.Command{
		Use:   "reminderctl",
		Short: "Operator CLI for the reminder store",
	}
)

func newService() (*reminders.Service, *config.Config, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, nil, err
	}
	log := logger.New("reminderctl")
	st, err := factory.NewStore(context.Background(), cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return reminders.NewService(st).WithLookupPolicy(cfg.CandidateLimit, cfg.Tolerance()), cfg, nil
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&ownerFlag, "owner", "o", "", "Owner ID (required)")
	_ = rootCmd.MarkPersistentFlagRequired("owner")

	listCmd := &cobra.Command{
		Use:   "list TASK",
		Short: "List pending reminders for a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cfg, err := newService()
			if err != nil {
				return err
			}
			matches, err := svc.FindCandidates(context.Background(), ownerFlag, args[0], nil)
			if err != nil {
				return err
			}
			for _, m := range matches {
				fmt.Fprintf(os.Stdout, "%s\t%s\t%s\n", m.ID, m.Task, timeparse.FormatDisplay(m.RemindAt, cfg.Location()))
			}
			return nil
		},
	}
	rootCmd.AddCommand(listCmd)

	var atFlag string
	addCmd := &cobra.Command{
		Use:   "add TASK",
		Short: "Add a pending reminder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cfg, err := newService()
			if err != nil {
				return err
			}
			at, err := time.Parse(time.RFC3339, atFlag)
			if err != nil {
				return fmt.Errorf("--at must be RFC3339, e.g. 2025-07-03T20:00:00+08:00: %w", err)
			}
			r, err := svc.Create(context.Background(), ownerFlag, args[0], at)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "%s\t%s\t%s\n", r.ID, r.Task, timeparse.FormatDisplay(r.RemindAt, cfg.Location()))
			return nil
		},
	}
	addCmd.Flags().StringVar(&atFlag, "at", "", "Remind time, RFC3339 (required)")
	_ = addCmd.MarkFlagRequired("at")
	rootCmd.AddCommand(addCmd)

	completeCmd := &cobra.Command{
		Use:   "complete REMINDER_ID",
		Short: "Mark a reminder completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := newService()
			if err != nil {
				return err
			}
			return svc.Complete(context.Background(), ownerFlag, args[0])
		},
	}
	rootCmd.AddCommand(completeCmd)

	deleteCmd := &cobra.Command{
		Use:   "delete REMINDER_ID",
		Short: "Delete a pending reminder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, err := newService()
			if err != nil {
				return err
			}
			return svc.Delete(context.Background(), ownerFlag, args[0])
		},
	}
	rootCmd.AddCommand(deleteCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
