package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/warrenhq/warren/internal/warrenerr"
)

// alarmResult is the output payload for alarm commands.
type alarmResult struct {
	Set         bool   `json:"set"`
	ScheduledAt string `json:"scheduled_at,omitempty"`
}

// NewAlarmCommand creates the alarm command group.
func NewAlarmCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &objectFlags{}
	cmd := &cobra.Command{
		Use:   "alarm",
		Short: "Inspect and manage one object's alarm",
	}
	flags.register(cmd)
	cmd.AddCommand(newAlarmGetCommand(rootOpts, flags))
	cmd.AddCommand(newAlarmSetCommand(rootOpts, flags))
	cmd.AddCommand(newAlarmDeleteCommand(rootOpts, flags))
	return cmd
}

func newAlarmGetCommand(rootOpts *RootOptions, flags *objectFlags) *cobra.Command {
	return &cobra.Command{
		Use:           "get",
		Short:         "Show the object's scheduled alarm",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			engine, closeDB, err := flags.open()
			if err != nil {
				return err
			}
			defer closeDB()

			at, ok, err := engine.GetAlarm(cmd.Context())
			if err != nil {
				return f.Failure(ExitFailure, err)
			}
			if rootOpts.Format == "json" {
				res := alarmResult{Set: ok}
				if ok {
					res.ScheduledAt = at.UTC().Format(time.RFC3339Nano)
				}
				return f.Success(res)
			}
			if !ok {
				return f.Success("no alarm set")
			}
			return f.Success(at.UTC().Format(time.RFC3339Nano))
		},
	}
}

func newAlarmSetCommand(rootOpts *RootOptions, flags *objectFlags) *cobra.Command {
	return &cobra.Command{
		Use:           "set <rfc3339-time|duration>",
		Short:         "Schedule the object's alarm",
		Long:          "Schedule the object's single alarm, replacing any prior one.\nAccepts an RFC 3339 timestamp or a relative duration like 5m.",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())

			at, err := parseAlarmTime(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid alarm time", err)
			}

			engine, closeDB, err := flags.open()
			if err != nil {
				return err
			}
			defer closeDB()

			if err := engine.SetAlarm(cmd.Context(), at); err != nil {
				return f.Failure(ExitFailure, err)
			}
			return f.Success(fmt.Sprintf("alarm set for %s", at.UTC().Format(time.RFC3339Nano)))
		},
	}
}

func newAlarmDeleteCommand(rootOpts *RootOptions, flags *objectFlags) *cobra.Command {
	return &cobra.Command{
		Use:           "delete",
		Short:         "Clear the object's alarm",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			engine, closeDB, err := flags.open()
			if err != nil {
				return err
			}
			defer closeDB()

			if err := engine.DeleteAlarm(cmd.Context()); err != nil {
				return f.Failure(ExitFailure, err)
			}
			return f.Success("alarm cleared")
		},
	}
}

// parseAlarmTime accepts either an absolute RFC 3339 timestamp or a
// duration relative to now.
func parseAlarmTime(s string) (time.Time, error) {
	if at, err := time.Parse(time.RFC3339, s); err == nil {
		return at, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return time.Time{}, warrenerr.Newf(warrenerr.CodeValidation,
			"%q is neither an RFC 3339 time nor a duration", s)
	}
	return time.Now().Add(d), nil
}
