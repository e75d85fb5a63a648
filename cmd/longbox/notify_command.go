package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"longbox/internal/app"
)

func newNotifyTestCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "notify-test",
		Short: "Send a test notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(func(a *app.App) error {
				if err := a.Notifier.Test(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "test notification sent")
				return nil
			})
		},
	}
}
