package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"longbox/internal/app"
	"longbox/internal/fingerprint"
)

func newBlockedCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blocked",
		Short: "Manage the blocked page hash registry",
	}
	cmd.AddCommand(newBlockedListCommand(ctx))
	cmd.AddCommand(newBlockedAddCommand(ctx))
	cmd.AddCommand(newBlockedRemoveCommand(ctx))
	cmd.AddCommand(newBlockedExportCommand(ctx))
	cmd.AddCommand(newBlockedImportCommand(ctx))
	return cmd
}

func newBlockedListCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List blocked page hashes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(func(a *app.App) error {
				hashes, err := a.Blocked.List(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					type entry struct {
						Digest    string `json:"digest"`
						Label     string `json:"label,omitempty"`
						Thumbnail bool   `json:"thumbnail"`
						CreatedAt string `json:"createdAt"`
					}
					entries := make([]entry, len(hashes))
					for i, h := range hashes {
						entries[i] = entry{
							Digest:    h.Digest,
							Label:     h.Label,
							Thumbnail: len(h.Thumbnail) > 0,
							CreatedAt: h.CreatedAt.Format("2006-01-02 15:04:05"),
						}
					}
					return writeJSON(cmd, entries)
				}
				if len(hashes) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No blocked hashes.")
					return nil
				}
				rows := make([][]string, len(hashes))
				for i, h := range hashes {
					rows[i] = []string{
						h.Digest,
						h.Label,
						yesNo(len(h.Thumbnail) > 0),
						h.CreatedAt.Format("2006-01-02 15:04:05"),
					}
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Digest", "Label", "Thumbnail", "Created"}, rows))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

// newBlockedAddCommand blocks either a literal digest or, with --file, the
// digest of an image file on disk.
func newBlockedAddCommand(ctx *commandContext) *cobra.Command {
	var (
		label     string
		filePath  string
		thumbPath string
	)

	cmd := &cobra.Command{
		Use:   "add [digest]",
		Short: "Block a page hash",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var digest string
			switch {
			case filePath != "":
				data, err := os.ReadFile(filePath)
				if err != nil {
					return fmt.Errorf("read file: %w", err)
				}
				digest = fingerprint.Digest(data)
			case len(args) == 1:
				digest = args[0]
			default:
				return fmt.Errorf("provide a digest argument or --file")
			}

			var thumbnail []byte
			if thumbPath != "" {
				data, err := os.ReadFile(thumbPath)
				if err != nil {
					return fmt.Errorf("read thumbnail: %w", err)
				}
				thumbnail = data
			}

			return ctx.withApp(func(a *app.App) error {
				if err := a.Blocked.Block(cmd.Context(), label, digest, thumbnail); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "blocked %s\n", digest)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&label, "label", "", "Human-readable label for the hash")
	cmd.Flags().StringVar(&filePath, "file", "", "Compute the digest from this image file")
	cmd.Flags().StringVar(&thumbPath, "thumbnail", "", "Attach this image as the thumbnail")
	return cmd
}

func newBlockedRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <digest>",
		Short: "Unblock a page hash and restore matching pages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(func(a *app.App) error {
				if err := a.Blocked.Unblock(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "unblocked %s\n", args[0])
				return nil
			})
		},
	}
}

func newBlockedExportCommand(ctx *commandContext) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export blocked hashes as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(func(a *app.App) error {
				if output == "" || output == "-" {
					return a.Blocked.Export(cmd.Context(), cmd.OutOrStdout())
				}
				file, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create export file: %w", err)
				}
				defer file.Close()
				if err := a.Blocked.Export(cmd.Context(), file); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "exported to %s\n", output)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write CSV to this file instead of stdout")
	return cmd
}

func newBlockedImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import blocked hashes from CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open import file: %w", err)
			}
			defer file.Close()

			return ctx.withApp(func(a *app.App) error {
				added, skipped, err := a.Blocked.Import(cmd.Context(), file)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d hashes (%d already present)\n", added, skipped)
				return nil
			})
		},
	}
}
