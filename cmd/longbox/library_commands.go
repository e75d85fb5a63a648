package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"longbox/internal/app"
	"longbox/internal/library"
)

func newLibraryCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "library",
		Short: "Inspect and manage the comic library",
	}
	cmd.AddCommand(newLibraryListCommand(ctx))
	cmd.AddCommand(newLibraryShowCommand(ctx))
	cmd.AddCommand(newLibraryMarkCommand(ctx, "scrape", "Queue comics for metadata scraping", markScrape))
	cmd.AddCommand(newLibraryMarkCommand(ctx, "purge", "Mark comics for removal", markPurge))
	cmd.AddCommand(newLibraryMarkCommand(ctx, "rebuild", "Mark comics for archive rebuild", markRebuild))
	return cmd
}

func newLibraryListCommand(ctx *commandContext) *cobra.Command {
	var (
		jsonOutput bool
		stateStr   string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List comics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(func(a *app.App) error {
				var (
					comics []*library.Comic
					err    error
				)
				if stateStr != "" {
					state, ok := library.ParseComicState(stateStr)
					if !ok {
						return fmt.Errorf("unknown state %q", stateStr)
					}
					comics, err = a.Store.ComicsInState(cmd.Context(), state)
				} else {
					comics, err = a.Store.ListComics(cmd.Context())
				}
				if err != nil {
					return err
				}

				if jsonOutput {
					return writeJSON(cmd, comicRows(comics))
				}
				if len(comics) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No comics.")
					return nil
				}
				rows := make([][]string, len(comics))
				for i, comic := range comics {
					rows[i] = []string{
						strconv.FormatInt(comic.ID, 10),
						string(comic.State),
						comic.Series,
						comic.Number,
						comic.Filename,
					}
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "State", "Series", "No", "File"}, rows, 0))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&stateStr, "state", "", "Only comics in this state")
	return cmd
}

func newLibraryShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a comic with its pages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid comic id %q", args[0])
			}
			return ctx.withApp(func(a *app.App) error {
				comic, err := a.Store.GetComic(cmd.Context(), id)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, comicDetail(comic))
				}

				rows := [][]string{
					{"ID", strconv.FormatInt(comic.ID, 10)},
					{"File", comic.Filename},
					{"Kind", string(comic.Kind)},
					{"State", string(comic.State)},
					{"Series", comic.Series},
					{"Title", comic.Title},
					{"Number", comic.Number},
					{"Year", strconv.Itoa(comic.Year)},
					{"Source", comic.SourceName},
					{"Scrape queued", yesNo(comic.BatchScrape)},
					{"Purging", yesNo(comic.Purging)},
					{"Rebuild queued", yesNo(comic.DeletePagesOnRebuild)},
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Field", "Value"}, rows))

				if len(comic.Pages) == 0 {
					return nil
				}
				pageRows := make([][]string, len(comic.Pages))
				for i, page := range comic.Pages {
					pageRows[i] = []string{
						strconv.Itoa(page.Position),
						page.Filename,
						string(page.State),
						fmt.Sprintf("%dx%d", page.Width, page.Height),
						page.Digest,
					}
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Pos", "File", "State", "Size", "Digest"}, pageRows, 0))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func markScrape(comic *library.Comic)  { comic.BatchScrape = true }
func markPurge(comic *library.Comic)   { comic.Purging = true }
func markRebuild(comic *library.Comic) { comic.DeletePagesOnRebuild = true }

// newLibraryMarkCommand sets a queue flag on one or more comics; the next
// matching pipeline run picks them up.
func newLibraryMarkCommand(ctx *commandContext, name, short string, mark func(*library.Comic)) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <id>...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, len(args))
			for i, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid comic id %q", arg)
				}
				ids[i] = id
			}
			return ctx.withApp(func(a *app.App) error {
				for _, id := range ids {
					comic, err := a.Store.GetComic(cmd.Context(), id)
					if err != nil {
						return err
					}
					mark(comic)
					if err := a.Store.UpdateComic(cmd.Context(), comic); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "comic %d queued for %s\n", id, name)
				}
				return nil
			})
		},
	}
}

type comicRow struct {
	ID       int64  `json:"id"`
	Filename string `json:"filename"`
	Kind     string `json:"kind"`
	State    string `json:"state"`
	Series   string `json:"series,omitempty"`
	Title    string `json:"title,omitempty"`
	Number   string `json:"number,omitempty"`
	Year     int    `json:"year,omitempty"`
}

func comicRows(comics []*library.Comic) []comicRow {
	rows := make([]comicRow, len(comics))
	for i, comic := range comics {
		rows[i] = comicRow{
			ID:       comic.ID,
			Filename: comic.Filename,
			Kind:     string(comic.Kind),
			State:    string(comic.State),
			Series:   comic.Series,
			Title:    comic.Title,
			Number:   comic.Number,
			Year:     comic.Year,
		}
	}
	return rows
}

type pageRow struct {
	Position int    `json:"position"`
	Filename string `json:"filename"`
	State    string `json:"state"`
	Digest   string `json:"digest,omitempty"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
}

func comicDetail(comic *library.Comic) map[string]any {
	pages := make([]pageRow, len(comic.Pages))
	for i, page := range comic.Pages {
		pages[i] = pageRow{
			Position: page.Position,
			Filename: page.Filename,
			State:    string(page.State),
			Digest:   page.Digest,
			Width:    page.Width,
			Height:   page.Height,
		}
	}
	row := comicRows([]*library.Comic{comic})[0]
	return map[string]any{
		"comic": row,
		"pages": pages,
	}
}
