package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"longbox/internal/logging"
	"longbox/internal/pagecache"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the page cache",
	}
	cmd.AddCommand(newCachePathCommand(ctx))
	cmd.AddCommand(newCacheStatsCommand(ctx))
	return cmd
}

// The cache is pure filesystem layout, so these commands skip the full
// service graph and the database open that comes with it.
func (c *commandContext) openCache() (*pagecache.Cache, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return pagecache.New(cfg.Paths.CacheDir, logging.NewNop()), nil
}

func newCachePathCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "path <digest>",
		Short: "Show the cache path for a page digest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := ctx.openCache()
			if err != nil {
				return err
			}
			path, ok := cache.PathFor(args[0])
			if !ok {
				return fmt.Errorf("malformed digest %q", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

func newCacheStatsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show page cache entry count and size",
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := ctx.openCache()
			if err != nil {
				return err
			}
			entries, totalBytes, err := cache.Stats()
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, map[string]any{
					"root":       cache.Root(),
					"entries":    entries,
					"totalBytes": totalBytes,
				})
			}
			rows := [][]string{
				{"Root", cache.Root()},
				{"Entries", strconv.Itoa(entries)},
				{"Size", formatBytes(totalBytes)},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Field", "Value"}, rows))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
