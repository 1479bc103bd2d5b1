package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"normalizer/internal/contenthash"
	"normalizer/internal/resultcache"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the gain cache",
	}
	cacheCmd.AddCommand(newCacheListCommand(ctx))
	cacheCmd.AddCommand(newCacheHashCommand(ctx))
	cacheCmd.AddCommand(newCacheLookupCommand(ctx))
	return cacheCmd
}

func newCacheListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list [dir]",
		Short: "List cached gains for a folder",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger(cmd)
			if err != nil {
				return err
			}
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			if dir, err = filepath.Abs(dir); err != nil {
				return err
			}
			path := cfg.CachePath(dir)
			cache, err := resultcache.Open(path, resultcache.Options{ReadOnly: true, RequireExisting: true, Logger: logger})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Cache: %s\n", path)
			entries := cache.Entries()
			if len(entries) == 0 {
				fmt.Fprintln(out, "Cache is empty")
				return nil
			}
			rows := make([][]string, 0, len(entries))
			for _, entry := range entries {
				rows = append(rows, []string{entry.Key.String(), fmt.Sprintf("%+.1f", entry.Value)})
			}
			fmt.Fprintln(out, renderTable([]string{"Key", "Gain (dB)"}, rows, []columnAlignment{alignLeft, alignRight}))
			return nil
		},
	}
}

func newCacheHashCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "hash <file>...",
		Short: "Print the cache key of each file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			hasher, err := contenthash.New(cfg.Cache.Hash)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, path := range args {
				key, err := hasher.File(path)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s  %s\n", key, path)
			}
			return nil
		},
	}
}

func newCacheLookupCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <file>",
		Short: "Show the cached gain for a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger(cmd)
			if err != nil {
				return err
			}
			input, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			hasher, err := contenthash.New(cfg.Cache.Hash)
			if err != nil {
				return err
			}
			key, err := hasher.File(input)
			if err != nil {
				return err
			}
			cache, err := resultcache.Open(cfg.CachePath(filepath.Dir(input)), resultcache.Options{Logger: logger})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if gain, ok := cache.Lookup(key); ok {
				fmt.Fprintf(out, "%s: %+.1f dB (%s)\n", filepath.Base(input), gain, key.Short())
				return nil
			}
			fmt.Fprintf(out, "%s: not cached (%s)\n", filepath.Base(input), key.Short())
			return nil
		},
	}
}
