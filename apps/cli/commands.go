package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/tilsley/scmreader/pkg/config"
	"github.com/tilsley/scmreader/pkg/logging"
	"github.com/tilsley/scmreader/pkg/readerset"
	"github.com/tilsley/scmreader/pkg/reading"
)

// cli carries the state shared by every subcommand.
type cli struct {
	stdout, stderr io.Writer
	configPath     string
	log            *slog.Logger
	readers        *reading.URLReaders
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	c := &cli{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:          "scmreader",
		Short:        "Read files, trees and glob searches from source-control hosts by URL",
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return c.setup()
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&c.configPath, "config", "",
		"integration config file (default $"+config.EnvPath+" or "+config.DefaultPath+")")

	root.AddCommand(c.readCmd(), c.treeCmd(), c.searchCmd(), c.readersCmd())
	return root
}

func (c *cli) setup() error {
	format := os.Getenv("LOG_FORMAT")
	if format == "" {
		format = "text"
	}
	c.log = logging.NewWithWriter(c.stderr, "", format, os.Getenv("LOG_LEVEL"))

	path := config.Path(c.configPath)
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	c.readers, err = readerset.Build(cfg, reading.Deps{Log: c.log})
	if err != nil {
		return err
	}
	c.log.Debug("readers registered", "config", path, "readers", c.readers.String())
	return nil
}

// notModified reports err as a successful no-op when it is NotModifiedError.
func (c *cli) notModified(err error) bool {
	if !reading.IsNotModified(err) {
		return false
	}
	fmt.Fprintln(c.stdout, "not modified") //nolint:errcheck
	return true
}

func (c *cli) readCmd() *cobra.Command {
	var etag string
	cmd := &cobra.Command{
		Use:   "read <url>",
		Short: "Print the content of a single file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := c.readers.ReadURL(cmd.Context(), args[0], &reading.ReadURLOptions{ETag: etag})
			if c.notModified(err) {
				return nil
			}
			if err != nil {
				return err
			}
			body := resp.Stream()
			defer body.Close() //nolint:errcheck // response body close errors are non-actionable after reading

			if resp.ETag != "" {
				c.log.Info("read", "url", args[0], "etag", resp.ETag)
			}
			_, err = io.Copy(c.stdout, body)
			return err
		},
	}
	cmd.Flags().StringVar(&etag, "etag", "", "etag from a previous read; prints \"not modified\" if still current")
	return cmd
}

func (c *cli) treeCmd() *cobra.Command {
	var etag, glob, out string
	cmd := &cobra.Command{
		Use:   "tree <url>",
		Short: "List or extract every file below a repository path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := &reading.ReadTreeOptions{ETag: etag}
			if glob != "" {
				if !doublestar.ValidatePattern(glob) {
					return fmt.Errorf("invalid --glob pattern %q", glob)
				}
				opts.Filter = reading.GlobFilter(glob)
			}

			tree, err := c.readers.ReadTree(cmd.Context(), args[0], opts)
			if c.notModified(err) {
				return nil
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(c.stdout, "etag: %s\n", tree.ETag) //nolint:errcheck
			if out != "" {
				dir, err := tree.Dir(out)
				if err != nil {
					return err
				}
				fmt.Fprintf(c.stdout, "wrote %d files to %s\n", len(tree.Files()), dir) //nolint:errcheck
				return nil
			}
			for _, f := range tree.Files() {
				fmt.Fprintf(c.stdout, "%8d  %s\n", len(f.Content), f.Path) //nolint:errcheck
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&etag, "etag", "", "etag from a previous tree read; skips the download if still current")
	cmd.Flags().StringVar(&glob, "glob", "", "keep only files whose tree-relative path matches this pattern")
	cmd.Flags().StringVar(&out, "out", "", "write the files below this directory instead of listing them")
	return cmd
}

func (c *cli) searchCmd() *cobra.Command {
	var etag string
	cmd := &cobra.Command{
		Use:   "search <url-with-glob>",
		Short: "List the files matching the glob in a URL's path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.readers.Search(cmd.Context(), args[0], &reading.SearchOptions{ETag: etag})
			if c.notModified(err) {
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(c.stdout, "etag: %s\n", res.ETag) //nolint:errcheck
			for _, f := range res.Files {
				fmt.Fprintln(c.stdout, f.URL) //nolint:errcheck
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&etag, "etag", "", "etag from a previous search; skips the download if still current")
	return cmd
}

func (c *cli) readersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "readers",
		Short: "List the configured readers in dispatch order",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			for _, r := range c.readers.Readers() {
				fmt.Fprintln(c.stdout, r.String()) //nolint:errcheck
			}
			return nil
		},
	}
}
