// Command imagesync drives the image feed client from a terminal. Session
// state is persisted in a SQLite store so a login survives between runs.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/cristhianbenitez/ai-image-generator/client"
	"github.com/cristhianbenitez/ai-image-generator/internal/config"
	"github.com/cristhianbenitez/ai-image-generator/internal/logger"
)

type globalFlags struct {
	baseURL   string
	storePath string
	debug     bool
	timeout   time.Duration
}

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// NewRootCmd constructs the root CLI command; exposed for unit testing.
func NewRootCmd() *cobra.Command {
	g := &globalFlags{}
	rootCmd := &cobra.Command{
		Use:           "imagesync",
		Short:         "Browse, bookmark and generate images against the gallery API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := zerolog.WarnLevel
			if g.debug {
				level = zerolog.DebugLevel
			}
			log.Logger = logger.NewConsole(cmd.ErrOrStderr(), level)
		},
	}

	rootCmd.PersistentFlags().StringVar(&g.baseURL, "base-url", "", "API root including /api (overrides IMAGESYNC_BASE_URL)")
	rootCmd.PersistentFlags().StringVar(&g.storePath, "store", "", "SQLite state file (default: user cache dir)")
	rootCmd.PersistentFlags().BoolVarP(&g.debug, "debug", "d", false, "Enable verbose debug output")
	rootCmd.PersistentFlags().DurationVar(&g.timeout, "timeout", 30*time.Second, "Overall command timeout")

	rootCmd.AddCommand(
		newViewCmd(g, client.FeedView, "Show the public feed"),
		newViewCmd(g, client.HistoryView, "Show your generated images"),
		newViewCmd(g, client.CollectionView, "Show your bookmarked images"),
		newBookmarkCmd(g),
		newLoginCmd(g),
		newLogoutCmd(g),
		newGenerateCmd(g),
		newWhoamiCmd(g),
	)
	return rootCmd
}

// session opens a client on the persisted state and restores it. The returned
// func closes the client, persisting the final snapshot.
func (g *globalFlags) session(ctx context.Context) (*client.Client, func(), error) {
	cfg, err := config.New()
	if err != nil {
		return nil, nil, err
	}
	if g.baseURL != "" {
		cfg.BaseURL = g.baseURL
		if err := cfg.Validate(); err != nil {
			return nil, nil, err
		}
	}
	if g.debug {
		cfg.Debug = true
	}
	cfg.StorePath = g.storePath
	if cfg.StorePath == "" {
		cfg.StorePath, err = defaultStorePath()
		if err != nil {
			return nil, nil, err
		}
	}

	level := logger.ParseLevel(cfg.LogLevel)
	if g.debug {
		level = zerolog.DebugLevel
	}
	c, err := client.NewFromConfig(cfg, log.Logger.Level(level))
	if err != nil {
		return nil, nil, err
	}
	if _, err := c.Restore(ctx); err != nil {
		log.Warn().Err(err).Msg("could not restore session")
	}
	return c, func() { _ = c.Close() }, nil
}

func defaultStorePath() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("locate cache dir: %w", err)
	}
	dir = filepath.Join(dir, "imagesync")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return filepath.Join(dir, "state.db"), nil
}

func (g *globalFlags) withTimeout(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), g.timeout)
}

func newViewCmd(g *globalFlags, v client.View, short string) *cobra.Command {
	var pages int
	cmd := &cobra.Command{
		Use:   string(v),
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := g.withTimeout(cmd)
			defer cancel()
			c, done, err := g.session(ctx)
			if err != nil {
				return err
			}
			defer done()

			if err := c.Refresh(ctx, v); err != nil {
				return err
			}
			for i := 1; i < pages && c.View(v).HasMore; i++ {
				if err := c.RequestFetchMore(ctx, v); err != nil {
					return err
				}
			}
			st := c.View(v)
			log.Debug().Str("view", string(v)).Int("page", st.CurrentPage).Int("items", len(st.Items)).Msg("view loaded")
			printImages(cmd.OutOrStdout(), st.Items, c)
			if st.HasMore {
				fmt.Fprintf(cmd.OutOrStdout(), "... more available (page %d loaded)\n", st.CurrentPage)
			}
			return nil
		},
	}
	if v != client.CollectionView {
		cmd.Flags().IntVar(&pages, "pages", 1, "Number of pages to load")
	}
	return cmd
}

func printImages(w io.Writer, items []client.Image, c *client.Client) {
	for _, img := range items {
		mark := " "
		if c.BookmarkStatus(img.ID).IsBookmarked {
			mark = "*"
		}
		fmt.Fprintf(w, "%s %d\t%s\t%s\n", mark, img.ID, img.Resolution, img.Prompt)
	}
}

func newBookmarkCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "bookmark <image-id>",
		Short: "Toggle the bookmark of an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid image id %q", args[0])
			}
			ctx, cancel := g.withTimeout(cmd)
			defer cancel()
			c, done, err := g.session(ctx)
			if err != nil {
				return err
			}
			defer done()

			if err := c.RequestToggleBookmark(ctx, id); err != nil {
				return err
			}
			state := "removed from"
			if c.BookmarkStatus(id).IsBookmarked {
				state = "added to"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Image %d %s your collection\n", id, state)
			return nil
		},
	}
}

func newLoginCmd(g *globalFlags) *cobra.Command {
	var data string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Complete a login with the OAuth callback data, or print the login URL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := g.withTimeout(cmd)
			defer cancel()
			c, done, err := g.session(ctx)
			if err != nil {
				return err
			}
			defer done()

			if data == "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Open %s and rerun with --data set to the callback URL\n", c.LoginURL())
				return nil
			}
			if err := c.LoginWithCallback(ctx, data); err != nil {
				return err
			}
			u := c.CurrentUser()
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%d)\n", u.Name, u.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&data, "data", "", "Callback URL, query string or JSON payload")
	return cmd
}

func newLogoutCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := g.withTimeout(cmd)
			defer cancel()
			c, done, err := g.session(ctx)
			if err != nil {
				return err
			}
			defer done()

			if err := c.RequestLogout(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func newGenerateCmd(g *globalFlags) *cobra.Command {
	var form client.GenerateForm
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate an image and save it to your history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := g.withTimeout(cmd)
			defer cancel()
			c, done, err := g.session(ctx)
			if err != nil {
				return err
			}
			defer done()

			start := time.Now()
			img, err := c.RequestGenerateAndSave(ctx, form)
			if err != nil {
				return err
			}
			log.Debug().Int64("image_id", img.ID).Dur("elapsed", time.Since(start)).Msg("image saved")
			fmt.Fprintf(cmd.OutOrStdout(), "Saved image %d\n", img.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&form.Prompt, "prompt", "", "Prompt (required)")
	cmd.Flags().StringVar(&form.NegativePrompt, "negative", "", "Negative prompt")
	cmd.Flags().StringVar(&form.Color, "color", "", "Dominant color hint")
	cmd.Flags().StringVar(&form.Resolution, "resolution", "1024x1024", "WIDTHxHEIGHT")
	cmd.Flags().Float64Var(&form.Guidance, "guidance", 7.5, "Guidance scale")
	cmd.Flags().Int64Var(&form.Seed, "seed", 0, "Seed (0 picks one)")
	_ = cmd.MarkFlagRequired("prompt")
	return cmd
}

func newWhoamiCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Print the restored user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := g.withTimeout(cmd)
			defer cancel()
			c, done, err := g.session(ctx)
			if err != nil {
				return err
			}
			defer done()

			u := c.CurrentUser()
			if u == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "anonymous")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%d)\n", u.Name, u.ID)
			return nil
		},
	}
}
