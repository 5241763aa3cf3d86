// Package cli provides the command-line interface for masterblog.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matt-wil/masterblog/internal/browser"
	"github.com/matt-wil/masterblog/internal/client"
	"github.com/matt-wil/masterblog/internal/config"
	"github.com/matt-wil/masterblog/internal/store"
)

// Version, Commit and BuildTime are set via ldflags at build time.
var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)

// Execute runs the root command. Errors the command already logged are not
// printed again.
func Execute() error {
	cmd := newRootCmd()
	err := cmd.ExecuteContext(context.Background())
	var le *loggedError
	if err != nil && !errors.As(err, &le) {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
	}
	return err
}

// loggedError marks an error that was already logged.
type loggedError struct{ err error }

func (e *loggedError) Error() string { return e.err.Error() }
func (e *loggedError) Unwrap() error { return e.err }

func logged(err error) error {
	if err == nil {
		return nil
	}
	return &loggedError{err: err}
}

type rootOptions struct {
	baseURL string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "masterblog",
		Short: "Browse and edit posts on a Masterblog API",
		Long:  "masterblog serves a web front end for a Masterblog posts API and offers the same actions from the terminal.",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVar(&opts.baseURL, "base-url", "", "API base URL for this command (saved as the new default)")

	root.AddCommand(
		newServeCmd(),
		newUseCmd(),
		newListCmd(opts),
		newCreateCmd(opts),
		newUpdateCmd(opts),
		newDeleteCmd(opts),
		newReactCmd(opts, "like"),
		newReactCmd(opts, "dislike"),
		newCommentCmd(opts),
		newSeedCmd(opts),
		newStatusCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "masterblog %s (%s) built %s\n", Version, Commit, BuildTime)
		},
	}
}

// session is the state one client command works with.
type session struct {
	cfg      config.Config
	settings store.Settings
	browser  *browser.Browser
	logger   *log.Logger
}

func openSession(cmd *cobra.Command) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	settings, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	logger := log.New(cmd.ErrOrStderr(), "", log.LstdFlags)
	newClient := func(baseURL string) *client.Client {
		return client.NewWithTimeout(baseURL, cfg.HTTPTimeout)
	}
	return &session{
		cfg:      cfg,
		settings: settings,
		browser:  browser.New(settings, newClient, logger),
		logger:   logger,
	}, nil
}

func (s *session) Close() {
	if err := s.settings.Close(); err != nil {
		s.logger.Printf("close store: %v", err)
	}
}

// baseURL picks the URL a command acts on: the --base-url flag, then the
// saved value, then the configured default.
func (s *session) baseURL(ctx context.Context, opts *rootOptions) (string, error) {
	if v := strings.TrimSpace(opts.baseURL); v != "" {
		return v, nil
	}
	saved, err := s.browser.SavedBaseURL(ctx, store.OwnerCLI)
	if err == nil {
		return saved, nil
	}
	if !errors.Is(err, browser.ErrNoBaseURL) {
		return "", err
	}
	if s.cfg.DefaultBaseURL != "" {
		return s.cfg.DefaultBaseURL, nil
	}
	return "", errors.New("no base url saved: run 'masterblog use <base-url>' or pass --base-url")
}

// apply runs action against the resolved base URL and prints the reloaded list.
func apply(cmd *cobra.Command, opts *rootOptions, action func(b *browser.Browser) browser.Action) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	baseURL, err := s.baseURL(ctx, opts)
	if err != nil {
		return err
	}
	page, err := s.browser.Apply(ctx, store.OwnerCLI, baseURL, action(s.browser))
	if err != nil {
		return logged(err)
	}
	printPage(cmd.OutOrStdout(), page)
	return nil
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid post id %q", arg)
	}
	return id, nil
}
