// Command authstate prepares and checks the authenticated browser storage
// state used by the notes e2e suite.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kuitang/notes-e2e/internal/browserauth"
	"github.com/kuitang/notes-e2e/internal/config"
	"github.com/kuitang/notes-e2e/internal/obs"
	"github.com/kuitang/notes-e2e/internal/session"
)

func main() {
	obs.Init()
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var projectRoot string

	cmd := &cobra.Command{
		Use:   "authstate",
		Short: "Manage the e2e suite's stored Supabase session",
		Long: `Manage the Playwright storage state holding the suite's Supabase session.

Examples:
  authstate setup            # Log in through the UI and write the storage state
  authstate ensure           # Refresh the session if it is close to expiry
  authstate ensure --force   # Refresh even when the session is fresh
  authstate inspect          # Show issuer and expiry without printing tokens
`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&projectRoot, "root", "", "Project root holding .env (default: nearest go.mod)")

	load := func() (*config.Config, error) {
		return config.Load(projectRoot)
	}
	cmd.AddCommand(setupCmd(load), ensureCmd(load), inspectCmd(load))
	return cmd
}

type configLoader func() (*config.Config, error)

func setupCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Log in as the persistent test user and write the storage state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if err := cfg.RequireBaseURL(); err != nil {
				return err
			}
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			if err := newRegenerator(cfg).ReAuthenticate(ctx, cfg.BaseURL); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "storage state written to %s\n", cfg.AuthStatePath)
			return nil
		},
	}
}

func ensureCmd(load configLoader) *cobra.Command {
	var (
		force      bool
		outputJSON bool
	)
	cmd := &cobra.Command{
		Use:   "ensure",
		Short: "Run one session check, refreshing or regenerating as needed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			return runEnsure(ctx, cmd.OutOrStdout(), newManager(cfg, session.SystemClock), force, outputJSON)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Refresh even when the session is outside the safety window")
	cmd.Flags().BoolVar(&outputJSON, "json", false, "Output the result as JSON")
	return cmd
}

func inspectCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Describe the stored session without printing tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return runInspect(cmd.Context(), cmd.OutOrStdout(), session.NewStore(cfg.AuthStatePath), cfg.SafetyWindow, session.SystemClock)
		},
	}
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx := obs.WithCorrelation(parent, obs.Correlation{RunID: obs.NewRunID()})
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

func newRegenerator(cfg *config.Config) *browserauth.Regenerator {
	return &browserauth.Regenerator{
		StatePath: cfg.AuthStatePath,
		Headless:  cfg.Headless,
		Timeout:   cfg.BrowserTimeout,
	}
}

func newManager(cfg *config.Config, clock session.Clock) *session.Manager {
	opts := session.Options{
		Store: session.NewStore(cfg.AuthStatePath),
		Refresher: &session.Refresher{
			AuthURL: cfg.AuthURL,
			APIKey:  cfg.AnonKey,
			Timeout: cfg.BrowserTimeout,
			Clock:   clock,
		},
		BaseURL:      cfg.BaseURL,
		SafetyWindow: cfg.SafetyWindow,
		Clock:        clock,
		FunctionsURL: cfg.FunctionsURL,
		APIKey:       cfg.AnonKey,
	}
	if cfg.BaseURL != "" {
		opts.ReAuthenticator = newRegenerator(cfg)
	}
	return session.NewManager(opts)
}

type ensureReport struct {
	State      string   `json:"state"`
	Path       []string `json:"path"`
	ExpiresAt  string   `json:"expires_at,omitempty"`
	Refreshed  bool     `json:"refreshed"`
	Recovered  bool     `json:"recovered"`
	RefreshErr string   `json:"refresh_error,omitempty"`
	Error      string   `json:"error,omitempty"`
}

func runEnsure(ctx context.Context, w io.Writer, m *session.Manager, force, outputJSON bool) error {
	res, err := m.Ensure(ctx, session.EnsureOptions{ForceRefresh: force})

	report := ensureReport{State: res.State.String(), Refreshed: res.Refreshed(), Recovered: res.Recovered()}
	for _, s := range res.Path {
		report.Path = append(report.Path, s.String())
	}
	if res.Session != nil && res.Session.ExpiresAt != nil {
		report.ExpiresAt = time.Unix(*res.Session.ExpiresAt, 0).UTC().Format(time.RFC3339)
	}
	if res.RefreshErr != nil {
		report.RefreshErr = res.RefreshErr.Error()
	}
	if err != nil {
		report.Error = err.Error()
	}

	if outputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(report); encErr != nil {
			return encErr
		}
	} else {
		fmt.Fprintf(w, "state:      %s\n", report.State)
		fmt.Fprintf(w, "path:       %v\n", report.Path)
		if report.ExpiresAt != "" {
			fmt.Fprintf(w, "expires at: %s\n", report.ExpiresAt)
		}
		if report.RefreshErr != "" {
			fmt.Fprintf(w, "refresh:    %s\n", report.RefreshErr)
		}
	}
	return err
}

func runInspect(ctx context.Context, w io.Writer, store *session.Store, window time.Duration, clock session.Clock) error {
	sess, err := store.LoadSession(ctx)
	if err != nil {
		return err
	}
	now := clock.Now()

	issuer, err := session.Issuer(sess)
	if err != nil {
		issuer = fmt.Sprintf("unknown (%v)", err)
	}
	fmt.Fprintf(w, "storage state: %s\n", store.Path)
	fmt.Fprintf(w, "issuer:        %s\n", issuer)
	fmt.Fprintf(w, "token type:    %s\n", sess.TokenType)
	fmt.Fprintf(w, "refreshable:   %t\n", sess.RefreshToken != "")
	if ttl, ok := sess.TTL(now); ok {
		fmt.Fprintf(w, "expires at:    %s\n", time.Unix(*sess.ExpiresAt, 0).UTC().Format(time.RFC3339))
		fmt.Fprintf(w, "ttl:           %s\n", ttl.Truncate(time.Second))
	} else {
		fmt.Fprintf(w, "expires at:    never\n")
	}
	fmt.Fprintf(w, "needs refresh: %t\n", sess.NeedsRefresh(now, window))
	return nil
}
