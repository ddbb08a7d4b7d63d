package main

import (
	"context"
	"fmt"

	doclient "github.com/goliatone/go-doclient"
	"github.com/goliatone/go-doclient/repository"
	goerrors "github.com/goliatone/go-errors"
	"github.com/spf13/cobra"
)

// Commands declare their access rules through annotations, the same metadata
// the navigation guard evaluates for views.
const (
	annotationRequiresAuth  = "requires_auth"
	annotationRequiresAdmin = "requires_admin"
)

var requiresAuth = map[string]string{annotationRequiresAuth: "true"}
var requiresAdmin = map[string]string{annotationRequiresAuth: "true", annotationRequiresAdmin: "true"}

type app struct {
	store *repository.TokenStore
}

// newRootCmd builds a fresh command tree, tests call it once per run.
func newRootCmd() *cobra.Command {
	var configFile string
	a := &app{}

	cmd := &cobra.Command{
		Use:          "doclient",
		Short:        "Terminal client for the document backend",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd, configFile)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file (default ./doclient.yaml)")
	flags.String("base-url", "", "backend base address, e.g. http://localhost:5000/api")
	flags.Duration("timeout", 0, "request timeout")
	flags.Int("per-page", 0, "documents per page")
	flags.String("token-db", "", "SQLite DSN where the session token is kept")
	flags.String("log-level", "", "log level: debug, info, warn or error")

	cmd.AddCommand(
		newLoginCmd(),
		newLogoutCmd(),
		newWhoamiCmd(),
		newRegisterCmd(),
		newPasswdCmd(),
		newProfileCmd(),
		newDocsCmd(),
		newCategoriesCmd(),
	)
	return cmd
}

func (a *app) setup(cmd *cobra.Command, configFile string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(cmd, configFile)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "could not load configuration")
	}

	logger := newLogger(cmd.ErrOrStderr(), cfg.LogLevel)

	store, err := repository.Open(ctx, cfg.TokenDB)
	if err != nil {
		return err
	}
	a.store = store

	nav := doclient.NavigatorFunc(func(_ context.Context, route string) {
		fmt.Fprintln(cmd.ErrOrStderr(), redirectHint(cfg, route))
	})

	dc, err := doclient.New(cfg.Options,
		doclient.WithLogger(logger),
		doclient.WithTokenStore(store),
		doclient.WithNavigator(nav),
		doclient.WithActivitySink(logger.activitySink(cfg.GetBaseURL())),
	)
	if err != nil {
		return err
	}

	if err := dc.Session.Restore(ctx); err != nil {
		return err
	}
	if dc.Session.Expired() {
		logger.Info("stored session token expired")
		dc.Session.Logout(ctx)
	}

	cmd.SetContext(doclient.WithContext(ctx, dc))

	if !dc.Guard.Check(cmd.Context(), routeMeta(cmd)) {
		return fmt.Errorf("%s is not available for this session", cmd.CommandPath())
	}
	return nil
}

func (a *app) close() error {
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	return err
}

// routeMeta builds the guard metadata of cmd, requirements of parent
// commands included.
func routeMeta(cmd *cobra.Command) doclient.RouteMeta {
	meta := doclient.RouteMeta{Name: cmd.CommandPath()}
	for c := cmd; c != nil; c = c.Parent() {
		meta = meta.Inherit(doclient.RouteMeta{
			RequiresAuth:  c.Annotations[annotationRequiresAuth] == "true",
			RequiresAdmin: c.Annotations[annotationRequiresAdmin] == "true",
		})
	}
	return meta
}

func redirectHint(cfg cliConfig, route string) string {
	if route == cfg.GetLoginRoute() {
		return "not logged in: run `doclient login` first"
	}
	return "this command requires the admin role"
}

func clientFrom(cmd *cobra.Command) *doclient.Doclient {
	dc, ok := doclient.FromContext(cmd.Context())
	if !ok {
		panic("doclient: command context was not initialized")
	}
	return dc
}
