package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/bookcadence/cadence/internal/shared"
	"github.com/urfave/cli/v3"
)

const authFlowTimeout = 3 * time.Minute

type callbackResult struct {
	code string
	err  error
}

// AuthLogin runs the full OAuth2 authorization flow from the terminal: a
// one-shot HTTP listener is bound to the configured redirect URI, the
// default browser is opened at the provider's consent page, and the
// returned code is exchanged and persisted.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd)

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	manager, _, err := r.buildManager(db)
	if err != nil {
		return err
	}

	redirect, err := url.Parse(r.config.Credentials.Spotify.RedirectURI)
	if err != nil {
		return fmt.Errorf("%w: bad redirect_uri: %v", shared.ErrInvalidConfig, err)
	}

	state := shared.GenerateID()
	results := make(chan callbackResult, 1)

	mux := http.NewServeMux()
	mux.HandleFunc(redirect.Path, func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Query().Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			results <- callbackResult{err: errors.New("state mismatch in callback")}
			return
		}
		code := req.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "authorization denied", http.StatusBadRequest)
			results <- callbackResult{err: fmt.Errorf("authorization denied: %s", req.URL.Query().Get("error"))}
			return
		}
		fmt.Fprintln(w, "Authorization complete. You can close this window.")
		results <- callbackResult{code: code}
	})

	listener, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return fmt.Errorf("failed to bind callback listener on %s: %w", redirect.Host, err)
	}
	callbackServer := &http.Server{Handler: mux}
	go callbackServer.Serve(listener)
	defer callbackServer.Close()

	authURL := manager.AuthURL(state)
	r.logger.Info("opening browser for Spotify authorization")
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warn("could not open browser", "error", err)
		r.writePlain("Open this URL to authorize:\n%s\n", authURL)
	}

	var result callbackResult
	select {
	case result = <-results:
	case <-time.After(authFlowTimeout):
		return errors.New("timed out waiting for authorization callback")
	case <-ctx.Done():
		return ctx.Err()
	}
	if result.err != nil {
		return result.err
	}

	profile, err := manager.CompleteAuthorization(ctx, result.code)
	if err != nil {
		return err
	}

	r.logger.Info("authorization successful", "user", profile.ID)
	return r.writePlain("✓ Authorized as %s (%s)\n", profile.DisplayName, profile.ID)
}

// AuthStatus reports whether the user has a usable stored credential.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd)
	userID := cmd.String("user")
	if userID == "" {
		return fmt.Errorf("%w: --user is required", shared.ErrMissingArgument)
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	manager, _, err := r.buildManager(db)
	if err != nil {
		return err
	}

	record, err := manager.GetValidToken(ctx, userID)
	if errors.Is(err, shared.ErrAuthRequired) {
		return r.writePlain("✗ Not authorized. Run `cadence auth login`.\n")
	}
	if err != nil {
		return err
	}

	r.writePlain("✓ Authorized\n")
	return r.writePlain("Access token valid until %s\n", record.Expiry.Format(time.RFC1123))
}

// AuthLogout discards the stored credential for a user.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd)
	userID := cmd.String("user")
	if userID == "" {
		return fmt.Errorf("%w: --user is required", shared.ErrMissingArgument)
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	manager, _, err := r.buildManager(db)
	if err != nil {
		return err
	}

	if err := manager.SignOut(ctx, userID); err != nil {
		return err
	}

	return r.writePlain("✓ Signed out %s\n", userID)
}
