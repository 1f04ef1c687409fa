package app

import (
	"context"
	"fmt"

	"github.com/varoOP/animesync/internal/domain"
	"github.com/varoOP/animesync/internal/remote"
)

// Connect pings serverURL and remembers it. Switching servers drops the login.
func (a *App) Connect(ctx context.Context, serverURL string) (*domain.Session, error) {
	base := remote.NormalizeBaseURL(serverURL)
	if base == "" {
		return nil, fmt.Errorf("server url is required")
	}

	if err := a.pool.Get(base).Ping(ctx); err != nil {
		return nil, fmt.Errorf("cannot reach %s: %w", base, err)
	}

	session, err := a.sessions.Get(ctx)
	if err != nil {
		return nil, err
	}
	if session.ServerURL != base {
		session.LoggedIn = false
		session.AnimeSamaURL = ""
	}
	session.ServerURL = base

	if err := a.sessions.Store(ctx, session); err != nil {
		return nil, err
	}
	a.log.Info().Str("server", base).Msg("connected to companion server")
	return session, nil
}

// Login authenticates against the configured server and starts syncing
func (a *App) Login(ctx context.Context, username, password string) (*domain.Session, error) {
	session, err := a.sessions.Get(ctx)
	if err != nil {
		return nil, err
	}
	if session.ServerURL == "" {
		return nil, domain.ErrNotConfigured
	}

	result, err := a.pool.Get(session.ServerURL).Login(ctx, username, password)
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}
	if !result.OK {
		return nil, fmt.Errorf("login refused: %s", result.Error)
	}

	session.LastUser = username
	if result.User != "" {
		session.LastUser = result.User
	}
	session.LoggedIn = true
	if err := a.sessions.Store(ctx, session); err != nil {
		return nil, err
	}

	a.log.Info().Str("user", session.LastUser).Msg("logged in")
	return session, a.Control(ctx, domain.MsgStartSync)
}

// Logout clears the login flag and stops periodic sync. Queued actions stay.
func (a *App) Logout(ctx context.Context) error {
	session, err := a.sessions.Get(ctx)
	if err != nil {
		return err
	}
	session.LoggedIn = false
	if err := a.sessions.Store(ctx, session); err != nil {
		return err
	}

	a.log.Info().Msg("logged out")
	return a.Control(ctx, domain.MsgStopSync)
}

// ServerInfo is what the companion server tells about itself
type ServerInfo struct {
	AppInfo   *domain.AppInfo
	Theme     *domain.Theme
	Dashboard *domain.Dashboard
}

// Info collects app-info, theme and, when logged in, the dashboard.
// Only app-info is required to succeed.
func (a *App) Info(ctx context.Context) (*ServerInfo, error) {
	session, err := a.sessions.Get(ctx)
	if err != nil {
		return nil, err
	}
	if session.ServerURL == "" {
		return nil, domain.ErrNotConfigured
	}

	client := a.pool.Get(session.ServerURL)
	info := &ServerInfo{}
	if info.AppInfo, err = client.AppInfo(ctx); err != nil {
		return nil, err
	}

	if info.Theme, err = client.Theme(ctx); err != nil {
		a.log.Warn().Err(err).Msg("failed to fetch theme")
	}
	if session.LoggedIn {
		if info.Dashboard, err = client.Dashboard(ctx, session.LastUser); err != nil {
			a.log.Warn().Err(err).Msg("failed to fetch dashboard")
		}
	}
	return info, nil
}
