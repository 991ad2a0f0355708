// ewaste - E-waste collection marketplace
// Copyright (C) 2025  ewaste contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.

// Command ewastectl is a terminal client for the ewaste marketplace.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jredh-dev/ewaste/internal/client"
	"github.com/jredh-dev/ewaste/internal/session"
	"github.com/jredh-dev/ewaste/pkg/models"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

const defaultServer = "http://localhost:8080"

var errNotSignedIn = errors.New("not signed in; run 'ewastectl login' first")

// app is the state shared by every command of one invocation.
type app struct {
	serverFlag  string
	sessionPath string

	session *sessionFile
	api     *client.Client
	machine *session.Machine
	// resolveErr is why a stored session could not be restored.
	resolveErr error
}

func (a *app) load(cmd *cobra.Command, _ []string) error {
	s, err := loadSession(a.sessionPath)
	if err != nil {
		return err
	}
	switch {
	case a.serverFlag != "":
		s.Server = a.serverFlag
	case s.Server == "":
		s.Server = os.Getenv("EWASTE_SERVER")
		if s.Server == "" {
			s.Server = defaultServer
		}
	}
	a.session = s
	a.api = client.New(s.Server, s.Token)
	a.machine = session.NewMachine(session.NewResolver(meProfiles{api: a.api}, nil))
	return a.restore(cmd.Context())
}

// restore seeds the session machine from the stored sign-in. A stored role
// is trusted; without one the role is looked up on the server. An account
// with no profile is signed out.
func (a *app) restore(ctx context.Context) error {
	if !a.session.active(time.Now()) {
		return nil
	}
	st, err := a.machine.SignIn(ctx, a.session.identity())
	switch {
	case errors.Is(err, session.ErrNoRole):
		a.session.signOut()
		return a.save()
	case err != nil:
		a.resolveErr = err
		return nil
	}
	if a.session.Role != st.Principal.Role {
		a.session.Role = st.Principal.Role
		return a.save()
	}
	return nil
}

// requireRole checks the session machine before any network call.
func (a *app) requireRole(role models.Role) error {
	st := a.machine.State()
	switch st.Phase {
	case session.SignedInUser, session.SignedInCompany:
	default:
		if a.resolveErr != nil {
			return fmt.Errorf("restore session: %w", a.resolveErr)
		}
		return errNotSignedIn
	}
	if role != models.RoleNone && st.Principal.Role != role {
		return fmt.Errorf("this command is for %s accounts; signed in as %s", role, st.Principal.Role)
	}
	return nil
}

func (a *app) save() error {
	return saveSession(a.sessionPath, a.session)
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:               "ewastectl",
		Short:             "Submit and review e-waste pickups",
		Version:           fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:      true,
		PersistentPreRunE: a.load,
	}
	root.PersistentFlags().StringVar(&a.serverFlag, "server", "", "API base URL (default: session, $EWASTE_SERVER or "+defaultServer+")")
	root.PersistentFlags().StringVar(&a.sessionPath, "session", defaultSessionPath(), "Session file")

	root.AddCommand(
		registerCmd(a),
		loginCmd(a),
		logoutCmd(a),
		whoamiCmd(a),
		estimateCmd(a),
		centersCmd(a),
		companiesCmd(a),
		submitCmd(a),
		historyCmd(a),
		requestsCmd(a),
		decideCmd(a, "approve", models.StatusApproved),
		decideCmd(a, "reject", models.StatusRejected),
		analyticsCmd(a),
		profileCmd(a),
	)
	return root
}

func main() {
	ctx := context.Background()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
