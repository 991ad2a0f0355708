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

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jredh-dev/ewaste/internal/client"
	"github.com/jredh-dev/ewaste/internal/session"
	"github.com/jredh-dev/ewaste/pkg/models"
)

const sessionFileName = ".ewastectl.yaml"

// sessionFile is the on-disk state between invocations.
type sessionFile struct {
	Server    string      `yaml:"server"`
	Token     string      `yaml:"token,omitempty"`
	ExpiresAt time.Time   `yaml:"expires_at,omitempty"`
	UserID    string      `yaml:"user_id,omitempty"`
	Email     string      `yaml:"email,omitempty"`
	Role      models.Role `yaml:"role,omitempty"`
}

func defaultSessionPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return sessionFileName
	}
	return filepath.Join(home, sessionFileName)
}

// loadSession returns an empty session when the file does not exist.
func loadSession(path string) (*sessionFile, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &sessionFile{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	var s sessionFile
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse session %s: %w", path, err)
	}
	return &s, nil
}

func saveSession(path string, s *sessionFile) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

func (s *sessionFile) signIn(sess *client.Session) {
	s.Token = sess.Token
	s.ExpiresAt = sess.ExpiresAt
	s.UserID = sess.Principal.ID
	s.Email = sess.Principal.Email
	s.Role = sess.Principal.Role
}

func (s *sessionFile) signOut() {
	server := s.Server
	*s = sessionFile{Server: server}
}

// active reports whether a token is stored and not yet expired.
func (s *sessionFile) active(now time.Time) bool {
	return s.Token != "" && (s.ExpiresAt.IsZero() || now.Before(s.ExpiresAt))
}

// identity is the stored sign-in as the session machine sees it.
func (s *sessionFile) identity() *models.Identity {
	return &models.Identity{ID: s.UserID, Email: s.Email, Role: s.Role}
}

// meProfiles answers profile lookups from GET /api/me. It is only consulted
// when the stored session carries no usable role.
type meProfiles struct {
	api *client.Client
}

var _ session.ProfileLookup = meProfiles{}

func (m meProfiles) GetUserProfile(ctx context.Context, id string) (*models.UserProfile, error) {
	me, err := m.api.Me(ctx)
	if err != nil {
		return nil, err
	}
	if me.User == nil || me.Principal.ID != id {
		return nil, nil
	}
	return me.User, nil
}

func (m meProfiles) GetCompanyProfile(ctx context.Context, id string) (*models.CompanyProfile, error) {
	me, err := m.api.Me(ctx)
	if err != nil {
		return nil, err
	}
	if me.Company == nil || me.Principal.ID != id {
		return nil, nil
	}
	return me.Company, nil
}
