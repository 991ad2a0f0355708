// Package session resolves which role an authenticated identity plays and
// tracks the sign-in state of a client.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/jredh-dev/ewaste/pkg/models"
)

// ErrNoRole means the identity exists but has neither a user nor a company
// profile. It is treated as signed out.
var ErrNoRole = errors.New("no profile for identity")

// ProfileLookup is the read side of the profile store.
type ProfileLookup interface {
	GetUserProfile(ctx context.Context, id string) (*models.UserProfile, error)
	GetCompanyProfile(ctx context.Context, id string) (*models.CompanyProfile, error)
}

// Resolver maps identities to principals.
type Resolver struct {
	profiles ProfileLookup
	logger   *zap.Logger
}

// NewResolver creates a Resolver.
func NewResolver(profiles ProfileLookup, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{profiles: profiles, logger: logger}
}

// Resolve returns the principal for id. An authoritative role claim on the
// identity is used as-is. Otherwise the user profiles are checked before the
// company profiles; when neither exists the principal has RoleNone.
func (r *Resolver) Resolve(ctx context.Context, id *models.Identity) (models.Principal, error) {
	p := models.Principal{ID: id.ID, Email: id.Email}
	if id.Role.Valid() {
		p.Role = id.Role
		return p, nil
	}

	user, err := r.profiles.GetUserProfile(ctx, id.ID)
	if err != nil {
		return p, fmt.Errorf("look up user profile: %w", err)
	}
	if user != nil {
		p.Role = models.RoleUser
		return p, nil
	}

	company, err := r.profiles.GetCompanyProfile(ctx, id.ID)
	if err != nil {
		return p, fmt.Errorf("look up company profile: %w", err)
	}
	if company != nil {
		p.Role = models.RoleCompany
		return p, nil
	}

	r.logger.Debug("identity has no profile", zap.String("uid", id.ID))
	return p, nil
}

// Phase is a session lifecycle state.
type Phase int

const (
	Unauthenticated Phase = iota
	ResolvingRole
	SignedInUser
	SignedInCompany
)

func (p Phase) String() string {
	switch p {
	case Unauthenticated:
		return "unauthenticated"
	case ResolvingRole:
		return "resolving_role"
	case SignedInUser:
		return "user"
	case SignedInCompany:
		return "company"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// State is a snapshot of a Machine.
type State struct {
	Phase     Phase
	Principal models.Principal
	// NoRole is set when the last sign-in found no profile.
	NoRole bool
}

// Machine is the per-client session state machine. It is safe for
// concurrent use.
type Machine struct {
	resolver *Resolver

	mu    sync.Mutex
	state State
}

// NewMachine creates a Machine in the Unauthenticated phase.
func NewMachine(resolver *Resolver) *Machine {
	return &Machine{resolver: resolver}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Machine) set(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// SignIn resolves id and moves to the matching signed-in phase. A lookup
// failure or a missing profile leaves the machine Unauthenticated.
func (m *Machine) SignIn(ctx context.Context, id *models.Identity) (State, error) {
	m.set(State{Phase: ResolvingRole})

	p, err := m.resolver.Resolve(ctx, id)
	if err != nil {
		m.set(State{})
		return State{}, err
	}

	var s State
	switch p.Role {
	case models.RoleUser:
		s = State{Phase: SignedInUser, Principal: p}
	case models.RoleCompany:
		s = State{Phase: SignedInCompany, Principal: p}
	default:
		s = State{Phase: Unauthenticated, NoRole: true}
		m.set(s)
		return s, ErrNoRole
	}
	m.set(s)
	return s, nil
}

// SignOut returns to Unauthenticated from any phase.
func (m *Machine) SignOut() State {
	m.set(State{})
	return State{}
}

// Watch consumes an auth-state stream, one resolution per event, and emits
// every state the machine passes through. A nil identity is a sign-out. The
// returned channel is closed when ctx ends or events is closed.
func (m *Machine) Watch(ctx context.Context, events <-chan *models.Identity) <-chan State {
	out := make(chan State)

	go func() {
		defer close(out)

		emit := func(s State) bool {
			select {
			case out <- s:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case id, ok := <-events:
				if !ok {
					return
				}
				if id == nil {
					if !emit(m.SignOut()) {
						return
					}
					continue
				}
				if !emit(State{Phase: ResolvingRole}) {
					return
				}
				s, err := m.SignIn(ctx, id)
				if err != nil && ctx.Err() != nil {
					return
				}
				if !emit(s) {
					return
				}
			}
		}
	}()

	return out
}
