// Package identity authenticates technicians and administrators with
// 4-digit PINs and manages their opaque session tokens.
package identity

import (
	"context"
	"crypto/subtle"
	"sync"
	"time"

	"github.com/plantops/breakdown-board/internal/domain"
	"github.com/plantops/breakdown-board/internal/pkg/ctxlog"
	"github.com/plantops/breakdown-board/internal/pkg/metrics"
	"github.com/plantops/breakdown-board/internal/store"
	"golang.org/x/time/rate"
)

// Login throttling: a budget of 5 failed tries, refilling one every
// 6 seconds. Only failures consume budget, so shift changes with many
// legitimate logins are never throttled. Keyed per technician number,
// so one noisy terminal cannot lock out the whole floor.
const (
	loginBurst    = 5
	loginInterval = 6 * time.Second
)

// Service implements PIN login and session resolution. It satisfies
// httputil.TechAuthenticator and httputil.AdminAuthenticator.
type Service struct {
	repo     *store.Repo
	adminPIN string

	techSessions  *sessionStore
	adminSessions *sessionStore

	limitersMu sync.Mutex
	limiters   map[string]*rate.Limiter
}

// NewService creates the identity service. adminPIN comes from
// configuration; an empty value disables admin login entirely.
func NewService(repo *store.Repo, adminPIN string, sessionTTL time.Duration) *Service {
	return &Service{
		repo:          repo,
		adminPIN:      adminPIN,
		techSessions:  newSessionStore(sessionTTL),
		adminSessions: newSessionStore(sessionTTL),
		limiters:      make(map[string]*rate.Limiter),
	}
}

// Hash derives a stored credential from a raw PIN. Satisfies
// catalog.PINHasher.
func (s *Service) Hash(pin string) *domain.Credential {
	return HashPIN(pin)
}

func (s *Service) limiter(key string) *rate.Limiter {
	s.limitersMu.Lock()
	defer s.limitersMu.Unlock()

	limiter, ok := s.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(loginInterval), loginBurst)
		s.limiters[key] = limiter
	}
	return limiter
}

// hasBudget reports whether the key has failure budget left.
func (s *Service) hasBudget(key string) bool {
	return s.limiter(key).Tokens() >= 1
}

// recordFailure burns one unit of the key's failure budget.
func (s *Service) recordFailure(key string) {
	s.limiter(key).Allow()
}

// TechSession is the result of a successful technician login.
type TechSession struct {
	Token  string      `json:"token"`
	Number string      `json:"number"`
	Name   string      `json:"name"`
	Team   domain.Team `json:"team"`
}

// LoginTech verifies a technician PIN and issues a session token. The
// team parameter is the discipline the login screen was opened for; a
// correct PIN for a technician of the other team fails with ErrWrongTeam.
// Legacy plaintext credentials are upgraded to the derived-key scheme on
// first successful login.
func (s *Service) LoginTech(ctx context.Context, number, pin, team string) (*TechSession, error) {
	key := "tech:" + number
	if !s.hasBudget(key) {
		metrics.LoginAttempts.WithLabelValues("tech", "rate_limited").Inc()
		return nil, ErrRateLimited
	}

	desired := domain.NormalizeTeam(team)

	var tech domain.Technician
	found := false
	err := s.repo.View(ctx, func(doc *store.Document) error {
		for _, t := range doc.Config.Technicians {
			if t.Number == number && t.Active {
				tech = t
				found = true
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !found || !VerifyPIN(tech.Credential, pin) {
		s.recordFailure(key)
		metrics.LoginAttempts.WithLabelValues("tech", "failure").Inc()
		return nil, ErrInvalidCredentials
	}
	if tech.Team != desired {
		s.recordFailure(key)
		metrics.LoginAttempts.WithLabelValues("tech", "wrong_team").Inc()
		return nil, ErrWrongTeam
	}
	if tech.Credential.Scheme == domain.CredentialPlain {
		if err := s.upgradeCredential(ctx, tech.ID, pin); err != nil {
			// Login still succeeds; the plaintext record stays until
			// the next attempt.
			ctxlog.FromContext(ctx).Warn("credential upgrade failed",
				"technician", tech.Number, "error", err)
		}
	}

	actor := domain.Actor{Number: tech.Number, Name: tech.Name, Team: tech.Team}
	token := s.techSessions.create(actor)
	metrics.LoginAttempts.WithLabelValues("tech", "success").Inc()

	return &TechSession{
		Token:  token,
		Number: tech.Number,
		Name:   tech.Name,
		Team:   tech.Team,
	}, nil
}

func (s *Service) upgradeCredential(ctx context.Context, techID, pin string) error {
	return s.repo.Update(ctx, func(doc *store.Document) error {
		for i, t := range doc.Config.Technicians {
			if t.ID == techID && t.Credential != nil && t.Credential.Scheme == domain.CredentialPlain {
				doc.Config.Technicians[i].Credential = HashPIN(pin)
				break
			}
		}
		return nil
	})
}

// LoginAdmin verifies the admin PIN and issues a session token.
func (s *Service) LoginAdmin(_ context.Context, pin string) (string, error) {
	if !s.hasBudget("admin") {
		metrics.LoginAttempts.WithLabelValues("admin", "rate_limited").Inc()
		return "", ErrRateLimited
	}

	if s.adminPIN == "" || subtle.ConstantTimeCompare([]byte(s.adminPIN), []byte(pin)) != 1 {
		s.recordFailure("admin")
		metrics.LoginAttempts.WithLabelValues("admin", "failure").Inc()
		return "", ErrInvalidCredentials
	}

	token := s.adminSessions.create(domain.Actor{IsAdmin: true})
	metrics.LoginAttempts.WithLabelValues("admin", "success").Inc()
	return token, nil
}

// AuthenticateTech resolves a technician session token.
func (s *Service) AuthenticateTech(_ context.Context, token string) (domain.Actor, error) {
	actor, ok := s.techSessions.resolve(token)
	if !ok {
		return domain.Actor{}, ErrInvalidSession
	}
	return actor, nil
}

// AuthenticateAdmin resolves an admin session token.
func (s *Service) AuthenticateAdmin(_ context.Context, token string) (domain.Actor, error) {
	actor, ok := s.adminSessions.resolve(token)
	if !ok {
		return domain.Actor{}, ErrInvalidSession
	}
	return actor, nil
}

// LogoutTech revokes a technician session token.
func (s *Service) LogoutTech(token string) {
	s.techSessions.revoke(token)
}

// LogoutAdmin revokes an admin session token.
func (s *Service) LogoutAdmin(token string) {
	s.adminSessions.revoke(token)
}

// RevokeTechnician drops every live session of the given technician
// number, used after an admin deactivates or deletes the technician.
func (s *Service) RevokeTechnician(number string) {
	s.techSessions.revokeActor(number)
}
