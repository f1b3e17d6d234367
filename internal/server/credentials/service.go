package credentials

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophtalk/internal/common"
)

// Service implements login, the forced password change and account
// provisioning. Tables are re-read from the repository on every call so
// accounts created by the admin tool are visible without a restart.
type Service struct {
	repo Repository
	mu   sync.Mutex
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Authenticate verifies a login attempt. Unknown users and wrong passwords
// both yield common.ErrorUnauthorized; storage failures are wrapped in
// common.ErrorInternal.
func (s *Service) Authenticate(ctx context.Context, username, password string) (LoginOutcome, error) {
	users, err := s.repo.LoadUsers(ctx)
	if err != nil {
		return LoginActive, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}

	user, ok := users[username]
	if !ok {
		return LoginActive, common.ErrorUnauthorized
	}

	temp, err := s.repo.LoadTempPasswords(ctx)
	if err != nil {
		return LoginActive, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}

	if rec, ok := temp[username]; ok && VerifyPassword(rec.TempPasswordHash, password) {
		return LoginMustChange, nil
	}

	if !VerifyPassword(user.PasswordHash, password) {
		return LoginActive, common.ErrorUnauthorized
	}
	if user.ForcePasswordChange {
		return LoginMustChange, nil
	}
	return LoginActive, nil
}

// ChangePassword replaces the password of username when oldPassword matches
// the outstanding temporary password. The temporary record is consumed.
func (s *Service) ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	temp, err := s.repo.LoadTempPasswords(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	rec, ok := temp[username]
	if !ok || !VerifyPassword(rec.TempPasswordHash, oldPassword) {
		return common.ErrorUnauthorized
	}

	users, err := s.repo.LoadUsers(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	user, ok := users[username]
	if !ok {
		return common.ErrorNotFound
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	user.PasswordHash = hash
	user.ForcePasswordChange = false

	if err := s.repo.SaveUsers(ctx, users); err != nil {
		return fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}

	delete(temp, username)
	if err := s.repo.SaveTempPasswords(ctx, temp); err != nil {
		return fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}
	return nil
}

// CreateUser provisions a new account that must change tempPassword on
// first login.
func (s *Service) CreateUser(ctx context.Context, nu NewUser, tempPassword string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.repo.LoadUsers(ctx)
	if err != nil {
		return err
	}
	if _, ok := users[nu.Username]; ok {
		return fmt.Errorf("user %q: %w", nu.Username, common.ErrAlreadyExists)
	}

	hash, err := HashPassword(tempPassword)
	if err != nil {
		return err
	}
	ts := s.now().UTC().Format(time.RFC3339)

	users[nu.Username] = &User{
		PasswordHash:        hash,
		ForcePasswordChange: true,
		Department:          nu.Department,
		Email:               nu.Email,
		CreatedAt:           ts,
	}
	if err := s.repo.SaveUsers(ctx, users); err != nil {
		return err
	}

	return s.setTempPassword(ctx, nu.Username, hash, ts)
}

// ResetTempPassword issues a new temporary password for an existing user
// and forces a password change on next login.
func (s *Service) ResetTempPassword(ctx context.Context, username, tempPassword string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := s.repo.LoadUsers(ctx)
	if err != nil {
		return err
	}
	user, ok := users[username]
	if !ok {
		return fmt.Errorf("user %q: %w", username, common.ErrorNotFound)
	}

	hash, err := HashPassword(tempPassword)
	if err != nil {
		return err
	}
	user.ForcePasswordChange = true
	if err := s.repo.SaveUsers(ctx, users); err != nil {
		return err
	}

	return s.setTempPassword(ctx, username, hash, s.now().UTC().Format(time.RFC3339))
}

func (s *Service) setTempPassword(ctx context.Context, username, hash, ts string) error {
	temp, err := s.repo.LoadTempPasswords(ctx)
	if err != nil {
		return err
	}
	temp[username] = &TempPassword{TempPasswordHash: hash, MustChange: true, CreatedAt: ts}
	return s.repo.SaveTempPasswords(ctx, temp)
}

// Account is a listing row for the admin tool.
type Account struct {
	Username        string
	Email           string
	Department      string
	CreatedAt       string
	PendingChange   bool
	HasTempPassword bool
}

// List returns all accounts sorted by name.
func (s *Service) List(ctx context.Context) ([]Account, error) {
	users, err := s.repo.LoadUsers(ctx)
	if err != nil {
		return nil, err
	}
	temp, err := s.repo.LoadTempPasswords(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Account, 0, len(users))
	for name, u := range users {
		_, hasTemp := temp[name]
		out = append(out, Account{
			Username:        name,
			Email:           u.Email,
			Department:      u.Department,
			CreatedAt:       u.CreatedAt,
			PendingChange:   u.ForcePasswordChange,
			HasTempPassword: hasTemp,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}
