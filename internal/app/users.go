package app

import (
	"fmt"
	"strings"

	"booklend/pkg/auth"
	"booklend/pkg/domain"
)

// UserInput is a registration request.
type UserInput struct {
	Name     string          `json:"name"`
	Email    string          `json:"email"`
	Password string          `json:"password"`
	Role     domain.UserRole `json:"role"`
}

// UserPatch carries optional user field updates. Nil fields are left untouched.
type UserPatch struct {
	Name   *string          `json:"name,omitempty"`
	Email  *string          `json:"email,omitempty"`
	Role   *domain.UserRole `json:"role,omitempty"`
	Active *bool            `json:"active,omitempty"`
}

// CreateUser registers a member. Emails are unique across the system.
func (a *App) CreateUser(in UserInput) (domain.User, error) {
	name := strings.TrimSpace(in.Name)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if name == "" || email == "" {
		return domain.User{}, fmt.Errorf("%w: name and email required", ErrInvalidInput)
	}
	if len(in.Password) < 8 {
		return domain.User{}, fmt.Errorf("%w: password must be at least 8 characters", ErrInvalidInput)
	}
	taken, err := a.store.HasUserEmail(email)
	if err != nil {
		return domain.User{}, fmt.Errorf("check email: %w", err)
	}
	if taken {
		return domain.User{}, domain.ErrEmailTaken
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	role := in.Role
	if role == "" {
		role = domain.RoleUser
	}
	user := domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Active:       true,
	}
	saved, err := a.store.SaveUser(user)
	if err != nil {
		return domain.User{}, fmt.Errorf("save user: %w", err)
	}
	a.log.Info("user registered", "userId", saved.ID, "role", saved.Role)
	return saved, nil
}

// GetUser fetches a single user.
func (a *App) GetUser(id int64) (domain.User, error) {
	user, ok, err := a.store.GetUserByID(id)
	if err != nil {
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return user, nil
}

// ListUsers returns all members.
func (a *App) ListUsers() ([]domain.User, error) {
	return a.store.ListUsers()
}

// UpdateUser applies a partial update. Members may edit their own name and
// email; role and active changes require an administrator.
func (a *App) UpdateUser(actor domain.User, id int64, patch UserPatch) (domain.User, error) {
	user, err := a.GetUser(id)
	if err != nil {
		return domain.User{}, err
	}
	isAdmin := actor.Role == domain.RoleAdmin
	if !isAdmin && actor.ID != id {
		return domain.User{}, domain.ErrForbidden
	}
	if (patch.Role != nil || patch.Active != nil) && !isAdmin {
		return domain.User{}, domain.ErrForbidden
	}
	if patch.Name != nil {
		user.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*patch.Email))
		if email != user.Email {
			taken, err := a.store.HasUserEmail(email)
			if err != nil {
				return domain.User{}, fmt.Errorf("check email: %w", err)
			}
			if taken {
				return domain.User{}, domain.ErrEmailTaken
			}
			user.Email = email
		}
	}
	if patch.Role != nil {
		user.Role = *patch.Role
	}
	if patch.Active != nil {
		user.Active = *patch.Active
	}
	saved, err := a.store.SaveUser(user)
	if err != nil {
		return domain.User{}, fmt.Errorf("save user: %w", err)
	}
	return saved, nil
}

// DeleteUser removes a member. Blocked while the member still holds a book,
// so loan rows never point at a missing user.
func (a *App) DeleteUser(actor domain.User, id int64) error {
	if actor.Role != domain.RoleAdmin && actor.ID != id {
		return domain.ErrForbidden
	}
	if _, err := a.GetUser(id); err != nil {
		return err
	}
	busy, err := a.catalog.UserHasActiveLoans(id)
	if err != nil {
		return err
	}
	if busy {
		return domain.ErrUserHasLoans
	}
	if err := a.store.DeleteUser(id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	a.log.Info("user deleted", "userId", id)
	return nil
}

// VerifyCredentials checks an email and password pair. The external auth
// service calls this before minting a token.
func (a *App) VerifyCredentials(email, password string) (domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, ok, err := a.store.GetUserByEmail(email)
	if err != nil {
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	if !ok || !user.Active || !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, domain.ErrForbidden
	}
	return user, nil
}
