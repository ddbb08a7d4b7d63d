package doclient

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

const changePasswordPath = "/auth/change-password"

// PasswordChange is a request to replace the password of the current user.
type PasswordChange struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

func (p PasswordChange) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.OldPassword, validation.Required),
		validation.Field(&p.NewPassword,
			validation.Required,
			validation.NotIn(p.OldPassword).Error("must differ from the old password"),
		),
	)
}

// ProfileUpdate holds the fields a user may edit on their own profile. Nil
// fields are left unchanged.
type ProfileUpdate struct {
	Email *string `json:"email,omitempty"`
}

func (u ProfileUpdate) Validate() error {
	return validation.ValidateStruct(&u,
		validation.Field(&u.Email, validation.NilOrNotEmpty, is.EmailFormat),
	)
}

// ChangePassword replaces the password of the current user. The token stays
// valid, the session is not touched. A failure is stored on LastError.
func (s *Session) ChangePassword(ctx context.Context, change PasswordChange) error {
	s.begin("")
	defer s.end()

	err := s.requireToken()
	if err == nil {
		err = change.Validate()
		if err != nil {
			err = newValidationError(err)
		}
	}
	if err == nil {
		err = s.client.Post(ctx, changePasswordPath, change, nil)
	}

	if err != nil {
		return s.accountFailed(ctx, "change password", err)
	}

	s.emit(ctx, ActivityEventPasswordChanged, s.User(), nil)
	return nil
}

// UpdateProfile saves the editable profile fields. On success the cached
// profile is updated in place, unless the session was replaced meanwhile.
func (s *Session) UpdateProfile(ctx context.Context, update ProfileUpdate) error {
	s.mu.RLock()
	epoch := s.epoch
	s.mu.RUnlock()

	s.begin("")
	defer s.end()

	err := s.requireToken()
	if err == nil {
		err = update.Validate()
		if err != nil {
			err = newValidationError(err)
		}
	}
	if err == nil {
		err = s.client.Put(ctx, profilePath, update, nil)
	}

	if err != nil {
		return s.accountFailed(ctx, "update profile", err)
	}

	s.mu.Lock()
	if s.epoch == epoch && s.user != nil {
		user := s.user.Clone()
		if update.Email != nil {
			user.Email = *update.Email
		}
		s.user = user
	}
	user := s.user.Clone()
	s.mu.Unlock()

	s.emit(ctx, ActivityEventProfileUpdated, user, nil)
	return nil
}

func (s *Session) requireToken() error {
	if s.Token() == "" {
		return ErrNoSession.Clone()
	}
	return nil
}

func (s *Session) accountFailed(ctx context.Context, action string, err error) error {
	s.mu.Lock()
	s.err = FailureMessage(err)
	s.mu.Unlock()

	s.logger.Warn("%s failed (%s): %v", action, Classify(err), err)
	return err
}
