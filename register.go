package doclient

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

const registerPath = "/auth/register"

// Registration is a request to create an account.
type Registration struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email,omitempty"`
}

func (r Registration) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Length(1, 80)),
		validation.Field(&r.Password, validation.Required),
		validation.Field(&r.Email, is.EmailFormat),
	)
}

// Register creates an account. The session is left as it was, call Login
// afterwards. A failure is stored on LastError.
func (s *Session) Register(ctx context.Context, r Registration) error {
	s.begin("")
	defer s.end()

	err := r.Validate()
	if err != nil {
		err = newValidationError(err)
	} else {
		err = s.client.Post(ctx, registerPath, r, nil)
	}

	if err != nil {
		s.mu.Lock()
		s.err = FailureMessage(err)
		s.mu.Unlock()
		s.logger.Warn("register %q failed (%s): %v", r.Username, Classify(err), err)
		return err
	}

	s.logger.Info("registered %q", r.Username)
	return nil
}
