package models

import (
	"strconv"
	"strings"

	"github.com/asaskevich/govalidator"

	dErrors "socialid/pkg/domain-errors"
)

const (
	usernameMinLen = 3
	usernameMaxLen = 8
	passwordMinLen = 4
	passwordMaxLen = 8
	emailMaxLen    = 255
)

// SignupRequest is the body of POST /signup. AvatarImage is a base64 data URI.
type SignupRequest struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	AvatarColor string `json:"avatarColor"`
	AvatarImage string `json:"avatarImage"`
}

func (r *SignupRequest) Normalize() {
	if r == nil {
		return
	}
	r.Username = strings.TrimSpace(r.Username)
	r.Email = strings.TrimSpace(r.Email)
	r.AvatarColor = strings.TrimSpace(r.AvatarColor)
	r.AvatarImage = strings.TrimSpace(r.AvatarImage)
}

// Follows validation order: Required -> Size -> Syntax.
func (r *SignupRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if err := validateUsername(r.Username); err != nil {
		return err
	}
	if err := validateEmail(r.Email); err != nil {
		return err
	}
	if err := validatePassword(r.Password); err != nil {
		return err
	}
	if r.AvatarColor == "" {
		return dErrors.New(dErrors.CodeValidation, "Avatar color is required")
	}
	if r.AvatarImage == "" {
		return dErrors.New(dErrors.CodeValidation, "Avatar image is required")
	}
	return nil
}

// SigninRequest is the body of POST /signin.
type SigninRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (r *SigninRequest) Normalize() {
	if r == nil {
		return
	}
	r.Username = strings.TrimSpace(r.Username)
}

func (r *SigninRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if err := validateUsername(r.Username); err != nil {
		return err
	}
	return validatePassword(r.Password)
}

// ForgotPasswordRequest is the body of POST /forgot-password.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

func (r *ForgotPasswordRequest) Normalize() {
	if r == nil {
		return
	}
	r.Email = strings.TrimSpace(r.Email)
}

func (r *ForgotPasswordRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	return validateEmail(r.Email)
}

// ResetPasswordRequest is the body of POST /reset-password/{token}; Token is
// taken from the URL.
type ResetPasswordRequest struct {
	Token           string `json:"-"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

func (r *ResetPasswordRequest) Normalize() {
	if r == nil {
		return
	}
	r.Token = strings.TrimSpace(r.Token)
}

// Validate checks presence and length only; a mismatch between the two
// passwords is a pipeline outcome, not a field error.
func (r *ResetPasswordRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	if err := validatePassword(r.Password); err != nil {
		return err
	}
	if r.ConfirmPassword == "" {
		return dErrors.New(dErrors.CodeValidation, "Confirm password is a required field")
	}
	return nil
}

func validateUsername(username string) error {
	if username == "" {
		return dErrors.New(dErrors.CodeValidation, "Username is a required field")
	}
	if !govalidator.StringLength(username, strconv.Itoa(usernameMinLen), strconv.Itoa(usernameMaxLen)) {
		return dErrors.New(dErrors.CodeValidation, "Invalid username")
	}
	return nil
}

func validateEmail(email string) error {
	if email == "" {
		return dErrors.New(dErrors.CodeValidation, "Email is a required field")
	}
	if len(email) > emailMaxLen || !govalidator.IsEmail(email) {
		return dErrors.New(dErrors.CodeValidation, "Email must be valid")
	}
	return nil
}

func validatePassword(password string) error {
	if password == "" {
		return dErrors.New(dErrors.CodeValidation, "Password is a required field")
	}
	if !govalidator.StringLength(password, strconv.Itoa(passwordMinLen), strconv.Itoa(passwordMaxLen)) {
		return dErrors.New(dErrors.CodeValidation, "Invalid password")
	}
	return nil
}
