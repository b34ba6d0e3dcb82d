package models

// AuthResult is returned by signup and signin.
type AuthResult struct {
	Message string       `json:"message"`
	User    *UserProfile `json:"user"`
	Token   string       `json:"token"`
}

// MessageResult acknowledges operations that return no data.
type MessageResult struct {
	Message string `json:"message"`
}

// CurrentUserResult is returned by GET /currentuser.
type CurrentUserResult struct {
	IsUser bool         `json:"isUser"`
	User   *UserProfile `json:"user"`
	Token  string       `json:"token"`
}

// Response messages.
const (
	MessageSignupSuccess  = "User created successfully"
	MessageSigninSuccess  = "User login successfully"
	MessageSignoutSuccess = "Logout successful"
	MessageResetEmailSent = "Password reset email sent."
	MessagePasswordReset  = "Password successfully updated"
)
