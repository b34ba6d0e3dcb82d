package mail

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

const (
	SubjectPasswordReset             = "Reset your password"
	SubjectPasswordResetConfirmation = "Password reset confirmation"
)

type PasswordResetParams struct {
	Username  string
	ResetLink string
}

type PasswordResetConfirmationParams struct {
	Username  string
	Email     string
	IPAddress string
	Device    string
	Date      string
}

func RenderPasswordReset(params PasswordResetParams) (string, error) {
	return render("forgot_password.html", params)
}

func RenderPasswordResetConfirmation(params PasswordResetConfirmationParams) (string, error) {
	return render("reset_password.html", params)
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}
