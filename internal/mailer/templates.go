package mailer

import (
	"bytes"
	"fmt"
	"html/template"
)

// Subjects of the messages sent by the platform.
const (
	SubjectResetPassword   = "Reset your password"
	SubjectPasswordUpdated = "Your password was changed"
)

const layout = `<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<title>{{.Title}}</title>
<style>
body { background-color: #ffffff; font-family: Arial, sans-serif; font-size: 16px; line-height: 1.4; color: #333333; margin: 0; padding: 0; }
.container { max-width: 600px; margin: 0 auto; padding: 20px; text-align: center; }
.message { font-size: 18px; font-weight: bold; margin-bottom: 20px; }
.body { font-size: 16px; margin-bottom: 20px; }
.cta { display: inline-block; padding: 10px 20px; background-color: #1f2937; color: #ffffff; text-decoration: none; border-radius: 5px; }
.support { font-size: 14px; color: #999999; margin-top: 20px; }
</style>
</head>
<body>
<div class="container">
<div class="message">{{.Title}}</div>
<div class="body">
<p>Hi {{.Name}},</p>
{{block "content" .}}{{end}}
</div>
<div class="support">If you did not request this, you can ignore this email or contact support.</div>
</div>
</body>
</html>`

var (
	resetTemplate = template.Must(template.Must(template.New("reset").Parse(layout)).Parse(
		`{{define "content"}}<p>We received a request to reset the password of the account {{.Email}}.</p>
<p>The link below is valid for {{.ValidFor}}.</p>
<a class="cta" href="{{.Link}}">Reset password</a>
<p>Or paste this address into your browser: {{.Link}}</p>{{end}}`))

	updatedTemplate = template.Must(template.Must(template.New("updated").Parse(layout)).Parse(
		`{{define "content"}}<p>The password of the account {{.Email}} was just changed.</p>
<p>If this was not you, reset your password immediately.</p>{{end}}`))
)

type templateData struct {
	Title    string
	Name     string
	Email    string
	Link     string
	ValidFor string
}

// ResetPasswordEmail renders the message carrying the reset link.
func ResetPasswordEmail(name, email, link, validFor string) (string, error) {
	return render(resetTemplate, templateData{
		Title:    "Password reset",
		Name:     name,
		Email:    email,
		Link:     link,
		ValidFor: validFor,
	})
}

// PasswordUpdatedEmail renders the confirmation sent after a password change.
func PasswordUpdatedEmail(name, email string) (string, error) {
	return render(updatedTemplate, templateData{
		Title: "Password updated",
		Name:  name,
		Email: email,
	})
}

func render(t *template.Template, data templateData) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s email: %w", t.Name(), err)
	}
	return buf.String(), nil
}
