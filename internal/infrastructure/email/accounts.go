package email

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"net/url"
	texttemplate "text/template"

	"github.com/gisquick/accounts-server/internal/domain"
	mail "github.com/xhit/go-simple-mail/v2"
)

//go:embed templates
var templatesFS embed.FS

const (
	activationTemplate      = "activation_email"
	confirmationTemplate    = "confirmation_email"
	passwordResetTemplate   = "password_reset_email"
	passwordChangedTemplate = "password_changed_email"
)

type EmailTemplate struct {
	HTML *htmltemplate.Template
	Text *texttemplate.Template
}

func parseEmailTemplate(name string) EmailTemplate {
	funcs := map[string]any{
		"query_escape": url.QueryEscape,
	}
	html := htmltemplate.Must(
		htmltemplate.New("email").Funcs(htmltemplate.FuncMap(funcs)).
			ParseFS(templatesFS, "templates/email_base.html", fmt.Sprintf("templates/%s.html", name)),
	)
	text := texttemplate.Must(
		texttemplate.New("email").Funcs(texttemplate.FuncMap(funcs)).
			ParseFS(templatesFS, "templates/email_base.txt", fmt.Sprintf("templates/%s.txt", name)),
	)
	return EmailTemplate{HTML: html, Text: text}
}

type Subjects struct {
	Activation      string
	Confirmation    string
	PasswordReset   string
	PasswordChanged string
}

type AccountsEmailSender struct {
	client    EmailService
	sender    string
	siteURL   string
	subjects  Subjects
	templates map[string]EmailTemplate
}

func NewAccountsEmailSender(client EmailService, sender, siteURL string, subjects Subjects) *AccountsEmailSender {
	templates := make(map[string]EmailTemplate, 4)
	for _, name := range []string{activationTemplate, confirmationTemplate, passwordResetTemplate, passwordChangedTemplate} {
		templates[name] = parseEmailTemplate(name)
	}
	return &AccountsEmailSender{
		client:    client,
		sender:    sender,
		siteURL:   siteURL,
		subjects:  subjects,
		templates: templates,
	}
}

func (s *AccountsEmailSender) link(path, uid, token string) string {
	u, err := url.Parse(s.siteURL)
	if err != nil {
		u = &url.URL{}
	}
	u.Path = path
	params := u.Query()
	params.Set("uid", uid)
	params.Set("token", token)
	u.RawQuery = params.Encode()
	return u.String()
}

func (s *AccountsEmailSender) send(user domain.User, subject, template string, data map[string]interface{}) error {
	data["User"] = &user
	data["SiteURL"] = s.siteURL
	var htmlMsg, textMsg bytes.Buffer
	if err := s.templates[template].HTML.ExecuteTemplate(&htmlMsg, "email", data); err != nil {
		return fmt.Errorf("building html template: %w", err)
	}
	if err := s.templates[template].Text.ExecuteTemplate(&textMsg, "email", data); err != nil {
		return fmt.Errorf("building text template: %w", err)
	}
	email := mail.NewMSG()
	email.SetFrom(s.sender)
	email.AddTo(user.Email)
	email.SetSubject(subject)
	email.SetBody(mail.TextPlain, textMsg.String())
	email.AddAlternative(mail.TextHTML, htmlMsg.String())
	if email.Error != nil {
		return email.Error
	}
	return s.client.SendEmail(email)
}

func (s *AccountsEmailSender) SendActivationEmail(user domain.User, uid, token string) error {
	data := map[string]interface{}{
		"ActivationLink": s.link("/accounts/activate/", uid, token),
		"uid":            uid,
		"token":          token,
	}
	return s.send(user, s.subjects.Activation, activationTemplate, data)
}

func (s *AccountsEmailSender) SendConfirmationEmail(user domain.User) error {
	return s.send(user, s.subjects.Confirmation, confirmationTemplate, map[string]interface{}{})
}

func (s *AccountsEmailSender) SendPasswordResetEmail(user domain.User, uid, token string) error {
	data := map[string]interface{}{
		"SetPasswordLink": s.link("/accounts/new-password/", uid, token),
	}
	return s.send(user, s.subjects.PasswordReset, passwordResetTemplate, data)
}

func (s *AccountsEmailSender) SendPasswordChangedEmail(user domain.User) error {
	return s.send(user, s.subjects.PasswordChanged, passwordChangedTemplate, map[string]interface{}{})
}
