package models

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	dErrors "autoscuola/pkg/domain-errors"
)

const (
	MsgRequired     = "Questo campo è obbligatorio"
	MsgInvalidEmail = "Inserisci un indirizzo email valido"
	MsgInvalidPhone = "Inserisci un numero di telefono valido"

	MsgSent    = "Messaggio inviato con successo! Ti contatteremo presto."
	MsgFailed  = "Errore nell'invio del messaggio. Riprova più tardi."
	MsgInvalid = "Controlla i campi evidenziati e riprova."
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^[+]?[0-9\s\-()]{8,}$`)
)

// Notice values carried back to the page as ?contact= after a form post.
const (
	NoticeSent    = "sent"
	NoticeInvalid = "invalid"
	NoticeFailed  = "failed"
)

// NoticeMessage returns the text shown for a notice and whether it reports
// success.
func NoticeMessage(notice string) (msg string, success bool, ok bool) {
	switch notice {
	case NoticeSent:
		return MsgSent, true, true
	case NoticeInvalid:
		return MsgInvalid, false, true
	case NoticeFailed:
		return MsgFailed, false, true
	default:
		return "", false, false
	}
}

// Form is a contact request as posted by the site's contact section.
type Form struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	License string `json:"license"`
	Message string `json:"message"`
}

// FormFromValues reads a urlencoded contact form.
func FormFromValues(v url.Values) Form {
	return Form{
		Name:    v.Get("name"),
		Email:   v.Get("email"),
		Phone:   v.Get("phone"),
		License: v.Get("license"),
		Message: v.Get("message"),
	}
}

// Normalize trims every field.
func (f Form) Normalize() Form {
	return Form{
		Name:    strings.TrimSpace(f.Name),
		Email:   strings.TrimSpace(f.Email),
		Phone:   strings.TrimSpace(f.Phone),
		License: strings.TrimSpace(f.License),
		Message: strings.TrimSpace(f.Message),
	}
}

// Validate checks a normalized form. The returned error carries one message
// per invalid field.
func (f Form) Validate() error {
	fields := map[string]string{}
	if f.Name == "" {
		fields["name"] = MsgRequired
	}
	switch {
	case f.Email == "":
		fields["email"] = MsgRequired
	case !emailPattern.MatchString(f.Email):
		fields["email"] = MsgInvalidEmail
	}
	if f.Phone != "" && !phonePattern.MatchString(f.Phone) {
		fields["phone"] = MsgInvalidPhone
	}
	if f.Message == "" {
		fields["message"] = MsgRequired
	}
	if len(fields) > 0 {
		return dErrors.NewValidation("invalid contact form", fields)
	}
	return nil
}

// Submission is a validated, stored contact request.
type Submission struct {
	ID        uuid.UUID `json:"id"`
	Reference string    `json:"reference"`
	Form
	ClientIP  string    `json:"-"`
	UserAgent string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// SubmittedEvent is published after a submission is stored.
type SubmittedEvent struct {
	ID        string    `json:"id"`
	Reference string    `json:"reference"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	License   string    `json:"license,omitempty"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

func NewSubmittedEvent(s *Submission) SubmittedEvent {
	return SubmittedEvent{
		ID:        s.ID.String(),
		Reference: s.Reference,
		Name:      s.Name,
		Email:     s.Email,
		Phone:     s.Phone,
		License:   s.License,
		Message:   s.Message,
		CreatedAt: s.CreatedAt,
	}
}

// SubmitResponse is returned to JSON clients.
type SubmitResponse struct {
	ID        string `json:"id"`
	Reference string `json:"reference"`
	Message   string `json:"message"`
}
