// Package email sends account and booking notifications over SMTP.
package email

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"nyaysakhi/api/internal/util"
)

const appName = "Nyay Sakhi"

// ErrNotConfigured is returned when SMTP settings are missing.
var ErrNotConfigured = errors.New("email not configured")

// Config holds SMTP configuration
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Service provides email sending
type Service struct {
	config Config
	server string
	auth   smtp.Auth
	send   sendFunc
	log    *zap.Logger
}

// NewService creates a new email service
func NewService(config Config, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	var auth smtp.Auth
	if config.Username != "" {
		auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}
	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   auth,
		send:   smtp.SendMail,
		log:    log,
	}
}

// IsConfigured returns true if email is configured
func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

// SendHTMLEmail sends a multipart/alternative message with a plain-text part.
func (s *Service) SendHTMLEmail(to []string, subject, textBody, htmlBody string) error {
	if !s.IsConfigured() {
		return ErrNotConfigured
	}

	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}
	boundary := "nyay-" + util.NewID("")

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary)
	fmt.Fprintf(&msg, "\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	fmt.Fprintf(&msg, "%s\r\n\r\n", textBody)

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/html; charset=UTF-8\r\n\r\n")
	fmt.Fprintf(&msg, "%s\r\n\r\n", htmlBody)
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)

	if err := s.send(s.server, s.auth, s.config.From, to, msg.Bytes()); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	s.log.Info("email sent", zap.String("subject", subject), zap.Int("recipients", len(to)))
	return nil
}

type VerificationData struct {
	AppName         string
	UserName        string
	VerificationURL string
}

type PasswordResetData struct {
	AppName  string
	UserName string
	ResetURL string
}

// AppointmentData describes a booking confirmation.
type AppointmentData struct {
	AppName     string
	UserName    string
	LawyerName  string
	ScheduledAt time.Time
	Duration    int
	Mode        string
	Status      string
}

// When formats the slot in India Standard Time.
func (d AppointmentData) When() string {
	return d.ScheduledAt.In(ist).Format("Mon, 2 Jan 2006 at 3:04 PM") + " IST"
}

// Relative is a human-friendly distance such as "3 days from now".
func (d AppointmentData) Relative() string {
	return humanize.Time(d.ScheduledAt)
}

// ModeLabel turns the stored mode into display text.
func (d AppointmentData) ModeLabel() string {
	switch d.Mode {
	case "in_person":
		return "In person"
	case "video":
		return "Video call"
	case "phone":
		return "Phone call"
	}
	return d.Mode
}

var ist = time.FixedZone("IST", 5*60*60+30*60)

func (s *Service) SendVerificationEmail(to, userName, verificationURL string) error {
	data := VerificationData{AppName: appName, UserName: userName, VerificationURL: verificationURL}
	html, err := renderTemplate(verificationTemplate, data)
	if err != nil {
		return fmt.Errorf("render verification template: %w", err)
	}
	text := fmt.Sprintf("Welcome, %s. Verify your email within 24 hours: %s", userName, verificationURL)
	return s.SendHTMLEmail([]string{to}, "Verify your "+appName+" account", text, html)
}

func (s *Service) SendPasswordResetEmail(to, userName, resetURL string) error {
	data := PasswordResetData{AppName: appName, UserName: userName, ResetURL: resetURL}
	html, err := renderTemplate(passwordResetTemplate, data)
	if err != nil {
		return fmt.Errorf("render password reset template: %w", err)
	}
	text := fmt.Sprintf("Hi %s, reset your password within 1 hour: %s", userName, resetURL)
	return s.SendHTMLEmail([]string{to}, "Reset your "+appName+" password", text, html)
}

func (s *Service) SendAppointmentEmail(to string, data AppointmentData) error {
	data.AppName = appName
	html, err := renderTemplate(appointmentTemplate, data)
	if err != nil {
		return fmt.Errorf("render appointment template: %w", err)
	}
	text := fmt.Sprintf("Hi %s, your %s consultation with %s is %s: %s (%d minutes).",
		data.UserName, strings.ToLower(data.ModeLabel()), data.LawyerName, data.Status, data.When(), data.Duration)
	return s.SendHTMLEmail([]string{to}, "Appointment "+data.Status+" with "+data.LawyerName, text, html)
}

var (
	verificationTemplate  = template.Must(template.New("verification").Parse(verificationEmailHTML))
	passwordResetTemplate = template.Must(template.New("reset").Parse(passwordResetEmailHTML))
	appointmentTemplate   = template.Must(template.New("appointment").Parse(appointmentEmailHTML))
)

func renderTemplate(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
