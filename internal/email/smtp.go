package email

import (
	"crypto/tls"

	mail "github.com/go-mail/mail"

	"github.com/dropDatabas3/envgate/internal/observability/logger"
)

// SMTPSender implementa Sender usando SMTP.
type SMTPSender struct {
	Host string
	Port int
	From string
	User string
	Pass string

	// InsecureSkipVerify deshabilita la verificación del cert. Solo dev.
	InsecureSkipVerify bool
}

// NewSMTPSender crea un SMTPSender con los parámetros dados.
func NewSMTPSender(host string, port int, from, user, pass string) *SMTPSender {
	return &SMTPSender{Host: host, Port: port, From: from, User: user, Pass: pass}
}

// Send envía un email de texto plano.
func (s *SMTPSender) Send(to, subject, textBody string) error {
	m := mail.NewMessage()
	m.SetHeader("From", s.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", textBody)

	d := mail.NewDialer(s.Host, s.Port, s.User, s.Pass)
	d.TLSConfig = &tls.Config{
		ServerName:         s.Host,
		InsecureSkipVerify: s.InsecureSkipVerify,
	}

	if err := d.DialAndSend(m); err != nil {
		logger.L().Error("smtp send failed",
			logger.Component("email"),
			logger.Any("host", s.Host),
			logger.Err(err),
		)
		return err
	}
	return nil
}
