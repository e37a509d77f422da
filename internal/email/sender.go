// Package email entrega los links de tokens de un solo uso fuera de banda.
// El renderizado de templates queda fuera: los flujos arman subject y body
// planos y el Sender solo transporta.
package email

// Sender es la interfaz para enviar emails.
// Implementada por SMTPSender.
type Sender interface {
	Send(to, subject, textBody string) error
}

// NopSender descarta todo. Para dev y tests.
type NopSender struct{}

func (NopSender) Send(_, _, _ string) error { return nil }
