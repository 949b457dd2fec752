package email

import (
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	mail "github.com/xhit/go-simple-mail/v2"
)

type SmtpEmailService struct {
	Host       string
	Port       int
	Username   string
	Password   string
	Encryption string
	// skip TLS verification (self-signed certificates on local mail servers)
	Insecure bool
}

func ParseEncryption(value string) (mail.Encryption, error) {
	switch strings.ToLower(value) {
	case "", "none":
		return mail.EncryptionNone, nil
	case "ssl", "tls", "ssl/tls":
		return mail.EncryptionSSLTLS, nil
	case "starttls":
		return mail.EncryptionSTARTTLS, nil
	}
	return mail.EncryptionNone, fmt.Errorf("unknown email encryption: %s", value)
}

func (s *SmtpEmailService) SendEmail(email *mail.Email) error {
	encryption, err := ParseEncryption(s.Encryption)
	if err != nil {
		return err
	}
	smtp := mail.NewSMTPClient()
	smtp.Host = s.Host
	smtp.Port = s.Port
	smtp.Username = s.Username
	smtp.Password = s.Password
	smtp.Encryption = encryption

	smtp.KeepAlive = false
	smtp.ConnectTimeout = 10 * time.Second
	smtp.SendTimeout = 10 * time.Second
	if s.Insecure {
		smtp.TLSConfig = &tls.Config{InsecureSkipVerify: true}
	}

	client, err := smtp.Connect()
	if err != nil {
		return err
	}
	defer client.Close()
	return email.Send(client)
}
