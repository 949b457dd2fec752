package mock

import (
	"sync"

	mail "github.com/xhit/go-simple-mail/v2"
)

// EmailClient records sent messages instead of delivering them.
type EmailClient struct {
	sync.Mutex
	Messages []*mail.Email
}

func (s *EmailClient) SendEmail(email *mail.Email) error {
	s.Lock()
	defer s.Unlock()
	s.Messages = append(s.Messages, email)
	return nil
}

func (s *EmailClient) Last() *mail.Email {
	s.Lock()
	defer s.Unlock()
	if len(s.Messages) == 0 {
		return nil
	}
	return s.Messages[len(s.Messages)-1]
}

func NewEmailClient() *EmailClient {
	return &EmailClient{}
}
