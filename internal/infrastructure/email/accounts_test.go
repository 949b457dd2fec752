package email

import (
	"testing"

	"github.com/gisquick/accounts-server/internal/domain"
	"github.com/gisquick/accounts-server/internal/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountsEmailSender(t *testing.T) {
	client := mock.NewEmailClient()
	sender := NewAccountsEmailSender(client, "noreply@example.com", "https://example.com", Subjects{
		Activation:      "Activate account",
		Confirmation:    "Account activated",
		PasswordReset:   "Password reset",
		PasswordChanged: "Password changed",
	})
	user, err := domain.NewUser("john", "john@example.com", "", "", "")
	require.NoError(t, err)

	require.NoError(t, sender.SendActivationEmail(user, "dWlk", "tok"))
	msg := client.Last()
	require.NotNil(t, msg)
	assert.Equal(t, []string{"john@example.com"}, msg.GetRecipients())
	assert.Contains(t, msg.GetMessage(), "Activate account")
	assert.Contains(t, msg.GetMessage(), "/accounts/activate/")

	require.NoError(t, sender.SendPasswordResetEmail(user, "dWlk", "tok"))
	assert.Contains(t, client.Last().GetMessage(), "/accounts/new-password/")

	require.NoError(t, sender.SendConfirmationEmail(user))
	require.NoError(t, sender.SendPasswordChangedEmail(user))
	assert.Len(t, client.Messages, 4)
}

func TestParseEncryption(t *testing.T) {
	for _, v := range []string{"", "none", "SSL", "tls", "starttls"} {
		_, err := ParseEncryption(v)
		assert.NoError(t, err, v)
	}
	_, err := ParseEncryption("rot13")
	assert.Error(t, err)
}
