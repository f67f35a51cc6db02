package notify

import (
	"context"
	"errors"
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubject(t *testing.T) {
	assert.Equal(t, "[CUA] Rapport disponible — AC 0494", Subject("AC 0494"))
	assert.Equal(t, "[CUA] Rapport disponible — Dossier", Subject(""))
}

func TestRenderBodyGreetsRecipientByName(t *testing.T) {
	body, err := RenderBody("jean.dupont@mairie-latresne.fr", Notification{
		ParcelLabel: "AC 0494",
		INSEE:       "33234",
		ReportPath:  "/artifacts/report.md",
	})
	require.NoError(t, err)
	assert.Contains(t, body, "Bonjour Jean,")
	assert.Contains(t, body, "AC 0494")
	assert.Contains(t, body, "33234")
	assert.Contains(t, body, "/artifacts/report.md")
	assert.NotContains(t, body, "Carte")
}

func TestSMTPNotifierSendsOneMessagePerRecipient(t *testing.T) {
	type delivery struct {
		to  []string
		msg string
	}
	var deliveries []delivery

	n := NewSMTP(SMTPConfig{Host: "mail.example.org"})
	n.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		assert.Equal(t, "mail.example.org:587", addr)
		assert.Equal(t, "no-reply@example.org", from)
		deliveries = append(deliveries, delivery{to: to, msg: string(msg)})
		return nil
	}

	err := n.Notify(context.Background(), Notification{
		Recipients:  []string{"jean.dupont@example.org", "marie@example.org"},
		ParcelLabel: "AC 0494",
		INSEE:       "33234",
		MapPath:     "/artifacts/map.html",
	})
	require.NoError(t, err)
	require.Len(t, deliveries, 2)
	assert.Equal(t, []string{"jean.dupont@example.org"}, deliveries[0].to)
	assert.Contains(t, deliveries[0].msg, "Subject: [CUA] Rapport disponible — AC 0494")
	assert.Contains(t, deliveries[0].msg, "Bonjour Jean,")
	assert.Contains(t, deliveries[1].msg, "Bonjour Marie,")
}

func TestSMTPNotifierContinuesPastDeliveryFailures(t *testing.T) {
	n := NewSMTP(SMTPConfig{Host: "mail.example.org"})
	var attempted []string
	n.send = func(_ string, _ smtp.Auth, _ string, to []string, _ []byte) error {
		attempted = append(attempted, to[0])
		if to[0] == "down@example.org" {
			return errors.New("relay refused")
		}
		return nil
	}

	err := n.Notify(context.Background(), Notification{
		Recipients: []string{"down@example.org", "up@example.org"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "send to down@example.org")
	assert.Equal(t, []string{"down@example.org", "up@example.org"}, attempted)
}
