package mailer

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoArmGo/ProofGallery/internal/logger"
)

func TestSendBuildsMessage(t *testing.T) {
	m := NewSMTPMailer(Config{
		Host: "smtp.example.com",
		Port: 587,
		User: "u",
		From: "Studio <noreply@example.com>",
	}, logger.Nop())

	var (
		gotAddr string
		gotFrom string
		gotTo   []string
		gotMsg  string
	)
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, string(msg)
		return nil
	}

	require.NoError(t, m.Send(context.Background(), "client@example.com", "Gallery ready", "line1\nline2"))
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, "noreply@example.com", gotFrom)
	assert.Equal(t, []string{"client@example.com"}, gotTo)
	assert.True(t, strings.Contains(gotMsg, "Subject: Gallery ready\r\n"))
	assert.True(t, strings.HasSuffix(gotMsg, "line1\r\nline2"))
}

func TestSendWithoutHostIsNoop(t *testing.T) {
	m := NewSMTPMailer(Config{}, logger.Nop())
	m.send = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("send must not be called")
		return nil
	}
	assert.NoError(t, m.Send(context.Background(), "a@b.c", "s", "b"))
}

func TestSendWrapsError(t *testing.T) {
	m := NewSMTPMailer(Config{Host: "h", Port: 25}, logger.Nop())
	boom := errors.New("boom")
	m.send = func(string, smtp.Auth, string, []string, []byte) error { return boom }

	err := m.Send(context.Background(), "a@b.c", "s", "b")
	assert.ErrorIs(t, err, boom)
}
