package gateway

import (
	"context"
	"errors"
	"net/smtp"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cityflow/cityflow/internal/domain"
)

func TestLocalPhotoStorageSave(t *testing.T) {
	dir := t.TempDir()
	s := NewLocalPhotoStorage(dir, "http://localhost:8000/media/")

	url, err := s.Save(context.Background(), "complaints", "Foto.JPG", []byte("jpeg"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "http://localhost:8000/media/complaints/"))
	assert.True(t, strings.HasSuffix(url, ".jpg"))

	name := filepath.Base(url)
	data, err := os.ReadFile(filepath.Join(dir, "complaints", name))
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg"), data)

	other, err := s.Save(context.Background(), "complaints", "Foto.JPG", []byte("jpeg"))
	require.NoError(t, err)
	assert.NotEqual(t, url, other)
}

func TestLocalPhotoStorageRejectsUnknownType(t *testing.T) {
	s := NewLocalPhotoStorage(t.TempDir(), "/media")

	_, err := s.Save(context.Background(), "complaints", "script.sh", []byte("#!/bin/sh"))
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestSMTPNotifierSends(t *testing.T) {
	n := NewSMTPNotifier(SMTPConfig{Host: "smtp.example.com", Port: 587, Username: "bot@example.com", Password: "secret"})

	var mu sync.Mutex
	var sent []string
	var gotAddr string
	n.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		mu.Lock()
		defer mu.Unlock()
		gotAddr = addr
		sent = append(sent, string(msg))
		assert.Equal(t, "bot@example.com", from)
		assert.Equal(t, []string{"citizen@example.com"}, to)
		return nil
	}

	n.Notify(context.Background(), domain.Notification{To: "citizen@example.com", Subject: "Durum", Body: "çözüldü"})
	n.Wait()

	require.Len(t, sent, 1)
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Contains(t, sent[0], "Subject: Durum\r\n")
	assert.True(t, strings.HasSuffix(sent[0], "\r\n\r\nçözüldü"))
}

func TestSMTPNotifierSwallowsFailures(t *testing.T) {
	n := NewSMTPNotifier(SMTPConfig{Host: "smtp.example.com", Port: 587, Username: "bot", Password: "secret"})
	n.send = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("connection refused")
	}

	n.Notify(context.Background(), domain.Notification{To: "x@example.com"})
	n.Wait()
}

func TestSMTPNotifierUnconfigured(t *testing.T) {
	n := NewSMTPNotifier(SMTPConfig{})
	called := false
	n.send = func(string, smtp.Auth, string, []string, []byte) error {
		called = true
		return nil
	}

	n.Notify(context.Background(), domain.Notification{To: "x@example.com"})
	n.Wait()
	assert.False(t, called)
}

func TestBuildMessageEncodesSubject(t *testing.T) {
	msg := string(buildMessage("bot@example.com", domain.Notification{To: "a@example.com", Subject: "Şikayetiniz güncellendi", Body: "x"}))
	assert.Contains(t, msg, "Subject: =?utf-8?q?")
	assert.NotContains(t, msg, "Subject: Şikayetiniz")
}

func TestLocalPhotoStorageDelete(t *testing.T) {
	dir := t.TempDir()
	s := NewLocalPhotoStorage(dir, "/media")

	url, err := s.Save(context.Background(), "solutions", "a.png", []byte("png"))
	require.NoError(t, err)
	path := filepath.Join(dir, "solutions", filepath.Base(url))
	_, err = os.Stat(path)
	require.NoError(t, err)

	require.NoError(t, s.Delete(context.Background(), url))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// already gone
	assert.NoError(t, s.Delete(context.Background(), url))

	outside := filepath.Join(dir, "keep.txt")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0o600))
	assert.NoError(t, s.Delete(context.Background(), "/media/../keep.txt"))
	assert.NoError(t, s.Delete(context.Background(), "https://elsewhere/keep.txt"))
	_, err = os.Stat(outside)
	assert.NoError(t, err)
}
