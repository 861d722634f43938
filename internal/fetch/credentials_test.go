package fetch_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/hbomb79/synthmocap/internal/fetch"
	"github.com/stretchr/testify/assert"
)

func Test_Prompter_ReadsUsernameAndPassword(t *testing.T) {
	var out bytes.Buffer
	prompter := fetch.NewPrompter(strings.NewReader("alice\nhunter2\r\n"), &out)

	creds, err := prompter.Prompt()
	assert.NoError(t, err)
	assert.Equal(t, fetch.Credentials{Username: "alice", Password: "hunter2"}, creds)
	assert.Equal(t, "Username: Password: ", out.String())
	assert.NotContains(t, creds.String(), "hunter2", "passwords must not be printed")
}

func Test_Prompter_PasswordWithoutTrailingNewline(t *testing.T) {
	var out bytes.Buffer
	creds, err := fetch.NewPrompter(strings.NewReader("alice\nhunter2"), &out).Prompt()
	assert.NoError(t, err)
	assert.Equal(t, "hunter2", creds.Password)
}

func Test_Prompter_EmptyInput(t *testing.T) {
	var out bytes.Buffer
	_, err := fetch.NewPrompter(strings.NewReader(""), &out).Prompt()
	assert.ErrorIs(t, err, fetch.ErrNoCredentials)

	_, err = fetch.NewPrompter(strings.NewReader("\nsecret\n"), &out).Prompt()
	assert.ErrorIs(t, err, fetch.ErrNoCredentials)
}

func Test_Credentials_IsZero(t *testing.T) {
	assert.True(t, fetch.Credentials{}.IsZero())
	assert.False(t, fetch.Credentials{Username: "alice"}.IsZero())
	assert.False(t, fetch.Credentials{Password: "hunter2"}.IsZero())
}
