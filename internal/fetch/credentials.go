package fetch

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"golang.org/x/term"
)

var ErrNoCredentials = errors.New("no credentials provided")

// Credentials authenticate requests against the MPII download server.
type Credentials struct {
	Username string
	Password string
}

func (c Credentials) IsZero() bool { return c.Username == "" && c.Password == "" }

// PostData encodes the credentials as a form body.
func (c Credentials) PostData() string {
	return url.Values{"username": {c.Username}, "password": {c.Password}}.Encode()
}

func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{username=%s}", c.Username)
}

// Prompter asks the operator for credentials. Passwords are read
// without echo when the input is a terminal.
type Prompter struct {
	in           *bufio.Reader
	out          io.Writer
	readPassword func() (string, error)
}

// NewTerminalPrompter returns a Prompter reading from stdin.
func NewTerminalPrompter() *Prompter {
	prompter := &Prompter{in: bufio.NewReader(os.Stdin), out: os.Stdout}

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		prompter.readPassword = func() (string, error) {
			password, err := term.ReadPassword(fd)
			fmt.Fprintln(prompter.out)
			return string(password), err
		}
	}

	return prompter
}

// NewPrompter returns a Prompter which reads plain lines from in, and
// writes prompts to out.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

// Prompt asks for a username and password.
func (prompter *Prompter) Prompt() (Credentials, error) {
	fmt.Fprint(prompter.out, "Username: ")
	username, err := prompter.readLine()
	if err != nil {
		return Credentials{}, err
	}

	fmt.Fprint(prompter.out, "Password: ")
	var password string
	if prompter.readPassword != nil {
		password, err = prompter.readPassword()
	} else {
		password, err = prompter.readLine()
	}
	if err != nil {
		return Credentials{}, err
	}

	if username == "" {
		return Credentials{}, ErrNoCredentials
	}

	return Credentials{Username: username, Password: password}, nil
}

func (prompter *Prompter) readLine() (string, error) {
	line, err := prompter.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		if errors.Is(err, io.EOF) {
			return "", ErrNoCredentials
		}
		return "", err
	}

	return strings.TrimRight(line, "\r\n"), nil
}
