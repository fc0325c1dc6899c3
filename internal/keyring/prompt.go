package keyring

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ttyFD returns the controlling terminal, falling back to stdin
func ttyFD() (int, func()) {
	tty, err := os.Open("/dev/tty")
	if err != nil {
		return int(os.Stdin.Fd()), func() {}
	}
	return int(tty.Fd()), func() { tty.Close() }
}

// PromptUsername reads a username line from r
func PromptUsername(r io.Reader) (string, error) {
	fmt.Fprint(os.Stderr, "Username: ")

	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("failed to read username: %w", err)
	}

	username := strings.TrimSpace(line)
	if username == "" {
		return "", fmt.Errorf("username must not be empty")
	}
	return username, nil
}

// PromptPassword prompts the user to enter a password securely (no echo)
func PromptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)

	fd, closeTTY := ttyFD()
	defer closeTTY()

	passwordBytes, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr) // Print newline after password input

	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	return string(passwordBytes), nil
}

// PromptCredentials asks for a username and a confirmed password
func PromptCredentials(in io.Reader) (Credentials, error) {
	username, err := PromptUsername(in)
	if err != nil {
		return Credentials{}, err
	}

	password, err := PromptPassword("Password: ")
	if err != nil {
		return Credentials{}, err
	}
	if password == "" {
		return Credentials{}, fmt.Errorf("password must not be empty")
	}

	confirm, err := PromptPassword("Confirm password: ")
	if err != nil {
		return Credentials{}, err
	}
	if password != confirm {
		return Credentials{}, fmt.Errorf("passwords do not match")
	}

	return Credentials{Username: username, Secret: password}, nil
}
