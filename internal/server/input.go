package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/dmitrijs2005/denauth/internal/common"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

var (
	errEmptyPassword    = errors.New("passphrase must not be empty")
	errPasswordMismatch = errors.New("passphrases do not match")
)

// getPassword prints prompt to w and reads a line from the terminal without
// echo. The caller should wipe the result.
func getPassword(w io.Writer, prompt string) ([]byte, error) {
	if _, err := fmt.Fprint(w, prompt); err != nil {
		return nil, err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return nil, err
	}
	return pw, nil
}

// getNewPassword asks for a passphrase twice.
func getNewPassword(w io.Writer) ([]byte, error) {
	first, err := getPassword(w, "New passphrase: ")
	if err != nil {
		return nil, err
	}
	if len(first) == 0 {
		return nil, errEmptyPassword
	}

	second, err := getPassword(w, "Repeat passphrase: ")
	defer common.WipeByteArray(second)
	if err != nil {
		common.WipeByteArray(first)
		return nil, err
	}
	if !bytes.Equal(first, second) {
		common.WipeByteArray(first)
		return nil, errPasswordMismatch
	}
	return first, nil
}
