package admin

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dmitrijs2005/gophtalk/internal/common"
	"golang.org/x/term"
)

const tempPasswordLength = 10

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

var errPasswordMismatch = errors.New("passwords do not match")

// promptPassword asks twice for a password. On a terminal input is not
// echoed; otherwise lines are read from in.
func promptPassword(in io.Reader, w io.Writer) (string, error) {
	fd := int(os.Stdin.Fd())
	isTTY := in == os.Stdin && term.IsTerminal(fd)
	reader := bufio.NewReader(in)

	read := func(prompt string) (string, error) {
		if _, err := fmt.Fprint(w, prompt); err != nil {
			return "", err
		}
		if isTTY {
			pw, err := readPassword(fd)
			fmt.Fprintln(w)
			return string(pw), err
		}
		line, err := reader.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && len(line) > 0) {
			return "", err
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	first, err := read("Temporary password: ")
	if err != nil {
		return "", err
	}
	if first == "" {
		return "", errors.New("empty password")
	}
	second, err := read("Repeat password: ")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", errPasswordMismatch
	}
	return first, nil
}

// tempPassword returns a generated password unless prompt is set.
func (a *app) tempPassword(prompt bool) (string, error) {
	if prompt {
		return promptPassword(a.in, a.out)
	}
	return common.GenerateTempPassword(tempPasswordLength)
}
