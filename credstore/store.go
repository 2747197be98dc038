// Package credstore is the flat-file username/password table behind the
// auth.cgi credential process.
//
// Records are one per line, "username password", whitespace separated.
// Blank lines and lines starting with '#' are skipped. Every lookup is a
// full scan and nothing is locked: two concurrent registrations of the
// same name can both pass the uniqueness check before either appends.
package credstore

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"unicode"
)

// Status codes written on the status line
const (
	StatusOK            = 200
	StatusCreateFailed  = 401
	StatusUserExists    = 402
	StatusWriteFailed   = 403
	StatusBadAuthType   = 404
	StatusStoreMissing  = 405
	StatusMismatch      = 406
	StatusInvokeFailure = 409
)

// Auth types passed as the third process argument
const (
	AuthRegister = "1"
	AuthLogin    = "2"
)

// Status is the outcome of one credential operation
type Status struct {
	Code int
	Msg  string
}

// Line renders the status as the one-line text the server captures
func (s Status) Line() string {
	return StatusLine(s.Code, s.Msg)
}

// Handled reports whether the process should exit 0. Internal failures
// (store unusable, bad arguments) exit non-zero.
func (s Status) Handled() bool {
	switch s.Code {
	case StatusOK, StatusUserExists, StatusMismatch:
		return true
	}
	return false
}

// StatusLine renders {"status": "<code>","msg": "<text>"}
func StatusLine(code int, msg string) string {
	quoted, _ := json.Marshal(msg)
	return fmt.Sprintf(`{"status": "%d","msg": %s}`, code, quoted)
}

// Store is a credential table backed by one text file
type Store struct {
	path string
}

// Open returns a store for path without touching the file
func Open(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file
func (s *Store) Path() string {
	return s.path
}

// Ensure creates an empty store file if none exists
func (s *Store) Ensure() error {
	if _, err := os.Stat(s.path); err == nil {
		return nil
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create credential store %s: %w", s.path, err)
	}
	return f.Close()
}

// scan calls fn for every well-formed record until fn returns false
func (s *Store) scan(fn func(user, pass string) bool) error {
	f, err := os.Open(s.path)
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if line == "" || line[0] == '#' {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		if !fn(fields[0], fields[1]) {
			break
		}
	}
	return sc.Err()
}

// Taken reports whether username already has a record
func (s *Store) Taken(username string) (bool, error) {
	taken := false
	err := s.scan(func(user, _ string) bool {
		if user == username {
			taken = true
			return false
		}
		return true
	})
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return taken, err
}

// Register appends a record unless the name is already present.
// Fields containing whitespace would split into a different record and
// are refused.
func (s *Store) Register(username, password string) Status {
	if strings.ContainsFunc(username+password, unicode.IsSpace) {
		return Status{StatusWriteFailed, "register failure: whitespace in username or password"}
	}
	taken, err := s.Taken(username)
	if err != nil {
		return Status{StatusWriteFailed, "register failure: " + err.Error()}
	}
	if taken {
		return Status{StatusUserExists, "register failure, user exists: " + username}
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return Status{StatusWriteFailed, "register failure: cannot open user store"}
	}
	_, werr := fmt.Fprintf(f, "%s %s\n", username, password)
	cerr := f.Close()
	if werr != nil || cerr != nil {
		return Status{StatusWriteFailed, "register failure: write error"}
	}
	return Status{StatusOK, "register success"}
}

// Login checks username and password against the table. A later record
// for the same name overrides an earlier one.
func (s *Store) Login(username, password string) Status {
	var stored string
	found := false
	err := s.scan(func(user, pass string) bool {
		if user == username {
			stored = pass
			found = true
		}
		return true
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Status{StatusStoreMissing, "login failure: user store missing"}
		}
		return Status{StatusStoreMissing, "login failure: " + err.Error()}
	}
	if !found || stored != password {
		return Status{StatusMismatch, "login failure: username or password mismatch"}
	}
	return Status{StatusOK, "login success"}
}

// Run performs what the credential process does for one invocation:
// make sure the store exists, then register or log in.
func (s *Store) Run(username, password, authType string) Status {
	if err := s.Ensure(); err != nil {
		return Status{StatusCreateFailed, "cant create user store: " + s.path}
	}
	switch authType {
	case AuthRegister:
		return s.Register(username, password)
	case AuthLogin:
		return s.Login(username, password)
	default:
		return Status{StatusBadAuthType, "invalid authtype: " + authType}
	}
}
