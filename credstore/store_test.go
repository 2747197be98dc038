package credstore

import (
	"os"
	"path/filepath"
	"testing"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	return Open(filepath.Join(t.TempDir(), "usertable.txt"))
}

func TestRegisterTwice(t *testing.T) {
	s := newStore(t)

	first := s.Run("bob", "hi", AuthRegister)
	if first.Code != StatusOK {
		t.Fatalf("Expected first registration to succeed, got %+v", first)
	}
	second := s.Run("bob", "other", AuthRegister)
	if second.Code != StatusUserExists {
		t.Errorf("Expected 402 on duplicate, got %+v", second)
	}
	if !second.Handled() {
		t.Error("Duplicate registration is a handled outcome")
	}
}

func TestRegisterRejectsWhitespace(t *testing.T) {
	s := newStore(t)

	tests := []struct{ user, pass string }{
		{"alice evil", "pw"},
		{"alice", "evil pw"},
		{"alice\tx", "pw"},
	}
	for _, test := range tests {
		if got := s.Run(test.user, test.pass, AuthRegister); got.Code != StatusWriteFailed {
			t.Errorf("register(%q,%q): expected 403, got %+v", test.user, test.pass, got)
		}
	}

	if got := s.Run("alice", "evil", AuthLogin); got.Code != StatusMismatch {
		t.Errorf("A refused record must not be usable for login, got %+v", got)
	}
	data, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 0 {
		t.Errorf("Expected an empty store, got %q", data)
	}
}

func TestLogin(t *testing.T) {
	s := newStore(t)
	s.Run("alice", "secret", AuthRegister)

	tests := []struct {
		user, pass string
		expected   int
	}{
		{"alice", "secret", StatusOK},
		{"alice", "wrong", StatusMismatch},
		{"nobody", "secret", StatusMismatch},
	}
	for _, test := range tests {
		if got := s.Run(test.user, test.pass, AuthLogin); got.Code != test.expected {
			t.Errorf("login(%s,%s): expected %d, got %+v", test.user, test.pass, test.expected, got)
		}
	}
}

func TestLoginMissingStore(t *testing.T) {
	s := newStore(t)
	if got := s.Login("alice", "secret"); got.Code != StatusStoreMissing {
		t.Errorf("Expected 405 without a store file, got %+v", got)
	}
}

func TestInvalidAuthType(t *testing.T) {
	s := newStore(t)
	got := s.Run("alice", "secret", "3")
	if got.Code != StatusBadAuthType {
		t.Errorf("Expected 404, got %+v", got)
	}
	if got.Handled() {
		t.Error("Invalid authtype should exit non-zero")
	}
}

func TestCannotCreateStore(t *testing.T) {
	s := Open(filepath.Join(t.TempDir(), "missing", "dir", "usertable.txt"))
	if got := s.Run("a", "b", AuthRegister); got.Code != StatusCreateFailed {
		t.Errorf("Expected 401, got %+v", got)
	}
}

func TestSkipsCommentsAndBlankLines(t *testing.T) {
	s := newStore(t)
	content := "# users\n\nbob pw1\nmalformed\n  carol   pw2  \n"
	if err := os.WriteFile(s.Path(), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	if got := s.Login("carol", "pw2"); got.Code != StatusOK {
		t.Errorf("Expected carol to log in, got %+v", got)
	}
	if taken, _ := s.Taken("malformed"); taken {
		t.Error("Single-field line should be ignored")
	}
	if taken, _ := s.Taken("#"); taken {
		t.Error("Comment line should be ignored")
	}
}

func TestStatusLine(t *testing.T) {
	got := Status{StatusOK, "login success"}.Line()
	want := `{"status": "200","msg": "login success"}`
	if got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}

	if got := StatusLine(StatusInvokeFailure, `cgi "run" error`); got != `{"status": "409","msg": "cgi \"run\" error"}` {
		t.Errorf("Message should be JSON escaped, got %s", got)
	}
}
