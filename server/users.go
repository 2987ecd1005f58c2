package server

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Role controls whether an account may log in.
type Role int

const (
	// RoleNormal accounts may log in.
	RoleNormal Role = iota
	// RoleBlocked accounts exist but are refused with 530.
	RoleBlocked
	// RoleNotAllowed accounts exist but are refused with 530.
	RoleNotAllowed
)

// ParseRole parses a role name. The empty string is RoleNormal.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "normal":
		return RoleNormal, nil
	case "blocked":
		return RoleBlocked, nil
	case "notallowed", "not_allowed":
		return RoleNotAllowed, nil
	default:
		return RoleNormal, fmt.Errorf("unknown role %q", s)
	}
}

func (r Role) String() string {
	switch r {
	case RoleBlocked:
		return "blocked"
	case RoleNotAllowed:
		return "notallowed"
	default:
		return "normal"
	}
}

// Account is a configured FTP user.
//
// Password is either a plain-text secret or a bcrypt hash ($2a$, $2b$, $2y$).
// RootPath must be absolute; it is the directory the account is jailed to.
type Account struct {
	Name     string
	Password string
	Role     Role
	RootPath string
}

// CheckPassword reports whether pass matches the account's password.
func (a Account) CheckPassword(pass string) bool {
	if isBcryptHash(a.Password) {
		return bcrypt.CompareHashAndPassword([]byte(a.Password), []byte(pass)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(a.Password), []byte(pass)) == 1
}

func isBcryptHash(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}

// HashPassword returns a bcrypt hash suitable for Account.Password.
func HashPassword(pass string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(pass), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

// ErrDuplicateAccount is returned by NewUserDirectory when two accounts share a name.
var ErrDuplicateAccount = errors.New("duplicate account")

// UserDirectory is an immutable account table. It is built once and shared
// read-only by every session.
type UserDirectory struct {
	accounts map[string]Account
}

// NewUserDirectory validates the accounts and builds the table.
func NewUserDirectory(accounts ...Account) (*UserDirectory, error) {
	d := &UserDirectory{accounts: make(map[string]Account, len(accounts))}
	for _, a := range accounts {
		if a.Name == "" {
			return nil, errors.New("account name is empty")
		}
		if strings.ContainsAny(a.Name, " \r\n") {
			return nil, fmt.Errorf("account %q: name contains whitespace", a.Name)
		}
		if !filepath.IsAbs(a.RootPath) {
			return nil, fmt.Errorf("account %q: root path %q is not absolute", a.Name, a.RootPath)
		}
		if _, ok := d.accounts[a.Name]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateAccount, a.Name)
		}
		a.RootPath = filepath.Clean(a.RootPath)
		d.accounts[a.Name] = a
	}
	return d, nil
}

// Lookup returns the account with the given name.
func (d *UserDirectory) Lookup(name string) (Account, bool) {
	a, ok := d.accounts[name]
	return a, ok
}

// Len returns the number of accounts.
func (d *UserDirectory) Len() int {
	return len(d.accounts)
}
