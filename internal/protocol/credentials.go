package protocol

import (
	"errors"
	"strings"
)

// Server replies sent during authentication
const (
	ReplyCorrect         = "correct"
	ReplyInvalidPassword = "Invalid password."
	ReplyUnknownLogin    = "User with such login does not exist."
	ReplyLoginExists     = "User with such login exists."
	ReplyInvalidFormat   = "Invalid format"
)

// ExitCommand ends a chat session; the server echoes it back
const ExitCommand = "/exit"

// fieldSeparator splits credential fields
const fieldSeparator = "/"

// ErrInvalidFormat is returned for credential messages that are neither a
// login nor a registration
var ErrInvalidFormat = errors.New("invalid credential format")

// CredentialsKind distinguishes login attempts from registrations
type CredentialsKind int

const (
	KindLogin CredentialsKind = iota
	KindRegister
)

func (k CredentialsKind) String() string {
	switch k {
	case KindLogin:
		return "login"
	case KindRegister:
		return "register"
	default:
		return "unknown"
	}
}

// Credentials is a parsed credential message
type Credentials struct {
	Kind        CredentialsKind
	Login       string
	Password    string
	DisplayName string // only set for KindRegister
}

// ParseCredentials parses "login/password" or "login/password/display_name".
// Fields are trimmed of surrounding whitespace. Only the field count decides
// the kind; empty fields are passed through for the auth service to judge.
func ParseCredentials(payload string) (Credentials, error) {
	fields := strings.Split(payload, fieldSeparator)
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	switch len(fields) {
	case 2:
		return Credentials{Kind: KindLogin, Login: fields[0], Password: fields[1]}, nil
	case 3:
		return Credentials{Kind: KindRegister, Login: fields[0], Password: fields[1], DisplayName: fields[2]}, nil
	default:
		return Credentials{}, ErrInvalidFormat
	}
}

// Encode renders credentials back into their wire payload
func (c Credentials) Encode() string {
	if c.Kind == KindRegister {
		return strings.Join([]string{c.Login, c.Password, c.DisplayName}, fieldSeparator)
	}
	return strings.Join([]string{c.Login, c.Password}, fieldSeparator)
}
