package secrets

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// ErrConfiguration wraps every failure to resolve credentials.
var ErrConfiguration = errors.New("secrets: configuration error")

// Provider resolves a logical secret name into database credentials.
type Provider interface {
	Fetch(ctx context.Context, name string) (Credentials, error)
}

// Credentials mirror the JSON document stored for the rate database.
type Credentials struct {
	DBName   string `json:"dbname"`
	Username string `json:"username"`
	Password string `json:"password"`
	Host     string `json:"host"`
	Port     Port   `json:"port"`
}

// Port accepts either a JSON number or a JSON string.
type Port string

// UnmarshalJSON implements json.Unmarshaler.
func (p *Port) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*p = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = Port(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("port: %w", err)
	}
	if _, err := strconv.ParseUint(n.String(), 10, 16); err != nil {
		return fmt.Errorf("port %s: %w", n, err)
	}
	*p = Port(n.String())
	return nil
}

// Parse decodes a secret document and checks required keys.
func Parse(raw []byte) (Credentials, error) {
	var creds Credentials
	if err := json.Unmarshal(raw, &creds); err != nil {
		return Credentials{}, fmt.Errorf("%w: decode secret: %w", ErrConfiguration, err)
	}
	if err := creds.Validate(); err != nil {
		return Credentials{}, err
	}
	return creds, nil
}

// Validate ensures all connection keys are present.
func (c Credentials) Validate() error {
	missing := make([]string, 0)
	if c.DBName == "" {
		missing = append(missing, "dbname")
	}
	if c.Username == "" {
		missing = append(missing, "username")
	}
	if c.Host == "" {
		missing = append(missing, "host")
	}
	if c.Port == "" {
		missing = append(missing, "port")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: secret missing %s", ErrConfiguration, strings.Join(missing, ", "))
	}
	return nil
}

// DSN renders the credentials as a postgres connection URL.
func (c Credentials) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.Username, c.Password),
		Host:   net.JoinHostPort(c.Host, string(c.Port)),
		Path:   "/" + c.DBName,
	}
	return u.String()
}

// FileProvider reads the secret document from a local JSON file. The name
// passed to Fetch is ignored.
type FileProvider struct {
	Path string
}

// NewFileProvider returns a provider reading path.
func NewFileProvider(path string) *FileProvider {
	return &FileProvider{Path: path}
}

// Fetch implements Provider.
func (p *FileProvider) Fetch(ctx context.Context, name string) (Credentials, error) {
	raw, err := os.ReadFile(p.Path)
	if err != nil {
		return Credentials{}, fmt.Errorf("%w: read %s: %w", ErrConfiguration, p.Path, err)
	}
	return Parse(raw)
}

var _ Provider = (*FileProvider)(nil)
