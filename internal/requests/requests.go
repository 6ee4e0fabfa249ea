// Package requests reads and writes the list of reservation targets.
//
// Files ending in .toml are TOML with a [[requests]] array, .yaml and .yml
// are YAML, and anything else is JSON.
package requests

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/example/slotchaser/internal/crypto"
	"github.com/example/slotchaser/internal/domain/reservation"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const DefaultSampleFile = "sample_options.json"

var (
	ErrNoRequests = errors.New("requests: file contains no requests")
	ErrNoKey      = errors.New("requests: sealed password but no secret key configured")
)

// Entry is one request as written in a file.
type Entry struct {
	URL      string `json:"url" yaml:"url" toml:"url"`
	Email    string `json:"email" yaml:"email" toml:"email"`
	Password string `json:"password" yaml:"password" toml:"password"`
	Date     string `json:"date" yaml:"date" toml:"date"`
}

type tomlFile struct {
	Requests []Entry `toml:"requests"`
}

// Unsealer opens "enc:" passwords.
type Unsealer interface {
	Unseal(sealed string) (string, error)
}

// Sample is the template written by the sample command.
func Sample() []reservation.Request {
	return []reservation.Request{{
		URL: "https://www.recreation.gov/timed-entry/10087086/ticket/10087087",
		Credentials: reservation.Credentials{
			Email:    "email",
			Password: "password",
		},
		Date: reservation.Date{Year: 2024, Month: 1, Day: 1},
	}}
}

// Load reads path and validates every entry. u may be nil when no password
// is sealed.
func Load(path string, u Unsealer) ([]reservation.Request, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading requests file: %w", err)
	}
	entries, err := Decode(b, formatOf(path))
	if err != nil {
		return nil, fmt.Errorf("parsing requests file %s: %w", path, err)
	}
	if len(entries) == 0 {
		return nil, ErrNoRequests
	}

	out := make([]reservation.Request, 0, len(entries))
	for i, e := range entries {
		r, err := e.request(u)
		if err != nil {
			return nil, fmt.Errorf("request %d: %w", i+1, err)
		}
		out = append(out, r)
	}
	return out, nil
}

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

func formatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatJSON
}

// Decode parses raw file contents.
func Decode(b []byte, f Format) ([]Entry, error) {
	var entries []Entry
	switch f {
	case FormatTOML:
		var tf tomlFile
		if err := toml.Unmarshal(b, &tf); err != nil {
			return nil, err
		}
		return tf.Requests, nil
	case FormatYAML:
		if err := yaml.Unmarshal(b, &entries); err != nil {
			return nil, err
		}
	default:
		if err := json.Unmarshal(b, &entries); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

// Encode renders entries in format f.
func Encode(entries []Entry, f Format) ([]byte, error) {
	switch f {
	case FormatTOML:
		return toml.Marshal(tomlFile{Requests: entries})
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(entries); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	b, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// Write saves reqs to path in the format its extension implies. Passwords
// are written as held in memory.
func Write(path string, reqs []reservation.Request) error {
	entries := make([]Entry, len(reqs))
	for i, r := range reqs {
		entries[i] = Entry{
			URL:      r.URL,
			Email:    r.Credentials.Email,
			Password: r.Credentials.Password.Reveal(),
			Date:     r.Date.String(),
		}
	}
	b, err := Encode(entries, formatOf(path))
	if err != nil {
		return fmt.Errorf("encoding requests: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("writing requests file: %w", err)
	}
	return nil
}

func (e Entry) request(u Unsealer) (reservation.Request, error) {
	if e.URL == "" {
		return reservation.Request{}, errors.New("url required")
	}
	parsed, err := url.Parse(e.URL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return reservation.Request{}, fmt.Errorf("url %q is not an http(s) address", e.URL)
	}
	if strings.TrimSpace(e.Email) == "" {
		return reservation.Request{}, errors.New("email required")
	}
	if e.Password == "" {
		return reservation.Request{}, errors.New("password required")
	}
	d, err := reservation.ParseDate(e.Date)
	if err != nil {
		return reservation.Request{}, err
	}

	pw := e.Password
	if crypto.IsSealed(pw) {
		if u == nil {
			return reservation.Request{}, ErrNoKey
		}
		if pw, err = u.Unseal(pw); err != nil {
			return reservation.Request{}, fmt.Errorf("password: %w", err)
		}
	}

	return reservation.Request{
		URL:         e.URL,
		Credentials: reservation.Credentials{Email: strings.TrimSpace(e.Email), Password: reservation.Secret(pw)},
		Date:        d,
	}, nil
}
