package cds

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultURL is the public CDS endpoint used when neither the environment nor
// the rc file names one.
const DefaultURL = "https://cds.climate.copernicus.eu/api"

// ErrNoCredentials is returned when no API key can be found.
var ErrNoCredentials = errors.New("no CDS API key configured")

// Credentials identify the caller to the archive.
type Credentials struct {
	URL string `yaml:"url"`
	Key string `yaml:"key"`
}

// LoadCredentials resolves the endpoint and key. Non-empty url and key take
// precedence over the rc file at rcPath. A missing rc file is not an error as
// long as a key was supplied.
func LoadCredentials(url, key, rcPath string) (Credentials, error) {
	var rc Credentials
	if rcPath != "" {
		data, err := os.ReadFile(rcPath)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &rc); err != nil {
				return Credentials{}, fmt.Errorf("parse %s: %w", rcPath, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return Credentials{}, fmt.Errorf("read %s: %w", rcPath, err)
		}
	}

	creds := Credentials{URL: rc.URL, Key: rc.Key}
	if url != "" {
		creds.URL = url
	}
	if key != "" {
		creds.Key = key
	}
	if creds.URL == "" {
		creds.URL = DefaultURL
	}
	if creds.Key == "" {
		return Credentials{}, ErrNoCredentials
	}
	return creds, nil
}
