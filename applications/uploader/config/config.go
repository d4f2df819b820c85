package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

type Uploader struct {
	API      Api      `yaml:"api"`
	Endpoint Endpoint `yaml:"endpoint"`
}

type Api struct {
	HTTPAddr string `yaml:"http_addr"`
}

// Endpoint describes where selected files are posted to.
type Endpoint struct {
	URL string `yaml:"url"`
	// Timeout bounds a whole upload request; zero means no limit.
	Timeout time.Duration `yaml:"timeout"`
}

// Parse reads the YAML config file at path.
func Parse(path string) (Uploader, error) {
	var cfg Uploader

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("can't read config file: %w", err)
	}

	if err = yaml.UnmarshalStrict(data, &cfg); err != nil {
		return cfg, fmt.Errorf("can't unmarshal config: %w", err)
	}

	return cfg, nil
}

func (c Uploader) Validate() error {
	if err := c.API.Validate(); err != nil {
		return err
	}

	return c.Endpoint.Validate()
}

func (a Api) Validate() error {
	if a.HTTPAddr == "" {
		return errors.New("api.http_addr is required")
	}

	return nil
}

func (e Endpoint) Validate() error {
	if e.URL == "" {
		return errors.New("endpoint.url is required")
	}

	u, err := url.Parse(e.URL)
	if err != nil {
		return fmt.Errorf("endpoint.url is invalid: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("endpoint.url scheme must be http or https, got %q", u.Scheme)
	}

	if u.Host == "" {
		return errors.New("endpoint.url host is required")
	}

	if e.Timeout < 0 {
		return errors.New("endpoint.timeout must not be negative")
	}

	return nil
}
