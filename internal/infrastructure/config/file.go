package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"

	"github.com/GriffinCanCode/monolith/internal/policy"
)

var ErrUnknownFormat = errors.New("unsupported policy file format")

// PolicyFile is a saved set of toggles. Unset fields leave the policy alone.
type PolicyFile struct {
	NoAudio        *bool    `yaml:"no_audio" toml:"no_audio" json:"no_audio"`
	NoVideo        *bool    `yaml:"no_video" toml:"no_video" json:"no_video"`
	NoImages       *bool    `yaml:"no_images" toml:"no_images" json:"no_images"`
	NoCSS          *bool    `yaml:"no_css" toml:"no_css" json:"no_css"`
	NoFonts        *bool    `yaml:"no_fonts" toml:"no_fonts" json:"no_fonts"`
	NoFrames       *bool    `yaml:"no_frames" toml:"no_frames" json:"no_frames"`
	NoJS           *bool    `yaml:"no_js" toml:"no_js" json:"no_js"`
	NoMetadata     *bool    `yaml:"no_metadata" toml:"no_metadata" json:"no_metadata"`
	Isolate        *bool    `yaml:"isolate" toml:"isolate" json:"isolate"`
	UnwrapNoscript *bool    `yaml:"unwrap_noscript" toml:"unwrap_noscript" json:"unwrap_noscript"`
	IgnoreErrors   *bool    `yaml:"ignore_errors" toml:"ignore_errors" json:"ignore_errors"`
	Insecure       *bool    `yaml:"insecure" toml:"insecure" json:"insecure"`
	Domains        []string `yaml:"domains" toml:"domains" json:"domains"`
	Blacklist      *bool    `yaml:"blacklist_domains" toml:"blacklist_domains" json:"blacklist_domains"`
	BaseURL        string   `yaml:"base_url" toml:"base_url" json:"base_url"`
	Encoding       string   `yaml:"encoding" toml:"encoding" json:"encoding"`
	Timeout        string   `yaml:"timeout" toml:"timeout" json:"timeout"`
	UserAgent      string   `yaml:"user_agent" toml:"user_agent" json:"user_agent"`
	Format         string   `yaml:"format" toml:"format" json:"format"`
}

// LoadPolicyFile reads a policy file, picking the decoder by extension.
func LoadPolicyFile(path string) (*PolicyFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}

	var pf PolicyFile
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &pf)
	case ".toml":
		err = toml.Unmarshal(data, &pf)
	case ".json":
		err = sonic.Unmarshal(data, &pf)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse policy file %s: %w", path, err)
	}
	return &pf, nil
}

// Apply copies every field set in the file onto p.
func (f *PolicyFile) Apply(p *policy.Policy) error {
	set := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	set(&p.NoAudio, f.NoAudio)
	set(&p.NoVideo, f.NoVideo)
	set(&p.NoImages, f.NoImages)
	set(&p.NoCSS, f.NoCSS)
	set(&p.NoFonts, f.NoFonts)
	set(&p.NoFrames, f.NoFrames)
	set(&p.NoJS, f.NoJS)
	set(&p.NoMetadata, f.NoMetadata)
	set(&p.Isolate, f.Isolate)
	set(&p.UnwrapNoscript, f.UnwrapNoscript)
	set(&p.IgnoreErrors, f.IgnoreErrors)
	set(&p.Insecure, f.Insecure)
	set(&p.BlacklistDomains, f.Blacklist)

	if f.Domains != nil {
		p.Domains = append([]string(nil), f.Domains...)
	}
	if f.BaseURL != "" {
		p.BaseURL = f.BaseURL
	}
	if f.Encoding != "" {
		p.Encoding = f.Encoding
	}
	if f.UserAgent != "" {
		p.UserAgent = f.UserAgent
	}
	if f.Timeout != "" {
		d, err := time.ParseDuration(f.Timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout %q: %w", f.Timeout, err)
		}
		p.Timeout = d
	}
	if f.Format != "" {
		format, ok := policy.ParseFormat(f.Format)
		if !ok {
			return fmt.Errorf("invalid format %q", f.Format)
		}
		p.Format = format
	}
	return nil
}
