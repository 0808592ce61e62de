// Package config reads the pdfmark configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/asaskevich/govalidator"

	"github.com/digitorus/pdfmark/jarsign"
)

func init() {
	govalidator.SetFieldsRequiredByDefault(true)
}

// DefaultLocation is the config file used when none is given.
var DefaultLocation = "./pdfmark.conf"

// Config is the root of the config
type Config struct {
	Server   Server   `toml:"server" valid:"optional"`
	Personal Personal `toml:"personal" valid:"optional"`
	Company  Company  `toml:"company" valid:"optional"`
	Audit    Audit    `toml:"audit" valid:"optional"`
}

// Server configures the HTTP API.
type Server struct {
	Listen        string `toml:"listen" valid:"required"`
	MaxUploadMB   int    `toml:"max_upload_mb" valid:"range(1|512)"`
	RatePerMinute int    `toml:"rate_per_minute" valid:"range(0|100000),optional"`
	AllowOrigin   string `toml:"allow_origin" valid:"optional"`
}

// Personal configures personal signing.
type Personal struct {
	AuditPage bool `toml:"audit_page" valid:"optional"`
}

// Company configures company signing with open-pdf-sign.
type Company struct {
	Java             string `toml:"java" valid:"optional"`
	Jar              string `toml:"jar" valid:"optional"`
	Certificate      string `toml:"certificate" valid:"optional"`
	Key              string `toml:"key" valid:"optional"`
	Keystore         string `toml:"keystore" valid:"optional"`
	KeystorePassword string `toml:"keystore_password" valid:"optional"`
	Name             string `toml:"name" valid:"required"`
	Reason           string `toml:"reason" valid:"required"`
	Location         string `toml:"location" valid:"required"`
	TSA              string `toml:"tsa" valid:"url,optional"`
	TempDir          string `toml:"temp_dir" valid:"optional"`
	RatePerMinute    int    `toml:"rate_per_minute" valid:"range(0|10000),optional"`
}

// Audit configures the signing audit log.
type Audit struct {
	DataDir string `toml:"data_dir" valid:"optional"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: Server{
			Listen:        "127.0.0.1:8080",
			MaxUploadMB:   50,
			RatePerMinute: 120,
			AllowOrigin:   "*",
		},
		Personal: Personal{AuditPage: true},
		Company: Company{
			Java:          jarsign.DefaultJava,
			Jar:           "lib/open-pdf-sign.jar",
			Name:          jarsign.DefaultCompanyName,
			Reason:        jarsign.DefaultReason,
			Location:      jarsign.DefaultLocation,
			TSA:           jarsign.DefaultTSA,
			RatePerMinute: 10,
		},
	}
}

// ValidateFields validates all the fields of the config
func (c Config) ValidateFields() error {
	if _, err := govalidator.ValidateStruct(c); err != nil {
		return err
	}
	if c.Company.Keystore == "" && (c.Company.Certificate == "") != (c.Company.Key == "") {
		return errors.New("company: certificate and key must be set together")
	}
	return nil
}

// Read reads configfile over the defaults and validates the result.
func Read(configfile string) (*Config, error) {
	if _, err := os.Stat(configfile); err != nil {
		return nil, fmt.Errorf("config file is missing: %w", err)
	}

	c := Default()
	md, err := toml.DecodeFile(configfile, c)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}

	if err := c.ValidateFields(); err != nil {
		return nil, fmt.Errorf("config is not valid: %w", err)
	}
	return c, nil
}

// Signer returns the settings of the company signer.
func (c Company) Signer() jarsign.Config {
	return jarsign.Config{
		Java:             c.Java,
		Jar:              c.Jar,
		Certificate:      c.Certificate,
		Key:              c.Key,
		Keystore:         c.Keystore,
		KeystorePassword: c.KeystorePassword,
		CompanyName:      c.Name,
		Reason:           c.Reason,
		Location:         c.Location,
		TSA:              c.TSA,
		TempDir:          c.TempDir,
	}
}

// MaxUploadBytes returns the request body limit.
func (s Server) MaxUploadBytes() int64 {
	return int64(s.MaxUploadMB) << 20
}
