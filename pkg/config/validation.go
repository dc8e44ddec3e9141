package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterStructValidation(validateStore, StoreConfig{})
	})
	return validate
}

// Validate checks cfg against its struct tags and the per-driver rules of
// every store. Call it after ApplyDefaults.
func Validate(cfg *Config) error {
	if err := getValidator().Struct(cfg); err != nil {
		return err
	}

	// Local stores sharing a root must use distinct containers.
	seen := map[string]string{}
	for _, ks := range cfg.stores() {
		kind, s := ks.kind, ks.cfg
		if s.Type != StoreTypeLocal {
			continue
		}
		id := s.Local.Path + "\x00" + s.Container
		if other, ok := seen[id]; ok {
			return fmt.Errorf("%s and %s share local container %q under %s", other, kind, s.Container, s.Local.Path)
		}
		seen[id] = kind
	}
	return nil
}

func validateStore(sl validator.StructLevel) {
	s := sl.Current().Interface().(StoreConfig)

	switch s.Type {
	case StoreTypeLocal:
		if s.Local.Path == "" {
			sl.ReportError(s.Local.Path, "Local.Path", "Path", "required_for_local", "")
		}
	case StoreTypeS3:
		if (s.S3.AccessKeyID == "") != (s.S3.SecretAccessKey == "") {
			sl.ReportError(s.S3.SecretAccessKey, "S3.SecretAccessKey", "SecretAccessKey", "credentials_pair", "")
		}
		if strings.HasPrefix(s.S3.KeyPrefix, "/") {
			sl.ReportError(s.S3.KeyPrefix, "S3.KeyPrefix", "KeyPrefix", "relative_prefix", "")
		}
	}
}

type kindStore struct {
	kind string
	cfg  StoreConfig
}

// stores returns the store descriptors in route order.
func (c *Config) stores() []kindStore {
	return []kindStore{
		{"buildpacks", c.Buildpacks},
		{"droplets", c.Droplets},
		{"packages", c.Packages},
	}
}
