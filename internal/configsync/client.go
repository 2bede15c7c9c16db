package configsync

import (
	"context"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/mold/v4"
	"github.com/go-playground/mold/v4/modifiers"
	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"

	"github.com/mattfryer/bookstack-addon/internal/model"
)

const envPrefix = "BOOKSTACK_"

type FetchResult struct {
	Configured bool
	Instances  []model.Options
}

// Client reads the add-on options file. When the file does not exist the
// BOOKSTACK_* environment variables describe a single instance.
type Client struct {
	path     string
	conform  *mold.Transformer
	validate *validator.Validate
}

func NewClient(path string) *Client {
	return &Client{
		path:     strings.TrimSpace(path),
		conform:  modifiers.New(),
		validate: newValidator(),
	}
}

// newValidator reports fields by their option key.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("koanf"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type instanceOptions struct {
	ID              string `koanf:"id" mod:"trim"`
	URL             string `koanf:"url" mod:"trim" validate:"required,http_url"`
	TokenID         string `koanf:"token_id" mod:"trim" validate:"required"`
	TokenSecret     string `koanf:"token_secret" mod:"trim" validate:"required"`
	ScanInterval    int    `koanf:"scan_interval" default:"300" validate:"gt=0"`
	PerShelfEnabled *bool  `koanf:"per_shelf_enabled" default:"true"`
}

func (o instanceOptions) empty() bool {
	return o.URL == "" && o.TokenID == "" && o.TokenSecret == ""
}

func (c *Client) FetchConfig(ctx context.Context) (FetchResult, error) {
	k, err := c.load()
	if err != nil {
		return FetchResult{}, err
	}

	if k.Exists("instances") {
		var raw []instanceOptions
		if err := k.Unmarshal("instances", &raw); err != nil {
			return FetchResult{}, errors.Wrap(err, "decode instances")
		}
		return c.normalizeAll(ctx, raw)
	}

	var single instanceOptions
	if err := k.Unmarshal("", &single); err != nil {
		return FetchResult{}, errors.Wrap(err, "decode options")
	}
	if single.ID == "" {
		single.ID = model.DefaultInstanceID
	}
	return c.normalizeAll(ctx, []instanceOptions{single})
}

func (c *Client) load() (*koanf.Koanf, error) {
	k := koanf.New(".")
	if c.path != "" {
		if _, err := os.Stat(c.path); err == nil {
			if err := k.Load(file.Provider(c.path), yaml.Parser()); err != nil {
				return nil, errors.Wrapf(err, "read options %s", c.path)
			}
			return k, nil
		} else if !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "stat options %s", c.path)
		}
	}
	err := k.Load(env.Provider(envPrefix, ".", func(key string) string {
		return strings.ToLower(strings.TrimPrefix(key, envPrefix))
	}), nil)
	if err != nil {
		return nil, errors.Wrap(err, "read options from environment")
	}
	return k, nil
}

// normalizeAll applies defaults and validation. Instances with no URL and
// no credentials are skipped; if none remain the add-on is not configured.
func (c *Client) normalizeAll(ctx context.Context, raw []instanceOptions) (FetchResult, error) {
	seen := map[string]struct{}{}
	instances := make([]model.Options, 0, len(raw))
	for i := range raw {
		opts := raw[i]
		if err := c.conform.Struct(ctx, &opts); err != nil {
			return FetchResult{}, errors.WithStack(err)
		}
		if opts.empty() {
			continue
		}
		if err := defaults.Set(&opts); err != nil {
			return FetchResult{}, errors.WithStack(err)
		}
		if opts.ID == "" {
			return FetchResult{}, fmt.Errorf("instances[%d]: id is required", i)
		}
		if err := c.validate.StructCtx(ctx, opts); err != nil {
			return FetchResult{}, fmt.Errorf("instance %q: %w", opts.ID, describe(err))
		}
		if _, dup := seen[opts.ID]; dup {
			return FetchResult{}, fmt.Errorf("instance %q is defined more than once", opts.ID)
		}
		seen[opts.ID] = struct{}{}

		instances = append(instances, model.Options{
			ID:              opts.ID,
			URL:             strings.TrimRight(opts.URL, "/"),
			TokenID:         opts.TokenID,
			TokenSecret:     opts.TokenSecret,
			ScanIntervalSec: opts.ScanInterval,
			PerShelfEnabled: *opts.PerShelfEnabled,
		})
	}
	if len(instances) == 0 {
		return FetchResult{Configured: false}, nil
	}
	return FetchResult{Configured: true, Instances: instances}, nil
}

func describe(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}
	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s is required", fe.Field())
	case "http_url":
		return fmt.Errorf("%s must be an http(s) URL", fe.Field())
	case "gt":
		return fmt.Errorf("%s must be greater than %s", fe.Field(), fe.Param())
	default:
		return fmt.Errorf("%s is invalid", fe.Field())
	}
}
