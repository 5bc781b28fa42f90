// Package factory maps config class names to adapter constructors. The
// table is fixed at build time; config files can only select from it.
package factory

import (
	"context"
	"fmt"

	"gopkg.in/yaml.v2"

	"github.com/racs-io/racs/internal/repository"
	"github.com/racs-io/racs/internal/repository/cloudfiles"
	"github.com/racs-io/racs/internal/repository/fs"
	"github.com/racs-io/racs/internal/repository/s3"
)

// Constructor builds one adapter from its raw option map.
type Constructor func(ctx context.Context, name string, options map[string]interface{}) (repository.Repository, error)

var table = map[string]Constructor{
	fs.Class: func(_ context.Context, name string, options map[string]interface{}) (repository.Repository, error) {
		var opts fs.Options
		if err := decode(options, &opts); err != nil {
			return nil, err
		}
		return fs.New(name, opts)
	},
	s3.Class: func(ctx context.Context, name string, options map[string]interface{}) (repository.Repository, error) {
		var opts s3.Options
		if err := decode(options, &opts); err != nil {
			return nil, err
		}
		return s3.New(ctx, name, opts)
	},
	cloudfiles.Class: func(ctx context.Context, name string, options map[string]interface{}) (repository.Repository, error) {
		var opts cloudfiles.Options
		if err := decode(options, &opts); err != nil {
			return nil, err
		}
		return cloudfiles.New(ctx, name, opts)
	},
}

// New constructs the adapter registered under class.
func New(ctx context.Context, class, name string, options map[string]interface{}) (repository.Repository, error) {
	ctor, ok := table[class]
	if !ok {
		return nil, fmt.Errorf("unknown repository class %q", class)
	}
	repo, err := ctor(ctx, name, options)
	if err != nil {
		return nil, fmt.Errorf("repository %q (%s): %w", name, class, err)
	}
	return repo, nil
}

// Classes lists the registered class names.
func Classes() []string {
	out := make([]string, 0, len(table))
	for class := range table {
		out = append(out, class)
	}
	return out
}

// decode round-trips the untyped option map through YAML into the
// adapter's typed options.
func decode(options map[string]interface{}, out interface{}) error {
	raw, err := yaml.Marshal(options)
	if err != nil {
		return fmt.Errorf("re-encode options: %w", err)
	}
	if err := yaml.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode options: %w", err)
	}
	return nil
}
