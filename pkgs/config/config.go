// Package config loads gounit.yaml.
//
// The file is decoded with yaml.v3, converted to its JSON form and validated
// against an embedded JSON schema before it is decoded into Config, so type
// and enum errors are reported with the offending key.
package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"

	"github.com/aledsdavies/gounit/core/naming"
	"github.com/aledsdavies/gounit/pkgs/generator"
)

// FileNames are the names looked for by Discover, in order
var FileNames = []string{"gounit.yaml", "gounit.yml"}

// SupportedMajor is the config major version this build reads
const SupportedMajor = "v1"

// DefaultSuffix is appended to the base name of a specification
const DefaultSuffix = "_gounit_test.go"

// Naming strategies for the outer scope
const (
	NamingFixed    = "fixed"
	NamingSequence = "sequence"
	NamingContent  = "content"
)

//go:embed schema.json
var schemaJSON []byte

// Config is the content of gounit.yaml
type Config struct {
	Version  string  `yaml:"version"`
	Package  string  `yaml:"package"`
	Layout   string  `yaml:"layout"`
	Naming   string  `yaml:"naming"`
	Root     string  `yaml:"root"`
	Prefix   *string `yaml:"prefix"` // nil means generator.DefaultPrefix, "" means none
	Parallel bool    `yaml:"parallel"`
	Teardown string  `yaml:"teardown"`
	Suffix   string  `yaml:"suffix"`

	// Path is the file the config was read from, empty for defaults
	Path string `yaml:"-"`
}

// Default returns the configuration used when no file exists
func Default() *Config {
	return &Config{
		Version:  SupportedMajor,
		Layout:   string(generator.LayoutFunctions),
		Naming:   NamingFixed,
		Root:     naming.DefaultRoot,
		Teardown: string(generator.TeardownInline),
		Suffix:   DefaultSuffix,
	}
}

// Load reads and validates a config file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.Path = path
	return cfg, nil
}

// Discover loads the first config file found in dir, or the defaults
func Discover(dir string) (*Config, error) {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, err
		}
		return Load(path)
	}
	return Default(), nil
}

// Parse decodes and validates config content. Keys that are not set keep
// their defaults.
func Parse(data []byte) (*Config, error) {
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	if raw == nil {
		// Empty file.
		return Default(), nil
	}

	doc, err := toJSONValue(raw)
	if err != nil {
		return nil, err
	}
	if err := schema().Validate(doc); err != nil {
		return nil, convertValidationError(err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// toJSONValue round-trips a YAML value through encoding/json so the
// validator sees JSON types (json.Number, map[string]interface{})
func toJSONValue(v interface{}) (interface{}, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("config is not representable as JSON: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var out interface{}
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

var schema = sync.OnceValue(compileSchema)

func compileSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	compiler.AssertFormat = true
	if compiler.Formats == nil {
		compiler.Formats = make(map[string]func(interface{}) bool)
	}
	compiler.Formats["semver"] = func(v interface{}) bool {
		s, ok := v.(string)
		if !ok {
			return true // Type validation happens separately
		}
		return semver.IsValid(canonicalVersion(s))
	}

	const url = "schema://gounit.json"
	if err := compiler.AddResource(url, bytes.NewReader(schemaJSON)); err != nil {
		panic(fmt.Sprintf("embedded config schema: %v", err))
	}
	return compiler.MustCompile(url)
}

// convertValidationError flattens the validator's error tree into one line
// per failing key
func convertValidationError(err error) error {
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return err
	}

	var msgs []string
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			loc := strings.TrimPrefix(e.InstanceLocation, "/")
			if loc == "" {
				msgs = append(msgs, e.Message)
			} else {
				msgs = append(msgs, fmt.Sprintf("%s: %s", loc, e.Message))
			}
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(verr)
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func canonicalVersion(s string) string {
	if !strings.HasPrefix(s, "v") {
		return "v" + s
	}
	return s
}

// Validate checks values the schema cannot express
func (c *Config) Validate() error {
	v := canonicalVersion(c.Version)
	if !semver.IsValid(v) {
		return fmt.Errorf("invalid config version %q", c.Version)
	}
	if major := semver.Major(v); major != SupportedMajor {
		return fmt.Errorf("unsupported config version %s: this gounit reads %s", c.Version, SupportedMajor)
	}
	if c.Package != "" && (!token.IsIdentifier(c.Package) || c.Package == "_") {
		return fmt.Errorf("invalid package name %q", c.Package)
	}
	if _, err := generator.ParseLayout(c.Layout); err != nil {
		return err
	}
	if _, err := generator.ParseTeardownMode(c.Teardown); err != nil {
		return err
	}
	switch c.Naming {
	case NamingFixed, NamingSequence, NamingContent:
	default:
		return fmt.Errorf("unknown naming %q (want %s, %s or %s)", c.Naming, NamingFixed, NamingSequence, NamingContent)
	}
	if c.Naming == NamingFixed && !naming.IsIdentFragment(c.Root) {
		return fmt.Errorf("root %q is not a valid identifier fragment", c.Root)
	}
	if !strings.HasSuffix(c.Suffix, "_test.go") {
		return fmt.Errorf("suffix %q must end in _test.go", c.Suffix)
	}
	return nil
}

// Overrides are values set on the command line. Nil fields are not set.
type Overrides struct {
	Package  *string
	Layout   *string
	Naming   *string
	Prefix   *string
	Parallel *bool
	Teardown *string
}

// Apply returns a copy of c with the overrides applied and validated
func (c *Config) Apply(o Overrides) (*Config, error) {
	out := *c
	if o.Package != nil {
		out.Package = *o.Package
	}
	if o.Layout != nil {
		out.Layout = *o.Layout
	}
	if o.Naming != nil {
		out.Naming = *o.Naming
	}
	if o.Prefix != nil {
		p := *o.Prefix
		out.Prefix = &p
	}
	if o.Parallel != nil {
		out.Parallel = *o.Parallel
	}
	if o.Teardown != nil {
		out.Teardown = *o.Teardown
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return &out, nil
}

// GeneratorOptions converts the config into generator options. The config
// must have been validated.
func (c *Config) GeneratorOptions() generator.Options {
	layout, _ := generator.ParseLayout(c.Layout)
	teardown, _ := generator.ParseTeardownMode(c.Teardown)

	prefix := generator.DefaultPrefix
	if c.Prefix != nil {
		prefix = *c.Prefix
	}
	return generator.Options{
		Package:  c.Package,
		Layout:   layout,
		Prefix:   prefix,
		Parallel: c.Parallel,
		Teardown: teardown,
	}
}

// ScopeNamer builds the outer scope namer. A sequence namer must be shared by
// every file of one run, so call this once per run.
func (c *Config) ScopeNamer() naming.ScopeNamer {
	switch c.Naming {
	case NamingSequence:
		return naming.NewSequence("")
	case NamingContent:
		return naming.ContentHash{}
	default:
		return naming.Fixed(c.Root)
	}
}
