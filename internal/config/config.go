// Package config resolves the settings of a merge run from built-in defaults,
// an optional YAML file, PDFMERGE_* environment variables and command-line
// flags, in increasing order of precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

const (
	// NoCompression skips the compress step.
	NoCompression = -1
	// MaxCompression is the strongest quality preset (screen).
	MaxCompression = 4

	DefaultOutput = "output.pdf"
)

// Config holds the settings of one merge run.
type Config struct {
	InputDir    string `yaml:"input"`
	Output      string `yaml:"output"`
	Sort        bool   `yaml:"sort"`
	Compression int    `yaml:"compression"`
	Publish     string `yaml:"publish"`
	Verbose     bool   `yaml:"verbose"`
}

// Default returns the built-in settings. inputDir is normally the directory
// of the running executable.
func Default(inputDir string) Config {
	return Config{
		InputDir:    inputDir,
		Output:      DefaultOutput,
		Sort:        true,
		Compression: NoCompression,
	}
}

// ExecutableDir returns the directory holding the running program.
func ExecutableDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to locate executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe), nil
}

// OutputPath is the output file inside the input directory.
func (c Config) OutputPath() string {
	return filepath.Join(c.InputDir, c.Output)
}

// CompressionRequested reports whether the compress step runs.
func (c Config) CompressionRequested() bool {
	return c.Compression != NoCompression
}

// Validate checks values that flags and files cannot constrain by type.
func (c Config) Validate() error {
	if c.InputDir == "" {
		return errors.New("input directory must be set")
	}
	if c.Output == "" {
		return errors.New("output file name must be set")
	}
	if filepath.Base(c.Output) != c.Output {
		return fmt.Errorf("output %q must be a file name, not a path", c.Output)
	}
	if c.Compression < NoCompression || c.Compression > MaxCompression {
		return fmt.Errorf("compression must be between %d and %d, got %d", NoCompression, MaxCompression, c.Compression)
	}
	return nil
}

// LoadFile overlays the YAML file at path onto c. Keys missing from the file
// keep their current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overlays PDFMERGE_* variables onto c.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	if v, ok := lookup("PDFMERGE_INPUT"); ok {
		c.InputDir = v
	}
	if v, ok := lookup("PDFMERGE_OUTPUT"); ok {
		c.Output = v
	}
	if v, ok := lookup("PDFMERGE_SORT"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("PDFMERGE_SORT: %w", err)
		}
		c.Sort = b
	}
	if v, ok := lookup("PDFMERGE_COMPRESSION"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PDFMERGE_COMPRESSION: %w", err)
		}
		c.Compression = n
	}
	if v, ok := lookup("PDFMERGE_PUBLISH"); ok {
		c.Publish = v
	}
	return nil
}

// FromArgs builds the run configuration from command-line arguments
// (without the program name). Flags that are not given on the command line
// leave file and environment values untouched.
func FromArgs(args []string, exeDir string, lookup LookupFunc, stderr io.Writer) (Config, error) {
	cfg := Default(exeDir)

	fs := flag.NewFlagSet("pdf-merge", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Merge PDFs\n\nUsage: pdf-merge [flags]")
		fs.PrintDefaults()
	}

	var (
		input       = fs.String("i", cfg.InputDir, "Relative path to the pdf files. Default = directory of the program")
		output      = fs.String("o", cfg.Output, "Name of the output file")
		sort        = fs.Bool("s", cfg.Sort, "Sort the files (use -s=false to keep directory order)")
		compression = fs.Int("c", cfg.Compression, "Compression degree of the resulting pdf, 0-4 (-1 for no compression)")
		configFile  = fs.String("config", "", "YAML file with default settings")
		publish     = fs.String("publish", "", "Upload the result to gs://bucket/object")
		verbose     = fs.Bool("v", false, "Verbose logging")
	)
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if fs.NArg() > 0 {
		if _, err := strconv.ParseBool(fs.Arg(0)); err == nil {
			return Config{}, fmt.Errorf("unexpected arguments: %v (boolean flags take the form -s=%s)", fs.Args(), fs.Arg(0))
		}
		return Config{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	if *configFile != "" {
		if err := cfg.LoadFile(*configFile); err != nil {
			return Config{}, err
		}
	}
	if lookup != nil {
		if err := cfg.ApplyEnv(lookup); err != nil {
			return Config{}, err
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "i":
			cfg.InputDir = *input
		case "o":
			cfg.Output = *output
		case "s":
			cfg.Sort = *sort
		case "c":
			cfg.Compression = *compression
		case "publish":
			cfg.Publish = *publish
		case "v":
			cfg.Verbose = *verbose
		}
	})

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
