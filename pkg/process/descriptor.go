package process

import (
	"path/filepath"
)

// DescriptorConfig is the configuration-file shape of a Descriptor
type DescriptorConfig struct {
	Name             string   `yaml:"name"`
	Path             string   `yaml:"path"`
	Args             []string `yaml:"args,omitempty"`
	WorkingDirectory string   `yaml:"working_directory,omitempty"`
	Environment      []string `yaml:"environment,omitempty"`

	// Lifts the .exe/.bat restriction, for hosts where executables carry no such extension
	AllowAnyExtension bool `yaml:"allow_any_extension,omitempty"`
}

// Descriptor is the validated, immutable identity of the supervised executable.
// Build it with NewDescriptor; the zero value is not usable.
type Descriptor struct {
	name    string
	path    string
	args    []string
	workDir string
	env     []string
}

// NewDescriptor validates config and freezes it into a Descriptor
func NewDescriptor(config DescriptorConfig) (Descriptor, error) {
	if err := ValidateDescriptorConfig(config); err != nil {
		return Descriptor{}, err
	}

	workDir := config.WorkingDirectory
	if workDir == "" {
		workDir = filepath.Dir(config.Path)
	}

	return Descriptor{
		name:    config.Name,
		path:    filepath.Clean(config.Path),
		args:    append([]string(nil), config.Args...),
		workDir: workDir,
		env:     append([]string(nil), config.Environment...),
	}, nil
}

func (d Descriptor) Name() string { return d.name }

func (d Descriptor) Path() string { return d.path }

func (d Descriptor) Args() []string { return append([]string(nil), d.args...) }

func (d Descriptor) WorkingDirectory() string { return d.workDir }

func (d Descriptor) Environment() []string { return append([]string(nil), d.env...) }

func (d Descriptor) IsZero() bool { return d.name == "" && d.path == "" }
