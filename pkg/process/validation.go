package process

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/core-tools/hsu-scheduler/pkg/errors"
)

// LaunchableExtensions lists the file extensions a descriptor path may carry
var LaunchableExtensions = []string{".exe", ".bat"}

// ValidateDescriptorConfig validates the identity of the supervised executable
func ValidateDescriptorConfig(config DescriptorConfig) error {
	if strings.TrimSpace(config.Name) == "" {
		return errors.NewValidationError("process name cannot be empty", nil)
	}

	if config.Path == "" {
		return errors.NewValidationError("executable path cannot be empty", nil)
	}

	if !filepath.IsAbs(config.Path) {
		return errors.NewValidationError("executable path must be absolute", nil).WithContext("path", config.Path)
	}

	info, err := os.Stat(config.Path)
	if err != nil {
		return errors.NewValidationError("executable not found: "+config.Path, err).WithContext("path", config.Path)
	}
	if !info.Mode().IsRegular() {
		return errors.NewValidationError("executable path must point to a file: "+config.Path, nil).WithContext("path", config.Path)
	}

	if !config.AllowAnyExtension && !hasLaunchableExtension(config.Path) {
		return errors.NewValidationError("executable path must point to an executable or batch file", nil).
			WithContext("path", config.Path).
			WithContext("allowed_extensions", LaunchableExtensions)
	}

	if config.WorkingDirectory != "" {
		if !filepath.IsAbs(config.WorkingDirectory) {
			return errors.NewValidationError("working directory must be absolute path", nil)
		}

		if info, err := os.Stat(config.WorkingDirectory); err != nil {
			return errors.NewValidationError("working directory not accessible: "+config.WorkingDirectory, err)
		} else if !info.IsDir() {
			return errors.NewValidationError("working directory is not a directory: "+config.WorkingDirectory, nil)
		}
	}

	for _, env := range config.Environment {
		if !strings.Contains(env, "=") {
			return errors.NewValidationError("invalid environment variable format: "+env, nil)
		}
	}

	return nil
}

func hasLaunchableExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, allowed := range LaunchableExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}
