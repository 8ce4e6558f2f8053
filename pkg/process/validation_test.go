package process

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/core-tools/hsu-scheduler/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("echo\n"), 0755))
	return path
}

func TestValidateDescriptorConfig(t *testing.T) {
	dir := t.TempDir()
	batch := writeFile(t, dir, "start.bat")
	exe := writeFile(t, dir, "server.EXE")
	script := writeFile(t, dir, "start.sh")

	tests := []struct {
		name      string
		config    DescriptorConfig
		shouldErr bool
	}{
		{
			name:      "valid_batch",
			config:    DescriptorConfig{Name: "valheim", Path: batch},
			shouldErr: false,
		},
		{
			name:      "valid_exe_upper_case",
			config:    DescriptorConfig{Name: "valheim", Path: exe},
			shouldErr: false,
		},
		{
			name:      "valid_with_working_directory",
			config:    DescriptorConfig{Name: "valheim", Path: batch, WorkingDirectory: dir, Environment: []string{"A=1"}},
			shouldErr: false,
		},
		{
			name:      "valid_any_extension",
			config:    DescriptorConfig{Name: "valheim", Path: script, AllowAnyExtension: true},
			shouldErr: false,
		},
		{
			name:      "invalid_empty_name",
			config:    DescriptorConfig{Name: "  ", Path: batch},
			shouldErr: true,
		},
		{
			name:      "invalid_empty_path",
			config:    DescriptorConfig{Name: "valheim"},
			shouldErr: true,
		},
		{
			name:      "invalid_relative_path",
			config:    DescriptorConfig{Name: "valheim", Path: "start.bat"},
			shouldErr: true,
		},
		{
			name:      "invalid_missing_file",
			config:    DescriptorConfig{Name: "valheim", Path: filepath.Join(dir, "missing.bat")},
			shouldErr: true,
		},
		{
			name:      "invalid_directory_path",
			config:    DescriptorConfig{Name: "valheim", Path: dir},
			shouldErr: true,
		},
		{
			name:      "invalid_extension",
			config:    DescriptorConfig{Name: "valheim", Path: script},
			shouldErr: true,
		},
		{
			name:      "invalid_relative_working_directory",
			config:    DescriptorConfig{Name: "valheim", Path: batch, WorkingDirectory: "work"},
			shouldErr: true,
		},
		{
			name:      "invalid_working_directory_is_file",
			config:    DescriptorConfig{Name: "valheim", Path: batch, WorkingDirectory: batch},
			shouldErr: true,
		},
		{
			name:      "invalid_environment",
			config:    DescriptorConfig{Name: "valheim", Path: batch, Environment: []string{"NOEQUALS"}},
			shouldErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDescriptorConfig(tt.config)

			if tt.shouldErr {
				assert.Error(t, err)
				assert.True(t, errors.IsValidationError(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewDescriptor(t *testing.T) {
	dir := t.TempDir()
	batch := writeFile(t, dir, "start.bat")

	t.Run("defaults_working_directory", func(t *testing.T) {
		args := []string{"-name", "My server"}
		desc, err := NewDescriptor(DescriptorConfig{Name: "valheim", Path: batch, Args: args})
		require.NoError(t, err)

		assert.Equal(t, "valheim", desc.Name())
		assert.Equal(t, batch, desc.Path())
		assert.Equal(t, dir, desc.WorkingDirectory())
		assert.Equal(t, []string{"-name", "My server"}, desc.Args())
		assert.False(t, desc.IsZero())

		// Mutating the caller's slice or a returned copy does not leak in
		args[0] = "changed"
		desc.Args()[1] = "changed"
		assert.Equal(t, []string{"-name", "My server"}, desc.Args())
	})

	t.Run("invalid", func(t *testing.T) {
		desc, err := NewDescriptor(DescriptorConfig{Name: "valheim", Path: "relative.bat"})
		assert.True(t, errors.IsValidationError(err))
		assert.True(t, desc.IsZero())
	})
}
