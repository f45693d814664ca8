package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	configFileName = "config.yaml"
	dirMode        = 0700
	fileMode       = 0600

	// HighScoreLimitDefault is the number of rows returned by the top scores
	// report when no limit is given.
	HighScoreLimitDefault = 10

	// SuccessStatusDefault is the run status counted as a completed run.
	SuccessStatusDefault = "Success"

	formatDefault = "json"
)

// Settings represents the local user settings file.
type Settings struct {
	HighScoreLimit int               `yaml:"high_score_limit"`
	Format         string            `yaml:"format"`
	SuccessStatus  string            `yaml:"success_status"`
	TaskScorers    map[string]string `yaml:"task_scorers"`
}

func getDefaultSettings() *Settings {
	return &Settings{
		HighScoreLimit: HighScoreLimitDefault,
		Format:         formatDefault,
		SuccessStatus:  SuccessStatusDefault,
		TaskScorers: map[string]string{
			"bench.task.hendrycks_math.hendrycks_math_lvl_5": "model_graded_equiv",
			"bench.task.gpqa.gpqa_diamond":                   "choice",
		},
	}
}

// Save writes the settings into the config file in dirPath.
func Save(dirPath string, s *Settings) error {
	if dirPath == "" {
		return errors.New("config directory required")
	}
	if s == nil {
		return errors.New("settings required")
	}
	b, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling settings: %w", err)
	}
	path := filepath.Join(dirPath, configFileName)
	if err := os.WriteFile(path, b, fileMode); err != nil {
		return fmt.Errorf("writing config file %s: %w", path, err)
	}
	return nil
}

// ReadOrCreate reads settings from directory or creates the default ones.
// Zero values in an existing file are filled from the defaults.
func ReadOrCreate(dirPath string) (*Settings, error) {
	if dirPath == "" {
		return nil, errors.New("config directory required")
	}

	if _, err := os.Stat(dirPath); errors.Is(err, os.ErrNotExist) {
		if err := os.MkdirAll(dirPath, dirMode); err != nil {
			return nil, fmt.Errorf("creating dir %s: %w", dirPath, err)
		}
	}

	path := filepath.Join(dirPath, configFileName)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		slog.Debug("creating default settings", "path", path)
		if err := Save(dirPath, getDefaultSettings()); err != nil {
			return nil, fmt.Errorf("creating default settings: %w", err)
		}
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	var s Settings
	if err := yaml.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("unmarshaling config file %s: %w", path, err)
	}

	def := getDefaultSettings()
	if s.HighScoreLimit <= 0 {
		s.HighScoreLimit = def.HighScoreLimit
	}
	if s.Format == "" {
		s.Format = def.Format
	}
	if s.SuccessStatus == "" {
		s.SuccessStatus = def.SuccessStatus
	}
	if s.TaskScorers == nil {
		s.TaskScorers = def.TaskScorers
	}

	return &s, nil
}

// GetOrCreateHomeDir returns the app directory under the current user home.
// The created flag is set to true if the directory was created.
func GetOrCreateHomeDir(name string) (path string, created bool, err error) {
	if name == "" {
		return "", false, errors.New("name cannot be empty")
	}

	if !strings.HasPrefix(name, ".") {
		name = "." + name
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", false, fmt.Errorf("getting user home dir: %w", err)
	}

	dir := filepath.Join(home, name)
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		slog.Debug("creating dir", "path", dir)
		if err := os.Mkdir(dir, dirMode); err != nil {
			return "", false, fmt.Errorf("creating dir %s: %w", dir, err)
		}
		created = true
	}
	return dir, created, nil
}
