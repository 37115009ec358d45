package internal

import (
	"fmt"
	"path/filepath"
)

const (
	outputDirName       = "output"
	cookiecuttersName   = "cookiecutters"
	cookiecutterReplay  = "cookiecutter_replay"
	cookiecutterConfigs = "config"
)

// Directories is the on-disk layout used by template expansion. Paths end
// with a separator because template authors concatenate them.
type Directories struct {
	root string
}

func NewDirectories(workDir string) Directories {
	if workDir == "" {
		workDir = "."
	}
	abs, err := filepath.Abs(workDir)
	if err != nil {
		abs = workDir
	}
	return Directories{root: abs}
}

func withSeparator(path string) string {
	return path + string(filepath.Separator)
}

func (d Directories) OutputDir() string {
	return withSeparator(filepath.Join(d.root, outputDirName))
}

func (d Directories) CookiecuttersDir() string {
	return withSeparator(filepath.Join(d.root, outputDirName, cookiecuttersName))
}

func (d Directories) ReplayDir() string {
	return withSeparator(filepath.Join(d.root, outputDirName, cookiecutterReplay))
}

// ConfigFile is the cookiecutter config written for one code template.
func (d Directories) ConfigFile(templateID int64) string {
	return filepath.Join(d.root, outputDirName, cookiecutterConfigs,
		fmt.Sprintf("cookiecutter-%d", templateID), "config.json")
}

// ProjectRoot is where the expanded skeleton of a project lands.
func (d Directories) ProjectRoot(projectSlug string) string {
	return filepath.Join(d.root, outputDirName, projectSlug)
}
