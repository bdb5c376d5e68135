// Package train automates running a training script on an instance:
// upload the project, install its dependencies, inject experiment
// credentials, and launch the script inside a tmux session that
// survives disconnects.
package train

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultSession is the tmux session training runs in, separate from
	// the interactive shell session.
	DefaultSession = "train"

	// DefaultOutputsDir is where training artifacts are expected to land.
	DefaultOutputsDir = "/workspace/outputs"
)

var ErrNoScript = errors.New("no training script specified")

// Job describes one training run.
type Job struct {
	// Script is the entry point, relative to SyncDir.
	Script string
	Args   []string

	// SyncDir is the project directory uploaded to the instance.
	SyncDir     string
	SyncExclude []string

	// RemoteOutputs is the artifact directory on the instance.
	RemoteOutputs string

	WandbProject string

	NoUpload bool
	NoDeps   bool

	Session string
}

// jobFile is the train.yaml schema.
type jobFile struct {
	Script string   `yaml:"script"`
	Args   []string `yaml:"args"`
	Sync   struct {
		Directory string   `yaml:"directory"`
		Exclude   []string `yaml:"exclude"`
	} `yaml:"sync"`
	Outputs struct {
		Remote string `yaml:"remote"`
	} `yaml:"outputs"`
	Wandb struct {
		Project string `yaml:"project"`
	} `yaml:"wandb"`
}

// LoadJob reads a job definition from a train.yaml file.
func LoadJob(path string) (*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read job file: %w", err)
	}

	var f jobFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if f.Script == "" {
		return nil, fmt.Errorf("%s: %w", path, ErrNoScript)
	}

	j := &Job{
		Script:        f.Script,
		Args:          f.Args,
		SyncDir:       f.Sync.Directory,
		SyncExclude:   f.Sync.Exclude,
		RemoteOutputs: f.Outputs.Remote,
		WandbProject:  f.Wandb.Project,
	}
	j.ApplyDefaults()
	return j, nil
}

// ApplyDefaults fills zero fields so a Job built from flags and a Job
// loaded from a file behave the same.
func (j *Job) ApplyDefaults() {
	if j.SyncDir == "" {
		j.SyncDir = "."
	}
	if j.RemoteOutputs == "" {
		j.RemoteOutputs = DefaultOutputsDir
	}
	if j.Session == "" {
		j.Session = DefaultSession
	}
}

// RemoteDir is the upload destination, /workspace/<project dirname>.
// When SyncDir is the current directory its real name is used, so two
// projects trained from the same machine land in distinct directories.
func (j *Job) RemoteDir() string {
	dir := filepath.Base(j.SyncDir)
	if dir == "." || dir == string(filepath.Separator) {
		if wd, err := os.Getwd(); err == nil {
			dir = filepath.Base(wd)
		}
	}
	return path.Join("/workspace", dir)
}

// Command is the training invocation run inside the session.
func (j *Job) Command() string {
	cmd := "python " + filepath.Base(j.Script)
	if len(j.Args) > 0 {
		cmd += " " + strings.Join(j.Args, " ")
	}
	return cmd
}

// SessionCommand wraps Command in a detached tmux session rooted in the
// project directory. A previous run under the same session name is
// replaced, not joined.
func (j *Job) SessionCommand() string {
	return fmt.Sprintf(
		"tmux has-session -t %[1]s 2>/dev/null && tmux kill-session -t %[1]s; "+
			"tmux new-session -d -s %[1]s -c %[2]s %[3]q",
		j.Session, j.RemoteDir(), j.Command())
}

// DownloadCommand is what the user runs to fetch artifacts once training
// finishes.
func (j *Job) DownloadCommand(instanceName string) string {
	return fmt.Sprintf("vastctl cp -r %s:%s/ ./checkpoints/",
		instanceName, strings.TrimSuffix(j.RemoteOutputs, "/"))
}
