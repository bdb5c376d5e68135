package train

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Deps lists what a project needs installed on the instance before its
// training script can run.
type Deps struct {
	// RequirementsFile is the manifest name relative to the project dir.
	RequirementsFile string

	// Packages are dependency specifiers declared in pyproject.toml.
	Packages []string

	Pyproject bool
	Pipfile   bool
}

func (d Deps) Empty() bool {
	return d.RequirementsFile == "" && len(d.Packages) == 0 && !d.Pyproject && !d.Pipfile
}

// InstallCommand builds the install invocation, run from the project
// directory on the instance. Explicit manifests win over declared
// package lists, which win over an editable install.
func (d Deps) InstallCommand() string {
	switch {
	case d.RequirementsFile != "":
		return "pip install -r " + d.RequirementsFile
	case len(d.Packages) > 0:
		specs := make([]string, len(d.Packages))
		for i, p := range d.Packages {
			specs[i] = quoteSpec(p)
		}
		return "pip install " + strings.Join(specs, " ")
	case d.Pyproject:
		return "pip install -e ."
	case d.Pipfile:
		return "pipenv install"
	}
	return ""
}

// quoteSpec protects version specifiers like "torch>=2.0" from the
// remote shell.
func quoteSpec(spec string) string {
	if strings.ContainsAny(spec, " <>=!;&|") {
		return "'" + strings.ReplaceAll(spec, "'", `'\''`) + "'"
	}
	return spec
}

// DetectDeps inspects a project directory for the usual Python
// dependency manifests. requirements.txt wins over pyproject.toml, which
// wins over a Pipfile.
func DetectDeps(dir string) Deps {
	if _, err := os.Stat(filepath.Join(dir, "requirements.txt")); err == nil {
		return Deps{RequirementsFile: "requirements.txt"}
	}
	if data, err := os.ReadFile(filepath.Join(dir, "pyproject.toml")); err == nil {
		return Deps{Pyproject: true, Packages: pyprojectDeps(data)}
	}
	if _, err := os.Stat(filepath.Join(dir, "Pipfile")); err == nil {
		return Deps{Pipfile: true}
	}
	return Deps{}
}

// pyprojectDeps pulls the [project] dependencies list. A file that does
// not parse contributes nothing; the editable install still runs.
func pyprojectDeps(data []byte) []string {
	var doc struct {
		Project struct {
			Dependencies []string `toml:"dependencies"`
		} `toml:"project"`
	}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil
	}
	return doc.Project.Dependencies
}
