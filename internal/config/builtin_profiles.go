package config

import "github.com/vastctl/vastctl/internal/provision"

// builtinProfiles ship with the CLI and are always resolvable by name.
// User-declared profiles with the same name shadow them.
var builtinProfiles = map[string]provision.Profile{
	"minimal": {
		Description: "Jupyter only, no ML libraries",
		Provisioning: provision.Config{
			Pip:   provision.PipConfig{Packages: []string{"jupyterlab", "notebook"}},
			Torch: provision.TorchConfig{Mode: provision.TorchModeSkip},
			Apt: provision.AptConfig{Packages: []string{
				"python3", "python3-pip", "python-is-python3", "zip", "unzip",
			}},
		},
	},
	"datascience": {
		Description: "Data science stack (pandas, matplotlib, scikit-learn)",
		Provisioning: provision.Config{
			Pip: provision.PipConfig{Packages: []string{
				"jupyterlab", "notebook", "ipywidgets", "numpy", "pandas",
				"matplotlib", "seaborn", "scikit-learn", "scipy",
			}},
			Torch: provision.TorchConfig{Mode: provision.TorchModeAuto},
			Apt: provision.AptConfig{Packages: []string{
				"python3", "python3-pip", "python-is-python3", "zip", "unzip", "htop",
			}},
		},
	},
	"ml-training": {
		Description: "Full ML training stack (PyTorch, HuggingFace, W&B)",
		Provisioning: provision.Config{
			Pip: provision.PipConfig{Packages: []string{
				"jupyterlab", "notebook", "ipywidgets", "numpy", "pandas",
				"matplotlib", "scipy", "huggingface_hub", "transformers",
				"datasets", "accelerate", "wandb", "tensorboard",
			}},
			Torch: provision.TorchConfig{Mode: provision.TorchModeAuto},
			Apt: provision.AptConfig{Packages: []string{
				"python3", "python3-pip", "python-is-python3", "zip", "unzip",
				"htop", "tmux", "git-lfs",
			}},
		},
	},
	"inference": {
		Description: "Lightweight inference setup",
		Provisioning: provision.Config{
			Pip: provision.PipConfig{Packages: []string{
				"jupyterlab", "transformers", "accelerate", "fastapi", "uvicorn",
			}},
			Torch: provision.TorchConfig{Mode: provision.TorchModeAuto},
			Apt: provision.AptConfig{Packages: []string{
				"python3", "python3-pip", "python-is-python3", "zip", "unzip",
			}},
		},
	},
	"llm": {
		Description: "LLM development (vLLM, transformers)",
		Provisioning: provision.Config{
			Pip: provision.PipConfig{Packages: []string{
				"jupyterlab", "notebook", "transformers", "datasets",
				"accelerate", "bitsandbytes", "peft", "trl", "wandb",
			}},
			Torch: provision.TorchConfig{Mode: provision.TorchModeAuto},
			Apt: provision.AptConfig{Packages: []string{
				"python3", "python3-pip", "python-is-python3", "zip", "unzip",
				"htop", "tmux", "git-lfs",
			}},
		},
	},
}
