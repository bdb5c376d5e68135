package remote

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"strings"
)

// DefaultEnvFile is where injected secrets land on the instance.
const DefaultEnvFile = "/root/.env"

const autoEnvFile = "/root/.auto_env"

// InjectEnvFile writes env file content to the target over SSH. Secrets
// travel only through the SSH channel, never through the marketplace API
// or instance metadata. The content is base64-encoded in transit so any
// characters survive shell quoting, and the file lands with mode 600.
func (r *Runner) InjectEnvFile(ctx context.Context, t Target, content, path string) error {
	if strings.TrimSpace(content) == "" {
		return nil
	}
	if path == "" {
		path = DefaultEnvFile
	}

	encoded := base64.StdEncoding.EncodeToString([]byte(content))
	script := fmt.Sprintf(
		`umask 077 && echo '%[1]s' | base64 -d > %[2]s && chmod 600 %[2]s && `+
			`if ! grep -q 'source %[2]s' /root/.bashrc 2>/dev/null; then `+
			`echo '' >> /root/.bashrc && `+
			`echo '# Load injected environment variables' >> /root/.bashrc && `+
			`echo 'set -a; source %[2]s; set +a' >> /root/.bashrc; fi && `+
			`echo 'Environment injected to %[2]s'`,
		encoded, path,
	)

	if _, err := r.Run(ctx, t, script); err != nil {
		return fmt.Errorf("inject env file: %w", err)
	}
	return nil
}

// InjectAutoEnv injects auto-detected credentials as export statements
// sourced from the shell profile. Returns the number of variables injected.
func (r *Runner) InjectAutoEnv(ctx context.Context, t Target, vars map[string]string) (int, error) {
	if len(vars) == 0 {
		return 0, nil
	}

	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var lines []string
	for _, k := range keys {
		escaped := strings.ReplaceAll(vars[k], "'", `'\''`)
		lines = append(lines, fmt.Sprintf("export %s='%s'", k, escaped))
	}

	encoded := base64.StdEncoding.EncodeToString([]byte(strings.Join(lines, "\n")))
	script := fmt.Sprintf(
		`umask 077 && echo '%[1]s' | base64 -d > %[2]s && chmod 600 %[2]s && `+
			`if ! grep -q 'source %[2]s' /root/.bashrc 2>/dev/null; then `+
			`echo '' >> /root/.bashrc && `+
			`echo '# Auto-injected credentials' >> /root/.bashrc && `+
			`echo 'source %[2]s' >> /root/.bashrc; fi && `+
			`echo 'Auto-env injected (%[3]d variables)'`,
		encoded, autoEnvFile, len(vars),
	)

	if _, err := r.Run(ctx, t, script); err != nil {
		return 0, fmt.Errorf("inject auto env: %w", err)
	}
	return len(vars), nil
}
