// Package envdetect scrapes credential environment variables from the
// local shell so they can be forwarded to rented machines.
package envdetect

import (
	"os"
	"strings"
)

// credentialPrefixes are the variable name prefixes forwarded to remote
// machines when auto-detection is enabled.
var credentialPrefixes = []string{
	"AWS_",          // AWS credentials (also S3-compatible stores like B2)
	"B2_",           // Backblaze B2
	"WANDB_",        // Weights & Biases
	"HF_",           // Hugging Face
	"HUGGING_FACE_", // Hugging Face (alternative spelling)
	"OPENAI_",
	"ANTHROPIC_",
	"COHERE_",
	"REPLICATE_",
}

// Scrape returns the credential variables present in the local
// environment. Empty values are skipped.
func Scrape() map[string]string {
	return scrape(os.Environ())
}

func scrape(environ []string) map[string]string {
	result := make(map[string]string)
	for _, entry := range environ {
		key, value, ok := strings.Cut(entry, "=")
		if !ok || value == "" {
			continue
		}
		for _, prefix := range credentialPrefixes {
			if strings.HasPrefix(key, prefix) {
				result[key] = value
				break
			}
		}
	}
	return result
}

// Redact shortens a credential value for display: long values keep their
// first and last four characters, short ones are masked entirely.
func Redact(value string) string {
	if len(value) > 8 {
		return value[:4] + "..." + value[len(value)-4:]
	}
	return "***"
}
