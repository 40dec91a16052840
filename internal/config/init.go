package config

import (
	"fmt"
	"os"

	"github.com/felloworks/wheelwright/internal/errors"
)

// exampleConfig is written by Init. Every value shown is the default, so the
// file works uncommented and unedited.
const exampleConfig = `# wheelwright configuration
# Values shown are the defaults. Credentials support ${VAR} expansion and
# .env files; WHEELWRIGHT_USERNAME / WHEELWRIGHT_PASSWORD override both.

project:
  path: .
  python: python3

build:
  tool: auto          # auto | build | setup
  dist_dir: dist
  # python_path: ./src
  # hooks:
  #   before:
  #     - ./scripts/gen_version.sh
  #   after:
  #     - echo "built $(ls dist | wc -l) files"

check:
  enabled: true
  strict: false

upload:
  repository: pypi    # pypi | testpypi | any name under repositories
  skip_existing: false
  timeout: 5m

# repositories:
#   internal:
#     url: https://pypi.internal.example.com/legacy/
#     username: ${INTERNAL_PYPI_USER}
#     password: ${INTERNAL_PYPI_PASS}

git:
  require_clean: false
  annotate: true

history:
  path: .wheelwright/history.db

# events:
#   nats_url: nats://localhost:4222
#   subject_prefix: wheelwright.releases

metrics:
  enabled: false

# daemon:
#   listen: :8080
#   interval: 4h      # or schedule: "0 */4 * * *"
#   queue_size: 16
#   workers: 1
#   watch_config: true
#   retry:
#     max_retries: 0
#     backoff: exponential
#     initial_delay: 1s
#     max_delay: 30s
`

// Init writes an example configuration file.
func Init(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return errors.ConfigError(fmt.Sprintf("configuration file already exists: %s (use --force to overwrite)", path)).
			WithContext("path", path).
			Build()
	}

	if err := os.WriteFile(path, []byte(exampleConfig), 0o644); err != nil {
		return errors.ConfigError("failed to write configuration file").
			WithCause(err).
			WithContext("path", path).
			Build()
	}
	return nil
}
