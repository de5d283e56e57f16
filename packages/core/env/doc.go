// Package env loads variables from .env files and from the process
// environment so test cases can reference secrets and machine-local
// settings without committing them to YAML.
package env
