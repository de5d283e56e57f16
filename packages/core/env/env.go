package env

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

// VarPrefix marks process environment variables that should be seeded
// into the global variable scope (FLOWSPEC_VAR_base_url=... becomes
// the variable base_url).
const VarPrefix = "FLOWSPEC_VAR_"

// LoadDotEnv parses a .env file and returns its key-value pairs.
// Supports KEY=value, KEY="quoted value", KEY='single quoted' and
// # comments. The file is not exported to the OS environment.
func LoadDotEnv(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open env file: %w", err)
	}
	defer file.Close()

	result := make(map[string]string)
	scanner := bufio.NewScanner(file)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}

		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" {
			continue
		}

		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}

		result[key] = value
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading env file: %w", err)
	}

	return result, nil
}

// LoadSystemEnv returns process environment variables carrying the
// given prefix, with the prefix stripped from the keys. An empty
// prefix returns the whole environment.
func LoadSystemEnv(prefix string) map[string]any {
	result := make(map[string]any)
	for _, e := range os.Environ() {
		key, value, found := strings.Cut(e, "=")
		if !found {
			continue
		}
		if prefix == "" {
			result[key] = value
			continue
		}
		if name, ok := strings.CutPrefix(key, prefix); ok && name != "" {
			result[name] = value
		}
	}
	return result
}

// Seed collects variables for the global scope: prefixed process
// environment first, then the .env file at path on top of it. A
// missing .env file is not an error; any other read failure is.
func Seed(path string) (map[string]any, error) {
	vars := LoadSystemEnv(VarPrefix)

	if path != "" {
		fileVars, err := LoadDotEnv(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return vars, nil
			}
			return nil, err
		}
		for k, v := range fileVars {
			vars[k] = v
		}
	}

	return vars, nil
}
