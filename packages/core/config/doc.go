// Package config loads project-level flowspec configuration.
//
// Configuration comes from a .flowspec.yaml (or .yml) file in the
// working directory and layers under per-file settings and CLI flags:
// flags beat the file, the file beats built-in defaults.
package config
