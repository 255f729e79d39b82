// Package config provides the configuration of an endpoint export: the
// controller address and credentials, transport settings, and report output.
//
// Values are layered, each source overriding the previous one:
//  1. NewConfig defaults
//  2. the YAML configuration file (.ndireport)
//  3. NDI_* environment variables
//  4. command line flags
package config
