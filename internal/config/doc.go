// Package config loads seqstore's CLI configuration from defaults, an
// optional JSON or YAML file, and SEQSTORE_* environment overrides, applied
// in that order.
package config
