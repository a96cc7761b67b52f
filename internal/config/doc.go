// Package config loads voxsub settings from TOML, a .env file and the
// environment.
//
// Lookup order for the file is the --config flag, then the platform config
// directory (for example ~/.config/voxsub/config.toml), then ./voxsub.toml.
// Environment variables are applied after the file is decoded.
package config
