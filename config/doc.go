// Package config loads workspace configuration.
//
// A workspace is described by one file (workspace.toml, workspace.yaml or
// workspace.yml) read through Viper. A .env file next to it is loaded with
// godotenv, and RECFLOW_* environment variables override file values:
//
//	RECFLOW_RUN_MODE=parallel   ->  run.mode
//	RECFLOW_PATH_DATA=/scratch  ->  path.data
//
// Relative path.data and path.scripts are resolved against the directory of
// the configuration file.
//
//	cfg, err := config.LoadWorkspace("./study")
package config
