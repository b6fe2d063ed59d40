// Package config provides centralized configuration for the Siefore pipeline.
//
// # Configuration Sources
//
// Configuration is assembled from the following sources, later sources
// overriding earlier ones:
//
//  1. Default values (Default)
//  2. A YAML file (SIEFORE_CONFIG_FILE, or siefore.yaml / configs/siefore.yaml)
//  3. Environment variables
//
// # Environment Variables
//
// All variables follow the pattern SIEFORE_<SECTION>_<FIELD>:
//
//	SIEFORE_PATHS_ROOT=/srv/siefore
//	SIEFORE_PATHS_STORE_FILE=/srv/history/consar_siefores_with_usd.json
//	SIEFORE_RATES_TOKEN=...
//	SIEFORE_PIPELINE_ALLOW_PARTIAL=true
//	SIEFORE_PIPELINE_SUBFUND_ALIASES=Inicial:Basica Inicial
//	SIEFORE_BACKUP_S3_ENABLED=true
//
// # Paths
//
// Config.ResolvePaths turns the configured names into absolute paths. Every
// relative entry is anchored to PathsConfig.Root, which defaults to the
// directory holding the executable so binaries behave the same regardless of
// the working directory.
package config
