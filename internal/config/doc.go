// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation.
// An optional .env file is read before expansion so local secrets (the CoinGecko API key,
// database passwords) do not have to live in the YAML file.
package config
