// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the agora client configuration.
//
// Values are layered: built-in defaults, then one config file, then
// environment variables, then ${VAR} and ${VAR:-default} expansion of
// path fields. The file is chosen by the --config flag, else the
// AGORA_CONFIG variable, else $XDG_CONFIG_HOME/agora/config.yaml if it
// exists. Files ending in .json or .jsonc are read as JSON with
// comments; anything else is YAML. Unknown keys are rejected.
//
// API_URL, WS_URL, AGORA_LOG_LEVEL and AGORA_SESSION_FILE override the
// file. Variables not set in the process environment are looked up in
// a .env file in the working directory, so a project checkout can pin
// the backend it talks to.
//
// [Config.Validate] reports every problem at once via errors.Join.
package config
