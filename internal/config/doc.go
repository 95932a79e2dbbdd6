// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for
// counsellor.
//
// # Key Types
//
//   - Config: main configuration structure
//   - APIConfig: backend URL, bearer token source and timeouts
//   - StorageConfig, UserConfig: conversation database and its owner
//   - UIConfig, VoiceConfig, LogConfig: interface, audio and diagnostics
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (COUNSELLOR_*)
//   - ~/.counsellor/config.toml
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	timeout := cfg.API.SendTimeout()
package config
