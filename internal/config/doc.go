// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for foliochat.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// a .env file for secrets, environment variable overrides, and validation.
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (FOLIOCHAT_*, GITHUB_TOKEN, EMAILJS_*)
//   - .env in the working directory (never overrides the real environment)
//   - ~/.foliochat/config.toml
//   - ~/.foliochat/config.json
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	minGap := cfg.Chat.MinInterval()
package config
