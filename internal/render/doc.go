// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package render turns assistant markdown into display output.
//
// HTML produces a sanitized fragment for embedding in a web page:
// GitHub-flavoured markdown via goldmark, fenced code highlighted by chroma
// with inline styles, and a bluemonday UGC policy as the last step.
// Terminal produces ANSI output through glamour for the TUI and REPL.
package render
