// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package digest builds the repository digest that is embedded in the
// assistant's system prompt.
//
// A Builder pulls a contribution summary from a github.Provider, formats it
// into a stable markdown document and caches it for a fixed TTL. Readers
// always observe a complete digest: refreshes replace it wholesale through
// an atomic pointer swap. Provider failures never reach the caller; the
// previous digest (or the fallback text) stays in place.
//
// # Usage
//
//	b := digest.NewBuilder(provider, "sridhar1805",
//	    digest.WithFeatured(cfg.Profile.FeaturedProjects),
//	    digest.WithLogger(log))
//	b.Refresh(ctx, "sridhar1805", 10)
//	prompt := b.Text()
package digest
