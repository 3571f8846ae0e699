// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"bytes"
	"html"
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
	"github.com/microcosm-cc/bluemonday"
	"github.com/sirupsen/logrus"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer"
	goldhtml "github.com/yuin/goldmark/renderer/html"
	gmutil "github.com/yuin/goldmark/util"
)

// DefaultCodeStyle is the chroma style used for fenced code.
const DefaultCodeStyle = "monokai"

// codeRendererPriority places the code renderer ahead of goldmark's
// default HTML renderer (priority 1000).
const codeRendererPriority = 200

// =============================================================================
// HTML RENDERER
// =============================================================================

// HTMLRenderer converts markdown to a sanitized HTML fragment.
type HTMLRenderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// HTMLOption configures an HTMLRenderer.
type HTMLOption func(*htmlConfig)

type htmlConfig struct {
	codeStyle string
}

// WithCodeStyle selects the chroma style for fenced code.
func WithCodeStyle(name string) HTMLOption {
	return func(c *htmlConfig) {
		if name != "" {
			c.codeStyle = name
		}
	}
}

// NewHTML creates an HTMLRenderer.
func NewHTML(opts ...HTMLOption) *HTMLRenderer {
	cfg := htmlConfig{codeStyle: DefaultCodeStyle}
	for _, opt := range opts {
		opt(&cfg)
	}

	style := chromaStyles.Get(cfg.codeStyle)
	if style == nil {
		style = chromaStyles.Fallback
	}

	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(
			goldhtml.WithHardWraps(),
			renderer.WithNodeRenderers(
				gmutil.Prioritized(&codeBlockRenderer{style: style}, codeRendererPriority),
			),
		),
	)

	return &HTMLRenderer{md: md, policy: newPolicy()}
}

// newPolicy is bluemonday's UGC policy plus the inline styles chroma
// emits. Absolute links open in a new tab without leaking the referrer.
func newPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowElements("span", "pre", "code")
	p.AllowStyles("color", "background-color", "font-weight", "font-style", "text-decoration").
		OnElements("span", "pre")
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)
	return p
}

// Render converts markdown to sanitized HTML. Empty input yields "".
func (r *HTMLRenderer) Render(markdown string) string {
	if strings.TrimSpace(markdown) == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(markdown), &buf); err != nil {
		logrus.WithError(err).Warn("markdown conversion failed")
		return r.policy.Sanitize("<p>" + html.EscapeString(markdown) + "</p>")
	}
	return r.policy.Sanitize(buf.String())
}

var (
	defaultHTML     *HTMLRenderer
	defaultHTMLOnce sync.Once
)

// HTML renders markdown with the default HTMLRenderer.
func HTML(markdown string) string {
	defaultHTMLOnce.Do(func() { defaultHTML = NewHTML() })
	return defaultHTML.Render(markdown)
}

// =============================================================================
// FENCED CODE
// =============================================================================

// codeBlockRenderer renders fenced code blocks through chroma.
type codeBlockRenderer struct {
	style *chroma.Style
}

// RegisterFuncs implements renderer.NodeRenderer.
func (r *codeBlockRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindFencedCodeBlock, r.renderFencedCode)
}

func (r *codeBlockRenderer) renderFencedCode(w gmutil.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	n := node.(*ast.FencedCodeBlock)

	var code strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		code.Write(seg.Value(source))
	}

	var lang string
	if n.Info != nil {
		lang = string(n.Language(source))
	}

	if err := highlightHTML(w, code.String(), lang, r.style); err != nil {
		_, _ = w.WriteString("<pre><code>")
		_, _ = w.WriteString(html.EscapeString(code.String()))
		_, _ = w.WriteString("</code></pre>\n")
	}
	return ast.WalkSkipChildren, nil
}

// highlightHTML writes code as inline-styled HTML.
func highlightHTML(w gmutil.BufWriter, code, language string, style *chroma.Style) error {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Analyse(code)
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return err
	}

	formatter := chromahtml.New(chromahtml.WithClasses(false), chromahtml.TabWidth(4))
	var buf bytes.Buffer
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return err
	}
	_, err = w.Write(buf.Bytes())
	return err
}
