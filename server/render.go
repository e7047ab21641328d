package server

import (
	"bytes"

	"github.com/rs/zerolog/log"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/renderer/html"
)

// 诗句按行排版，单个换行也要保留。
var markdown = goldmark.New(goldmark.WithRendererOptions(html.WithHardWraps()))

// renderMarkdown 把回复转成 HTML，失败时返回空串，前端退回纯文本。
func renderMarkdown(md string) string {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		log.Warn().Err(err).Msg("render markdown")
		return ""
	}
	return buf.String()
}
