package assistant

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"poetry_companion/poetry"
)

// GuidanceMessage 在既无模型也无检索结果时返回。
const GuidanceMessage = "我暂时没有理解你的问题。你可以试试这样问我：\n· 阅读《静夜思》\n· 赏析《春望》\n· 比较《静夜思》和《江雪》的意境"

const (
	emptyContent    = "（无内容）"
	longPoemRunes   = 60
	analysisClosing = "全诗语言凝练而意蕴深厚，值得反复吟咏，细细品味。"
)

// 意象探测字，顺序即输出顺序。
var imageryProbes = []string{"月", "风", "雨", "江", "山", "花", "酒"}

// BuildReadingReply 生成原文展示。
func BuildReadingReply(p poetry.Poem) string {
	content := p.Content
	if strings.TrimSpace(content) == "" {
		content = emptyContent
	}
	return fmt.Sprintf("%s / %s（%s）\n\n%s", p.Title, p.PoetName, p.Dynasty, content)
}

// BuildAnalysisReply 生成不依赖模型的赏析，空行会被省略。
func BuildAnalysisReply(p poetry.Poem) string {
	lines := []string{
		fmt.Sprintf("%s（%s，%s）赏析", p.Title, p.PoetName, p.Dynasty),
		typeLine(p),
		imageryLine(p.Content),
		biographyLine(p.PoetDescription),
		analysisClosing,
	}
	kept := lines[:0]
	for _, l := range lines {
		if l != "" {
			kept = append(kept, l)
		}
	}
	return strings.Join(kept, "\n")
}

func typeLine(p poetry.Poem) string {
	kind := p.PrimaryTag()
	if kind == "" {
		kind = "古诗"
	}
	length := "精炼凝练"
	if utf8.RuneCountInString(p.Content) > longPoemRunes {
		length = "较为舒展"
	}
	return fmt.Sprintf("这是一首%s，篇幅%s。", kind, length)
}

func imageryLine(content string) string {
	found := MatchImagery(content)
	if len(found) == 0 {
		return ""
	}
	return fmt.Sprintf("诗中出现了%s等意象，情景交融，画面感鲜明。", strings.Join(found, "、"))
}

// MatchImagery 返回正文中出现的意象字，按探测顺序。
func MatchImagery(content string) []string {
	var found []string
	for _, probe := range imageryProbes {
		if strings.Contains(content, probe) {
			found = append(found, probe)
		}
	}
	return found
}

func biographyLine(bio string) string {
	bio = strings.TrimSpace(bio)
	if bio == "" {
		return ""
	}
	return "作者简介：" + bio
}

// BuildSuggestionList 列出最多 limit 首诗；没有结果时返回引导语。
func BuildSuggestionList(poems []poetry.Poem, limit int) string {
	if len(poems) == 0 {
		return GuidanceMessage
	}
	if limit > 0 && len(poems) > limit {
		poems = poems[:limit]
	}
	lines := make([]string, 0, len(poems)+1)
	lines = append(lines, "为你找到以下相关诗歌：")
	for _, p := range poems {
		lines = append(lines, fmt.Sprintf("· %s（%s，%s）", p.Title, p.PoetName, p.Dynasty))
	}
	return strings.Join(lines, "\n")
}

// ReadNotFoundReply 用于阅读时找不到诗歌。
func ReadNotFoundReply(title string) string {
	return fmt.Sprintf("未找到标题为“%s”的诗歌，请确认标题是否正确。", title)
}

// AnalyzeNotFoundReply 用于赏析时找不到诗歌。
func AnalyzeNotFoundReply(title string) string {
	return fmt.Sprintf("未找到标题为“%s”的诗歌，无法进行赏析。", title)
}
