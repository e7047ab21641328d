package assistant

import (
	"regexp"
	"strings"
)

// Classifier 把一句话解析为意图和诗题，实现必须是纯函数。
type Classifier interface {
	Classify(text string) IntentResult
}

var (
	readTriggers    = []string{"阅读", "原文", "朗读", "显示诗歌", "看一下"}
	analyzeTriggers = []string{"赏析", "分析", "解读", "鉴赏", "点评"}
	// 连用触发词时夹在中间的字，如“阅读并赏析”。不含“和”，诗题可能以它开头。
	titleConnectors = []string{"并", "再", "一下"}
)

// RegexClassifier 基于触发词的意图识别，读取优先于赏析。
type RegexClassifier struct {
	read    *regexp.Regexp
	analyze *regexp.Regexp
	after   *regexp.Regexp
	lead    *regexp.Regexp
}

// NewRegexClassifier 使用默认触发词。
func NewRegexClassifier() *RegexClassifier {
	return NewRegexClassifierWith(readTriggers, analyzeTriggers)
}

// NewRegexClassifierWith 使用自定义触发词，两组都不能为空。
func NewRegexClassifierWith(read, analyze []string) *RegexClassifier {
	all := append(append([]string{}, read...), analyze...)
	return &RegexClassifier{
		read:    regexp.MustCompile(alternation(read)),
		analyze: regexp.MustCompile(alternation(analyze)),
		after:   regexp.MustCompile(`(?:` + alternation(all) + `)\s*(?:一下)?\s*([^\s《》，。！？、；：,.!?;:]+)`),
		lead:    regexp.MustCompile(`^(?:` + alternation(all) + `|` + alternation(titleConnectors) + `)+`),
	}
}

func (c *RegexClassifier) Classify(text string) IntentResult {
	var intent Intent
	switch {
	case c.read.MatchString(text):
		intent = IntentRead
	case c.analyze.MatchString(text):
		intent = IntentAnalyze
	default:
		return IntentResult{Intent: IntentUnknown}
	}
	return IntentResult{Intent: intent, Title: c.extractTitle(text)}
}

func (c *RegexClassifier) extractTitle(text string) string {
	if titles := ExtractTitles(text); len(titles) > 0 {
		return titles[0]
	}
	m := c.after.FindStringSubmatch(text)
	if len(m) < 2 {
		return ""
	}
	// 触发词后面紧跟的其他触发词不属于诗题，如“阅读原文静夜思”。
	return strings.TrimSpace(c.lead.ReplaceAllString(m[1], ""))
}

func alternation(words []string) string {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return strings.Join(quoted, "|")
}
