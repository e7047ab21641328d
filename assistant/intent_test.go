package assistant

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegexClassifier(t *testing.T) {
	c := NewRegexClassifier()
	cases := []struct {
		text   string
		intent Intent
		title  string
	}{
		{"阅读《静夜思》", IntentRead, "静夜思"},
		{"请显示诗歌《春望》的原文", IntentRead, "春望"},
		{"赏析《春望》", IntentAnalyze, "春望"},
		{"帮我解读一下《江雪》", IntentAnalyze, "江雪"},
		{"赏析一下春望", IntentAnalyze, "春望"},
		{"看一下 登鹳雀楼", IntentRead, "登鹳雀楼"},
		{"点评静夜思，谢谢", IntentAnalyze, "静夜思"},
		{"阅读并赏析《静夜思》", IntentRead, "静夜思"},
		{"分析", IntentAnalyze, ""},
		{"阅读原文静夜思", IntentRead, "静夜思"},
		{"阅读并赏析静夜思", IntentRead, "静夜思"},
		{"赏析并点评一下江雪", IntentAnalyze, "江雪"},
		{"阅读原文", IntentRead, ""},
		{"赏析和子由渑池怀旧", IntentAnalyze, "和子由渑池怀旧"},
		{"你好", IntentUnknown, ""},
		{"比较《静夜思》和《江雪》", IntentUnknown, ""},
	}
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			got := c.Classify(tc.text)
			assert.Equal(t, tc.intent, got.Intent)
			assert.Equal(t, tc.title, got.Title)
		})
	}
}

func TestRegexClassifierCustomTriggers(t *testing.T) {
	c := NewRegexClassifierWith([]string{"背诵"}, []string{"讲讲"})
	assert.Equal(t, IntentResult{Intent: IntentRead, Title: "江雪"}, c.Classify("背诵《江雪》"))
	assert.Equal(t, IntentResult{Intent: IntentAnalyze, Title: "春望"}, c.Classify("讲讲春望"))
	assert.Equal(t, IntentUnknown, c.Classify("阅读《江雪》").Intent)
}

func TestExtractTitles(t *testing.T) {
	assert.Equal(t, []string{"静夜思", "江雪"}, ExtractTitles("比较《静夜思》和《江雪》，再看看《静夜思》"))
	assert.Nil(t, ExtractTitles("没有书名号"))
	assert.Nil(t, ExtractTitles("《 》"))
}

func TestSearchKeyword(t *testing.T) {
	assert.Equal(t, "推荐 静夜思 类似的诗", searchKeyword("推荐《静夜思》类似的诗"))
	assert.Equal(t, "你好", searchKeyword("  你好 "))
	assert.Equal(t, "", searchKeyword("《》"))
}
