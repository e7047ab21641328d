package assistant

import (
	"regexp"
	"strings"
)

var bracketTitleRe = regexp.MustCompile(`《([^《》]+)》`)

// ExtractTitles 返回文本中所有《》内的诗题，去重并保持出现顺序。
func ExtractTitles(text string) []string {
	matches := bracketTitleRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	var titles []string
	for _, m := range matches {
		t := strings.TrimSpace(m[1])
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		titles = append(titles, t)
	}
	return titles
}

// searchKeyword 把用户输入整理成关键词检索用的字符串。
func searchKeyword(text string) string {
	text = strings.NewReplacer("《", " ", "》", " ").Replace(text)
	return strings.Join(strings.Fields(text), " ")
}
