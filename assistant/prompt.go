package assistant

import (
	"fmt"
	"strings"

	"poetry_companion/poetry"
)

// Prompt 表示发送给 LLM 的一组 system + user 消息及采样参数。
type Prompt struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// GenerationOptions 控制三类请求的采样参数。
type GenerationOptions struct {
	ReadTemperature    float64
	ReadMaxTokens      int
	AnalyzeTemperature float64
	AnalyzeMaxTokens   int
	GeneralTemperature float64
	GeneralMaxTokens   int
}

// DefaultGenerationOptions 阅读低随机性，赏析和闲聊 0.7。
func DefaultGenerationOptions() GenerationOptions {
	return GenerationOptions{
		ReadTemperature:    0.2,
		ReadMaxTokens:      1200,
		AnalyzeTemperature: 0.7,
		AnalyzeMaxTokens:   1200,
		GeneralTemperature: 0.7,
		GeneralMaxTokens:   800,
	}
}

// BuildReadPrompt 要求模型忠实还原原文。
func BuildReadPrompt(p poetry.Poem, userText string, opts GenerationOptions) Prompt {
	var sb strings.Builder
	sb.WriteString("你是一名古典诗词助手。用户想阅读下面这首诗的原文。\n")
	sb.WriteString("要求：\n")
	sb.WriteString("- 按给定原文逐字输出，先写标题、作者与朝代，再写正文。\n")
	sb.WriteString("- 可在正文后附不超过三条的简要注释；不需要注释时不要添加。\n")
	sb.WriteString("- 不得改写、增删原文，不得编造其他诗句或出处。\n\n")
	writePoem(&sb, p)

	return Prompt{
		System:      sb.String(),
		User:        userText,
		Temperature: opts.ReadTemperature,
		MaxTokens:   opts.ReadMaxTokens,
	}
}

// BuildAnalyzePrompt 要求模型基于原文做赏析。
func BuildAnalyzePrompt(p poetry.Poem, userText string, opts GenerationOptions) Prompt {
	var sb strings.Builder
	sb.WriteString("你是一名古典诗词鉴赏专家，请围绕下面这首诗为用户做赏析。\n")
	sb.WriteString("要求：\n")
	sb.WriteString("- 从主题情感、意象、写作手法和语言特色展开，条理清楚。\n")
	sb.WriteString("- 引用诗句时必须与原文一致。\n")
	sb.WriteString("- 不确定的创作背景如实说明，不要编造史实。\n\n")
	writePoem(&sb, p)

	return Prompt{
		System:      sb.String(),
		User:        userText,
		Temperature: opts.AnalyzeTemperature,
		MaxTokens:   opts.AnalyzeMaxTokens,
	}
}

// BuildGeneralPrompt 用于自由对话，poems 为已查到的相关诗歌。
func BuildGeneralPrompt(userText string, poems []poetry.Poem, opts GenerationOptions) Prompt {
	var sb strings.Builder
	sb.WriteString("你是一名熟悉中国古典诗词的对话助手，可以闲聊、解答问题、比较不同诗作或推荐诗歌。\n")
	sb.WriteString("要求：\n")
	sb.WriteString("- 用中文回答，语气亲切。\n")
	sb.WriteString("- 引用诗句必须准确；不知道的内容直接说明，不要编造诗句、作者或出处。\n")
	if len(poems) > 0 {
		sb.WriteString("- 优先参考下面提供的诗歌资料。\n\n")
		for i, p := range poems {
			sb.WriteString(fmt.Sprintf("资料 %d：\n", i+1))
			writePoem(&sb, p)
			sb.WriteString("\n")
		}
	}

	return Prompt{
		System:      strings.TrimRight(sb.String(), "\n"),
		User:        userText,
		Temperature: opts.GeneralTemperature,
		MaxTokens:   opts.GeneralMaxTokens,
	}
}

func writePoem(sb *strings.Builder, p poetry.Poem) {
	sb.WriteString(fmt.Sprintf("标题：%s\n", p.Title))
	sb.WriteString(fmt.Sprintf("作者：%s（%s）\n", p.PoetName, p.Dynasty))
	if tag := p.PrimaryTag(); tag != "" {
		sb.WriteString(fmt.Sprintf("分类：%s\n", tag))
	}
	sb.WriteString("原文：\n")
	sb.WriteString(p.Content)
	sb.WriteString("\n")
}
