package tools

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"google.golang.org/genai"
)

// webSearchTool 通过 SerpAPI 搜索网页，仅在配置了 Key 时注册
type webSearchTool struct{}

func (t *webSearchTool) Name() string { return "search" }

func (t *webSearchTool) Description() string {
	return "搜索互联网上的信息。当群友问到你不知道的事实、新闻或实时信息时使用。"
}

func (t *webSearchTool) Parameters() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"query": {
				Type:        genai.TypeString,
				Description: "要搜索的内容或关键词",
			},
		},
		Required: []string{"query"},
	}
}

type serpResponse struct {
	OrganicResults []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic_results"`
}

func (t *webSearchTool) Invoke(ctx context.Context, args map[string]any) (map[string]any, error) {
	query := argString(args, "query")
	if query == "" {
		return failure("搜索内容不能为空"), nil
	}

	tc := GetToolContext(ctx)
	if tc == nil || tc.Cfg.Tools.SerpKey == "" {
		return failure("搜索功能未配置"), nil
	}

	api := fmt.Sprintf("https://serpapi.com/search.json?engine=google&hl=zh-cn&q=%s&api_key=%s",
		url.QueryEscape(query), url.QueryEscape(tc.Cfg.Tools.SerpKey))

	var data serpResponse
	if err := fetchJSON(ctx, api, &data); err != nil {
		return nil, fmt.Errorf("搜索失败: %w", err)
	}

	results := make([]map[string]any, 0, 5)
	for i, r := range data.OrganicResults {
		if i >= 5 {
			break
		}
		results = append(results, map[string]any{
			"title":   r.Title,
			"link":    r.Link,
			"snippet": r.Snippet,
		})
	}

	out := map[string]any{
		"success": true,
		"count":   len(results),
		"results": results,
	}
	LogToolCall(t.Name(), args, out, nil)
	return out, nil
}

// websiteTool 抓取网页正文
type websiteTool struct{}

func (t *websiteTool) Name() string { return "website" }

func (t *websiteTool) Description() string {
	return "访问一个网页并读取其正文内容。当群友发了链接想让你看看时使用。"
}

func (t *websiteTool) Parameters() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"url": {
				Type:        genai.TypeString,
				Description: "要访问的网页地址",
			},
		},
		Required: []string{"url"},
	}
}

var (
	scriptRe = regexp.MustCompile(`(?is)<(script|style|noscript)[^>]*>.*?</(script|style|noscript)>`)
	tagRe    = regexp.MustCompile(`(?s)<[^>]+>`)
	spaceRe  = regexp.MustCompile(`\s+`)
)

const maxPageRunes = 3000

func (t *websiteTool) Invoke(ctx context.Context, args map[string]any) (map[string]any, error) {
	pageURL := argString(args, "url")
	if pageURL == "" {
		return failure("网页地址不能为空"), nil
	}
	if !strings.HasPrefix(pageURL, "http://") && !strings.HasPrefix(pageURL, "https://") {
		pageURL = "https://" + pageURL
	}

	body, err := fetchBody(ctx, pageURL, 2<<20)
	if err != nil {
		return nil, fmt.Errorf("访问网页失败: %w", err)
	}

	text := cleanHTML(string(body))
	if text == "" {
		return failure("网页没有可读的正文"), nil
	}

	out := map[string]any{
		"success": true,
		"url":     pageURL,
		"content": text,
	}
	LogToolCall(t.Name(), args, out, nil)
	return out, nil
}

// cleanHTML 去掉标签和多余空白，截断到可控长度
func cleanHTML(html string) string {
	text := scriptRe.ReplaceAllString(html, " ")
	text = tagRe.ReplaceAllString(text, " ")
	text = strings.NewReplacer("&nbsp;", " ", "&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`).Replace(text)
	text = spaceRe.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)

	runes := []rune(text)
	if len(runes) > maxPageRunes {
		return string(runes[:maxPageRunes]) + "……"
	}
	return text
}
