package tools

import (
	"context"
	"fmt"
	"net/url"

	"google.golang.org/genai"
)

// weatherTool 查询城市天气，走 wttr.in 免费接口
type weatherTool struct{}

func (t *weatherTool) Name() string { return "weather" }

func (t *weatherTool) Description() string {
	return "查询指定城市的实时天气。当群友问天气、讨论出门穿衣等话题时使用。"
}

func (t *weatherTool) Parameters() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"city": {
				Type:        genai.TypeString,
				Description: "城市名，中文或拼音均可，例如：北京 / Shanghai",
			},
		},
		Required: []string{"city"},
	}
}

type wttrResponse struct {
	CurrentCondition []struct {
		TempC       string `json:"temp_C"`
		TempF       string `json:"temp_F"`
		FeelsLikeC  string `json:"FeelsLikeC"`
		Humidity    string `json:"humidity"`
		WeatherDesc []struct {
			Value string `json:"value"`
		} `json:"lang_zh"`
	} `json:"current_condition"`
}

func (t *weatherTool) Invoke(ctx context.Context, args map[string]any) (map[string]any, error) {
	city := argString(args, "city")
	if city == "" {
		return failure("城市名不能为空"), nil
	}

	var data wttrResponse
	api := fmt.Sprintf("https://wttr.in/%s?format=j1&lang=zh", url.PathEscape(city))
	if err := fetchJSON(ctx, api, &data); err != nil {
		return nil, fmt.Errorf("查询天气失败: %w", err)
	}
	if len(data.CurrentCondition) == 0 {
		return failure("未查询到该城市的天气"), nil
	}

	cur := data.CurrentCondition[0]
	desc := ""
	if len(cur.WeatherDesc) > 0 {
		desc = cur.WeatherDesc[0].Value
	}

	temp := cur.TempC + "℃"
	if tc := GetToolContext(ctx); tc != nil && tc.Cfg.Tools.WeatherUnit == "u" {
		temp = cur.TempF + "℉"
	}

	out := map[string]any{
		"success":     true,
		"city":        city,
		"weather":     desc,
		"temperature": temp,
		"feels_like":  cur.FeelsLikeC + "℃",
		"humidity":    cur.Humidity + "%",
	}
	LogToolCall(t.Name(), args, out, nil)
	return out, nil
}
