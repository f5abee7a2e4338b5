package tools

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"google.golang.org/genai"

	"bym-bot/internal/onebot"
)

// ===== 点歌 =====

// searchMusicTool 搜歌，结果供后续 sendMusic 使用
type searchMusicTool struct{}

func (t *searchMusicTool) Name() string { return "searchMusic" }

func (t *searchMusicTool) Description() string {
	return "搜索歌曲。群友想听歌或讨论某首歌时使用，搜到结果后再用 sendMusic 发送。"
}

func (t *searchMusicTool) Parameters() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"keyword": {
				Type:        genai.TypeString,
				Description: "歌名或歌手，例如：晴天 周杰伦",
			},
		},
		Required: []string{"keyword"},
	}
}

type musicSearchResponse struct {
	Result struct {
		Songs []struct {
			ID      int64  `json:"id"`
			Name    string `json:"name"`
			Artists []struct {
				Name string `json:"name"`
			} `json:"artists"`
		} `json:"songs"`
	} `json:"result"`
}

func (t *searchMusicTool) Invoke(ctx context.Context, args map[string]any) (map[string]any, error) {
	keyword := argString(args, "keyword")
	if keyword == "" {
		return failure("关键词不能为空"), nil
	}

	tc := GetToolContext(ctx)
	if tc == nil || tc.Cfg.Tools.MusicAPI == "" {
		return failure("点歌功能未配置"), nil
	}

	api := fmt.Sprintf("%s/search?keywords=%s&limit=5",
		strings.TrimRight(tc.Cfg.Tools.MusicAPI, "/"), url.QueryEscape(keyword))

	var data musicSearchResponse
	if err := fetchJSON(ctx, api, &data); err != nil {
		return nil, fmt.Errorf("搜索歌曲失败: %w", err)
	}

	songs := make([]map[string]any, 0, len(data.Result.Songs))
	for _, s := range data.Result.Songs {
		artists := make([]string, 0, len(s.Artists))
		for _, a := range s.Artists {
			artists = append(artists, a.Name)
		}
		songs = append(songs, map[string]any{
			"id":     s.ID,
			"name":   s.Name,
			"artist": strings.Join(artists, "/"),
		})
	}
	if len(songs) == 0 {
		return failure("没有搜到这首歌"), nil
	}

	out := map[string]any{"success": true, "songs": songs}
	LogToolCall(t.Name(), args, out, nil)
	return out, nil
}

// sendMusicTool 发送音乐卡片
type sendMusicTool struct{}

func (t *sendMusicTool) Name() string { return "sendMusic" }

func (t *sendMusicTool) Description() string {
	return "把歌曲以音乐卡片的形式发到群里。需要先用 searchMusic 拿到歌曲ID。"
}

func (t *sendMusicTool) Parameters() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"id": {
				Type:        genai.TypeInteger,
				Description: "searchMusic 返回的歌曲ID",
			},
		},
		Required: []string{"id"},
	}
}

func (t *sendMusicTool) Invoke(ctx context.Context, args map[string]any) (map[string]any, error) {
	songID := argInt64(args, "id")
	if songID == 0 {
		return failure("歌曲ID不能为空"), nil
	}

	tc := GetToolContext(ctx)
	if tc == nil || tc.Bot == nil {
		return failure("机器人未连接"), nil
	}

	seg := onebot.Music("163", strconv.FormatInt(songID, 10))
	if _, err := tc.Bot.SendGroupSegments(tc.GroupID, []onebot.Segment{seg}, 0); err != nil {
		return nil, fmt.Errorf("发送音乐卡片失败: %w", err)
	}

	out := success("歌曲已发送")
	LogToolCall(t.Name(), args, out, nil)
	return out, nil
}

// ===== 图片 =====

// searchImageTool 搜图，结果供后续 sendPicture 使用
type searchImageTool struct{}

func (t *searchImageTool) Name() string { return "searchImage" }

func (t *searchImageTool) Description() string {
	return "按关键词搜索图片。搜到后用 sendPicture 把图片发到群里。"
}

func (t *searchImageTool) Parameters() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"keyword": {
				Type:        genai.TypeString,
				Description: "图片关键词",
			},
		},
		Required: []string{"keyword"},
	}
}

type imageSearchResponse struct {
	Data []struct {
		URL   string `json:"url"`
		Title string `json:"title"`
	} `json:"data"`
}

func (t *searchImageTool) Invoke(ctx context.Context, args map[string]any) (map[string]any, error) {
	keyword := argString(args, "keyword")
	if keyword == "" {
		return failure("关键词不能为空"), nil
	}

	tc := GetToolContext(ctx)
	if tc == nil || tc.Cfg.Tools.ImageAPI == "" {
		return failure("搜图功能未配置"), nil
	}

	api := fmt.Sprintf("%s?keyword=%s&num=3",
		strings.TrimRight(tc.Cfg.Tools.ImageAPI, "/"), url.QueryEscape(keyword))

	var data imageSearchResponse
	if err := fetchJSON(ctx, api, &data); err != nil {
		return nil, fmt.Errorf("搜索图片失败: %w", err)
	}

	images := make([]map[string]any, 0, len(data.Data))
	for _, d := range data.Data {
		images = append(images, map[string]any{"url": d.URL, "title": d.Title})
	}
	if len(images) == 0 {
		return failure("没有搜到相关图片"), nil
	}

	out := map[string]any{"success": true, "images": images}
	LogToolCall(t.Name(), args, out, nil)
	return out, nil
}

// sendPictureTool 发送图片
type sendPictureTool struct{}

func (t *sendPictureTool) Name() string { return "sendPicture" }

func (t *sendPictureTool) Description() string {
	return "把一张图片发到群里。图片地址可以来自 searchImage 的结果。"
}

func (t *sendPictureTool) Parameters() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"url": {
				Type:        genai.TypeString,
				Description: "图片地址",
			},
		},
		Required: []string{"url"},
	}
}

func (t *sendPictureTool) Invoke(ctx context.Context, args map[string]any) (map[string]any, error) {
	imageURL := argString(args, "url")
	if imageURL == "" {
		return failure("图片地址不能为空"), nil
	}

	tc := GetToolContext(ctx)
	if tc == nil || tc.Bot == nil {
		return failure("机器人未连接"), nil
	}

	if _, err := tc.Bot.SendGroupSegments(tc.GroupID, []onebot.Segment{onebot.Image(imageURL)}, 0); err != nil {
		return nil, fmt.Errorf("发送图片失败: %w", err)
	}

	out := success("图片已发送")
	LogToolCall(t.Name(), args, out, nil)
	return out, nil
}

// ===== 视频 =====

// searchVideoTool B站视频搜索
type searchVideoTool struct{}

func (t *searchVideoTool) Name() string { return "searchVideo" }

func (t *searchVideoTool) Description() string {
	return "在B站搜索视频。搜到后用 sendVideo 把视频链接发到群里。"
}

func (t *searchVideoTool) Parameters() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"keyword": {
				Type:        genai.TypeString,
				Description: "视频关键词",
			},
		},
		Required: []string{"keyword"},
	}
}

type biliSearchResponse struct {
	Data struct {
		Result []struct {
			BVID   string `json:"bvid"`
			Title  string `json:"title"`
			Author string `json:"author"`
		} `json:"result"`
	} `json:"data"`
}

var emTagRe = strings.NewReplacer(`<em class="keyword">`, "", "</em>", "")

func (t *searchVideoTool) Invoke(ctx context.Context, args map[string]any) (map[string]any, error) {
	keyword := argString(args, "keyword")
	if keyword == "" {
		return failure("关键词不能为空"), nil
	}

	api := fmt.Sprintf("https://api.bilibili.com/x/web-interface/search/type?search_type=video&keyword=%s",
		url.QueryEscape(keyword))

	var data biliSearchResponse
	if err := fetchJSON(ctx, api, &data); err != nil {
		return nil, fmt.Errorf("搜索视频失败: %w", err)
	}

	videos := make([]map[string]any, 0, 5)
	for i, v := range data.Data.Result {
		if i >= 5 {
			break
		}
		videos = append(videos, map[string]any{
			"bvid":   v.BVID,
			"title":  emTagRe.Replace(v.Title),
			"author": v.Author,
		})
	}
	if len(videos) == 0 {
		return failure("没有搜到相关视频"), nil
	}

	out := map[string]any{"success": true, "videos": videos}
	LogToolCall(t.Name(), args, out, nil)
	return out, nil
}

// sendVideoTool 发送视频链接
type sendVideoTool struct{}

func (t *sendVideoTool) Name() string { return "sendVideo" }

func (t *sendVideoTool) Description() string {
	return "把B站视频链接发到群里。需要先用 searchVideo 拿到 bvid。"
}

func (t *sendVideoTool) Parameters() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"bvid": {
				Type:        genai.TypeString,
				Description: "searchVideo 返回的视频 bvid",
			},
			"comment": {
				Type:        genai.TypeString,
				Description: "随链接一起说的话（可选）",
			},
		},
		Required: []string{"bvid"},
	}
}

func (t *sendVideoTool) Invoke(ctx context.Context, args map[string]any) (map[string]any, error) {
	bvid := argString(args, "bvid")
	if bvid == "" {
		return failure("bvid 不能为空"), nil
	}

	tc := GetToolContext(ctx)
	if tc == nil || tc.Bot == nil {
		return failure("机器人未连接"), nil
	}

	text := "https://www.bilibili.com/video/" + bvid
	if comment := argString(args, "comment"); comment != "" {
		text = comment + "\n" + text
	}

	if _, err := tc.Bot.SendGroupSegments(tc.GroupID, []onebot.Segment{onebot.Text(text)}, 0); err != nil {
		return nil, fmt.Errorf("发送视频失败: %w", err)
	}

	out := success("视频链接已发送")
	LogToolCall(t.Name(), args, out, nil)
	return out, nil
}

// ===== 头像 =====

// sendAvatarTool 发送某人的QQ头像
type sendAvatarTool struct{}

func (t *sendAvatarTool) Name() string { return "sendAvatar" }

func (t *sendAvatarTool) Description() string {
	return "把某个群友的QQ头像以图片形式发到群里。"
}

func (t *sendAvatarTool) Parameters() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"qq": {
				Type:        genai.TypeInteger,
				Description: "群友的QQ号",
			},
		},
		Required: []string{"qq"},
	}
}

func (t *sendAvatarTool) Invoke(ctx context.Context, args map[string]any) (map[string]any, error) {
	qq := argInt64(args, "qq")
	if qq == 0 {
		return failure("QQ号不能为空"), nil
	}

	tc := GetToolContext(ctx)
	if tc == nil || tc.Bot == nil {
		return failure("机器人未连接"), nil
	}

	avatar := fmt.Sprintf("https://q1.qlogo.cn/g?b=qq&nk=%d&s=640", qq)
	if _, err := tc.Bot.SendGroupSegments(tc.GroupID, []onebot.Segment{onebot.Image(avatar)}, 0); err != nil {
		return nil, fmt.Errorf("发送头像失败: %w", err)
	}

	out := success("头像已发送")
	LogToolCall(t.Name(), args, out, nil)
	return out, nil
}
