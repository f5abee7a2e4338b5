package onebot

import "strconv"

// Segment 发送用消息段（OneBot 11 数组格式）
type Segment struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// Text 纯文本段
func Text(text string) Segment {
	return Segment{Type: "text", Data: map[string]any{"text": text}}
}

// Face QQ表情段
func Face(id int) Segment {
	return Segment{Type: "face", Data: map[string]any{"id": strconv.Itoa(id)}}
}

// At @某人段
func At(userID int64) Segment {
	return Segment{Type: "at", Data: map[string]any{"qq": strconv.FormatInt(userID, 10)}}
}

// Reply 引用回复段
func Reply(messageID int64) Segment {
	return Segment{Type: "reply", Data: map[string]any{"id": strconv.FormatInt(messageID, 10)}}
}

// Image 图片段，file 可以是 URL、本地路径或 base64
func Image(file string) Segment {
	return Segment{Type: "image", Data: map[string]any{"file": file}}
}

// Record 语音段
func Record(file string) Segment {
	return Segment{Type: "record", Data: map[string]any{"file": file}}
}

// Music 音乐分享段
func Music(kind string, id string) Segment {
	return Segment{Type: "music", Data: map[string]any{"type": kind, "id": id}}
}

// CustomMusic 自定义音乐分享段
func CustomMusic(url, audio, title string) Segment {
	return Segment{Type: "music", Data: map[string]any{
		"type":  "custom",
		"url":   url,
		"audio": audio,
		"title": title,
	}}
}

// IsText 判断是否文本段
func (s Segment) IsText() bool { return s.Type == "text" }

// TextContent 取文本段内容，非文本段返回空串
func (s Segment) TextContent() string {
	if !s.IsText() {
		return ""
	}
	if t, ok := s.Data["text"].(string); ok {
		return t
	}
	return ""
}
