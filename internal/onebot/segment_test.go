package onebot

import "testing"

func TestSegmentConstructors(t *testing.T) {
	cases := []struct {
		seg  Segment
		typ  string
		key  string
		want string
	}{
		{Text("你好"), "text", "text", "你好"},
		{Face(14), "face", "id", "14"},
		{At(114514), "at", "qq", "114514"},
		{Reply(999), "reply", "id", "999"},
		{Image("https://example.com/a.jpg"), "image", "file", "https://example.com/a.jpg"},
		{Record("base64://xxx"), "record", "file", "base64://xxx"},
		{Music("163", "28391863"), "music", "id", "28391863"},
	}
	for _, c := range cases {
		if c.seg.Type != c.typ {
			t.Errorf("段类型 = %q, want %q", c.seg.Type, c.typ)
		}
		if got := c.seg.Data[c.key]; got != c.want {
			t.Errorf("%s 段 %s = %v, want %q", c.typ, c.key, got, c.want)
		}
	}
}

func TestTextContent(t *testing.T) {
	if got := Text("一句话").TextContent(); got != "一句话" {
		t.Errorf("TextContent = %q", got)
	}
	if got := Face(1).TextContent(); got != "" {
		t.Errorf("非文本段应返回空串: %q", got)
	}
	if !Text("").IsText() || Face(1).IsText() {
		t.Error("IsText 判断错误")
	}
}

func TestCustomMusic(t *testing.T) {
	seg := CustomMusic("https://u", "https://a", "歌名")
	if seg.Data["type"] != "custom" || seg.Data["title"] != "歌名" {
		t.Errorf("CustomMusic = %+v", seg)
	}
}
