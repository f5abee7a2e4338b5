package renderer

import (
	"regexp"
	"strings"

	"bym-bot/internal/onebot"
)

// 方括号表情写法，兼容 [笑] 与 [/笑] 两种
var faceTokenRe = regexp.MustCompile(`\[/?(.+?)\]`)

// @某人写法，名字到空白或行尾为止
var atTokenRe = regexp.MustCompile(`@(\S+)`)

// Convert 把模型输出文本转换为平台消息段序列
// 方括号表情名命中表则变 face 段，@名字在群成员表中命中则变 at 段，
// 命不中的保持字面文本，原有顺序不变。
// members 是群名片/昵称到QQ号的快照，为 nil 时不做@解析。
func Convert(text string, resolveAt bool, members map[string]int64) []onebot.Segment {
	segs := convertFaces(text)
	if resolveAt && len(members) > 0 {
		segs = resolveMentions(segs, members)
	}
	return segs
}

// convertFaces 扫描方括号表情记号
func convertFaces(text string) []onebot.Segment {
	var segs []onebot.Segment
	last := 0
	for _, loc := range faceTokenRe.FindAllStringSubmatchIndex(text, -1) {
		start, end := loc[0], loc[1]
		name := strings.TrimPrefix(text[loc[2]:loc[3]], "/")

		if start > last {
			segs = append(segs, onebot.Text(text[last:start]))
		}
		if id, ok := LookupFace(name); ok {
			segs = append(segs, onebot.Face(id))
		} else {
			segs = append(segs, onebot.Text(text[start:end]))
		}
		last = end
	}
	if last < len(text) {
		segs = append(segs, onebot.Text(text[last:]))
	}
	return segs
}

// resolveMentions 在文本段里解析 @名字
func resolveMentions(segs []onebot.Segment, members map[string]int64) []onebot.Segment {
	var out []onebot.Segment
	for _, seg := range segs {
		if !seg.IsText() {
			out = append(out, seg)
			continue
		}
		text := seg.TextContent()
		last := 0
		for _, loc := range atTokenRe.FindAllStringSubmatchIndex(text, -1) {
			start, end := loc[0], loc[1]
			name := text[loc[2]:loc[3]]

			if start > last {
				out = append(out, onebot.Text(text[last:start]))
			}
			if userID, ok := members[name]; ok {
				out = append(out, onebot.At(userID))
			} else {
				out = append(out, onebot.Text(text[start:end]))
			}
			last = end
		}
		if last < len(text) {
			out = append(out, onebot.Text(text[last:]))
		}
	}
	return out
}

// emptySentinel 模型表示"不说话"的哨兵记号
const emptySentinel = "<EMPTY>"

// FilterChunk 过滤不值得发出的内容
// 纯空白、裸代码围栏、沉默哨兵都会被丢弃（返回空串），
// 其余内容去掉首尾哨兵后返回。
func FilterChunk(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || trimmed == "```" || trimmed == emptySentinel {
		return ""
	}
	trimmed = strings.TrimPrefix(trimmed, emptySentinel)
	trimmed = strings.TrimSuffix(trimmed, emptySentinel)
	return strings.TrimSpace(trimmed)
}

// FilterSegments 对整个段序列应用 FilterChunk，剔除空段
func FilterSegments(segs []onebot.Segment) []onebot.Segment {
	var out []onebot.Segment
	for _, seg := range segs {
		if seg.IsText() {
			filtered := FilterChunk(seg.TextContent())
			if filtered == "" {
				continue
			}
			out = append(out, onebot.Text(filtered))
			continue
		}
		out = append(out, seg)
	}
	return out
}

// MemberDirectory 把群成员列表折成名字到QQ号的快照
// 群名片优先于昵称（同名时名片覆盖）。
func MemberDirectory(members []*onebot.GroupMemberInfo) map[string]int64 {
	m := make(map[string]int64, len(members)*2)
	for _, member := range members {
		if member == nil {
			continue
		}
		if member.Nickname != "" {
			m[member.Nickname] = member.UserID
		}
	}
	for _, member := range members {
		if member == nil {
			continue
		}
		if member.Card != "" {
			m[member.Card] = member.UserID
		}
	}
	return m
}
