package tools

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"
)

// 群管理工具只在机器人本身有管理权限时注册，
// 执行时再校验发起人的身份（isAdmin/isOwner 由调用方注入参数）。

// ===== 戳一戳 =====

type pokeTool struct{}

func (t *pokeTool) Name() string { return "poke" }

func (t *pokeTool) Description() string {
	return "戳一戳某个群友。可以用来打招呼、吸引注意力、或者逗逗人玩。不要频繁使用。"
}

func (t *pokeTool) Parameters() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"qq": {
				Type:        genai.TypeInteger,
				Description: "要戳的群友QQ号",
			},
		},
		Required: []string{"qq"},
	}
}

func (t *pokeTool) Invoke(ctx context.Context, args map[string]any) (map[string]any, error) {
	qq := argInt64(args, "qq")
	if qq == 0 {
		return failure("QQ号不能为空"), nil
	}

	tc := GetToolContext(ctx)
	if tc == nil || tc.Bot == nil {
		return failure("机器人未连接"), nil
	}

	if err := tc.Bot.GroupPoke(tc.GroupID, qq); err != nil {
		return nil, fmt.Errorf("戳一戳失败: %w", err)
	}

	out := success("已戳一戳")
	LogToolCall(t.Name(), args, out, nil)
	return out, nil
}

// ===== 修改群名片 =====

type editCardTool struct{}

func (t *editCardTool) Name() string { return "editCard" }

func (t *editCardTool) Description() string {
	return "修改某个群友的群名片。只有管理员发起的对话才能改别人的名片，普通群友只能改自己的。"
}

func (t *editCardTool) Parameters() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"qq": {
				Type:        genai.TypeInteger,
				Description: "要修改名片的群友QQ号",
			},
			"card": {
				Type:        genai.TypeString,
				Description: "新的群名片",
			},
		},
		Required: []string{"qq", "card"},
	}
}

func (t *editCardTool) Invoke(ctx context.Context, args map[string]any) (map[string]any, error) {
	qq := argInt64(args, "qq")
	card := argString(args, "card")
	if qq == 0 {
		return failure("QQ号不能为空"), nil
	}

	if !argBool(args, "isAdmin") && !argBool(args, "isOwner") && qq != senderID(args) {
		return failure("发起人不是管理员，只能修改自己的群名片"), nil
	}

	tc := GetToolContext(ctx)
	if tc == nil || tc.Bot == nil {
		return failure("机器人未连接"), nil
	}

	if err := tc.Bot.SetGroupCard(tc.GroupID, qq, card); err != nil {
		return nil, fmt.Errorf("修改群名片失败: %w", err)
	}

	out := success("群名片已修改")
	LogToolCall(t.Name(), args, out, nil)
	return out, nil
}

// ===== 禁言 =====

type muteTool struct{}

func (t *muteTool) Name() string { return "jinyan" }

func (t *muteTool) Description() string {
	return "禁言某个群友，或解除禁言。只有管理员或群主发起的对话才能使用。"
}

func (t *muteTool) Parameters() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"qq": {
				Type:        genai.TypeInteger,
				Description: "要禁言的群友QQ号",
			},
			"minutes": {
				Type:        genai.TypeInteger,
				Description: "禁言时长（分钟），0 表示解除禁言，默认10分钟",
			},
		},
		Required: []string{"qq"},
	}
}

func (t *muteTool) Invoke(ctx context.Context, args map[string]any) (map[string]any, error) {
	qq := argInt64(args, "qq")
	if qq == 0 {
		return failure("QQ号不能为空"), nil
	}

	if !argBool(args, "isAdmin") && !argBool(args, "isOwner") {
		return failure("发起人不是管理员，无权禁言"), nil
	}

	tc := GetToolContext(ctx)
	if tc == nil || tc.Bot == nil {
		return failure("机器人未连接"), nil
	}

	minutes := argInt64(args, "minutes")
	if _, ok := args["minutes"]; !ok {
		minutes = 10
	}

	if err := tc.Bot.SetGroupBan(tc.GroupID, qq, time.Duration(minutes)*time.Minute); err != nil {
		return nil, fmt.Errorf("禁言失败: %w", err)
	}

	var out map[string]any
	if minutes == 0 {
		out = success("已解除禁言")
	} else {
		out = success(fmt.Sprintf("已禁言 %d 分钟", minutes))
	}
	LogToolCall(t.Name(), args, out, nil)
	return out, nil
}

// ===== 踢人 =====

type kickOutTool struct{}

func (t *kickOutTool) Name() string { return "kickOut" }

func (t *kickOutTool) Description() string {
	return "把某个群友移出群聊。只有管理员或群主发起的对话才能使用，慎用。"
}

func (t *kickOutTool) Parameters() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"qq": {
				Type:        genai.TypeInteger,
				Description: "要移出群聊的群友QQ号",
			},
		},
		Required: []string{"qq"},
	}
}

func (t *kickOutTool) Invoke(ctx context.Context, args map[string]any) (map[string]any, error) {
	qq := argInt64(args, "qq")
	if qq == 0 {
		return failure("QQ号不能为空"), nil
	}

	if !argBool(args, "isAdmin") && !argBool(args, "isOwner") {
		return failure("发起人不是管理员，无权踢人"), nil
	}

	tc := GetToolContext(ctx)
	if tc == nil || tc.Bot == nil {
		return failure("机器人未连接"), nil
	}
	if qq == tc.SelfID {
		return failure("不能把自己踢出去"), nil
	}

	if err := tc.Bot.SetGroupKick(tc.GroupID, qq, false); err != nil {
		return nil, fmt.Errorf("踢出群聊失败: %w", err)
	}

	out := success("已移出群聊")
	LogToolCall(t.Name(), args, out, nil)
	return out, nil
}

// ===== 专属头衔 =====

type setTitleTool struct{}

func (t *setTitleTool) Name() string { return "setTitle" }

func (t *setTitleTool) Description() string {
	return "给某个群友设置专属头衔。需要机器人是群主，且只有群主发起的对话才能给别人设置。"
}

func (t *setTitleTool) Parameters() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"qq": {
				Type:        genai.TypeInteger,
				Description: "群友QQ号",
			},
			"title": {
				Type:        genai.TypeString,
				Description: "新的专属头衔，空字符串表示清除",
			},
		},
		Required: []string{"qq", "title"},
	}
}

func (t *setTitleTool) Invoke(ctx context.Context, args map[string]any) (map[string]any, error) {
	qq := argInt64(args, "qq")
	if qq == 0 {
		return failure("QQ号不能为空"), nil
	}

	if !argBool(args, "isOwner") && qq != senderID(args) {
		return failure("发起人不是群主，只能给自己设置头衔"), nil
	}

	tc := GetToolContext(ctx)
	if tc == nil || tc.Bot == nil {
		return failure("机器人未连接"), nil
	}

	if err := tc.Bot.SetGroupSpecialTitle(tc.GroupID, qq, argString(args, "title")); err != nil {
		return nil, fmt.Errorf("设置头衔失败: %w", err)
	}

	out := success("头衔已设置")
	LogToolCall(t.Name(), args, out, nil)
	return out, nil
}
