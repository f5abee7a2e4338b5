package onebot

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"bym-bot/internal/config"
)

// Client OneBot WebSocket客户端
type Client struct {
	cfg    *config.Config
	conn   *websocket.Conn
	connMu sync.Mutex
	selfID int64

	// 消息与戳一戳回调
	onMessage func(*GroupMessage)
	onPoke    func(*PokeEvent)

	// 重连控制
	reconnecting bool
	stopCh       chan struct{}

	// API 调用响应等待
	echoCounter uint64
	pendingReqs sync.Map // map[string]chan *APIResponse
}

// APIResponse OneBot API 响应
type APIResponse struct {
	Status  string `json:"status"`  // ok / failed
	RetCode int    `json:"retcode"` // 0 表示成功
	Data    any    `json:"data"`    // 可以是 map 或 array
	Echo    string `json:"echo"`
	Message string `json:"message,omitempty"` // 错误信息
}

// DataMap 获取响应数据为 map 类型
func (r *APIResponse) DataMap() map[string]any {
	if m, ok := r.Data.(map[string]any); ok {
		return m
	}
	return nil
}

// DataList 获取响应数据为数组类型
func (r *APIResponse) DataList() []any {
	if arr, ok := r.Data.([]any); ok {
		return arr
	}
	return nil
}

// GroupMessage 群消息
type GroupMessage struct {
	MessageID  int64       `json:"message_id"`
	GroupID    int64       `json:"group_id"`
	UserID     int64       `json:"user_id"`
	Nickname   string      `json:"nickname"`
	Card       string      `json:"card"` // 群名片
	Role       string      `json:"role"` // owner/admin/member
	Title      string      `json:"title"`
	Content    string      `json:"content"`     // 纯文本内容
	MentionBot bool        `json:"mention_bot"` // 是否@机器人
	MentionAll bool        `json:"mention_all"`
	Time       time.Time   `json:"time"`
	Images     []ImageInfo `json:"images,omitempty"`
	Faces      []FaceInfo  `json:"faces,omitempty"`
	AtList     []int64     `json:"at_list,omitempty"`
	Reply      *ReplyInfo  `json:"reply,omitempty"`
}

// DisplayName 群名片优先的显示名
func (m *GroupMessage) DisplayName() string {
	if m.Card != "" {
		return m.Card
	}
	return m.Nickname
}

// ImageInfo 图片信息
type ImageInfo struct {
	URL     string `json:"url"`
	File    string `json:"file"`
	Summary string `json:"summary,omitempty"`
	SubType int    `json:"sub_type"` // 0普通图片 1表情包
}

// FaceInfo 表情信息
type FaceInfo struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// ReplyInfo 引用回复信息
type ReplyInfo struct {
	MessageID int64  `json:"message_id"`
	Content   string `json:"content,omitempty"`
	SenderID  int64  `json:"sender_id,omitempty"`
	Nickname  string `json:"nickname,omitempty"`
}

// PokeEvent 戳一戳事件
type PokeEvent struct {
	GroupID    int64 `json:"group_id"`
	OperatorID int64 `json:"operator_id"` // 谁戳的
	TargetID   int64 `json:"target_id"`   // 戳谁
}

// GroupMemberInfo 群成员信息
type GroupMemberInfo struct {
	GroupID  int64  `json:"group_id"`
	UserID   int64  `json:"user_id"`
	Nickname string `json:"nickname"`
	Card     string `json:"card"`
	Role     string `json:"role"` // owner/admin/member
	Title    string `json:"title"`
}

// NewClient 创建OneBot客户端
func NewClient(cfg *config.Config) *Client {
	return &Client{
		cfg:    cfg,
		stopCh: make(chan struct{}),
	}
}

// Connect 连接到OneBot服务
func (c *Client) Connect() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	header := make(map[string][]string)
	if c.cfg.OneBot.AccessToken != "" {
		header["Authorization"] = []string{"Bearer " + c.cfg.OneBot.AccessToken}
	}

	conn, _, err := websocket.DefaultDialer.Dial(c.cfg.OneBot.WsURL, header)
	if err != nil {
		return fmt.Errorf("WebSocket连接失败: %w", err)
	}

	c.conn = conn
	c.reconnecting = false

	go c.receiveLoop()

	zap.L().Info("已连接到 OneBot", zap.String("url", c.cfg.OneBot.WsURL))
	return nil
}

// OnMessage 设置群消息回调
func (c *Client) OnMessage(handler func(*GroupMessage)) {
	c.onMessage = handler
}

// OnPoke 设置戳一戳回调
func (c *Client) OnPoke(handler func(*PokeEvent)) {
	c.onPoke = handler
}

// GetSelfID 获取Bot的QQ号
func (c *Client) GetSelfID() int64 {
	return c.selfID
}

// Close 关闭连接
func (c *Client) Close() error {
	close(c.stopCh)

	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// receiveLoop 消息接收循环
func (c *Client) receiveLoop() {
	for {
		select {
		case <-c.stopCh:
			return
		default:
		}

		_, message, err := c.conn.ReadMessage()
		if err != nil {
			zap.L().Error("读取消息失败", zap.Error(err))
			c.handleDisconnect()
			return
		}

		go c.handleFrame(message)
	}
}

// handleFrame 处理收到的一帧数据
func (c *Client) handleFrame(data []byte) {
	var event map[string]any
	if err := sonic.Unmarshal(data, &event); err != nil {
		zap.L().Error("解析消息失败", zap.Error(err))
		return
	}

	// API 响应带 echo 字段
	if echo, ok := event["echo"].(string); ok && echo != "" {
		c.handleAPIResponse(event, echo)
		return
	}

	postType, _ := event["post_type"].(string)
	switch postType {
	case "meta_event":
		c.handleMetaEvent(event)
	case "message":
		c.handleMessageEvent(event)
	case "notice":
		c.handleNoticeEvent(event)
	}
}

// handleAPIResponse 处理 API 响应
func (c *Client) handleAPIResponse(event map[string]any, echo string) {
	ch, ok := c.pendingReqs.Load(echo)
	if !ok {
		return
	}
	resp := &APIResponse{Echo: echo}
	if status, ok := event["status"].(string); ok {
		resp.Status = status
	}
	if retCode, ok := parseInt(event["retcode"]); ok {
		resp.RetCode = retCode
	}
	resp.Data = event["data"]
	if msg, ok := event["message"].(string); ok {
		resp.Message = msg
	}
	// 非阻塞投递，重复响应或调用方已离场时直接丢弃
	select {
	case ch.(chan *APIResponse) <- resp:
	default:
	}
}

// handleMetaEvent 处理元事件，主要是上线时记录自己的QQ号
func (c *Client) handleMetaEvent(event map[string]any) {
	metaType, _ := event["meta_event_type"].(string)
	if metaType != "lifecycle" {
		return
	}
	if subType, _ := event["sub_type"].(string); subType == "connect" {
		if selfID, ok := parseInt64(event["self_id"]); ok {
			c.selfID = selfID
			zap.L().Info("Bot 已上线", zap.Int64("qq", c.selfID))
		}
	}
}

// handleMessageEvent 处理消息事件，只关心群消息
func (c *Client) handleMessageEvent(event map[string]any) {
	if msgType, _ := event["message_type"].(string); msgType != "group" {
		return
	}
	msg := c.parseGroupMessage(event)
	if msg == nil {
		return
	}
	if c.onMessage != nil {
		c.onMessage(msg)
	}
}

// handleNoticeEvent 处理通知事件，识别戳一戳
func (c *Client) handleNoticeEvent(event map[string]any) {
	noticeType, _ := event["notice_type"].(string)
	subType, _ := event["sub_type"].(string)
	if (noticeType == "notify" && subType == "poke") || noticeType == "poke" {
		poke := &PokeEvent{}
		if gid, ok := parseInt64(event["group_id"]); ok {
			poke.GroupID = gid
		}
		if uid, ok := parseInt64(event["user_id"]); ok {
			poke.OperatorID = uid
		}
		if oid, ok := parseInt64(event["operator_id"]); ok {
			poke.OperatorID = oid
		}
		if tid, ok := parseInt64(event["target_id"]); ok {
			poke.TargetID = tid
		}
		if poke.GroupID != 0 && c.onPoke != nil {
			c.onPoke(poke)
		}
		return
	}
	zap.L().Debug("收到通知", zap.String("type", noticeType), zap.String("sub_type", subType))
}

// parseGroupMessage 解析群消息
func (c *Client) parseGroupMessage(event map[string]any) *GroupMessage {
	msg := &GroupMessage{}

	if t, ok := parseInt64(event["time"]); ok {
		msg.Time = time.Unix(t, 0)
	} else {
		msg.Time = time.Now()
	}

	if msgID, ok := parseInt64(event["message_id"]); ok {
		msg.MessageID = msgID
		if err := c.MarkMsgAsRead(msgID); err != nil {
			zap.L().Debug("标记消息已读失败", zap.Error(err))
		}
	}

	if groupID, ok := parseInt64(event["group_id"]); ok {
		msg.GroupID = groupID
	}

	if sender, ok := event["sender"].(map[string]any); ok {
		if userID, ok := parseInt64(sender["user_id"]); ok {
			msg.UserID = userID
		}
		if nickname, ok := sender["nickname"].(string); ok {
			msg.Nickname = nickname
		}
		if card, ok := sender["card"].(string); ok {
			msg.Card = card
		}
		if role, ok := sender["role"].(string); ok {
			msg.Role = role
		}
		if title, ok := sender["title"].(string); ok {
			msg.Title = title
		}
	}

	c.parseMessageSegments(event, msg)

	for _, atID := range msg.AtList {
		if atID == c.selfID {
			msg.MentionBot = true
			break
		}
	}

	return msg
}

// parseMessageSegments 解析消息段，填充消息各字段
func (c *Client) parseMessageSegments(event map[string]any, msg *GroupMessage) {
	message, ok := event["message"].([]any)
	if !ok {
		if raw, ok := event["raw_message"].(string); ok {
			msg.Content = raw
		}
		return
	}

	var textParts []string

	for _, seg := range message {
		segMap, ok := seg.(map[string]any)
		if !ok {
			continue
		}

		segType, _ := segMap["type"].(string)
		data, _ := segMap["data"].(map[string]any)
		if data == nil {
			continue
		}

		switch segType {
		case "text":
			if t, ok := data["text"].(string); ok {
				textParts = append(textParts, t)
			}

		case "image":
			img := ImageInfo{}
			if url, ok := data["url"].(string); ok {
				img.URL = url
			}
			if file, ok := data["file"].(string); ok {
				img.File = file
			}
			if summary, ok := data["summary"].(string); ok {
				img.Summary = summary
			}
			if subType, ok := parseInt(data["sub_type"]); ok {
				img.SubType = subType
			}
			if img.URL != "" || img.File != "" {
				msg.Images = append(msg.Images, img)
			}

		case "mface": // 商城表情
			img := ImageInfo{SubType: 1}
			if url, ok := data["url"].(string); ok {
				img.URL = url
			}
			if summary, ok := data["summary"].(string); ok {
				img.Summary = summary
			}
			if img.URL != "" {
				msg.Images = append(msg.Images, img)
			}

		case "face":
			face := FaceInfo{}
			if id, ok := parseInt(data["id"]); ok {
				face.ID = id
			}
			if name, ok := data["name"].(string); ok && name != "" {
				face.Name = name
			} else if raw, ok := data["raw"].(string); ok && raw != "" {
				face.Name = raw
			}
			msg.Faces = append(msg.Faces, face)

		case "at":
			if qq, ok := data["qq"].(string); ok {
				if qq == "all" {
					msg.MentionAll = true
					textParts = append(textParts, "@全体成员")
				} else if qqID, err := strconv.ParseInt(qq, 10, 64); err == nil {
					msg.AtList = append(msg.AtList, qqID)
					textParts = append(textParts, "@"+qq)
				}
			} else if qqID, ok := parseInt64(data["qq"]); ok {
				msg.AtList = append(msg.AtList, qqID)
				textParts = append(textParts, fmt.Sprintf("@%d", qqID))
			}

		case "reply":
			if replyMsgID, ok := parseInt64(data["id"]); ok {
				msg.Reply = &ReplyInfo{MessageID: replyMsgID}
				// 补齐被引用消息的内容和发送者
				if replyData, err := c.GetMsg(replyMsgID); err == nil && replyData != nil {
					if rawMsg, ok := replyData["raw_message"].(string); ok {
						msg.Reply.Content = rawMsg
					}
					if sender, ok := replyData["sender"].(map[string]any); ok {
						if uid, ok := parseInt64(sender["user_id"]); ok {
							msg.Reply.SenderID = uid
						}
						if nick, ok := sender["nickname"].(string); ok {
							msg.Reply.Nickname = nick
						}
					}
				}
			}

		case "record":
			textParts = append(textParts, "[语音]")

		case "video":
			textParts = append(textParts, "[视频]")

		case "file":
			if name, ok := data["name"].(string); ok {
				textParts = append(textParts, fmt.Sprintf("[文件:%s]", name))
			} else {
				textParts = append(textParts, "[文件]")
			}

		case "forward":
			textParts = append(textParts, "[合并转发]")

		case "json":
			textParts = append(textParts, "[卡片消息]")
		}
	}

	for i, part := range textParts {
		if i > 0 {
			msg.Content += " "
		}
		msg.Content += part
	}
}

// ===== 发送与撤回 =====

// SendGroupSegments 发送消息段数组，quote>0 时引用该消息
func (c *Client) SendGroupSegments(groupID int64, segs []Segment, quote int64) (int64, error) {
	var message []Segment
	if quote > 0 {
		message = append(message, Reply(quote))
	}
	message = append(message, segs...)

	resp, err := c.callAPI(context.Background(), "send_group_msg", map[string]any{
		"group_id": groupID,
		"message":  message,
	})
	if err != nil {
		return 0, err
	}
	if data := resp.DataMap(); data != nil {
		if msgID, ok := parseInt64(data["message_id"]); ok {
			return msgID, nil
		}
	}
	return 0, nil
}

// SendGroupMessage 发送纯文本群消息
func (c *Client) SendGroupMessage(groupID int64, content string) (int64, error) {
	return c.SendGroupSegments(groupID, []Segment{Text(content)}, 0)
}

// SendPrivateMessage 发送私聊消息
func (c *Client) SendPrivateMessage(userID int64, content string) (int64, error) {
	resp, err := c.callAPI(context.Background(), "send_private_msg", map[string]any{
		"user_id": userID,
		"message": content,
	})
	if err != nil {
		return 0, err
	}
	if data := resp.DataMap(); data != nil {
		if msgID, ok := parseInt64(data["message_id"]); ok {
			return msgID, nil
		}
	}
	return 0, nil
}

// DeleteMsg 撤回消息
func (c *Client) DeleteMsg(messageID int64) error {
	_, err := c.callAPI(context.Background(), "delete_msg", map[string]any{
		"message_id": messageID,
	})
	return err
}

// ScheduleRecall 延迟撤回消息
func (c *Client) ScheduleRecall(messageID int64, after time.Duration) {
	if messageID <= 0 || after <= 0 {
		return
	}
	time.AfterFunc(after, func() {
		if err := c.DeleteMsg(messageID); err != nil {
			zap.L().Warn("定时撤回失败", zap.Int64("message_id", messageID), zap.Error(err))
		}
	})
}

// ===== 查询 =====

// GetMsg 获取消息详情
func (c *Client) GetMsg(messageID int64) (map[string]any, error) {
	resp, err := c.callAPI(context.Background(), "get_msg", map[string]any{
		"message_id": messageID,
	})
	if err != nil {
		return nil, err
	}
	return resp.DataMap(), nil
}

// GetGroupMemberInfo 获取群成员信息
func (c *Client) GetGroupMemberInfo(groupID, userID int64, noCache bool) (*GroupMemberInfo, error) {
	resp, err := c.callAPI(context.Background(), "get_group_member_info", map[string]any{
		"group_id": groupID,
		"user_id":  userID,
		"no_cache": noCache,
	})
	if err != nil {
		return nil, err
	}
	data := resp.DataMap()
	if data == nil {
		return nil, fmt.Errorf("无效的响应数据")
	}
	return parseMemberInfo(data), nil
}

// GetGroupMemberList 获取群成员列表
func (c *Client) GetGroupMemberList(groupID int64, noCache bool) ([]*GroupMemberInfo, error) {
	resp, err := c.callAPI(context.Background(), "get_group_member_list", map[string]any{
		"group_id": groupID,
		"no_cache": noCache,
	})
	if err != nil {
		return nil, err
	}

	dataList := resp.DataList()
	if dataList == nil {
		return nil, fmt.Errorf("无效的响应数据格式")
	}

	var members []*GroupMemberInfo
	for _, item := range dataList {
		data, ok := item.(map[string]any)
		if !ok {
			continue
		}
		members = append(members, parseMemberInfo(data))
	}
	return members, nil
}

func parseMemberInfo(data map[string]any) *GroupMemberInfo {
	info := &GroupMemberInfo{}
	if gid, ok := parseInt64(data["group_id"]); ok {
		info.GroupID = gid
	}
	if uid, ok := parseInt64(data["user_id"]); ok {
		info.UserID = uid
	}
	if nickname, ok := data["nickname"].(string); ok {
		info.Nickname = nickname
	}
	if card, ok := data["card"].(string); ok {
		info.Card = card
	}
	if role, ok := data["role"].(string); ok {
		info.Role = role
	}
	if title, ok := data["title"].(string); ok {
		info.Title = title
	}
	return info
}

// ===== 群管理 =====

// SetGroupCard 修改群名片
func (c *Client) SetGroupCard(groupID, userID int64, card string) error {
	_, err := c.callAPI(context.Background(), "set_group_card", map[string]any{
		"group_id": groupID,
		"user_id":  userID,
		"card":     card,
	})
	return err
}

// SetGroupBan 禁言群成员，duration 为 0 表示解除
func (c *Client) SetGroupBan(groupID, userID int64, duration time.Duration) error {
	_, err := c.callAPI(context.Background(), "set_group_ban", map[string]any{
		"group_id": groupID,
		"user_id":  userID,
		"duration": int64(duration.Seconds()),
	})
	return err
}

// SetGroupKick 踢出群成员
func (c *Client) SetGroupKick(groupID, userID int64, rejectAddRequest bool) error {
	_, err := c.callAPI(context.Background(), "set_group_kick", map[string]any{
		"group_id":           groupID,
		"user_id":            userID,
		"reject_add_request": rejectAddRequest,
	})
	return err
}

// SetGroupSpecialTitle 设置专属头衔
func (c *Client) SetGroupSpecialTitle(groupID, userID int64, title string) error {
	_, err := c.callAPI(context.Background(), "set_group_special_title", map[string]any{
		"group_id":      groupID,
		"user_id":       userID,
		"special_title": title,
	})
	return err
}

// GroupPoke 群戳一戳
func (c *Client) GroupPoke(groupID, userID int64) error {
	_, err := c.callAPI(context.Background(), "group_poke", map[string]any{
		"group_id": groupID,
		"user_id":  userID,
	})
	return err
}

// MarkMsgAsRead 标记消息已读
func (c *Client) MarkMsgAsRead(messageID int64) error {
	_, err := c.callAPI(context.Background(), "mark_msg_as_read", map[string]any{
		"message_id": messageID,
	})
	return err
}

// ===== 底层调用 =====

// callAPI 调用 OneBot API 并同步等待响应
func (c *Client) callAPI(ctx context.Context, action string, params map[string]any) (*APIResponse, error) {
	echo := fmt.Sprintf("%d", atomic.AddUint64(&c.echoCounter, 1))

	// 不 close：迟到的响应可能已拿到通道引用，向已关闭通道发送会 panic
	respCh := make(chan *APIResponse, 1)
	c.pendingReqs.Store(echo, respCh)
	defer c.pendingReqs.Delete(echo)

	c.connMu.Lock()
	if c.conn == nil {
		c.connMu.Unlock()
		return nil, fmt.Errorf("未连接到 OneBot 服务")
	}

	req := map[string]any{
		"action": action,
		"params": params,
		"echo":   echo,
	}
	data, err := sonic.Marshal(req)
	if err != nil {
		c.connMu.Unlock()
		return nil, err
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.connMu.Unlock()
		return nil, err
	}
	c.connMu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(30 * time.Second):
		return nil, fmt.Errorf("API调用超时: %s", action)
	case resp := <-respCh:
		if resp.RetCode != 0 {
			return resp, fmt.Errorf("API调用失败[%d]: %s", resp.RetCode, resp.Message)
		}
		return resp, nil
	}
}

// handleDisconnect 断线重连
func (c *Client) handleDisconnect() {
	if c.reconnecting {
		return
	}
	c.reconnecting = true

	zap.L().Warn("连接断开，尝试重连...")

	interval := time.Duration(c.cfg.OneBot.ReconnectInterval) * time.Second
	for {
		select {
		case <-c.stopCh:
			return
		case <-time.After(interval):
		}

		if err := c.Connect(); err == nil {
			zap.L().Info("重连成功")
			return
		}
		zap.L().Warn("重连失败，继续尝试...")
	}
}

// 助手函数
func parseInt64(v any) (int64, bool) {
	switch val := v.(type) {
	case int64:
		return val, true
	case float64:
		return int64(val), true
	case int:
		return int64(val), true
	case string:
		i, err := strconv.ParseInt(val, 10, 64)
		return i, err == nil
	}
	return 0, false
}

func parseInt(v any) (int, bool) {
	switch val := v.(type) {
	case int:
		return val, true
	case float64:
		return int(val), true
	case int64:
		return int(val), true
	case string:
		i, err := strconv.Atoi(val)
		return i, err == nil
	}
	return 0, false
}
