package config

import (
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

var (
	cfg  *Config
	once sync.Once
)

// Config 全局配置结构
type Config struct {
	App     AppConfig     `yaml:"app"`
	Persona PersonaConfig `yaml:"persona"`
	OneBot  OneBotConfig  `yaml:"onebot"`
	Groups  []GroupConfig `yaml:"groups"`
	Trigger TriggerConfig `yaml:"trigger"`
	Chat    ChatConfig    `yaml:"chat"`
	Gemini  GeminiConfig  `yaml:"gemini"`
	Tools   ToolsConfig   `yaml:"tools"`
	ChatLog ChatLogConfig `yaml:"chatlog"`
	Server  ServerConfig  `yaml:"server"`
	Debug   DebugConfig   `yaml:"debug"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Debug    bool   `yaml:"debug"`
	LogLevel string `yaml:"log_level"`
}

// PersonaConfig 人格配置
type PersonaConfig struct {
	Name         string   `yaml:"name"`          // 伪人名字（群友这么叫它）
	AliasNames   []string `yaml:"alias_names"`   // 别名，同样触发强制回复
	Preset       string   `yaml:"preset"`        // 人设补充提示词
	FuckKeywords []string `yaml:"fuck_keywords"` // 触发嘴臭模式的关键词
	FuckPrompt   string   `yaml:"fuck_prompt"`   // 嘴臭模式附加提示词
	FuckTrigger  string   `yaml:"fuck_trigger"`  // 主人被戳时注入的触发文本
}

// OneBotConfig OneBot协议配置
type OneBotConfig struct {
	WsURL             string  `yaml:"ws_url"`
	AccessToken       string  `yaml:"access_token"`
	ReconnectInterval int     `yaml:"reconnect_interval"`
	MasterQQ          []int64 `yaml:"master_qq"` // 主人QQ号列表
}

// GroupConfig 群配置
type GroupConfig struct {
	GroupID     int64  `yaml:"group_id"`
	Enabled     bool   `yaml:"enabled"`
	ExtraPrompt string `yaml:"extra_prompt"` // 群专属额外提示词
}

// TriggerConfig 触发决策配置
type TriggerConfig struct {
	Enabled       bool    `yaml:"enabled"`
	ReplyRate     int     `yaml:"reply_rate"`      // 随机回复概率，0-100
	EnablePoke    bool    `yaml:"enable_poke"`     // 是否响应戳一戳
	PokeReplyRate float64 `yaml:"poke_reply_rate"` // 被戳后反击概率，0-1
}

// ChatConfig 回复行为配置
type ChatConfig struct {
	MaxChunks     int `yaml:"max_chunks"`      // 单次回复最多拆分条数，默认 3
	HistorySize   int `yaml:"history_size"`    // 注入提示词的聊天记录条数，默认 20
	QuoteChance   int `yaml:"quote_chance"`    // 引用回复概率，0-100，默认 10
	RecallAfter   int `yaml:"recall_after"`    // 嘴臭模式自动撤回延迟（秒），默认 10
	MaxChunkDelay int `yaml:"max_chunk_delay"` // 分条发送最大间隔（毫秒），默认 3000
}

// GeminiConfig 生成式后端配置
type GeminiConfig struct {
	APIKey              string  `yaml:"api_key"`
	BaseURL             string  `yaml:"base_url"`
	Model               string  `yaml:"model"`
	MaxOutputTokens     int32   `yaml:"max_output_tokens"`
	Temperature         float32 `yaml:"temperature"`
	TopP                float32 `yaml:"top_p"`
	TopK                float32 `yaml:"top_k"`
	MaxToolHops         int     `yaml:"max_tool_hops"`         // 工具连环调用上限
	HistoryWindow       int     `yaml:"history_window"`        // 会话历史回溯条数上限
	EnableSearch        bool    `yaml:"enable_search"`         // 启用内置 google_search
	EnableCodeExecution bool    `yaml:"enable_code_execution"` // 启用内置代码执行
}

// ToolsConfig 工具相关配置
type ToolsConfig struct {
	SerpKey     string `yaml:"serp_key"`     // SerpAPI key，为空则不挂载搜索工具
	MusicAPI    string `yaml:"music_api"`    // 音乐搜索 API 地址
	ImageAPI    string `yaml:"image_api"`    // 图片搜索 API 地址
	WeatherUnit string `yaml:"weather_unit"` // 天气单位，默认 m（公制）
}

// ChatLogConfig 消息日志配置
type ChatLogConfig struct {
	Enabled bool          `yaml:"enabled"`
	MySQL   MySQLConfig   `yaml:"mysql"`
	Cleanup CleanupConfig `yaml:"cleanup"`
}

// MySQLConfig MySQL 数据库配置
type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"db_name"`
}

// CleanupConfig 消息日志清理配置
type CleanupConfig struct {
	Enabled       *bool `yaml:"enabled"`        // 是否启用，默认 true
	IntervalHours int   `yaml:"interval_hours"` // 清理间隔（小时），默认 6
	KeepLatest    int   `yaml:"keep_latest"`    // 每个群保留最新消息数
}

// ServerConfig HTTP服务配置
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DebugConfig 调试配置
type DebugConfig struct {
	ShowPrompt    bool `yaml:"show_prompt"`     // 显示系统提示词
	ShowToolCalls bool `yaml:"show_tool_calls"` // 显示工具调用
	ShowResponse  bool `yaml:"show_response"`   // 显示模型原始响应
}

// Load 加载配置文件
func Load(path string) (*Config, error) {
	var err error
	once.Do(func() {
		var data []byte
		data, err = os.ReadFile(path)
		if err != nil {
			return
		}

		cfg = &Config{}
		err = yaml.Unmarshal(data, cfg)
		if err != nil {
			cfg = nil
			return
		}

		// 从环境变量覆盖敏感配置
		if apiKey := os.Getenv("BYM_GEMINI_API_KEY"); apiKey != "" {
			cfg.Gemini.APIKey = apiKey
		}
		if token := os.Getenv("BYM_ONEBOT_TOKEN"); token != "" {
			cfg.OneBot.AccessToken = token
		}
		if password := os.Getenv("BYM_MYSQL_PASSWORD"); password != "" {
			cfg.ChatLog.MySQL.Password = password
		}
		if serpKey := os.Getenv("BYM_SERP_KEY"); serpKey != "" {
			cfg.Tools.SerpKey = serpKey
		}

		cfg.applyDefaults()
	})
	return cfg, err
}

// applyDefaults 填充缺省值
func (c *Config) applyDefaults() {
	if c.Chat.MaxChunks <= 0 {
		c.Chat.MaxChunks = 3
	}
	if c.Chat.HistorySize <= 0 {
		c.Chat.HistorySize = 20
	}
	if c.Chat.QuoteChance <= 0 {
		c.Chat.QuoteChance = 10
	}
	if c.Chat.RecallAfter <= 0 {
		c.Chat.RecallAfter = 10
	}
	if c.Chat.MaxChunkDelay <= 0 {
		c.Chat.MaxChunkDelay = 3000
	}
	if c.Gemini.MaxToolHops <= 0 {
		c.Gemini.MaxToolHops = 8
	}
	if c.OneBot.ReconnectInterval <= 0 {
		c.OneBot.ReconnectInterval = 5
	}
}

// Get 获取全局配置
func Get() *Config {
	return cfg
}

// GetGroupConfig 获取指定群的配置
func (c *Config) GetGroupConfig(groupID int64) *GroupConfig {
	for i := range c.Groups {
		if c.Groups[i].GroupID == groupID {
			return &c.Groups[i]
		}
	}
	return nil
}

// IsGroupDisabled 检查群是否被禁用
// 未在配置中列出的群默认允许（随机触发仍受概率约束），
// 显式列出且 enabled=false 的群屏蔽一切响应。
func (c *Config) IsGroupDisabled(groupID int64) bool {
	gc := c.GetGroupConfig(groupID)
	return gc != nil && !gc.Enabled
}

// IsMaster 检查QQ号是否是主人
func (c *Config) IsMaster(userID int64) bool {
	for _, qq := range c.OneBot.MasterQQ {
		if qq == userID {
			return true
		}
	}
	return false
}
