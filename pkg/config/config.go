// Package config implements the layered configuration loader (A2):
// flags -> BOT_-prefixed env -> JSON file -> host manifest botConfig
// section -> compiled-in defaults, each layer only overriding fields
// it actually set. Grounded on the teacher's own hand-rolled
// os.Args-switch CLI (cmd/*'s flag.NewFlagSet per subcommand) for the
// flag layer, and on github.com/caarlos0/env/v11's struct-tag binding
// for the env layer, which the teacher already depends on for its own
// provider credentials.
package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"regexp"

	"github.com/caarlos0/env/v11"
)

// Config is the merged configuration surface from §6.
type Config struct {
	Name    string `json:"name" env:"NAME"`
	Alias   string `json:"alias" env:"ALIAS"`
	LogLevel string `json:"logLevel" env:"LOG_LEVEL"`
	AutoSave bool   `json:"autoSave" env:"AUTO_SAVE"`

	UseServer    bool   `json:"useServer" env:"USE_SERVER"`
	ServerHost   string `json:"serverHost" env:"SERVER_HOST"`
	ServerPort   int    `json:"serverPort" env:"SERVER_PORT"`
	ServerSecure bool   `json:"serverSecure" env:"SERVER_SECURE"`

	MessageAdapter string `json:"messageAdapter" env:"MESSAGE_ADAPTER"`
	NLUAdapter     string `json:"nluAdapter" env:"NLU_ADAPTER"`
	StorageAdapter string `json:"storageAdapter" env:"STORAGE_ADAPTER"`

	NLUMinLength   int `json:"nluMinLength" env:"NLU_MIN_LENGTH"`
	RequestTimeout int `json:"requestTimeout" env:"REQUEST_TIMEOUT"`

	// SaveIntervalMS and SaveCron are mutually exclusive autosave
	// schedules (§4.7's addition); SaveCron wins if both are set.
	SaveIntervalMS int    `json:"saveIntervalMs" env:"SAVE_INTERVAL_MS"`
	SaveCron       string `json:"saveCron" env:"SAVE_CRON"`

	// BitManifest, if set, is loaded during `loading` per §4.9a.
	BitManifest string `json:"bitManifest" env:"BIT_MANIFEST"`

	// Per-vendor adapter credentials (§4.14). Only the sub-config
	// matching the configured *Adapter name needs to be populated.
	Discord      DiscordConfig      `json:"discord" envPrefix:"DISCORD_"`
	Slack        SlackConfig        `json:"slack" envPrefix:"SLACK_"`
	Telegram     TelegramConfig     `json:"telegram" envPrefix:"TELEGRAM_"`
	Feishu       FeishuConfig       `json:"feishu" envPrefix:"FEISHU_"`
	DingTalk     DingTalkConfig     `json:"dingtalk" envPrefix:"DINGTALK_"`
	Tencent      TencentConfig      `json:"tencent" envPrefix:"TENCENT_"`
	WebSocket    WebSocketConfig    `json:"websocket" envPrefix:"WEBSOCKET_"`
	Anthropic    AnthropicConfig    `json:"anthropic" envPrefix:"ANTHROPIC_"`
	OpenAI       OpenAIConfig       `json:"openai" envPrefix:"OPENAI_"`
	FileStorage  FileStorageConfig  `json:"fileStorage" envPrefix:"FILE_STORAGE_"`
	CloudStorage CloudStorageConfig `json:"cloudStorage" envPrefix:"CLOUD_STORAGE_"`

	ConfigPath string `json:"-" env:"-"`
}

// DiscordConfig holds D2 credentials.
type DiscordConfig struct {
	Token       string `json:"token" env:"TOKEN"`
	MentionOnly bool   `json:"mentionOnly" env:"MENTION_ONLY"`
}

// SlackConfig holds D3 credentials (Socket Mode requires both tokens).
type SlackConfig struct {
	BotToken string `json:"botToken" env:"BOT_TOKEN"`
	AppToken string `json:"appToken" env:"APP_TOKEN"`
}

// TelegramConfig holds D4 credentials.
type TelegramConfig struct {
	Token string `json:"token" env:"TOKEN"`
	Proxy string `json:"proxy" env:"PROXY"`
}

// FeishuConfig holds D5 credentials.
type FeishuConfig struct {
	AppID             string `json:"appId" env:"APP_ID"`
	AppSecret         string `json:"appSecret" env:"APP_SECRET"`
	VerificationToken string `json:"verificationToken" env:"VERIFICATION_TOKEN"`
	EncryptKey        string `json:"encryptKey" env:"ENCRYPT_KEY"`
}

// DingTalkConfig holds D6 credentials.
type DingTalkConfig struct {
	ClientID     string `json:"clientId" env:"CLIENT_ID"`
	ClientSecret string `json:"clientSecret" env:"CLIENT_SECRET"`
}

// TencentConfig holds D7 credentials.
type TencentConfig struct {
	AppID     string `json:"appId" env:"APP_ID"`
	AppSecret string `json:"appSecret" env:"APP_SECRET"`
}

// WebSocketConfig holds D8 settings.
type WebSocketConfig struct {
	ListenAddr string `json:"listenAddr" env:"LISTEN_ADDR"`
}

// AnthropicConfig holds D9 credentials.
type AnthropicConfig struct {
	APIKey  string `json:"apiKey" env:"API_KEY"`
	BaseURL string `json:"baseUrl" env:"BASE_URL"`
	Model   string `json:"model" env:"MODEL"`
}

// OpenAIConfig holds D10 credentials.
type OpenAIConfig struct {
	APIKey  string `json:"apiKey" env:"API_KEY"`
	BaseURL string `json:"baseUrl" env:"BASE_URL"`
	Model   string `json:"model" env:"MODEL"`
}

// FileStorageConfig holds D11 settings.
type FileStorageConfig struct {
	Dir string `json:"dir" env:"DIR"`
}

// CloudStorageConfig holds D12 settings: an OAuth2 client-credentials
// flow in front of an HTTP KV backend.
type CloudStorageConfig struct {
	BaseURL      string `json:"baseUrl" env:"BASE_URL"`
	TokenURL     string `json:"tokenUrl" env:"TOKEN_URL"`
	ClientID     string `json:"clientId" env:"CLIENT_ID"`
	ClientSecret string `json:"clientSecret" env:"CLIENT_SECRET"`
}

var nameSanitizer = regexp.MustCompile(`[^a-z0-9_-]+`)

// Defaults returns the compiled-in, least-specific configuration
// layer.
func Defaults() Config {
	return Config{
		Name:           "bot",
		LogLevel:       "info",
		AutoSave:       false,
		ServerHost:     "0.0.0.0",
		ServerPort:     8080,
		MessageAdapter: "shell",
		NLUMinLength:   3,
		RequestTimeout: 10000,
		SaveIntervalMS: 60000,
		FileStorage:    FileStorageConfig{Dir: "./weavebot-memory"},
	}
}

// SanitizeName lowercases name and strips everything outside
// [a-z0-9_-], per §6's "sanitised to [a-z0-9_-]" rule for direct-match
// names.
func SanitizeName(name string) string {
	return nameSanitizer.ReplaceAllString(toLowerASCII(name), "")
}

func toLowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// manifestWrapper reads only the botConfig key of a package.json-
// shaped file, per §4.11.
type manifestWrapper struct {
	BotConfig Config `json:"botConfig"`
}

// FlagSet describes the subset of Config the flag layer can set, the
// way cmd/weavebot's subcommands hand-parse their own flag.FlagSet
// rather than reaching for a flags framework.
func FlagSet(args []string) (Config, error) {
	fs := flag.NewFlagSet("weavebot", flag.ContinueOnError)
	var c Config
	fs.StringVar(&c.Name, "name", "", "bot display name")
	fs.StringVar(&c.Alias, "alias", "", "alternate name for direct matching")
	fs.StringVar(&c.LogLevel, "log-level", "", "minimum log level")
	fs.StringVar(&c.MessageAdapter, "message-adapter", "", "message adapter name")
	fs.StringVar(&c.NLUAdapter, "nlu-adapter", "", "nlu adapter name")
	fs.StringVar(&c.StorageAdapter, "storage-adapter", "", "storage adapter name")
	fs.StringVar(&c.ConfigPath, "config", "", "path to a JSON config file")
	fs.StringVar(&c.ConfigPath, "c", "", "path to a JSON config file (shorthand)")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return c, nil
}

// FromEnv reads BOT_-prefixed environment variables into a Config
// layer via caarlos0/env's struct-tag binding.
func FromEnv() (Config, error) {
	var c Config
	if err := env.ParseWithOptions(&c, env.Options{Prefix: "BOT_"}); err != nil {
		return Config{}, fmt.Errorf("config: env: %w", err)
	}
	return c, nil
}

// FromJSONFile reads a whole Config from a JSON file.
func FromJSONFile(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	var c Config
	if err := json.Unmarshal(raw, &c); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return c, nil
}

// FromManifest reads only the botConfig key of a package.json-shaped
// manifest file at path.
func FromManifest(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read manifest %s: %w", path, err)
	}
	var wrapper manifestWrapper
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return Config{}, fmt.Errorf("config: parse manifest %s: %w", path, err)
	}
	return wrapper.BotConfig, nil
}

// Load applies every source in precedence order (flags > env > json
// file > manifest > defaults), building the CLI args layer from args
// and the other layers from the filesystem/environment, and returns
// the merged Config.
func Load(args []string, manifestPath string) (Config, error) {
	merged := Defaults()

	if manifestPath != "" {
		if _, err := os.Stat(manifestPath); err == nil {
			m, err := FromManifest(manifestPath)
			if err != nil {
				return Config{}, err
			}
			Merge(&merged, m)
		}
	}

	flagLayer, err := FlagSet(args)
	if err != nil {
		return Config{}, err
	}

	if flagLayer.ConfigPath != "" {
		fileLayer, err := FromJSONFile(flagLayer.ConfigPath)
		if err != nil {
			return Config{}, err
		}
		Merge(&merged, fileLayer)
	}

	envLayer, err := FromEnv()
	if err != nil {
		return Config{}, err
	}
	Merge(&merged, envLayer)
	Merge(&merged, flagLayer)

	merged.Name = SanitizeName(merged.Name)
	return merged, nil
}

// Merge layers overlay onto base, overwriting only overlay's non-zero
// fields, per §4.11's "layering structs least-specific-first and
// overwriting non-zero fields".
func Merge(base *Config, overlay Config) {
	if overlay.Name != "" {
		base.Name = overlay.Name
	}
	if overlay.Alias != "" {
		base.Alias = overlay.Alias
	}
	if overlay.LogLevel != "" {
		base.LogLevel = overlay.LogLevel
	}
	if overlay.AutoSave {
		base.AutoSave = overlay.AutoSave
	}
	if overlay.UseServer {
		base.UseServer = overlay.UseServer
	}
	if overlay.ServerHost != "" {
		base.ServerHost = overlay.ServerHost
	}
	if overlay.ServerPort != 0 {
		base.ServerPort = overlay.ServerPort
	}
	if overlay.ServerSecure {
		base.ServerSecure = overlay.ServerSecure
	}
	if overlay.MessageAdapter != "" {
		base.MessageAdapter = overlay.MessageAdapter
	}
	if overlay.NLUAdapter != "" {
		base.NLUAdapter = overlay.NLUAdapter
	}
	if overlay.StorageAdapter != "" {
		base.StorageAdapter = overlay.StorageAdapter
	}
	if overlay.NLUMinLength != 0 {
		base.NLUMinLength = overlay.NLUMinLength
	}
	if overlay.RequestTimeout != 0 {
		base.RequestTimeout = overlay.RequestTimeout
	}
	if overlay.SaveIntervalMS != 0 {
		base.SaveIntervalMS = overlay.SaveIntervalMS
	}
	if overlay.SaveCron != "" {
		base.SaveCron = overlay.SaveCron
	}
	if overlay.BitManifest != "" {
		base.BitManifest = overlay.BitManifest
	}
	if overlay.ConfigPath != "" {
		base.ConfigPath = overlay.ConfigPath
	}

	mergeDiscord(&base.Discord, overlay.Discord)
	mergeSlack(&base.Slack, overlay.Slack)
	mergeTelegram(&base.Telegram, overlay.Telegram)
	mergeFeishu(&base.Feishu, overlay.Feishu)
	mergeDingTalk(&base.DingTalk, overlay.DingTalk)
	mergeTencent(&base.Tencent, overlay.Tencent)
	mergeWebSocket(&base.WebSocket, overlay.WebSocket)
	mergeAnthropic(&base.Anthropic, overlay.Anthropic)
	mergeOpenAI(&base.OpenAI, overlay.OpenAI)
	mergeFileStorage(&base.FileStorage, overlay.FileStorage)
	mergeCloudStorage(&base.CloudStorage, overlay.CloudStorage)
}

func mergeDiscord(base *DiscordConfig, overlay DiscordConfig) {
	if overlay.Token != "" {
		base.Token = overlay.Token
	}
	if overlay.MentionOnly {
		base.MentionOnly = overlay.MentionOnly
	}
}

func mergeSlack(base *SlackConfig, overlay SlackConfig) {
	if overlay.BotToken != "" {
		base.BotToken = overlay.BotToken
	}
	if overlay.AppToken != "" {
		base.AppToken = overlay.AppToken
	}
}

func mergeTelegram(base *TelegramConfig, overlay TelegramConfig) {
	if overlay.Token != "" {
		base.Token = overlay.Token
	}
	if overlay.Proxy != "" {
		base.Proxy = overlay.Proxy
	}
}

func mergeFeishu(base *FeishuConfig, overlay FeishuConfig) {
	if overlay.AppID != "" {
		base.AppID = overlay.AppID
	}
	if overlay.AppSecret != "" {
		base.AppSecret = overlay.AppSecret
	}
	if overlay.VerificationToken != "" {
		base.VerificationToken = overlay.VerificationToken
	}
	if overlay.EncryptKey != "" {
		base.EncryptKey = overlay.EncryptKey
	}
}

func mergeDingTalk(base *DingTalkConfig, overlay DingTalkConfig) {
	if overlay.ClientID != "" {
		base.ClientID = overlay.ClientID
	}
	if overlay.ClientSecret != "" {
		base.ClientSecret = overlay.ClientSecret
	}
}

func mergeTencent(base *TencentConfig, overlay TencentConfig) {
	if overlay.AppID != "" {
		base.AppID = overlay.AppID
	}
	if overlay.AppSecret != "" {
		base.AppSecret = overlay.AppSecret
	}
}

func mergeWebSocket(base *WebSocketConfig, overlay WebSocketConfig) {
	if overlay.ListenAddr != "" {
		base.ListenAddr = overlay.ListenAddr
	}
}

func mergeAnthropic(base *AnthropicConfig, overlay AnthropicConfig) {
	if overlay.APIKey != "" {
		base.APIKey = overlay.APIKey
	}
	if overlay.BaseURL != "" {
		base.BaseURL = overlay.BaseURL
	}
	if overlay.Model != "" {
		base.Model = overlay.Model
	}
}

func mergeOpenAI(base *OpenAIConfig, overlay OpenAIConfig) {
	if overlay.APIKey != "" {
		base.APIKey = overlay.APIKey
	}
	if overlay.BaseURL != "" {
		base.BaseURL = overlay.BaseURL
	}
	if overlay.Model != "" {
		base.Model = overlay.Model
	}
}

func mergeFileStorage(base *FileStorageConfig, overlay FileStorageConfig) {
	if overlay.Dir != "" {
		base.Dir = overlay.Dir
	}
}

func mergeCloudStorage(base *CloudStorageConfig, overlay CloudStorageConfig) {
	if overlay.BaseURL != "" {
		base.BaseURL = overlay.BaseURL
	}
	if overlay.TokenURL != "" {
		base.TokenURL = overlay.TokenURL
	}
	if overlay.ClientID != "" {
		base.ClientID = overlay.ClientID
	}
	if overlay.ClientSecret != "" {
		base.ClientSecret = overlay.ClientSecret
	}
}
