// Package config loads the bot's full configuration: the reusable core
// section plus the promo-flow content (channels, apps, texts, admins).
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/promokod/promobot/bot/flow"
	coreconfig "github.com/promokod/promobot/core/config"
	"github.com/promokod/promobot/core/database"
)

// ChannelConfig is one gated channel.
type ChannelConfig struct {
	Name    string `yaml:"name"`
	JoinURL string `yaml:"join_url"`
	ChatID  string `yaml:"chat_id"`
}

// AppConfig is one promoted application entry.
type AppConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	Info string `yaml:"info"`
}

// MessagesConfig holds every user-facing message text.
type MessagesConfig struct {
	ChannelPrompt  string `yaml:"channel_prompt"`
	NotSubscribed  string `yaml:"not_subscribed"`
	MainMenu       string `yaml:"main_menu"`
	Help           string `yaml:"help"`
	AskUserID      string `yaml:"ask_user_id"`
	Congratulation string `yaml:"congratulation"`
	CodeResult     string `yaml:"code_result"`
	UnknownInput   string `yaml:"unknown_input"`
}

// ButtonsConfig holds every button label.
type ButtonsConfig struct {
	Check    string `yaml:"check"`
	Next     string `yaml:"next"`
	Generate string `yaml:"generate"`
	Back     string `yaml:"back"`
	Help     string `yaml:"help"`
}

// BotConfig is the promo-flow content section.
type BotConfig struct {
	Channels            []ChannelConfig `yaml:"channels"`
	Apps                []AppConfig     `yaml:"apps"`
	Messages            MessagesConfig  `yaml:"messages"`
	Buttons             ButtonsConfig   `yaml:"buttons"`
	AdminIDs            []int64         `yaml:"admin_ids" envconfig:"ADMIN_IDS"`
	CheckTimeoutSeconds int             `yaml:"check_timeout_seconds" envconfig:"CHECK_TIMEOUT_SECONDS"`
}

// Config is the full application configuration.
type Config struct {
	Core     coreconfig.Config `yaml:",inline"`
	Database database.Config   `yaml:"database"`
	Bot      BotConfig         `yaml:"bot"`
}

// CoreConfig exposes the embedded core section.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Core
}

// CheckTimeout returns the membership-check timeout as a duration.
func (c *Config) CheckTimeout() time.Duration {
	if c.Bot.CheckTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.Bot.CheckTimeoutSeconds) * time.Second
}

// FlowConfig maps the content section onto the engine's configuration.
func (c *Config) FlowConfig() flow.Config {
	cfg := flow.Config{
		Texts: flow.Texts{
			ChannelPrompt:  c.Bot.Messages.ChannelPrompt,
			NotSubscribed:  c.Bot.Messages.NotSubscribed,
			MainMenu:       c.Bot.Messages.MainMenu,
			Help:           c.Bot.Messages.Help,
			AskUserID:      c.Bot.Messages.AskUserID,
			Congratulation: c.Bot.Messages.Congratulation,
			CodeResult:     c.Bot.Messages.CodeResult,
			CheckButton:    c.Bot.Buttons.Check,
			NextButton:     c.Bot.Buttons.Next,
			GenerateButton: c.Bot.Buttons.Generate,
			BackButton:     c.Bot.Buttons.Back,
			HelpButton:     c.Bot.Buttons.Help,
		},
		CheckTimeout: c.CheckTimeout(),
	}
	for _, ch := range c.Bot.Channels {
		cfg.Channels = append(cfg.Channels, flow.Channel{
			Name:    ch.Name,
			JoinURL: ch.JoinURL,
			ChatID:  ch.ChatID,
		})
	}
	for _, app := range c.Bot.Apps {
		cfg.Apps = append(cfg.Apps, flow.App{ID: app.ID, Name: app.Name, Info: app.Info})
	}
	return cfg
}

// Load reads the configuration from a YAML file with environment overrides.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := coreconfig.Normalize(&cfg.Core); err != nil {
		return nil, err
	}
	if err := validateBot(&cfg.Bot); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validateBot(bot *BotConfig) error {
	if len(bot.Channels) == 0 {
		return fmt.Errorf("bot.channels must list at least one channel")
	}
	for i, ch := range bot.Channels {
		if strings.TrimSpace(ch.ChatID) == "" {
			return fmt.Errorf("bot.channels[%d].chat_id is required", i)
		}
		if strings.TrimSpace(ch.JoinURL) == "" {
			return fmt.Errorf("bot.channels[%d].join_url is required", i)
		}
	}

	if len(bot.Apps) != 4 {
		return fmt.Errorf("bot.apps must list exactly 4 apps, got %d", len(bot.Apps))
	}
	seen := make(map[string]struct{}, len(bot.Apps))
	for i, app := range bot.Apps {
		id := strings.TrimSpace(app.ID)
		if id == "" {
			return fmt.Errorf("bot.apps[%d].id is required", i)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("bot.apps[%d].id %q is duplicated", i, id)
		}
		seen[id] = struct{}{}
		if strings.TrimSpace(app.Name) == "" {
			return fmt.Errorf("bot.apps[%d].name is required", i)
		}
	}

	required := map[string]string{
		"bot.messages.channel_prompt": bot.Messages.ChannelPrompt,
		"bot.messages.main_menu":      bot.Messages.MainMenu,
		"bot.messages.ask_user_id":    bot.Messages.AskUserID,
		"bot.messages.congratulation": bot.Messages.Congratulation,
		"bot.messages.code_result":    bot.Messages.CodeResult,
		"bot.buttons.check":           bot.Buttons.Check,
		"bot.buttons.next":            bot.Buttons.Next,
		"bot.buttons.generate":        bot.Buttons.Generate,
		"bot.buttons.back":            bot.Buttons.Back,
	}
	for key, value := range required {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s is required", key)
		}
	}
	if !strings.Contains(bot.Messages.CodeResult, "%d") {
		return fmt.Errorf("bot.messages.code_result must contain a %%d placeholder")
	}

	if bot.CheckTimeoutSeconds < 0 {
		return fmt.Errorf("bot.check_timeout_seconds must be >= 0")
	}
	return nil
}
