package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validYAML = `
telegram:
  token: "123:abc"
  run_mode: longpoll
bot:
  channels:
    - name: News
      join_url: https://t.me/promonews
      chat_id: "@promonews"
  apps:
    - {id: app_1, name: Alpha, info: Alpha info}
    - {id: app_2, name: Beta, info: Beta info}
    - {id: app_3, name: Gamma, info: Gamma info}
    - {id: app_4, name: Delta, info: Delta info}
  messages:
    channel_prompt: Join first
    not_subscribed: Still missing
    main_menu: Pick one
    help: Help text
    ask_user_id: Send id
    congratulation: Nice
    code_result: "Code: %d"
  buttons:
    check: Check
    next: Next
    generate: Generate
    back: Back
    help: Help
  admin_ids: [100, 200]
  check_timeout_seconds: 3
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadValid(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Core.Telegram.Token != "123:abc" {
		t.Fatalf("token = %q", cfg.Core.Telegram.Token)
	}
	if len(cfg.Bot.AdminIDs) != 2 || cfg.Bot.AdminIDs[0] != 100 {
		t.Fatalf("admin ids = %v", cfg.Bot.AdminIDs)
	}

	fc := cfg.FlowConfig()
	if len(fc.Channels) != 1 || fc.Channels[0].ChatID != "@promonews" {
		t.Fatalf("flow channels = %+v", fc.Channels)
	}
	if len(fc.Apps) != 4 || fc.Apps[1].Name != "Beta" {
		t.Fatalf("flow apps = %+v", fc.Apps)
	}
	if fc.CheckTimeout.Seconds() != 3 {
		t.Fatalf("check timeout = %s", fc.CheckTimeout)
	}
	if fc.Texts.CodeResult != "Code: %d" {
		t.Fatalf("code result = %q", fc.Texts.CodeResult)
	}
}

func TestLoadRejectsBadContent(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(string) string
		wantErr string
	}{
		{
			name:    "no channels",
			mutate:  func(s string) string { return strings.Replace(s, "chat_id: \"@promonews\"", "chat_id: \"\"", 1) },
			wantErr: "chat_id",
		},
		{
			name:    "missing app",
			mutate:  func(s string) string { return strings.Replace(s, "    - {id: app_4, name: Delta, info: Delta info}\n", "", 1) },
			wantErr: "exactly 4 apps",
		},
		{
			name:    "duplicate app id",
			mutate:  func(s string) string { return strings.Replace(s, "id: app_4", "id: app_1", 1) },
			wantErr: "duplicated",
		},
		{
			name:    "code result without placeholder",
			mutate:  func(s string) string { return strings.Replace(s, "Code: %d", "Code", 1) },
			wantErr: "placeholder",
		},
		{
			name:    "missing button",
			mutate:  func(s string) string { return strings.Replace(s, "generate: Generate\n", "generate: \"\"\n", 1) },
			wantErr: "buttons.generate",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.mutate(validYAML)))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}
