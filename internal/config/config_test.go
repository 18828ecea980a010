package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/xdigest/internal/errs"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const minimalConfig = `{
	"version": 1,
	"lists": {
		"ai": {"id": "1234567890"}
	},
	"delivery": {
		"provider": "telegram",
		"telegram": {"bot_token": "t", "chat_id": "c"}
	}
}`

func TestLoadMinimalConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, "1234567890", cfg.Lists["ai"].ID)
	// Defaults fill unspecified sections.
	assert.Equal(t, "gemini", cfg.Defaults.LLM.Provider)
	assert.Equal(t, 500, cfg.Defaults.PreSummarization.LongTweetChars)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 30, cfg.IdempotencyWindowMinutes)
}

func TestLoadSchedules(t *testing.T) {
	cfg, err := Load(writeConfig(t, `{
		"version": 1,
		"lists": {"ai": {"id": "1234567890"}},
		"delivery": {"provider": "telegram", "telegram": {"bot_token": "t", "chat_id": "c"}},
		"schedules": [{"name": "morning-ai", "list": "ai", "cron": "0 7 * * *"}]
	}`))
	require.NoError(t, err)
	require.Len(t, cfg.Schedules, 1)
	assert.Equal(t, "morning-ai", cfg.Schedules[0].Name)
	assert.Equal(t, "ai", cfg.Schedules[0].List)
	assert.Equal(t, "0 7 * * *", cfg.Schedules[0].Cron)
}

func TestLoadVersionMismatch(t *testing.T) {
	_, err := Load(writeConfig(t, `{"version": 99, "lists": {"ai": {"id": "1"}}}`))
	require.Error(t, err)
	assert.True(t, errs.HasCode(err, errs.ConfigVersionMismatch))
}

func TestLoadInvalidJSON(t *testing.T) {
	_, err := Load(writeConfig(t, `{not json`))
	require.Error(t, err)
	assert.True(t, errs.HasCode(err, errs.ConfigInvalidJSON))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.True(t, errs.HasCode(err, errs.ConfigFileNotFound))
}

func TestLoadMissingLists(t *testing.T) {
	_, err := Load(writeConfig(t, `{"version": 1, "lists": {}}`))
	require.Error(t, err)
	assert.True(t, errs.HasCode(err, errs.ConfigMissingField))
}

func TestLoadListWithoutID(t *testing.T) {
	_, err := Load(writeConfig(t, `{"version": 1, "lists": {"ai": {}}}`))
	require.Error(t, err)
	assert.True(t, errs.HasCode(err, errs.ConfigMissingField))
}

func TestLoadInvalidThresholds(t *testing.T) {
	_, err := Load(writeConfig(t, `{
		"version": 1,
		"lists": {"ai": {"id": "1"}},
		"defaults": {"pre_summarization": {"long_tweet_chars": -1}}
	}`))
	require.Error(t, err)
	assert.True(t, errs.HasCode(err, errs.ConfigInvalidValue))
}

func TestFindConfigFileExplicitMissing(t *testing.T) {
	_, err := FindConfigFile(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
	assert.True(t, errs.HasCode(err, errs.ConfigFileNotFound))
}

func TestResolveListDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	ls, err := cfg.ResolveList("ai")
	require.NoError(t, err)
	assert.Equal(t, "Ai", ls.DisplayName) // title-cased from the key
	assert.Equal(t, "📋", ls.Emoji)
	assert.True(t, ls.Enabled)
	assert.Equal(t, "America/New_York", ls.Timezone)
}

func TestResolveListOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `{
		"version": 1,
		"lists": {
			"dev-news": {
				"id": "42",
				"display_name": "Dev News",
				"emoji": "🛠️",
				"enabled": false,
				"timezone": "Europe/Berlin",
				"prompt": "custom prompt",
				"recipient": "override@chat",
				"sections": [{"emoji": "🔥", "name": "Top"}]
			}
		}
	}`))
	require.NoError(t, err)

	ls, err := cfg.ResolveList("dev-news")
	require.NoError(t, err)
	assert.Equal(t, "Dev News", ls.DisplayName)
	assert.Equal(t, "🛠️", ls.Emoji)
	assert.False(t, ls.Enabled)
	assert.Equal(t, "Europe/Berlin", ls.Timezone)
	assert.Equal(t, "custom prompt", ls.Prompt)
	assert.Equal(t, "override@chat", ls.Recipient)
	require.Len(t, ls.Sections, 1)
	assert.Equal(t, "Top", ls.Sections[0].Name)
}

func TestResolveListUnknown(t *testing.T) {
	cfg := Default()
	cfg.Lists["ai"] = ListConfig{ID: "1"}
	_, err := cfg.ResolveList("nope")
	require.Error(t, err)
	assert.True(t, errs.HasCode(err, errs.ConfigInvalidValue))
}

func TestTitleCase(t *testing.T) {
	assert.Equal(t, "Dev News", titleCase("dev-news"))
	assert.Equal(t, "Ai Research Feed", titleCase("ai_research feed"))
	assert.Equal(t, "Économie Watch", titleCase("économie-watch"))
	assert.Equal(t, "日本 News", titleCase("日本-news"))
}
