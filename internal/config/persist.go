// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// logSettingLine matches a (possibly commented-out) top-level TOML key
// assignment for one of the log settings, capturing the key name so the
// line can be rewritten in place regardless of its current value or
// comment state.
var logSettingLine = regexp.MustCompile(`^#?(logPath|logMaxSize|logMaxBackups|logLevel)\s*=.*$`)

// trackerIDSettingLine matches the top-level trackerId assignment,
// rewritten in place by PersistTrackerID in config.go.
var trackerIDSettingLine = regexp.MustCompile(`(?m)^#?trackerId\s*=.*$`)

// updateLogSettingsInTOML rewrites the log-related settings in an
// existing config.toml's text in place, uncommenting them if necessary,
// without disturbing anything else in the file (comments, section
// ordering, unrelated keys). Settings the daemon has never touched
// before remain exactly where the template put them.
func updateLogSettingsInTOML(content, logLevel, logPath string, logMaxSize, logMaxBackups int) string {
	values := map[string]string{
		"logLevel":      fmt.Sprintf("%q", logLevel),
		"logPath":       fmt.Sprintf("%q", logPath),
		"logMaxSize":    fmt.Sprintf("%d", logMaxSize),
		"logMaxBackups": fmt.Sprintf("%d", logMaxBackups),
	}

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		m := logSettingLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		key := m[1]
		value, ok := values[key]
		if !ok {
			continue
		}
		lines[i] = fmt.Sprintf("%s = %s", key, value)
	}
	return strings.Join(lines, "\n")
}

// PersistLogSettings rewrites the log settings in the on-disk config file
// in place and reloads them into c.Config.
func (c *AppConfig) PersistLogSettings(logLevel, logPath string, logMaxSize, logMaxBackups int) error {
	raw, err := os.ReadFile(c.configPath)
	if err != nil {
		return fmt.Errorf("read config for persist: %w", err)
	}

	updated := updateLogSettingsInTOML(string(raw), logLevel, logPath, logMaxSize, logMaxBackups)

	if err := os.WriteFile(c.configPath, []byte(updated), 0o644); err != nil {
		return fmt.Errorf("write updated config: %w", err)
	}

	c.Config.LogLevel = logLevel
	c.Config.LogPath = logPath
	c.Config.LogMaxSize = logMaxSize
	c.Config.LogMaxBackups = logMaxBackups
	return nil
}
