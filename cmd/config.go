package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
	"snare.dev/pkg/snare/internal/domain/rules"
	m "snare.dev/pkg/snare/internal/model"
)

const (
	configVersionKey     = "version"
	currentConfigVersion = 1

	configBaseName   = "snare"
	configFileName   = configBaseName + ".yaml"
	configFolderPath = "."

	outputFlagName      = "output"
	excludeFlagName     = "exclude"
	verboseFlagName     = "verbose"
	sarifFlagName       = "sarif"
	runParallelFlagName = "parallel"
	scanTimeoutFlagName = "scan-timeout"
	oracleFlagName      = "oracle"
	modeFlagName        = "mode"
	watchFlagName       = "watch"

	runParallelConfigKey = "run.parallel"
	scanTimeoutKey       = "run.scan_timeout"
	excludeConfigKey     = "paths.exclude"
	oraclePathKey        = "oracle.path"
	oracleModeKey        = "oracle.mode"
	sarifConfigKey       = "report.sarif"
	rulesDisabledKey     = "rules.disabled"
	rulesSeverityKey     = "rules.severity"
	rulesThresholdKey    = "rules.threshold"
	uiModeKey            = "ui.mode"

	defaultScanTimeout = 10 * time.Second

	defaultReportsDir  = ".snare"
	defaultRunParallel = 1
	defaultOraclePath  = "fixtures/oracle.yaml"
	defaultUIMode      = uiModeAuto

	uiModeAuto   = "auto"
	uiModeSimple = "simple"
	uiModeTUI    = "tui"

	envPrefix = "SNARE"

	logFilenameKey   = "log.filename"
	logLevelKey      = "log.level"
	logVerboseKey    = "log.verbose"
	logMaxSizeKey    = "log.max_size"
	logMaxBackupsKey = "log.max_backups"
	logMaxAgeKey     = "log.max_age"
	logCompressKey   = "log.compress"

	defaultLogFilename   = ".snare.log"
	defaultLogLevel      = int(slog.LevelInfo)
	defaultLogVerbose    = false
	defaultLogMaxSize    = 10
	defaultLogMaxBackups = 3
	defaultLogMaxAge     = 28
	defaultLogCompress   = true
)

var globalLogger *slog.Logger

func init() {
	viper.SetConfigName(configBaseName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configFolderPath)
	viper.SetConfigFile(filepath.Join(configFolderPath, configFileName))
	viper.AutomaticEnv()
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	viper.SetDefault(configVersionKey, currentConfigVersion)
	viper.SetDefault(outputFlagName, defaultReportsDir)
	viper.SetDefault(runParallelConfigKey, defaultRunParallel)
	viper.SetDefault(scanTimeoutKey, defaultScanTimeout.String())
	viper.SetDefault(excludeConfigKey, []string{})
	viper.SetDefault(oraclePathKey, defaultOraclePath)
	viper.SetDefault(oracleModeKey, "")
	viper.SetDefault(sarifConfigKey, "")
	viper.SetDefault(rulesDisabledKey, []string{})
	viper.SetDefault(rulesSeverityKey, map[string]string{})
	viper.SetDefault(rulesThresholdKey, "")
	viper.SetDefault(uiModeKey, defaultUIMode)

	// Logging defaults (used by config/env and as fallbacks for flags).
	viper.SetDefault(logFilenameKey, defaultLogFilename)
	viper.SetDefault(logLevelKey, defaultLogLevel)
	viper.SetDefault(logVerboseKey, defaultLogVerbose)
	viper.SetDefault(logMaxSizeKey, defaultLogMaxSize)
	viper.SetDefault(logMaxBackupsKey, defaultLogMaxBackups)
	viper.SetDefault(logMaxAgeKey, defaultLogMaxAge)
	viper.SetDefault(logCompressKey, defaultLogCompress)

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return
		}

		return
	}
}

// ruleSettings reads the catalog adjustments from config.
func ruleSettings() (rules.Settings, error) {
	settings := rules.Settings{
		Disabled:  map[string]bool{},
		Overrides: map[string]m.Severity{},
	}

	for _, id := range viper.GetStringSlice(rulesDisabledKey) {
		settings.Disabled[strings.TrimSpace(id)] = true
	}

	for id, value := range viper.GetStringMapString(rulesSeverityKey) {
		sev, err := m.ParseSeverity(value)
		if err != nil {
			return rules.Settings{}, fmt.Errorf("%s.%s: %w", rulesSeverityKey, id, err)
		}

		settings.Overrides[id] = sev
	}

	if threshold := viper.GetString(rulesThresholdKey); threshold != "" {
		sev, err := m.ParseSeverity(threshold)
		if err != nil {
			return rules.Settings{}, fmt.Errorf("%s: %w", rulesThresholdKey, err)
		}

		settings.Threshold = sev
	}

	return settings, nil
}

func scanTimeout() time.Duration {
	return parseScanTimeout(viper.GetString(scanTimeoutKey))
}

// parseScanTimeout accepts a duration string ("5s") or a plain number of seconds.
func parseScanTimeout(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return defaultScanTimeout
	}

	if d, err := time.ParseDuration(value); err == nil {
		return d
	}

	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second
	}

	slog.Warn("Invalid scan timeout, using default", "value", value, "default", defaultScanTimeout)

	return defaultScanTimeout
}

func parseSlogLevel(value string, defaultLevel slog.Level) slog.Level {
	level := strings.ToLower(strings.TrimSpace(value))
	if level == "" {
		return defaultLevel
	}

	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}

	// Allow numeric slog levels as well (e.g. -4 for debug).
	if n, err := strconv.Atoi(level); err == nil {
		return slog.Level(n)
	}

	return defaultLevel
}

// configureLogger configures the global slog logger.
//
// By default it logs at Info; if verbose is true it logs at Debug.
func configureLogger(logPath string, verbose bool) {
	if strings.TrimSpace(logPath) == "" {
		logPath = viper.GetString(logFilenameKey)
	}

	if strings.TrimSpace(logPath) == "" {
		logPath = defaultLogFilename
	}

	var logLevel slog.Level
	if verbose {
		logLevel = slog.LevelDebug
	} else {
		logLevel = parseSlogLevel(viper.GetString(logLevelKey), slog.LevelInfo)
	}

	logWriter := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    viper.GetInt(logMaxSizeKey),
		MaxBackups: viper.GetInt(logMaxBackupsKey),
		MaxAge:     viper.GetInt(logMaxAgeKey),
		Compress:   viper.GetBool(logCompressKey),
	}

	handler := slog.NewTextHandler(logWriter, &slog.HandlerOptions{
		AddSource: true,
		Level:     logLevel,
	})

	globalLogger = slog.New(handler)
	slog.SetDefault(globalLogger)
}
