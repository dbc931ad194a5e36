package events

// Host connection events (WebSocket server and desktop bridge).
const (
	WebSocketConnectionOpened = "websocket:connection:opened"
	WebSocketConnectionClosed = "websocket:connection:closed"
	WebSocketMessageReceived  = "websocket:message:received"
	BridgeConnectionReady     = "bridge:connection:ready"
)

// Feature lifecycle and application events, published by the feature runner.
const (
	// FeatureInstallStarted is published before a feature's Install runs.
	FeatureInstallStarted = "feature:install:started"

	// FeatureInstallCompleted is published after a feature installed.
	FeatureInstallCompleted = "feature:install:completed"

	// FeatureInstallFailed is published when a feature's Install failed or timed out.
	FeatureInstallFailed = "feature:install:failed"

	// FeatureUninstallCompleted is published after a feature was uninstalled.
	FeatureUninstallCompleted = "feature:uninstall:completed"

	// AppFeaturesReady is published once every feature has been processed.
	AppFeaturesReady = "app:features:ready"

	// AppShutdownStarted is published before features are uninstalled.
	AppShutdownStarted = "app:shutdown:started"
)

// Configuration events.
const (
	// ConfigFileChanged is published when the configuration file changes on disk.
	ConfigFileChanged = "config:file:changed"
)

// Connection is the host connection event table.
var Connection = map[string]any{
	"WEBSOCKET": []string{WebSocketConnectionOpened, WebSocketConnectionClosed, WebSocketMessageReceived},
	"BRIDGE":    BridgeConnectionReady,
}

// Lifecycle is the feature and application lifecycle event table.
var Lifecycle = map[string]any{
	"FEATURE": map[string]any{
		"INSTALL":   []string{FeatureInstallStarted, FeatureInstallCompleted, FeatureInstallFailed},
		"UNINSTALL": FeatureUninstallCompleted,
	},
	"APP": []string{AppFeaturesReady, AppShutdownStarted},
}

// Config is the configuration event table.
var Config = map[string]any{
	"FILE": ConfigFileChanged,
}

// FeatureLifecycle is the payload of the feature:* events.
type FeatureLifecycle struct {
	Name     string
	Version  string
	Duration int64 // nanoseconds
	Error    string
}

// FeaturesReady is the payload of AppFeaturesReady.
type FeaturesReady struct {
	Installed []string
	Failed    []string
}

// FileChanged is the payload of ConfigFileChanged.
type FileChanged struct {
	Path string
	Op   string
}
