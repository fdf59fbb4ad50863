// Package actions defines the tagged-variant action model shared by the
// binding registry and the execution engine. Actions are created and
// validated by the configuration layer and treated as immutable here.
package actions

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind discriminates the action variants. One handler per kind is
// registered with the execution engine.
type Kind string

const (
	Keyboard      Kind = "keyboard"
	Media         Kind = "media"
	Launch        Kind = "launch"
	Script        Kind = "script"
	HTTP          Kind = "http"
	System        Kind = "system"
	Text          Kind = "text"
	Profile       Kind = "profile"
	HomeAssistant Kind = "homeAssistant"
	NodeRed       Kind = "nodeRed"
)

// Kinds lists every known action kind.
var Kinds = []Kind{Keyboard, Media, Launch, Script, HTTP, System, Text, Profile, HomeAssistant, NodeRed}

var (
	ErrUnknownKind   = errors.New("unknown action kind")
	ErrConfigMissing = errors.New("action config missing for kind")
	ErrConfigExtra   = errors.New("action carries config for a different kind")
)

// Action is a closed tagged variant: Kind selects exactly one of the
// config pointers. The JSON shape matches what the configuration layer
// stores per element binding.
type Action struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name,omitempty"`
	Kind    Kind   `json:"type"`
	Enabled *bool  `json:"enabled,omitempty"` // nil means enabled

	Keyboard      *KeyboardConfig      `json:"keyboard,omitempty"`
	Media         *MediaConfig         `json:"media,omitempty"`
	Launch        *LaunchConfig        `json:"launch,omitempty"`
	Script        *ScriptConfig        `json:"script,omitempty"`
	HTTP          *HTTPConfig          `json:"http,omitempty"`
	System        *SystemConfig        `json:"system,omitempty"`
	Text          *TextConfig          `json:"text,omitempty"`
	Profile       *ProfileConfig       `json:"profile,omitempty"`
	HomeAssistant *HomeAssistantConfig `json:"homeAssistant,omitempty"`
	NodeRed       *NodeRedConfig       `json:"nodeRed,omitempty"`
}

// KeyboardConfig sends a key or key combination.
type KeyboardConfig struct {
	Keys         string   `json:"keys"`
	Modifiers    []string `json:"modifiers,omitempty"`
	HoldDuration int      `json:"holdDurationMs,omitempty"`
}

// MediaControl is a transport/volume control operation.
type MediaControl string

const (
	MediaPlayPause  MediaControl = "play_pause"
	MediaNext       MediaControl = "next"
	MediaPrevious   MediaControl = "previous"
	MediaStop       MediaControl = "stop"
	MediaVolumeUp   MediaControl = "volume_up"
	MediaVolumeDown MediaControl = "volume_down"
	MediaMute       MediaControl = "mute"
)

type MediaConfig struct {
	Control      MediaControl `json:"control"`
	VolumeAmount int          `json:"volumeAmount,omitempty"`
}

// LaunchConfig starts a process.
type LaunchConfig struct {
	Path             string   `json:"path"`
	Args             []string `json:"args,omitempty"`
	WorkingDirectory string   `json:"workingDirectory,omitempty"`
	UseShell         bool     `json:"useShell,omitempty"`
}

// ScriptInterpreter selects how a script action runs.
type ScriptInterpreter string

const (
	ScriptBash       ScriptInterpreter = "bash"
	ScriptPowerShell ScriptInterpreter = "powershell"
	ScriptCmd        ScriptInterpreter = "cmd"
	ScriptFile       ScriptInterpreter = "file"
)

type ScriptConfig struct {
	Interpreter ScriptInterpreter `json:"interpreter"`
	Script      string            `json:"script,omitempty"`
	ScriptPath  string            `json:"scriptPath,omitempty"`
	TimeoutMS   int               `json:"timeoutMs,omitempty"`
}

type HTTPConfig struct {
	Method    string            `json:"method"`
	URL       string            `json:"url"`
	Headers   map[string]string `json:"headers,omitempty"`
	Body      json.RawMessage   `json:"body,omitempty"`
	TimeoutMS int               `json:"timeoutMs,omitempty"`
}

// SystemCommand is a host-level convenience operation.
type SystemCommand string

const (
	SystemLockScreen  SystemCommand = "lock_screen"
	SystemShowDesktop SystemCommand = "show_desktop"
	SystemScreenshot  SystemCommand = "screenshot"
	SystemTaskView    SystemCommand = "task_view"
	SystemSleep       SystemCommand = "sleep"
)

type SystemConfig struct {
	Command SystemCommand `json:"command"`
}

// TextConfig types a literal string.
type TextConfig struct {
	Text        string `json:"text"`
	TypeDelayMS int    `json:"typeDelayMs,omitempty"`
}

// ProfileConfig switches the active profile.
type ProfileConfig struct {
	ProfileID   string `json:"profileId"`
	ProfileName string `json:"profileName,omitempty"`
}

// HomeAssistantConfig calls a Home Assistant service on an entity.
type HomeAssistantConfig struct {
	Operation string          `json:"operation"`
	EntityID  string          `json:"entityId"`
	Domain    string          `json:"domain,omitempty"`
	Service   string          `json:"service,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// NodeRedConfig hits a Node-RED webhook endpoint.
type NodeRedConfig struct {
	Endpoint  string          `json:"endpoint"`
	EventName string          `json:"eventName,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// IsEnabled reports whether the action may execute. Absent means enabled.
func (a Action) IsEnabled() bool {
	return a.Enabled == nil || *a.Enabled
}

// Timeout returns the per-action timeout override, or zero when the
// engine default applies. Only script and http actions define one.
func (a Action) Timeout() time.Duration {
	switch a.Kind {
	case Script:
		if a.Script != nil && a.Script.TimeoutMS > 0 {
			return time.Duration(a.Script.TimeoutMS) * time.Millisecond
		}
	case HTTP:
		if a.HTTP != nil && a.HTTP.TimeoutMS > 0 {
			return time.Duration(a.HTTP.TimeoutMS) * time.Millisecond
		}
	}
	return 0
}

// EnsureID assigns a fresh id when the configuration layer did not.
func (a *Action) EnsureID() {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
}

// Validate checks that exactly the config matching Kind is present.
func (a Action) Validate() error {
	configs := map[Kind]bool{
		Keyboard:      a.Keyboard != nil,
		Media:         a.Media != nil,
		Launch:        a.Launch != nil,
		Script:        a.Script != nil,
		HTTP:          a.HTTP != nil,
		System:        a.System != nil,
		Text:          a.Text != nil,
		Profile:       a.Profile != nil,
		HomeAssistant: a.HomeAssistant != nil,
		NodeRed:       a.NodeRed != nil,
	}
	if _, ok := configs[a.Kind]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKind, a.Kind)
	}
	for kind, present := range configs {
		if kind == a.Kind && !present {
			return fmt.Errorf("%w: %q", ErrConfigMissing, a.Kind)
		}
		if kind != a.Kind && present {
			return fmt.Errorf("%w: %q has %q config", ErrConfigExtra, a.Kind, kind)
		}
	}
	return nil
}
