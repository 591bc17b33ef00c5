package util

import (
	"fmt"
	"strings"

	"github.com/elijahnyp/pjlink_controller/pjlink"
)

const ( //command topic types
	POWER_SET   = iota
	INPUT_SET   = iota
	POLLING_SET = iota
)

const ( //state topic leaves
	LEAF_CONNECTED  = "connected"
	LEAF_POWER      = "power"
	LEAF_INPUT      = "input"
	LEAF_LAMP_HOURS = "lamp_hours"
	LEAF_STATE      = "state"
)

var commandLeaves = map[string]int{
	"power/set":   POWER_SET,
	"input/set":   INPUT_SET,
	"polling/set": POLLING_SET,
}

type Model struct {
	Projectors []ProjectorConfig `mapstructure:"projectors"`
}

// ProjectorConfig is one entry of model.projectors. Polling and Debug
// override the global defaults when set.
type ProjectorConfig struct {
	Name    string `mapstructure:"name"`
	Address string `mapstructure:"address"`
	Label   string `mapstructure:"label"`
	Polling *bool  `mapstructure:"polling"`
	Debug   *bool  `mapstructure:"debug"`
}

func (p ProjectorConfig) DisplayLabel() string {
	if p.Label != "" {
		return p.Label
	}
	return p.Name
}

func (p ProjectorConfig) PollingEnabled() bool {
	if p.Polling != nil {
		return *p.Polling
	}
	return Config.GetBool("polling")
}

func (p ProjectorConfig) DebugEnabled() bool {
	if p.Debug != nil {
		return *p.Debug
	}
	return Config.GetBool("debug")
}

// PollConfig builds the poll periods from the poll_*_interval keys.
func (p ProjectorConfig) PollConfig() pjlink.PollConfig {
	return pjlink.PollConfig{
		Enabled:        p.PollingEnabled(),
		PowerInterval:  Seconds("poll_power_interval"),
		SourceInterval: Seconds("poll_source_interval"),
		LampInterval:   Seconds("poll_lamp_interval"),
	}
}

func TopicPrefix() string {
	return strings.TrimSuffix(Config.GetString("topic_prefix"), "/")
}

func AvailabilityTopic() string {
	return TopicPrefix() + "/online"
}

func ProjectorTopic(name, leaf string) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefix(), name, leaf)
}

func (m Model) FindProjector(name string) (ProjectorConfig, bool) {
	for _, entry := range m.Projectors {
		if entry.Name == name {
			return entry, true
		}
	}
	return ProjectorConfig{}, false
}

// FindProjectorByTopic maps a command topic back to its projector and
// command type. Unknown topics return "" and -1.
func (m Model) FindProjectorByTopic(topic string) (string, int) {
	for _, entry := range m.Projectors {
		base := TopicPrefix() + "/" + entry.Name + "/"
		if !strings.HasPrefix(topic, base) {
			continue
		}
		if kind, ok := commandLeaves[strings.TrimPrefix(topic, base)]; ok {
			return entry.Name, kind
		}
	}
	return "", -1
}

func (m Model) SubscribeTopics() []string {
	var topics []string
	for _, entry := range m.Projectors {
		for leaf := range commandLeaves {
			topics = append(topics, ProjectorTopic(entry.Name, leaf))
		}
	}
	return topics
}

// Validate rejects entries a client cannot be built from.
func (m Model) Validate() error {
	seen := make(map[string]bool)
	for i, entry := range m.Projectors {
		if entry.Name == "" {
			return fmt.Errorf("projector %d has no name", i)
		}
		if strings.ContainsAny(entry.Name, "/+#") {
			return fmt.Errorf("projector name %q is not a valid topic level", entry.Name)
		}
		if entry.Address == "" {
			return fmt.Errorf("projector %s has no address", entry.Name)
		}
		if seen[entry.Name] {
			return fmt.Errorf("duplicate projector name %s", entry.Name)
		}
		seen[entry.Name] = true
	}
	return nil
}

func (m *Model) BuildModel() error {
	var next Model
	err := Config.UnmarshalKey("model", &next)
	if err != nil {
		Logger.Error().Msgf("error unmarshaling model: %v", err)
		return fmt.Errorf("error unmarshaling model: %w", err)
	}
	if err := next.Validate(); err != nil {
		Logger.Error().Msgf("invalid model: %v", err)
		return err
	}
	*m = next
	return nil
}
