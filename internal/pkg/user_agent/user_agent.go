// Package user_agent classifies a raw User-Agent into a crawler name and a device form factor.
package user_agent

import (
	"embed"
	"log/slog"
	"strings"
	"sync"

	"go.elara.ws/pcre"
	"gopkg.in/yaml.v3"
)

const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceTV      = "tv"
	DeviceBot     = "bot"
	DeviceUnknown = "unknown"
)

//go:embed database/bots.yml
//go:embed database/devices.yml
var databaseFiles embed.FS

// BotEntry is one crawler signature.
type BotEntry struct {
	Regex    string `yaml:"regex"`
	Name     string `yaml:"name"`
	Category string `yaml:"category"`
	Producer struct {
		Name string `yaml:"name"`
		URL  string `yaml:"url"`
	} `yaml:"producer"`
}

// DeviceEntry maps a signature to a form factor.
type DeviceEntry struct {
	Regex  string `yaml:"regex"`
	Device string `yaml:"device"`
}

// UserAgent is the classification result.
type UserAgent struct {
	UserAgent   string
	Device      string
	BotName     string
	BotCategory string
}

func (u UserAgent) IsBot() bool {
	return u.BotName != ""
}

type compiledBot struct {
	entry BotEntry
	re    *pcre.Regexp
}

type compiledDevice struct {
	entry DeviceEntry
	re    *pcre.Regexp
}

// Detector holds the compiled signature tables.
type Detector struct {
	bots    []compiledBot
	devices []compiledDevice
}

var (
	defaultDetector *Detector
	once            sync.Once
)

// Default returns the process-wide detector built from the embedded tables.
func Default() *Detector {
	once.Do(func() {
		d, err := NewDetector(nil)
		if err != nil {
			slog.Default().Error("failed to load user agent tables", slog.Any("error", err))
			d = &Detector{}
		}
		defaultDetector = d
	})
	return defaultDetector
}

// NewDetector compiles the embedded tables. Entries whose regex fails to compile are
// skipped and logged; a nil logger uses slog.Default().
func NewDetector(logger *slog.Logger) (*Detector, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var bots []BotEntry
	if err := loadYAML("database/bots.yml", &bots); err != nil {
		return nil, err
	}
	var devices []DeviceEntry
	if err := loadYAML("database/devices.yml", &devices); err != nil {
		return nil, err
	}

	d := &Detector{}
	for _, b := range bots {
		re, err := pcre.Compile("(?i)" + b.Regex)
		if err != nil {
			logger.Warn("skipping bot signature", slog.String("name", b.Name), slog.Any("error", err))
			continue
		}
		d.bots = append(d.bots, compiledBot{entry: b, re: re})
	}
	for _, e := range devices {
		re, err := pcre.Compile(e.Regex)
		if err != nil {
			logger.Warn("skipping device signature", slog.String("device", e.Device), slog.Any("error", err))
			continue
		}
		d.devices = append(d.devices, compiledDevice{entry: e, re: re})
	}
	return d, nil
}

func loadYAML(name string, out any) error {
	data, err := databaseFiles.ReadFile(name)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, out)
}

// Parse classifies ua. Crawlers are checked first; an empty UA is unknown.
func (d *Detector) Parse(ua string) UserAgent {
	ua = strings.TrimSpace(ua)
	result := UserAgent{UserAgent: ua, Device: DeviceUnknown}
	if ua == "" {
		return result
	}

	for _, b := range d.bots {
		if b.re.MatchString(ua) {
			result.BotName = b.entry.Name
			result.BotCategory = b.entry.Category
			result.Device = DeviceBot
			return result
		}
	}

	for _, dev := range d.devices {
		if dev.re.MatchString(ua) {
			result.Device = dev.entry.Device
			return result
		}
	}

	result.Device = DeviceDesktop
	return result
}

// ParseUserAgent classifies ua with the default detector.
func ParseUserAgent(ua string) UserAgent {
	return Default().Parse(ua)
}
