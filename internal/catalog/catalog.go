// Package catalog normalizes the hub's raw accessory snapshot into a
// canonical, classified device list. Normalization is pure and
// deterministic; nothing here is cached between requests.
package catalog

import (
	"errors"
	"strings"

	"github.com/HerbHall/hubgate/internal/hub"
)

// DeviceType is the closed canonical type vocabulary hubgate exposes to
// callers, normalizing the hub's free-form type labels.
type DeviceType string

const (
	TypeLightbulb  DeviceType = "lightbulb"
	TypeSwitch     DeviceType = "switch"
	TypeOutlet     DeviceType = "outlet"
	TypeThermostat DeviceType = "thermostat"
	TypeLock       DeviceType = "lock"
	TypeFan        DeviceType = "fan"
	TypeBlinds     DeviceType = "blinds"
	TypeGarage     DeviceType = "garage"
	TypeMotion     DeviceType = "motion"
	TypeSensor     DeviceType = "sensor"
	TypeCamera     DeviceType = "camera"
	TypeOther      DeviceType = "other"
)

// ErrNotFound reports a device id absent from the current snapshot.
var ErrNotFound = errors.New("device not found")

// Device is one normalized, classified device record.
type Device struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Type         DeviceType     `json:"type"`
	RawType      string         `json:"rawType"`
	State        map[string]any `json:"state"`
	Writable     []string       `json:"writable"`
	Manufacturer string         `json:"manufacturer,omitempty"`
	Model        string         `json:"model,omitempty"`
}

// classificationRule maps substrings of the hub's human-readable type label
// to a canonical type.
type classificationRule struct {
	substrings []string
	deviceType DeviceType
}

// classificationRules is evaluated in order, first match wins. The order is
// a documented contract: a label matching several rules always resolves to
// the earliest one.
var classificationRules = []classificationRule{
	{[]string{"light", "bulb"}, TypeLightbulb},
	{[]string{"switch"}, TypeSwitch},
	{[]string{"outlet"}, TypeOutlet},
	{[]string{"thermostat"}, TypeThermostat},
	{[]string{"lock"}, TypeLock},
	{[]string{"fan"}, TypeFan},
	{[]string{"window", "blind", "covering"}, TypeBlinds},
	{[]string{"garage"}, TypeGarage},
	{[]string{"motion"}, TypeMotion},
	{[]string{"temperature"}, TypeSensor},
	{[]string{"humidity"}, TypeSensor},
	{[]string{"contact"}, TypeSensor},
	{[]string{"camera"}, TypeCamera},
}

// structuralTypes are hub service records that describe metadata rather
// than a controllable device. They never appear in the catalog.
var structuralTypes = map[string]struct{}{
	"AccessoryInformation": {},
	"ProtocolInformation":  {},
}

// Classify maps a raw hub type label to the canonical vocabulary.
func Classify(label string) DeviceType {
	l := strings.ToLower(label)
	for _, rule := range classificationRules {
		for _, sub := range rule.substrings {
			if strings.Contains(l, sub) {
				return rule.deviceType
			}
		}
	}
	return TypeOther
}

// Catalog normalizes accessory snapshots. bridgeName is hubgate's own
// accessory name on the hub, filtered out so the gateway never exposes
// itself as a controllable device.
type Catalog struct {
	bridgeName string
}

// New creates a Catalog that filters out the named bridge accessory.
func New(bridgeName string) *Catalog {
	return &Catalog{bridgeName: bridgeName}
}

// Normalize converts the raw snapshot into an ordered device list,
// preserving snapshot order.
func (c *Catalog) Normalize(raw []hub.Accessory) []Device {
	devices := make([]Device, 0, len(raw))
	for i := range raw {
		d, ok := c.normalizeOne(&raw[i])
		if ok {
			devices = append(devices, d)
		}
	}
	return devices
}

func (c *Catalog) normalizeOne(a *hub.Accessory) (Device, bool) {
	if a.UniqueID == "" {
		return Device{}, false
	}
	if _, structural := structuralTypes[a.Type]; structural {
		return Device{}, false
	}
	if c.bridgeName != "" && strings.EqualFold(a.ServiceName, c.bridgeName) {
		return Device{}, false
	}

	d := Device{
		ID:       a.UniqueID,
		Name:     a.ServiceName,
		Type:     Classify(a.HumanType),
		RawType:  a.HumanType,
		State:    a.Values,
		Writable: writableSet(a.ServiceCharacteristics),
	}
	if d.State == nil {
		d.State = map[string]any{}
	}
	if m, ok := a.AccessoryInformation["Manufacturer"].(string); ok {
		d.Manufacturer = m
	}
	if m, ok := a.AccessoryInformation["Model"].(string); ok {
		d.Model = m
	}
	return d, true
}

// writableSet collects the characteristic types flagged writable by the hub.
func writableSet(chars []hub.Characteristic) []string {
	writable := make([]string, 0, len(chars))
	for _, ch := range chars {
		if ch.CanWrite {
			writable = append(writable, ch.Type)
		}
	}
	return writable
}

// validTypes enumerates the canonical vocabulary, fallback included.
var validTypes = map[DeviceType]struct{}{
	TypeLightbulb: {}, TypeSwitch: {}, TypeOutlet: {}, TypeThermostat: {},
	TypeLock: {}, TypeFan: {}, TypeBlinds: {}, TypeGarage: {},
	TypeMotion: {}, TypeSensor: {}, TypeCamera: {}, TypeOther: {},
}

// ValidType reports whether s names a canonical device type.
func ValidType(s string) bool {
	_, ok := validTypes[DeviceType(s)]
	return ok
}

// FilterByType returns the devices matching the given canonical type,
// preserving order.
func FilterByType(devices []Device, t DeviceType) []Device {
	result := make([]Device, 0, len(devices))
	for _, d := range devices {
		if d.Type == t {
			result = append(result, d)
		}
	}
	return result
}

// Find returns the device with the given id, or ErrNotFound.
func Find(devices []Device, id string) (*Device, error) {
	for i := range devices {
		if devices[i].ID == id {
			return &devices[i], nil
		}
	}
	return nil, ErrNotFound
}
