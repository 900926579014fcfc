package hub

// Characteristic describes one controllable or observable attribute as
// reported by the hub's accessory snapshot.
type Characteristic struct {
	Type     string `json:"type"`
	CanWrite bool   `json:"canWrite"`
}

// Accessory is one raw service record from the hub's accessory snapshot.
// Fields are passed through as the hub reports them; normalization happens
// in the catalog package.
type Accessory struct {
	UniqueID               string           `json:"uniqueId"`
	ServiceName            string           `json:"serviceName"`
	Type                   string           `json:"type"`
	HumanType              string           `json:"humanType"`
	Values                 map[string]any   `json:"values"`
	ServiceCharacteristics []Characteristic `json:"serviceCharacteristics"`
	AccessoryInformation   map[string]any   `json:"accessoryInformation"`
}
