package store

import "gopkg.in/yaml.v3"

// Marshal serializes a container to YAML.
func Marshal(c *Container) ([]byte, error) {
	return yaml.Marshal(c)
}

// Unmarshal parses persisted YAML into a container, normalizing legacy
// aliases before returning it.
func Unmarshal(data []byte) (*Container, error) {
	c := NewContainer()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, err
	}
	normalizeLegacy(c)
	return c, nil
}

// remarshal round-trips src through YAML into dst, the way a generic
// map[string]any group is decoded into one step's typed parameter struct
// without hand-writing a field-by-field converter for each of the twenty
// parameter records.
func remarshal(src, dst any) error {
	data, err := yaml.Marshal(src)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, dst)
}
