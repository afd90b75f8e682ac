package model

import (
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// ParseCard decodes a card document. YAML is used for .yaml/.yml names,
// JSON otherwise. YAML goes through the JSON decoder so both formats share
// the same role-key checks.
func ParseCard(name string, data []byte) (*Card, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, eris.Wrap(err, "model: parse card yaml")
		}
		b, err := json.Marshal(doc)
		if err != nil {
			return nil, eris.Wrap(err, "model: convert card yaml")
		}
		data = b
	}

	var card Card
	if err := json.Unmarshal(data, &card); err != nil {
		return nil, eris.Wrap(err, "model: parse card")
	}
	return &card, nil
}
