package store

import (
	"encoding/json"

	"github.com/rolandhq/flowvault/internal/domain"
)

// ValidatePayload checks the structural shape of a workflow definition
// before anything is written. It fails with InvalidPayload citing the
// first violation found; the node graph itself is never interpreted.
func ValidatePayload(payload []byte) error {
	if len(payload) == 0 {
		return invalid("payload is empty")
	}

	var workflow map[string]json.RawMessage
	if err := json.Unmarshal(payload, &workflow); err != nil {
		return invalidErr("payload is not a JSON object", err)
	}

	rawName, ok := workflow["name"]
	if !ok {
		return invalid(`missing required field "name"`)
	}
	var name string
	if err := json.Unmarshal(rawName, &name); err != nil {
		return invalidErr(`field "name" is not a string`, err)
	}
	if name == "" {
		return invalid(`field "name" is empty`)
	}

	rawNodes, ok := workflow["nodes"]
	if !ok {
		return invalid(`missing required field "nodes"`)
	}
	var nodes []json.RawMessage
	if err := json.Unmarshal(rawNodes, &nodes); err != nil {
		return invalidErr(`field "nodes" is not an array`, err)
	}

	if rawConnections, ok := workflow["connections"]; ok {
		var connections map[string]json.RawMessage
		if err := json.Unmarshal(rawConnections, &connections); err != nil {
			return invalidErr(`field "connections" is not an object`, err)
		}
	}

	return nil
}

func invalid(message string) error {
	return domain.NewError(domain.KindInvalidPayload, message, nil)
}

func invalidErr(message string, err error) error {
	return domain.NewError(domain.KindInvalidPayload, message, err)
}
