package n8n

import (
	"encoding/json"
	"fmt"
)

// credentialPlaceholder replaces credential references in exported
// workflows so backups never carry live credential ids.
var credentialPlaceholder = map[string]string{
	"id":   "REDACTED",
	"name": "CREDENTIAL_PLACEHOLDER",
}

// SanitizeCredentials rewrites every node's credential references to
// placeholders. Payloads without nodes pass through untouched. The input
// must be a JSON object.
func SanitizeCredentials(payload []byte) ([]byte, error) {
	var workflow map[string]json.RawMessage
	if err := json.Unmarshal(payload, &workflow); err != nil {
		return nil, fmt.Errorf("workflow payload is not a JSON object: %w", err)
	}

	rawNodes, ok := workflow["nodes"]
	if !ok {
		return payload, nil
	}

	var nodes []map[string]interface{}
	if err := json.Unmarshal(rawNodes, &nodes); err != nil {
		return nil, fmt.Errorf("workflow nodes are not an array: %w", err)
	}

	touched := false
	for _, node := range nodes {
		creds, ok := node["credentials"].(map[string]interface{})
		if !ok {
			continue
		}
		for credType := range creds {
			creds[credType] = credentialPlaceholder
		}
		touched = true
	}
	if !touched {
		return payload, nil
	}

	sanitizedNodes, err := json.Marshal(nodes)
	if err != nil {
		return nil, fmt.Errorf("failed to re-encode nodes: %w", err)
	}
	workflow["nodes"] = sanitizedNodes

	out, err := json.Marshal(workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to re-encode workflow: %w", err)
	}
	return out, nil
}
