package whitelist

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/pratik-mahalle/fleetfix/internal/domain/remediation"
)

const restartServiceSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["service"],
  "properties": {
    "service": {"type": "string", "pattern": "^[A-Za-z0-9@._-]{1,128}$"}
  }
}`

// Path segments may not start with a dot, which rules out traversal out of /var/log.
const clearLogsSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["path", "older_than_days"],
  "properties": {
    "path": {"type": "string", "pattern": "^/var/log(/[A-Za-z0-9_-][A-Za-z0-9._-]*)*$"},
    "older_than_days": {"type": "integer", "minimum": 1, "maximum": 365}
  }
}`

const clearTempSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["older_than_hours"],
  "properties": {
    "older_than_hours": {"type": "integer", "minimum": 1, "maximum": 720}
  }
}`

// scriptNamePattern keeps custom script names to a single file under the scripts directory.
const scriptNamePattern = `^[A-Za-z0-9_-][A-Za-z0-9._-]{0,63}$`

const customSchemaFmt = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["script"],
  "properties": {
    "script": %s,
    "args": {
      "type": "array",
      "maxItems": 8,
      "items": {"type": "string", "pattern": "^[A-Za-z0-9._=-]{0,64}$"}
    }
  }
}`

// customScriptSchema is false (nothing validates) when no scripts are configured;
// jsonschema treats an empty enum as no constraint at all.
func customScriptSchema(scripts []string) string {
	if len(scripts) == 0 {
		return "false"
	}
	sorted := append([]string(nil), scripts...)
	sort.Strings(sorted)
	enum, _ := json.Marshal(sorted)
	pattern, _ := json.Marshal(scriptNamePattern)
	return fmt.Sprintf(`{"type": "string", "pattern": %s, "enum": %s}`, pattern, enum)
}

func definitions(opts Options) []Entry {
	return []Entry{
		{
			ActionType:  remediation.ActionTypeRestartService,
			Description: "Restart a systemd unit",
			Template:    "systemctl restart {{service}}",
			Schema:      json.RawMessage(restartServiceSchema),
		},
		{
			ActionType:  remediation.ActionTypeClearLogs,
			Description: "Delete log files under /var/log older than a number of days",
			Template:    "find {{path}} -type f -name '*.log' -mtime +{{older_than_days}} -delete",
			Schema:      json.RawMessage(clearLogsSchema),
			Defaults:    remediation.Parameters{"older_than_days": json.Number("7")},
		},
		{
			ActionType:  remediation.ActionTypeClearTemp,
			Description: "Clean temporary files older than a number of hours",
			Template:    "systemd-tmpfiles --clean --age {{older_than_hours}}h",
			Schema:      json.RawMessage(clearTempSchema),
			Defaults:    remediation.Parameters{"older_than_hours": json.Number("24")},
		},
		{
			ActionType:  remediation.ActionTypeCustom,
			Description: "Run an operator-provided script installed on the host",
			Template:    "/opt/fleetfix/scripts/{{script}}",
			Schema:      json.RawMessage(fmt.Sprintf(customSchemaFmt, customScriptSchema(opts.CustomScripts))),
		},
	}
}
