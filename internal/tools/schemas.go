package tools

import (
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

type schemaRegistry struct {
	once    sync.Once
	initErr error
	byTool  map[string]*jsonschema.Schema
}

var schemas schemaRegistry

func initSchemas() error {
	schemas.once.Do(func() {
		sources := map[string]string{
			"web_agent_session_create": sessionCreateSchema,
			"web_agent_step":           stepSchema,
			"web_agent_snapshot":       snapshotSchema,
			"web_agent_session_stop":   sessionStopSchema,
			"web_agent_replay":         replaySchema,
		}
		schemas.byTool = make(map[string]*jsonschema.Schema, len(sources))
		for name, source := range sources {
			compiled, err := jsonschema.CompileString("tool_"+name, source)
			if err != nil {
				schemas.initErr = err
				return
			}
			schemas.byTool[name] = compiled
		}
	})
	return schemas.initErr
}

// SchemaJSON returns the raw JSON schema for a tool, or "" if unknown.
func SchemaJSON(tool string) string {
	switch tool {
	case "web_agent_session_create":
		return sessionCreateSchema
	case "web_agent_step":
		return stepSchema
	case "web_agent_snapshot":
		return snapshotSchema
	case "web_agent_session_stop":
		return sessionStopSchema
	case "web_agent_replay":
		return replaySchema
	default:
		return ""
	}
}

const captureSettingsSchema = `{
      "type": "object",
      "properties": {
        "include_dom": { "type": "boolean" },
        "include_ax": { "type": "boolean" },
        "include_network": { "type": "boolean" },
        "include_frames": { "type": "boolean" },
        "max_frames": { "type": "integer", "minimum": 1, "maximum": 64 }
      },
      "additionalProperties": false
    }`

const sessionCreateSchema = `{
  "type": "object",
  "required": ["target_url"],
  "properties": {
    "target_url": { "type": "string", "minLength": 1, "maxLength": 2048 },
    "viewport": {
      "type": "object",
      "required": ["width", "height"],
      "properties": {
        "width": { "type": "integer", "minimum": 320, "maximum": 7680 },
        "height": { "type": "integer", "minimum": 200, "maximum": 4320 }
      },
      "additionalProperties": false
    },
    "capture_profile": { "type": "string", "enum": ["adaptive", "dom_only", "frames_only"] },
    "policy_mode": { "type": "string", "enum": ["model_owns_action", "deterministic"] },
    "max_steps": { "type": "integer", "minimum": 1, "maximum": 50000 },
    "max_duration_ms": { "type": "integer", "minimum": 1000 },
    "storage_state_path": { "type": "string" },
    "capture": ` + captureSettingsSchema + `,
    "confidence_gate": {
      "type": "object",
      "properties": {
        "min_score": { "type": "number", "minimum": 0, "maximum": 1 }
      },
      "additionalProperties": false
    },
    "max_frame_budget_ms": { "type": "integer", "minimum": 1, "maximum": 60000 }
  },
  "additionalProperties": false
}`

const stepSchema = `{
  "type": "object",
  "required": ["session_id", "action"],
  "properties": {
    "session_id": { "type": "string", "minLength": 1 },
    "action": {
      "type": "string",
      "enum": ["navigate", "click", "hover", "type", "press", "scroll", "drag", "wait", "wait_for"]
    },
    "url": { "type": "string", "maxLength": 2048 },
    "selector": { "type": "string" },
    "text": { "type": "string" },
    "key": { "type": "string" },
    "target": { "type": "string" },
    "x": { "type": "number", "minimum": 0 },
    "y": { "type": "number", "minimum": 0 },
    "delta_x": { "type": "number" },
    "delta_y": { "type": "number" },
    "timeout_ms": { "type": "integer", "minimum": 50, "maximum": 120000 },
    "max_actions_per_step": { "type": "integer", "minimum": 1, "maximum": 20 },
    "capture": ` + captureSettingsSchema + `
  },
  "additionalProperties": false
}`

const snapshotSchema = `{
  "type": "object",
  "required": ["session_id"],
  "properties": {
    "session_id": { "type": "string", "minLength": 1 },
    "capture": ` + captureSettingsSchema + `
  },
  "additionalProperties": false
}`

const sessionStopSchema = `{
  "type": "object",
  "required": ["session_id"],
  "properties": {
    "session_id": { "type": "string", "minLength": 1 },
    "preserve": { "type": "boolean" }
  },
  "additionalProperties": false
}`

const replaySchema = `{
  "type": "object",
  "required": ["trace_id"],
  "properties": {
    "trace_id": { "type": "string", "minLength": 1 },
    "start_index": { "type": "integer", "minimum": 1 },
    "end_index": { "type": "integer", "minimum": 1 }
  },
  "additionalProperties": false
}`
