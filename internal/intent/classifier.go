package intent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/DurgarajC07/task-assit/internal/history"
	"github.com/DurgarajC07/task-assit/internal/llm"
)

// ErrClassification marks a failed generation call or an unusable reply.
// The pipeline recovers by treating the turn as Unclear; the error exists
// for operational logging only.
var ErrClassification = errors.New("intent classification failed")

const systemPrompt = `You are the intent classifier of a task management assistant.
Analyze the user's message and determine their intent.

Available intents:
- CREATE_TASK: create a new task
- LIST_TASKS: view tasks, possibly filtered
- UPDATE_TASK: modify an existing task
- COMPLETE_TASK: mark a task complete (or reopen it)
- DELETE_TASK: remove one task
- SEARCH_TASKS: search tasks by keyword
- BULK_DELETE: remove all tasks matching criteria
- BULK_UPDATE: modify all tasks matching criteria
- BULK_COMPLETE: complete all tasks matching criteria
- GET_STATISTICS: task counts and summaries
- UNCLEAR: intent cannot be determined

Extract entities as flat string values:
- title, description
- due_date: preserve the user's exact words ("tomorrow", "29th jan")
- due_time: preserve the user's exact words ("2pm", "14:00")
- priority: low, medium, high or urgent
- tags: comma-separated
- filter: for LIST_TASKS (today, this_week, this_month, pending, completed, overdue)
- search_query: for SEARCH_TASKS
- task_reference: which task is meant, verbatim ("it", "that", "the report task")
- completion_action: complete or incomplete
- bulk_status, bulk_priority, bulk_due_filter: criteria selecting tasks for BULK_* intents
- update_status, update_priority, update_due_date: new values for UPDATE_TASK / BULK_UPDATE

Respond ONLY with valid JSON, no markdown fences, in this exact format:
{"intent": "INTENT_NAME", "confidence": 0.95, "entities": {"field": "value"}, "reasoning": "one short sentence"}`

// Classifier wraps the external generation capability. One Generate call
// per turn, under a bounded timeout.
type Classifier struct {
	client  llm.Client
	timeout time.Duration
}

func NewClassifier(client llm.Client, timeout time.Duration) *Classifier {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Classifier{client: client, timeout: timeout}
}

// Classify recognizes the intent of message given the rolling context.
// It never fails open: any generation or parse failure yields
// {Unclear, 0} alongside ErrClassification.
func (c *Classifier) Classify(ctx context.Context, message string, conv []history.Turn) (Recognized, error) {
	msgs := []llm.Message{{Role: "system", Content: systemPrompt}}
	for _, turn := range conv {
		msgs = append(msgs, llm.Message{Role: turn.Role, Content: turn.Message})
	}
	msgs = append(msgs, llm.Message{Role: "user", Content: message})

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.Generate(ctx, msgs, llm.Options{Temperature: 0.1, MaxTokens: 500})
	if err != nil {
		return unclear(), fmt.Errorf("%w: %v", ErrClassification, err)
	}

	payload, err := extractPayload(resp.Content)
	if err != nil {
		return unclear(), fmt.Errorf("%w: %v", ErrClassification, err)
	}
	return payload.recognized(), nil
}

func unclear() Recognized {
	return Recognized{Kind: Unclear, Confidence: 0, RawEntities: map[string]string{}}
}

type wirePayload struct {
	Intent     string         `json:"intent"`
	Confidence float64        `json:"confidence"`
	Entities   map[string]any `json:"entities"`
	Reasoning  string         `json:"reasoning"`
}

func (p wirePayload) recognized() Recognized {
	out := Recognized{
		Kind:        Kind(strings.ToUpper(strings.TrimSpace(p.Intent))),
		Confidence:  p.Confidence,
		RawEntities: make(map[string]string, len(p.Entities)),
		Reasoning:   p.Reasoning,
	}
	if !allKinds[out.Kind] {
		out.Kind = Unclear
	}
	if out.Confidence < 0 {
		out.Confidence = 0
	}
	if out.Confidence > 1 {
		out.Confidence = 1
	}
	for k, v := range p.Entities {
		if s := stringify(v); s != "" {
			out.RawEntities[strings.ToLower(k)] = s
		}
	}
	return out
}

// stringify flattens the loosely-typed entity values models return
// (strings, numbers, booleans, arrays) into plain strings.
func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return fmt.Sprintf("%v", t)
	case bool:
		return fmt.Sprintf("%v", t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s := stringify(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ",")
	default:
		return ""
	}
}

// extractPayload applies the parse strategies in order: the whole reply
// as JSON, then a ```json fenced block, then the outermost brace pair.
func extractPayload(content string) (wirePayload, error) {
	content = strings.TrimSpace(content)

	var p wirePayload
	if err := json.Unmarshal([]byte(content), &p); err == nil {
		return p, nil
	}

	if fenced, ok := fencedBlock(content); ok {
		if err := json.Unmarshal([]byte(fenced), &p); err == nil {
			return p, nil
		}
	}

	if start, end := strings.Index(content, "{"), strings.LastIndex(content, "}"); start >= 0 && end > start {
		if err := json.Unmarshal([]byte(content[start:end+1]), &p); err == nil {
			return p, nil
		}
	}

	return wirePayload{}, fmt.Errorf("no JSON object in reply")
}

func fencedBlock(content string) (string, bool) {
	marker := "```json"
	start := strings.Index(content, marker)
	if start < 0 {
		marker = "```"
		start = strings.Index(content, marker)
		if start < 0 {
			return "", false
		}
	}
	rest := content[start+len(marker):]
	end := strings.Index(rest, "```")
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}
