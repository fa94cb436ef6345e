package decompose

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/ShayCichocki/taskforge/pkg/models"
)

var (
	jsonFencePattern = regexp.MustCompile("(?is)```json[ \\t]*\\r?\\n?(.*?)```")
	anyFencePattern  = regexp.MustCompile("(?s)```[a-zA-Z0-9_-]*[ \\t]*\\r?\\n?(.*?)```")

	quotedValue = `"((?:[^"\\]|\\.)*)"`
	idPattern   = regexp.MustCompile(`"id"\s*:\s*(?:` + quotedValue + `|(-?\d+))`)
	augPattern  = regexp.MustCompile(`"enableAugmentedCapability"\s*:\s*(true|false|"[^"]*")`)
	depsPattern = regexp.MustCompile(`"(?:dependsOn|depends_on)"\s*:\s*(\[[^\]]*\]?|` + quotedValue + `|-?\d+)`)
	quotedItem  = regexp.MustCompile(quotedValue)
	numberItem  = regexp.MustCompile(`-?\d+`)
)

// stringFieldPatterns match the string-valued node fields used by regex repair.
var stringFieldPatterns = map[string]*regexp.Regexp{
	"taskDescription": stringField("taskDescription"),
	"agentRole":       stringField("agentRole"),
	"agentObjective":  stringField("agentObjective"),
	"agentTaskPrompt": stringField("agentTaskPrompt"),
}

func stringField(name string) *regexp.Regexp {
	return regexp.MustCompile(`"` + name + `"\s*:\s*` + quotedValue)
}

// planKeys are the accepted names of the subtask array, in preference order.
var planKeys = []string{"subTasks", "subtasks", "sub_tasks", "tasks"}

// rawNode is the tolerant shape of one planned subtask.
type rawNode struct {
	ID           json.RawMessage `json:"id"`
	Description  string          `json:"taskDescription"`
	Role         string          `json:"agentRole"`
	Objective    string          `json:"agentObjective"`
	Prompt       string          `json:"agentTaskPrompt"`
	Augmented    json.RawMessage `json:"enableAugmentedCapability"`
	DependsOn    json.RawMessage `json:"dependsOn"`
	DependsOnAlt json.RawMessage `json:"depends_on"`
}

// draft is a subtask after parsing or repair and before post-processing.
type draft struct {
	id          string
	description string
	role        string
	objective   string
	prompt      string
	augmented   bool
	deps        []string
}

// ExtractPlan turns a planner response into a Plan. It never fails: text with
// no recoverable plan yields an empty Plan.
func ExtractPlan(text string) *models.Plan {
	plan := &models.Plan{Nodes: []*models.SubtaskNode{}}

	block, ok := LocateBlock(text)
	if !ok {
		return plan
	}
	normalized := Normalize(block)

	drafts, err := parseStrict(normalized)
	if err != nil {
		drafts = repair(normalized)
	}
	plan.Nodes = postprocess(drafts)
	return plan
}

// LocateBlock finds the JSON block in a planner response. It prefers a fence
// tagged json, then any fence, then the first top-level brace-balanced span.
// An unterminated span runs to the end of the text.
func LocateBlock(text string) (string, bool) {
	if m := jsonFencePattern.FindStringSubmatch(text); m != nil && strings.Contains(m[1], "{") {
		return strings.TrimSpace(m[1]), true
	}
	for _, m := range anyFencePattern.FindAllStringSubmatch(text, -1) {
		if strings.Contains(m[1], "{") {
			return strings.TrimSpace(m[1]), true
		}
	}

	start := strings.IndexByte(text, '{')
	if start == -1 {
		return "", false
	}
	if end := matchBrace(text, start); end != -1 {
		return text[start : end+1], true
	}
	return text[start:], true
}

// matchBrace returns the index of the brace closing the one at start,
// skipping braces inside strings, or -1.
func matchBrace(s string, start int) int {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]

		if escaped {
			escaped = false
			continue
		}
		if c == '\\' && inString {
			escaped = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		switch c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// Normalize prepares a located block for parsing. It strips fence markers,
// line comments and trailing commas outside strings, and trims unbalanced
// outer delimiters to the first '{' and last '}'.
func Normalize(block string) string {
	var lines []string
	for _, line := range strings.Split(block, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		lines = append(lines, line)
	}
	s := stripComments(strings.Join(lines, "\n"))

	if open, closed := countBraces(s); open != closed {
		first := strings.IndexByte(s, '{')
		last := strings.LastIndexByte(s, '}')
		if first != -1 && last > first {
			s = s[first : last+1]
		}
	}
	return strings.TrimSpace(s)
}

// stripComments removes // comments and commas that directly precede a
// closing delimiter. String contents are left untouched.
func stripComments(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]

		if inString {
			b.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch {
		case c == '"':
			inString = true
			b.WriteByte(c)
		case c == '/' && i+1 < len(s) && s[i+1] == '/':
			for i < len(s) && s[i] != '\n' {
				i++
			}
			if i < len(s) {
				b.WriteByte('\n')
			}
		case c == ',' && closesNext(s, i+1):
			// trailing comma
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// closesNext reports whether the next significant byte from i closes an
// object or array.
func closesNext(s string, i int) bool {
	for ; i < len(s); i++ {
		switch s[i] {
		case ' ', '\t', '\r', '\n':
			continue
		case '/':
			if i+1 < len(s) && s[i+1] == '/' {
				for i < len(s) && s[i] != '\n' {
					i++
				}
				continue
			}
			return false
		case '}', ']':
			return true
		default:
			return false
		}
	}
	return false
}

func countBraces(s string) (open, closed int) {
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		if c == '\\' && inString {
			escaped = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		if c == '{' {
			open++
		} else if c == '}' {
			closed++
		}
	}
	return open, closed
}

// parseStrict decodes the block as JSON. The top level may be an object
// holding the subtask array under any accepted key, or the array itself.
func parseStrict(s string) ([]draft, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &top); err != nil {
		var nodes []rawNode
		if arrErr := json.Unmarshal([]byte(s), &nodes); arrErr != nil {
			return nil, fmt.Errorf("decode plan: %w", err)
		}
		return draftsFrom(nodes), nil
	}

	for _, key := range planKeys {
		raw, ok := top[key]
		if !ok {
			continue
		}
		var nodes []rawNode
		if err := json.Unmarshal(raw, &nodes); err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
		return draftsFrom(nodes), nil
	}
	return nil, fmt.Errorf("decode plan: no subtask array")
}

func draftsFrom(nodes []rawNode) []draft {
	drafts := make([]draft, 0, len(nodes))
	for _, n := range nodes {
		deps := n.DependsOn
		if len(deps) == 0 {
			deps = n.DependsOnAlt
		}
		drafts = append(drafts, draft{
			id:          coerceID(n.ID),
			description: n.Description,
			role:        n.Role,
			objective:   n.Objective,
			prompt:      n.Prompt,
			augmented:   coerceBool(n.Augmented),
			deps:        coerceDeps(deps),
		})
	}
	return drafts
}

// repair reconstructs subtasks from text that is not valid JSON. Each "id"
// occurrence is one subtask, and occurrence i of every other field is paired
// with it. Without ids, taskDescription occurrences are counted instead.
func repair(s string) []draft {
	ids := idPattern.FindAllStringSubmatch(s, -1)
	fields := make(map[string][]string, len(stringFieldPatterns))
	for name, re := range stringFieldPatterns {
		for _, m := range re.FindAllStringSubmatch(s, -1) {
			fields[name] = append(fields[name], unquote(m[1]))
		}
	}
	augs := augPattern.FindAllStringSubmatch(s, -1)
	deps := depsPattern.FindAllStringSubmatch(s, -1)

	count := len(ids)
	if count == 0 {
		count = len(fields["taskDescription"])
	}

	at := func(name string, i int) string {
		if vals := fields[name]; i < len(vals) {
			return vals[i]
		}
		return ""
	}

	drafts := make([]draft, 0, count)
	for i := 0; i < count; i++ {
		d := draft{
			description: at("taskDescription", i),
			role:        at("agentRole", i),
			objective:   at("agentObjective", i),
			prompt:      at("agentTaskPrompt", i),
		}
		if i < len(ids) {
			if ids[i][2] != "" {
				d.id = coerceID(json.RawMessage(ids[i][2]))
			} else {
				d.id = strings.TrimSpace(unquote(ids[i][1]))
			}
		}
		if i < len(augs) {
			d.augmented = coerceBool(json.RawMessage(augs[i][1]))
		}
		if i < len(deps) {
			d.deps = repairDeps(deps[i][1])
		}
		drafts = append(drafts, d)
	}
	return drafts
}

// repairDeps coerces a dependsOn value captured by regex. Arrays that are
// not valid JSON have their quoted and numeric items salvaged.
func repairDeps(v string) []string {
	if deps := coerceDeps(json.RawMessage(v)); deps != nil || !strings.HasPrefix(v, "[") {
		return deps
	}
	var out []string
	for _, m := range quotedItem.FindAllStringSubmatch(v, -1) {
		if item := strings.TrimSpace(unquote(m[1])); item != "" {
			out = append(out, item)
		}
	}
	for _, m := range numberItem.FindAllString(quotedItem.ReplaceAllString(v, ""), -1) {
		if id := numericID(m); id != "" {
			out = append(out, id)
		}
	}
	return out
}

// postprocess assigns missing ids, fills defaults and de-duplicates ids.
// Explicit ids are reserved first so an id-less node never takes an id a
// later node declares. Only drafts with no field set at all are dropped.
func postprocess(drafts []draft) []*models.SubtaskNode {
	drafts = nonEmpty(drafts)

	explicit := make(map[string]bool, len(drafts))
	for _, d := range drafts {
		if d.id != "" {
			explicit[d.id] = true
		}
	}

	nodes := make([]*models.SubtaskNode, 0, len(drafts))
	used := make(map[string]bool, len(drafts))
	for i, d := range drafts {
		id := d.id
		if id == "" {
			id = autoID(i, explicit, used)
		} else if used[id] {
			id = uniqueID(id, explicit, used)
		}
		used[id] = true

		description := firstNonEmpty(d.description, d.objective, d.prompt, defaultDescription(id))
		nodes = append(nodes, &models.SubtaskNode{
			ID:                     id,
			Description:            description,
			AssignedRole:           firstNonEmpty(d.role, models.DefaultRole),
			Objective:              firstNonEmpty(d.objective, description),
			Instructions:           firstNonEmpty(d.prompt, description),
			UseAugmentedCapability: d.augmented,
			DependsOn:              d.deps,
		})
	}
	return nodes
}

// defaultDescription names a subtask the planner described only by id.
func defaultDescription(id string) string {
	return "Subtask " + id
}

func nonEmpty(drafts []draft) []draft {
	out := drafts[:0:0]
	for _, d := range drafts {
		if d.id == "" && d.description == "" && d.role == "" && d.objective == "" &&
			d.prompt == "" && !d.augmented && len(d.deps) == 0 {
			continue
		}
		out = append(out, d)
	}
	return out
}

// autoID returns task<i+1>, or the next free task<N> when that is declared
// explicitly elsewhere or already taken.
func autoID(i int, explicit, used map[string]bool) string {
	for n := i; ; n++ {
		id := models.AutoID(n)
		if !explicit[id] && !used[id] {
			return id
		}
	}
}

// uniqueID suffixes a repeated id with -2, -3, ... skipping ids that are
// declared elsewhere in the plan.
func uniqueID(id string, explicit, used map[string]bool) string {
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s-%d", id, n)
		if !used[candidate] && !explicit[candidate] {
			return candidate
		}
	}
}

// coerceDeps converts a dependsOn value to ids. A string is one id, or a
// comma separated list; numbers become task<N>; anything else is empty.
func coerceDeps(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}

	switch val := v.(type) {
	case string:
		return splitDeps(val)
	case float64:
		if id := numberID(val); id != "" {
			return []string{id}
		}
	case []any:
		var out []string
		for _, item := range val {
			switch it := item.(type) {
			case string:
				out = append(out, splitDeps(it)...)
			case float64:
				if id := numberID(it); id != "" {
					out = append(out, id)
				}
			}
		}
		return out
	}
	return nil
}

func splitDeps(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// coerceID converts an id value to a string. Numbers become task<N> so that
// numeric dependsOn entries resolve to them.
func coerceID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case float64:
		return numberID(val)
	}
	return ""
}

func numberID(f float64) string {
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return ""
	}
	return fmt.Sprintf("task%d", int64(f))
}

func numericID(s string) string {
	var n int64
	if _, err := fmt.Sscan(s, &n); err != nil {
		return ""
	}
	return fmt.Sprintf("task%d", n)
}

func coerceBool(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	switch val := v.(type) {
	case bool:
		return val
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "true", "yes", "1":
			return true
		}
	}
	return false
}

// unquote decodes JSON string escapes, returning s unchanged if it cannot.
func unquote(s string) string {
	var out string
	if err := json.Unmarshal([]byte(`"`+s+`"`), &out); err != nil {
		return s
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
