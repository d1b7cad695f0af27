package genlog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/papercomputeco/proofpilot/pkg/llm"
)

const (
	timestampLayout = "2006-01-02 15:04:05 -0700"
	subItemDelim    = "\t> "
	undefinedValue  = "undefined"
	paramsIndent    = "  "

	contextTheoremsHeader = "- context theorems:"
	chatHeader            = "- chat sent:"
	generatedProofsHeader = "- generated proofs:"
	paramsHeader          = "- model's params:"
)

var (
	introLinePattern       = regexp.MustCompile("^\\[([^\\]]*)\\] `(.*)` model: (SUCCESS|FAILURE)$")
	loggedErrorPattern     = regexp.MustCompile(`^! error occurred: \[([^\]]*)\] "(.*)"$`)
	choicesPattern         = regexp.MustCompile(`^- requested choices: (-?\d+)$`)
	requestTokensPattern   = regexp.MustCompile(`^- request's tokens: (-?\d+|undefined)$`)
	chatMessagePattern     = regexp.MustCompile("^\t> \\[(system|user|assistant)\\]: `(.*)`$")
	quotedSubItemPattern   = regexp.MustCompile("^\t> `(.*)`$")
	newlineEscaper         = strings.NewReplacer(`\`, `\\`, "\n", `\n`, "\r", `\r`)
	timestampLocationLocal = time.Local
)

// ParsingError reports a log record that does not match the expected format.
// Raw holds the text that was left unconsumed when parsing stopped.
type ParsingError struct {
	Reason string
	Raw    string
}

func (e *ParsingError) Error() string {
	return fmt.Sprintf("failed to parse log record: %s\n>> `%s`", e.Reason, e.Raw)
}

// Serialize renders r in the line-oriented log format. The output always ends
// with a newline and is parsed back by Deserialize byte for byte.
func Serialize(r *Record) (string, error) {
	var sb strings.Builder

	ts := r.Timestamp.In(timestampLocationLocal).Format(timestampLayout)
	fmt.Fprintf(&sb, "[%s] `%s` model: %s\n", ts, r.ModelID, r.Status)

	if r.Error != nil {
		fmt.Fprintf(&sb, "! error occurred: [%s] \"%s\"\n", r.Error.Kind, escapeNewlines(r.Error.Message))
	}

	fmt.Fprintf(&sb, "- requested choices: %d\n", r.Choices)
	if r.EstimatedTokens != nil {
		fmt.Fprintf(&sb, "- request's tokens: %d\n", *r.EstimatedTokens)
	} else {
		fmt.Fprintf(&sb, "- request's tokens: %s\n", undefinedValue)
	}

	if r.Debug == nil {
		return sb.String(), nil
	}

	d := r.Debug
	if d.ContextTheorems != nil {
		sb.WriteString(contextTheoremsHeader + "\n")
		for _, name := range d.ContextTheorems {
			fmt.Fprintf(&sb, "%s`%s`\n", subItemDelim, escapeNewlines(name))
		}
	}

	if d.Chat != nil {
		sb.WriteString(chatHeader + "\n")
		for _, msg := range d.Chat {
			fmt.Fprintf(&sb, "%s[%s]: `%s`\n", subItemDelim, msg.Role, escapeNewlines(msg.Content))
		}
	}

	if d.GeneratedProofs != nil {
		sb.WriteString(generatedProofsHeader + "\n")
		for _, proof := range d.GeneratedProofs {
			fmt.Fprintf(&sb, "%s`%s`\n", subItemDelim, escapeNewlines(proof))
		}
	}

	params, err := marshalParams(d.Params)
	if err != nil {
		return "", fmt.Errorf("serializing model params: %w", err)
	}
	sb.WriteString(paramsHeader + "\n")
	sb.Write(params)
	sb.WriteString("\n")

	return sb.String(), nil
}

// Deserialize parses exactly one record from the start of raw and returns it
// together with the unconsumed rest of the text.
func Deserialize(raw string) (*Record, string, error) {
	groups, rest, err := parseLine(introLinePattern, raw, "intro line")
	if err != nil {
		return nil, raw, err
	}

	ts, err := time.ParseInLocation(timestampLayout, groups[0], timestampLocationLocal)
	if err != nil {
		return nil, raw, &ParsingError{Reason: "invalid timestamp", Raw: groups[0]}
	}

	r := &Record{
		Timestamp: NormalizeTimestamp(ts),
		ModelID:   groups[1],
		Status:    Status(groups[2]),
	}

	if strings.HasPrefix(rest, "!") {
		var errGroups []string
		errGroups, rest, err = parseLine(loggedErrorPattern, rest, "logged error")
		if err != nil {
			return nil, raw, err
		}
		r.Error = &LoggedError{Kind: errGroups[0], Message: unescapeNewlines(errGroups[1])}
	}

	var choices []string
	choices, rest, err = parseLine(choicesPattern, rest, "requested choices")
	if err != nil {
		return nil, raw, err
	}
	if r.Choices, err = parseInt(choices[0], "requested choices"); err != nil {
		return nil, raw, err
	}

	var tokens []string
	tokens, rest, err = parseLine(requestTokensPattern, rest, "request's tokens")
	if err != nil {
		return nil, raw, err
	}
	if tokens[0] != undefinedValue {
		n, err := parseInt(tokens[0], "request's tokens")
		if err != nil {
			return nil, raw, err
		}
		r.EstimatedTokens = &n
	}

	if !startsDebugBlock(rest) {
		return r, rest, nil
	}

	d := &DebugData{}
	if d.ContextTheorems, rest, err = parseQuotedItems(contextTheoremsHeader, rest, "context theorem"); err != nil {
		return nil, raw, err
	}
	if d.Chat, rest, err = parseChat(rest); err != nil {
		return nil, raw, err
	}
	if d.GeneratedProofs, rest, err = parseQuotedItems(generatedProofsHeader, rest, "generated proof"); err != nil {
		return nil, raw, err
	}
	if d.Params, rest, err = parseParams(rest); err != nil {
		return nil, raw, err
	}
	r.Debug = d

	return r, rest, nil
}

// DeserializeAll parses raw as a sequence of records. Any malformed record
// fails the whole parse.
func DeserializeAll(raw string) ([]Record, error) {
	var records []Record
	rest := raw
	for rest != "" {
		r, next, err := Deserialize(rest)
		if err != nil {
			return nil, err
		}
		records = append(records, *r)
		rest = next
	}
	return records, nil
}

func startsDebugBlock(text string) bool {
	for _, header := range []string{contextTheoremsHeader, chatHeader, generatedProofsHeader, paramsHeader} {
		if strings.HasPrefix(text, header+"\n") {
			return true
		}
	}
	return false
}

func parseQuotedItems(header, text, itemName string) ([]string, string, error) {
	rest, ok := consumeHeader(header, text)
	if !ok {
		return nil, text, nil
	}

	items := []string{}
	for strings.HasPrefix(rest, subItemDelim) {
		groups, next, err := parseLine(quotedSubItemPattern, rest, itemName)
		if err != nil {
			return nil, text, err
		}
		items = append(items, unescapeNewlines(groups[0]))
		rest = next
	}
	return items, rest, nil
}

func parseChat(text string) (llm.ChatHistory, string, error) {
	rest, ok := consumeHeader(chatHeader, text)
	if !ok {
		return nil, text, nil
	}

	chat := llm.ChatHistory{}
	for strings.HasPrefix(rest, subItemDelim) {
		groups, next, err := parseLine(chatMessagePattern, rest, "chat history's message")
		if err != nil {
			return nil, text, err
		}
		chat = append(chat, llm.ChatMessage{
			Role:    llm.ChatRole(groups[0]),
			Content: unescapeNewlines(groups[1]),
		})
		rest = next
	}
	return chat, rest, nil
}

func parseParams(text string) (map[string]any, string, error) {
	rest, ok := consumeHeader(paramsHeader, text)
	if !ok {
		return nil, text, &ParsingError{Reason: "invalid model's params header", Raw: text}
	}

	dec := json.NewDecoder(strings.NewReader(rest))
	dec.UseNumber()

	var params map[string]any
	if err := dec.Decode(&params); err != nil {
		return nil, text, &ParsingError{Reason: "invalid model's params: " + err.Error(), Raw: rest}
	}
	if params == nil {
		return nil, text, &ParsingError{Reason: "model's params must be an object", Raw: rest}
	}

	// The block must be exactly what Serialize would have produced for these
	// params, so its length locates the end of the block.
	canonical, err := marshalParams(params)
	if err != nil {
		return nil, text, &ParsingError{Reason: "invalid model's params: " + err.Error(), Raw: rest}
	}
	if !strings.HasPrefix(rest, string(canonical)) {
		return nil, text, &ParsingError{Reason: "model's params are not in canonical form", Raw: rest}
	}

	rest = rest[len(canonical):]
	if !strings.HasPrefix(rest, "\n") {
		return nil, text, &ParsingError{Reason: "invalid model's params suffix", Raw: rest}
	}
	return params, rest[1:], nil
}

func marshalParams(params map[string]any) ([]byte, error) {
	if params == nil {
		params = map[string]any{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", paramsIndent)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(params); err != nil {
		return nil, err
	}
	// Encode terminates the value with a newline the format adds itself.
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func consumeHeader(header, text string) (string, bool) {
	if !strings.HasPrefix(text, header+"\n") {
		return text, false
	}
	return text[len(header)+1:], true
}

// parseLine matches the first line of text against pattern and returns the
// capture groups and the text after that line.
func parseLine(pattern *regexp.Regexp, text, valueName string) ([]string, string, error) {
	idx := strings.IndexByte(text, '\n')
	if idx == -1 {
		return nil, text, &ParsingError{Reason: "line expected", Raw: text}
	}

	line := text[:idx]
	match := pattern.FindStringSubmatch(line)
	if match == nil {
		return nil, text, &ParsingError{Reason: "invalid " + valueName, Raw: text}
	}
	return match[1:], text[idx+1:], nil
}

func parseInt(raw, valueName string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &ParsingError{Reason: "invalid " + valueName, Raw: raw}
	}
	return n, nil
}

func escapeNewlines(text string) string {
	return newlineEscaper.Replace(text)
}

func unescapeNewlines(text string) string {
	if !strings.Contains(text, `\`) {
		return text
	}

	var sb strings.Builder
	sb.Grow(len(text))
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c != '\\' || i+1 == len(text) {
			sb.WriteByte(c)
			continue
		}
		i++
		switch text[i] {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		default:
			sb.WriteByte(text[i])
		}
	}
	return sb.String()
}
