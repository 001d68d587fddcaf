package loader

import (
	"fmt"
	"strconv"

	"github.com/rakunlabs/pcgate/internal/lang"
	"github.com/rakunlabs/pcgate/internal/skill"
)

// parser walks the token stream produced by lexer and builds a generic
// document: map[string]any / []any / string / float64 / bool, the same
// shape encoding/json would produce, so the semantic pass below can treat
// a .0 document and a decoded JSON document identically.
type parser struct {
	lx   *lexer
	tok  token
	peek *token
}

func newParser(content string) (*parser, error) {
	p := &parser{lx: newLexer(content)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *parser) advance() error {
	if p.peek != nil {
		p.tok = *p.peek
		p.peek = nil
		return nil
	}
	t, err := p.lx.next()
	if err != nil {
		return err
	}
	p.tok = t
	return nil
}

func (p *parser) expect(k tokenKind, what string) error {
	if p.tok.kind != k {
		return fmt.Errorf("loader: expected %s at line %d, got %q", what, p.tok.line, p.tok.text)
	}
	return nil
}

// parseDocument parses the top-level `Graph { ... }` block into a plain
// map, ignoring the leading "Graph" keyword.
func (p *parser) parseDocument() (map[string]any, error) {
	if p.tok.kind == tokIdent && p.tok.text == "Graph" {
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	if err := p.expect(tokLBrace, "'{'"); err != nil {
		return nil, err
	}
	return p.parseObjectBody()
}

// parseObjectBody parses the comma-separated field list inside an already
// consumed '{' up to and including its closing '}'.
func (p *parser) parseObjectBody() (map[string]any, error) {
	if err := p.advance(); err != nil { // consume '{'
		return nil, err
	}
	fields := make(map[string]any)
	for p.tok.kind != tokRBrace {
		if p.tok.kind == tokEOF {
			return nil, fmt.Errorf("loader: unexpected end of input inside object")
		}
		if p.tok.kind != tokIdent && p.tok.kind != tokString {
			return nil, fmt.Errorf("loader: expected field name at line %d, got %q", p.tok.line, p.tok.text)
		}
		key := p.tok.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		if err := p.expect(tokColon, "':'"); err != nil {
			return nil, err
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		val, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		fields[key] = val
		if p.tok.kind == tokComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
	}
	if err := p.advance(); err != nil { // consume '}'
		return nil, err
	}
	return fields, nil
}

func (p *parser) parseArrayBody() ([]any, error) {
	if err := p.advance(); err != nil { // consume '['
		return nil, err
	}
	var items []any
	for p.tok.kind != tokRBracket {
		if p.tok.kind == tokEOF {
			return nil, fmt.Errorf("loader: unexpected end of input inside array")
		}
		val, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		items = append(items, val)
		if p.tok.kind == tokComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
	}
	if err := p.advance(); err != nil { // consume ']'
		return nil, err
	}
	return items, nil
}

func (p *parser) parseValue() (any, error) {
	switch p.tok.kind {
	case tokString:
		s := p.tok.text
		return s, p.advance()
	case tokNumber:
		n, err := strconv.ParseFloat(p.tok.text, 64)
		if err != nil {
			return nil, err
		}
		return n, p.advance()
	case tokLBracket:
		return p.parseArrayBody()
	case tokLBrace:
		return p.parseObjectBody()
	case tokIdent:
		switch p.tok.text {
		case "true":
			return true, p.advance()
		case "false":
			return false, p.advance()
		case "null":
			return nil, p.advance()
		default:
			// Bare word, e.g. `type: External` or `op: Identity`.
			s := p.tok.text
			return s, p.advance()
		}
	default:
		return nil, fmt.Errorf("loader: unexpected token %q at line %d", p.tok.text, p.tok.line)
	}
}

// ParseZeroFormat parses the .0 text format into a skill.Graph. Unlike the
// original line-oriented implementation, the whole document is tokenized
// and parsed into a generic value tree first, then converted through the
// same semantic builder the JSON path uses (buildGraph): one conversion
// path for both source formats instead of two.
func ParseZeroFormat(content string) (*skill.Graph, error) {
	p, err := newParser(content)
	if err != nil {
		return nil, err
	}
	doc, err := p.parseDocument()
	if err != nil {
		return nil, err
	}
	return buildGraph(doc)
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	}
	return 0
}

func asArray(v any) []any {
	a, _ := v.([]any)
	return a
}

func asObject(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asStringSlice(v any) []string {
	items := asArray(v)
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, asString(it))
	}
	return out
}

// buildGraph converts a generic document (from ParseZeroFormat or
// encoding/json.Unmarshal) into a skill.Graph. It accepts both the
// flat "id/type/uri/op/inputs/template/path" node shape the .0 format
// and a "params" object for any op that needs more than one parameter.
func buildGraph(doc map[string]any) (*skill.Graph, error) {
	version := 1
	if v, ok := doc["version"]; ok {
		switch t := v.(type) {
		case float64:
			version = int(t)
		case string:
			n, err := strconv.Atoi(t)
			if err == nil {
				version = n
			}
		}
	}

	g := &skill.Graph{
		Graph: lang.Graph{
			Name:        asString(doc["name"]),
			Version:     version,
			Description: asString(doc["description"]),
			Outputs:     asStringSlice(doc["outputs"]),
		},
		Permissions: asStringSlice(doc["permissions"]),
	}

	for _, raw := range asArray(doc["nodes"]) {
		node, err := buildNode(asObject(raw))
		if err != nil {
			return nil, err
		}
		g.Nodes = append(g.Nodes, node)
	}

	return g, nil
}

func buildNode(def map[string]any) (lang.Node, error) {
	id := asString(def["id"])
	nodeType := asString(def["type"])
	inputs := asStringSlice(def["inputs"])
	params := asObject(def["params"])

	switch nodeType {
	case "Input":
		// Legacy shape: a standalone formal parameter. Represented the
		// same way every other input is: an External reading input://name.
		return lang.Node{ID: id, Type: lang.NodeExternal, URI: "input://" + id}, nil

	case "External":
		uri := asString(def["uri"])
		return lang.Node{ID: id, Type: lang.NodeExternal, URI: uri, Inputs: inputs}, nil

	case "Constant":
		return lang.Node{ID: id, Type: lang.NodeConstant, Value: constantValue(def["value"])}, nil

	case "Operation":
		op := asString(def["op"])
		if params == nil {
			params = map[string]any{}
		}
		if tpl := asString(def["template"]); tpl != "" {
			params["template"] = tpl
		}
		if path := asString(def["path"]); path != "" {
			params["path"] = path
		}
		if len(params) == 0 {
			params = nil
		}
		return lang.Node{ID: id, Type: lang.NodeOperation, Op: op, Inputs: inputs, Params: params}, nil

	case "Lookup":
		table := map[string]string{}
		for k, v := range asObject(def["table"]) {
			table[k] = asString(v)
		}
		var def2 *string
		if d, ok := def["default"]; ok {
			s := asString(d)
			def2 = &s
		}
		return lang.Node{ID: id, Type: lang.NodeLookup, Inputs: inputs, Table: table, Default: def2}, nil

	case "Route":
		var conds []lang.RouteCondition
		for _, raw := range asArray(def["conditions"]) {
			c := asObject(raw)
			cond := lang.RouteCondition{
				Input:      asString(c["input"]),
				Target:     asString(c["target"]),
				Confidence: asFloat(c["confidence"]),
				Threshold:  asFloat(c["threshold"]),
			}
			if mv, ok := c["match_value"]; ok {
				s := asString(mv)
				cond.MatchValue = &s
			}
			conds = append(conds, cond)
		}
		return lang.Node{ID: id, Type: lang.NodeRoute, Inputs: inputs, Conditions: conds}, nil

	case "Permission":
		return lang.Node{
			ID:            id,
			Type:          lang.NodePermission,
			Inputs:        inputs,
			Action:        asString(def["action"]),
			MinConfidence: asFloat(def["min_confidence"]),
		}, nil

	default:
		return lang.Node{}, fmt.Errorf("loader: unknown node type %q for node %q", nodeType, id)
	}
}

func constantValue(v any) lang.Value {
	switch t := v.(type) {
	case nil:
		return lang.Null()
	case bool:
		return lang.Bool(t)
	case float64:
		return lang.Float(t)
	case string:
		return lang.String(t)
	default:
		return lang.Null()
	}
}
