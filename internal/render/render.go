// Package render prints a chain as plain text: one block per step with its
// endpoint, wiring, transformation, body template and response.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"

	"api-chain/internal/model"
)

const indent = "  "

// Chain writes the text view of every step in c to w.
func Chain(w io.Writer, c model.Chain) error {
	var b strings.Builder
	for i, step := range c {
		if i > 0 {
			b.WriteString("\n")
		}
		writeStep(&b, i, step)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeStep(b *strings.Builder, index int, step model.Step) {
	fmt.Fprintf(b, "Step %d: %s\n", index+1, step.Endpoint.Name)
	fmt.Fprintf(b, "%s%s %s\n", indent, step.Endpoint.Method, step.Endpoint.URL)

	if len(step.FieldMappings) > 0 {
		fmt.Fprintf(b, "%sSelected Fields:\n", indent)
		for _, f := range step.FieldMappings {
			fmt.Fprintf(b, "%s- %s: Step %d.%s\n", indent+indent, f.TargetField, f.SourceStep+1, f.SourceField)
		}
	}
	if step.Transformation != "" {
		label := "Transformation"
		if step.TransformEngine != "" {
			label += " (" + step.TransformEngine + ")"
		}
		fmt.Fprintf(b, "%s%s:\n", indent, label)
		writeIndented(b, step.Transformation)
	}
	if len(step.RequestBody) > 0 {
		fmt.Fprintf(b, "%sRequest Body:\n", indent)
		writeIndented(b, prettyJSON(step.RequestBody))
	}
	if step.HasResponse {
		fmt.Fprintf(b, "%sResponse: %s\n", indent, Summary(step.Response))
		switch step.Response.(type) {
		case map[string]any, []any:
			writeIndented(b, prettyJSON(step.Response))
		}
	}
	fmt.Fprintf(b, "%sFinal URL: %s\n", indent, displayURL(step.Endpoint.URL))
}

// Summary is the one-line form of a response value: scalars as text,
// arrays as Array(n), objects as Object.
func Summary(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case bool, float64:
		b, _ := json.Marshal(t)
		return string(b)
	case []any:
		return fmt.Sprintf("Array(%d)", len(t))
	case map[string]any:
		return "Object"
	default:
		return fmt.Sprint(t)
	}
}

func writeIndented(b *strings.Builder, text string) {
	for _, line := range strings.Split(text, "\n") {
		fmt.Fprintf(b, "%s%s\n", indent+indent, line)
	}
}

func prettyJSON(v any) string {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(out)
}

// displayURL normalizes an endpoint URL the way a browser serializes it:
// a bare host gains a trailing slash.
func displayURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() {
		return raw
	}
	if u.Path == "" && u.Host != "" {
		u.Path = "/"
	}
	return u.String()
}
