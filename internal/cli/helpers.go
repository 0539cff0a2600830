package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lherron/homeplan/internal/bulk"
	"github.com/lherron/homeplan/internal/domain"
	"github.com/lherron/homeplan/internal/id"
	"github.com/lherron/homeplan/internal/planner"
	"github.com/lherron/homeplan/internal/render"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// parseKind accepts singular, plural and short kind names.
func parseKind(s string) (domain.Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "room", "rooms":
		return domain.KindRoom, nil
	case "measurement", "measurements", "meas":
		return domain.KindMeasurement, nil
	case "item", "items", "itm":
		return domain.KindItem, nil
	case "option", "options", "opt":
		return domain.KindOption, nil
	case "store", "stores":
		return domain.KindStore, nil
	default:
		return "", fmt.Errorf("unknown record kind %q (want room, measurement, item, option or store)", s)
	}
}

// resolveRecord finds the kind of a record id. Generated ids carry their
// kind; ids that arrived through an import are looked up.
func resolveRecord(p *planner.Planner, ref string) (domain.Kind, string, error) {
	ref = strings.TrimSpace(ref)
	if kind, err := id.Parse(ref); err == nil {
		return kind, ref, nil
	}
	snap, err := p.Snapshot()
	if err != nil {
		return "", "", err
	}
	for _, kind := range domain.Kinds {
		for _, e := range snap.Entities(kind) {
			if e.Meta().ID == ref {
				return kind, ref, nil
			}
		}
	}
	return "", "", fmt.Errorf("record %s: %w", ref, domain.ErrNotFound)
}

// resolveRoom accepts a room id or a room name.
func resolveRoom(p *planner.Planner, ref string) (string, error) {
	st := p.Store()
	if r, err := st.Rooms.GetLive(ref); err == nil {
		return r.ID, nil
	}
	r, err := st.Rooms.FindByName(ref)
	if err != nil {
		return "", err
	}
	return r.ID, nil
}

// bookkeeping fields are managed by the planner and cannot be assigned.
var bookkeeping = map[string]bool{
	"id":               true,
	"remoteId":         true,
	"syncState":        true,
	"createdAt":        true,
	"updatedAt":        true,
	"provenance":       true,
	"selected":         true,
	"selectedOptionId": true,
	"sourceItemId":     true,
}

// assignment is one key=value argument.
type assignment struct {
	Key   string
	Value string
}

func parseAssignments(args []string) ([]assignment, error) {
	out := make([]assignment, 0, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid assignment %q (want key=value)", arg)
		}
		if bookkeeping[key] {
			return nil, fmt.Errorf("field %q is managed automatically", key)
		}
		out = append(out, assignment{Key: key, Value: value})
	}
	return out, nil
}

// apply sets each assignment on dst through its JSON field names. A value
// is taken as a JSON literal when it parses as one and the field accepts
// it, else as a plain string. An empty value or "null" unsets the field.
func apply(dst any, as []assignment) error {
	for _, a := range as {
		if err := applyOne(dst, a.Key, a.Value); err != nil {
			return err
		}
	}
	return nil
}

func applyOne(dst any, key, value string) error {
	quoted, _ := json.Marshal(value)
	candidates := [][]byte{quoted}
	trimmed := strings.TrimSpace(value)
	switch {
	case trimmed == "":
		candidates = [][]byte{[]byte("null")}
	case json.Valid([]byte(trimmed)):
		candidates = [][]byte{[]byte(trimmed), quoted}
	}

	k, _ := json.Marshal(key)
	var lastErr error
	for _, raw := range candidates {
		doc := fmt.Sprintf("{%s:%s}", k, raw)
		dec := json.NewDecoder(bytes.NewReader([]byte(doc)))
		dec.DisallowUnknownFields()
		err := dec.Decode(dst)
		if err == nil {
			return nil
		}
		if strings.Contains(err.Error(), "unknown field") {
			return fmt.Errorf("unknown field %q", key)
		}
		lastErr = err
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(lastErr, &typeErr) {
		return fmt.Errorf("field %q: expected %s, got %q", key, typeErr.Type, value)
	}
	return fmt.Errorf("field %q: %w", key, lastErr)
}

// lengthAssignments rewrites value=<n> into valueIn=<inches> using unit.
func lengthAssignments(as []assignment, unit domain.Unit) ([]assignment, error) {
	out := make([]assignment, 0, len(as))
	for _, a := range as {
		if a.Key != "value" {
			out = append(out, a)
			continue
		}
		if strings.TrimSpace(a.Value) == "" {
			out = append(out, assignment{Key: "valueIn"})
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(a.Value), 64)
		if err != nil {
			return nil, fmt.Errorf("value: %w", err)
		}
		in := domain.ToInches(v, unit)
		out = append(out, assignment{Key: "valueIn", Value: strconv.FormatFloat(in, 'f', -1, 64)})
	}
	return out, nil
}

func money(v *float64) string {
	if v == nil {
		return ""
	}
	return decimal.NewFromFloat(*v).StringFixed(2)
}

func intPtr(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func millisTime(ms int64) string {
	if ms == 0 {
		return ""
	}
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

func mark(b bool) string {
	if b {
		return "*"
	}
	return ""
}

// jsonOut writes v as indented JSON for commands that run without an App.
func jsonOut(cmd *cobra.Command, v any) error {
	return render.NewRenderer(cmd.OutOrStdout(), render.Options{Format: render.FormatJSON}).RenderJSON(v)
}

// eachRecord runs step for every argument. Failures are reported on stderr;
// a summary follows when more than one record was named.
func eachRecord(cmd *cobra.Command, args []string, continueOnError bool, step func(arg string) error) error {
	op := &bulk.Operation{ContinueOnError: continueOnError}
	if len(args) > 1 {
		op.Log = cmd.ErrOrStderr()
	}
	res := op.Execute(cmd.Context(), args, step)
	if len(args) > 1 && res.Failed > 0 {
		res.PrintSummary(cmd.ErrOrStderr())
	}
	return res.Err()
}
