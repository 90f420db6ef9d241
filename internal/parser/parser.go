// Package parser turns CSV files into validated row models. It is only
// reachable through the importer facade; nothing else constructs rows.
package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/ipamtools/bamsync/model"
)

// ValidationError reports a malformed row with its position in the file.
type ValidationError struct {
	Line    int
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("line %d: field %q: %s", e.Line, e.Field, e.Message)
}

// Parse reads a header-driven CSV file into validated rows, preserving
// file order. Columns are matched by name, so reordering is safe. A
// record whose first field is "object_type" switches the active header,
// which allows mixed object kinds in one file.
//
// In strict mode the first invalid row aborts the parse. In lenient mode
// invalid rows are dropped and reported as warnings; valid rows are
// still returned.
func Parse(path string, strict bool) ([]model.Row, []model.Warning, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()
	return parse(f, strict)
}

func parse(r io.Reader, strict bool) ([]model.Row, []model.Warning, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var (
		rows     []model.Row
		warnings []model.Warning
		header   []string
	)

	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, warnings, fmt.Errorf("read csv: %w", err)
		}
		line, _ := cr.FieldPos(0)

		if empty(record) {
			continue
		}

		first := strings.TrimSpace(strings.TrimPrefix(record[0], "\ufeff"))
		if header == nil || first == "object_type" {
			if header == nil && first != "object_type" && !isImplicitOptionHeader(record) {
				return nil, warnings, &ValidationError{Line: line, Field: "object_type", Message: "header must include object_type"}
			}
			header = make([]string, len(record))
			for i, h := range record {
				header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
			}
			slog.Debug("csv header", "columns", header, "line", line)
			continue
		}

		fields := recordMap(header, record)
		row, verr := buildRow(fields, line)
		if verr != nil {
			if strict {
				return nil, warnings, verr
			}
			slog.Warn("skipping invalid row", "line", verr.Line, "field", verr.Field, "error", verr.Message)
			warnings = append(warnings, model.Warning{Line: verr.Line, Field: verr.Field, Message: verr.Message})
			continue
		}
		rows = append(rows, row)
	}
	return rows, warnings, nil
}

// isImplicitOptionHeader accepts the short DHCP option format whose
// header omits object_type (name,code,value).
func isImplicitOptionHeader(record []string) bool {
	var hasCode, hasValue bool
	for _, h := range record {
		switch strings.TrimSpace(h) {
		case "code":
			hasCode = true
		case "value":
			hasValue = true
		}
	}
	return hasCode && hasValue
}

func empty(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// recordMap maps header names to trimmed values. Short records pad with
// empty strings, extra cells are ignored.
func recordMap(header, record []string) map[string]string {
	m := make(map[string]string, len(header))
	for i, name := range header {
		if name == "" {
			continue
		}
		if i < len(record) {
			m[name] = strings.TrimSpace(record[i])
		} else {
			m[name] = ""
		}
	}
	return m
}

func buildRow(fields map[string]string, line int) (model.Row, *ValidationError) {
	objectType, ok := fields["object_type"]
	if !ok {
		// Implicit DHCP option schema, header had no object_type column.
		objectType = model.TypeDHCPOption
	}

	base, verr := buildBase(objectType, fields, line)
	if verr != nil {
		return nil, verr
	}

	switch objectType {
	case model.TypeDHCPRole:
		return buildDHCPRole(base, fields)
	case model.TypeDNSRole:
		return buildDNSRole(base, fields)
	case model.TypeDHCPOption:
		return buildDHCPOption(base, fields)
	default:
		return nil, &ValidationError{Line: line, Field: "object_type", Message: fmt.Sprintf("unknown object type %q", objectType)}
	}
}

func buildBase(objectType string, fields map[string]string, line int) (model.RowBase, *ValidationError) {
	base := model.RowBase{ObjectType: objectType, Line: line}

	name := fields["name"]
	if name == "" {
		return base, &ValidationError{Line: line, Field: "name", Message: "required field is empty"}
	}
	base.Name = name

	switch action := fields["action"]; action {
	case "", string(model.ActionCreate):
		base.Action = model.ActionCreate
	case string(model.ActionUpdate), string(model.ActionDelete):
		base.Action = model.Action(action)
	default:
		return base, &ValidationError{Line: line, Field: "action", Message: fmt.Sprintf("invalid action %q, expected create, update or delete", action)}
	}

	if raw := fields["id"]; raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return base, &ValidationError{Line: line, Field: "id", Message: fmt.Sprintf("invalid resource id %q", raw)}
		}
		base.ID = id
	}
	if base.Action != model.ActionCreate && base.ID == 0 {
		return base, &ValidationError{Line: line, Field: "id", Message: fmt.Sprintf("id is required for action %s", base.Action)}
	}
	return base, nil
}

func buildDHCPRole(base model.RowBase, fields map[string]string) (model.Row, *ValidationError) {
	rt, verr := roleType(base, fields, model.DHCPRoleTypes)
	if verr != nil {
		return nil, verr
	}
	ifaces, verr := interfaces(base, fields)
	if verr != nil {
		return nil, verr
	}
	return model.DHCPRoleRow{RowBase: base, RoleType: rt, Interfaces: ifaces}, nil
}

func buildDNSRole(base model.RowBase, fields map[string]string) (model.Row, *ValidationError) {
	rt, verr := roleType(base, fields, model.DNSRoleTypes)
	if verr != nil {
		return nil, verr
	}
	ifaces, verr := interfaces(base, fields)
	if verr != nil {
		return nil, verr
	}

	row := model.DNSRoleRow{RowBase: base, RoleType: rt, Interfaces: ifaces}
	if raw := fields["ns_record_ttl"]; raw != "" {
		ttl, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || ttl < 0 || ttl > model.MaxTTL {
			return nil, &ValidationError{
				Line:    base.Line,
				Field:   "ns_record_ttl",
				Message: fmt.Sprintf("value %q out of range [0, %d]", raw, int64(model.MaxTTL)),
			}
		}
		row.TTL = &ttl
	}
	return row, nil
}

func buildDHCPOption(base model.RowBase, fields map[string]string) (model.Row, *ValidationError) {
	raw := fields["code"]
	if raw == "" {
		return nil, &ValidationError{Line: base.Line, Field: "code", Message: "required field is empty"}
	}
	code, err := strconv.Atoi(raw)
	if err != nil || code < 1 || code > 254 {
		return nil, &ValidationError{Line: base.Line, Field: "code", Message: fmt.Sprintf("option code %q must be between 1 and 254", raw)}
	}

	value, ok := fields["value"]
	if !ok || value == "" {
		return nil, &ValidationError{Line: base.Line, Field: "value", Message: "required field is empty"}
	}
	return model.DHCPOptionRow{RowBase: base, Code: code, Value: value}, nil
}

func roleType(base model.RowBase, fields map[string]string, allowed map[string]bool) (string, *ValidationError) {
	raw := fields["role_type"]
	if raw == "" {
		if base.Action == model.ActionDelete {
			return "", nil
		}
		return "", &ValidationError{Line: base.Line, Field: "role_type", Message: "required field is empty"}
	}
	rt := strings.ToUpper(raw)
	if !allowed[rt] {
		return "", &ValidationError{Line: base.Line, Field: "role_type", Message: fmt.Sprintf("invalid role type %q", raw)}
	}
	return rt, nil
}

func interfaces(base model.RowBase, fields map[string]string) ([]model.Interface, *ValidationError) {
	ifaces, err := model.ParseInterfaces(fields["interfaces"])
	if err != nil {
		return nil, &ValidationError{Line: base.Line, Field: "interfaces", Message: err.Error()}
	}
	return ifaces, nil
}
