// Package plan converts validated rows into API operation descriptors.
package plan

import (
	"fmt"
	"net/http"

	"github.com/ipamtools/bamsync/model"
)

// Context carries the parent identifiers resolved once per apply pass.
type Context struct {
	NetworkID int64
	ViewID    int64
}

// SchemaMappingError means a row kind has no endpoint mapping. This is
// schema drift inside the program, not bad user input, and is kept
// distinct from parse-time validation errors.
type SchemaMappingError struct {
	ObjectType string
}

func (e *SchemaMappingError) Error() string {
	return fmt.Sprintf("no operation mapping for object type %q", e.ObjectType)
}

// BuildAll builds one operation per row, preserving row order.
func BuildAll(rows []model.Row, ctx Context) ([]model.Operation, error) {
	ops := make([]model.Operation, 0, len(rows))
	for _, row := range rows {
		op, err := Build(row, ctx)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, nil
}

// Build derives a single operation from a row. The row is read-only;
// every call returns a fresh operation value.
func Build(row model.Row, ctx Context) (model.Operation, error) {
	base := row.Base()
	op := model.Operation{
		ObjectType: base.ObjectType,
		Action:     base.Action,
		Line:       base.Line,
		Name:       base.Name,
	}

	switch r := row.(type) {
	case model.DHCPRoleRow:
		route(&op, base, "networks/%d/deploymentRoles", ctx.NetworkID, "deploymentRoles")
		if base.Action != model.ActionDelete {
			op.Payload = rolePayload("DHCPDeploymentRole", base, r.RoleType, r.Interfaces, nil)
		}
	case model.DNSRoleRow:
		route(&op, base, "views/%d/deploymentRoles", ctx.ViewID, "deploymentRoles")
		if base.Action != model.ActionDelete {
			op.Payload = rolePayload("DNSDeploymentRole", base, r.RoleType, r.Interfaces, r.TTL)
		}
	case model.DHCPOptionRow:
		route(&op, base, "networks/%d/deploymentOptions", ctx.NetworkID, "deploymentOptions")
		if base.Action != model.ActionDelete {
			op.Payload = map[string]any{
				"type":  "DHCPv4ClientOption",
				"name":  base.Name,
				"code":  r.Code,
				"value": model.CoerceValue(r.Value),
			}
			if base.Action == model.ActionUpdate {
				op.Payload["id"] = base.ID
			}
		}
	default:
		return op, &SchemaMappingError{ObjectType: base.ObjectType}
	}
	return op, nil
}

// Requires reports which parent identifiers the batch needs. The caller
// resolves them before building operations for a live apply.
func Requires(rows []model.Row) (network, view bool) {
	for _, row := range rows {
		base := row.Base()
		if base.Action != model.ActionCreate {
			continue
		}
		switch base.ObjectType {
		case model.TypeDHCPRole, model.TypeDHCPOption:
			network = true
		case model.TypeDNSRole:
			view = true
		}
	}
	return network, view
}

// route fills in method and path. Creates nest under the resolved parent
// collection, updates and deletes address the resource by id.
func route(op *model.Operation, base model.RowBase, parentTemplate string, parentID int64, collection string) {
	switch base.Action {
	case model.ActionCreate:
		op.Method = http.MethodPost
		op.Path = fmt.Sprintf(parentTemplate, parentID)
	case model.ActionUpdate:
		op.Method = http.MethodPut
		op.Path = fmt.Sprintf("%s/%d", collection, base.ID)
	case model.ActionDelete:
		op.Method = http.MethodDelete
		op.Path = fmt.Sprintf("%s/%d", collection, base.ID)
	}
}

func rolePayload(apiType string, base model.RowBase, roleType string, ifaces []model.Interface, ttl *int64) map[string]any {
	payload := map[string]any{
		"type":     apiType,
		"name":     base.Name,
		"roleType": roleType,
	}
	if len(ifaces) > 0 {
		list := make([]map[string]any, len(ifaces))
		for i, iface := range ifaces {
			list[i] = map[string]any{
				"type":   "interface",
				"name":   iface.Name,
				"server": iface.Server,
			}
		}
		payload["interfaces"] = list
	}
	if ttl != nil {
		payload["nsRecordTtl"] = *ttl
	}
	if base.Action == model.ActionUpdate {
		payload["id"] = base.ID
	}
	return payload
}
