package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Object types accepted in the object_type CSV column.
const (
	TypeDHCPRole   = "dhcp_deployment_role"
	TypeDNSRole    = "dns_deployment_role"
	TypeDHCPOption = "dhcpv4_client_deployment_option"
)

type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// MaxTTL is the largest ns_record_ttl the remote API accepts (32-bit signed).
const MaxTTL = 2147483647

var DHCPRoleTypes = map[string]bool{
	"PRIMARY":   true,
	"SECONDARY": true,
	"ACTIVE":    true,
	"PASSIVE":   true,
	"NONE":      true,
}

var DNSRoleTypes = map[string]bool{
	"PRIMARY":              true,
	"MULTI_PRIMARY":        true,
	"HIDDEN_PRIMARY":       true,
	"HIDDEN_MULTI_PRIMARY": true,
	"SECONDARY":            true,
	"STEALTH_SECONDARY":    true,
	"FORWARDING":           true,
	"STUB":                 true,
	"RECURSIVE":            true,
	"NONE":                 true,
}

// Interface is one server:interface pair from the pipe-delimited
// interfaces column.
type Interface struct {
	Server string
	Name   string
}

func (i Interface) String() string {
	return i.Server + ":" + i.Name
}

// ParseInterfaces splits a pipe-delimited interfaces value into pairs.
// Every non-empty segment must contain a colon separator.
func ParseInterfaces(raw string) ([]Interface, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var out []Interface
	for _, seg := range strings.Split(raw, "|") {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		server, name, ok := strings.Cut(seg, ":")
		if !ok || server == "" || name == "" {
			return nil, fmt.Errorf("invalid interface segment %q, expected server:interface", seg)
		}
		out = append(out, Interface{Server: server, Name: name})
	}
	return out, nil
}

// JoinInterfaces is the inverse of ParseInterfaces.
func JoinInterfaces(ifaces []Interface) string {
	parts := make([]string, len(ifaces))
	for i, iface := range ifaces {
		parts[i] = iface.String()
	}
	return strings.Join(parts, "|")
}

// RowBase carries the fields common to every object kind.
type RowBase struct {
	ObjectType string
	Action     Action
	Name       string
	ID         int64 // remote resource id, required for update/delete
	Line       int   // 1-based line in the source file
}

func (b RowBase) Base() RowBase { return b }

// Row is one validated CSV record. Rows are only produced by the parser;
// a Row value always satisfies its schema's constraints.
type Row interface {
	Base() RowBase
	// Header and Record give the CSV serialization of the row, column
	// names matching the parser's schema for the object type.
	Header() []string
	Record() []string
}

// DHCPRoleRow assigns DHCP service responsibility to server interfaces
// within a network.
type DHCPRoleRow struct {
	RowBase
	RoleType   string
	Interfaces []Interface
}

func (r DHCPRoleRow) Header() []string {
	return []string{"object_type", "action", "name", "id", "role_type", "interfaces"}
}

func (r DHCPRoleRow) Record() []string {
	return []string{r.ObjectType, string(r.Action), r.Name, formatID(r.ID), r.RoleType, JoinInterfaces(r.Interfaces)}
}

// DNSRoleRow assigns DNS service responsibility to server interfaces
// within a view.
type DNSRoleRow struct {
	RowBase
	RoleType   string
	Interfaces []Interface
	TTL        *int64 // ns_record_ttl, nil when the column is empty
}

func (r DNSRoleRow) Header() []string {
	return []string{"object_type", "action", "name", "id", "role_type", "interfaces", "ns_record_ttl"}
}

func (r DNSRoleRow) Record() []string {
	ttl := ""
	if r.TTL != nil {
		ttl = strconv.FormatInt(*r.TTL, 10)
	}
	return []string{r.ObjectType, string(r.Action), r.Name, formatID(r.ID), r.RoleType, JoinInterfaces(r.Interfaces), ttl}
}

// DHCPOptionRow is a DHCPv4 client deployment option on a network. Value
// keeps the raw CSV text; CoerceValue produces the payload form.
type DHCPOptionRow struct {
	RowBase
	Code  int
	Value string
}

func (r DHCPOptionRow) Header() []string {
	return []string{"object_type", "action", "name", "id", "code", "value"}
}

func (r DHCPOptionRow) Record() []string {
	return []string{r.ObjectType, string(r.Action), r.Name, formatID(r.ID), strconv.Itoa(r.Code), r.Value}
}

func formatID(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}
