package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"
)

// ProxyKind identifies how a proxy was created and how it is upgraded
type ProxyKind string

const (
	ProxyKindTransparent ProxyKind = "transparent"
	ProxyKindFactory     ProxyKind = "factory"
)

// Valid reports whether k is a supported proxy kind
func (k ProxyKind) Valid() bool {
	return k == ProxyKindTransparent || k == ProxyKindFactory
}

// Registry record field names. Anything else in a record is kept in Extra.
const (
	fieldAddress        = "address"
	fieldImplementation = "implementation"
	fieldKind           = "kind"
	fieldAdmin          = "admin"
	fieldLastDeployedAt = "lastDeployedAt"
)

var knownFields = []string{fieldAddress, fieldImplementation, fieldKind, fieldAdmin, fieldLastDeployedAt}

// ProxyRecord is one entry of the proxy registry. The contract name is the
// registry key and is not repeated inside the record.
type ProxyRecord struct {
	ContractName   string
	Address        common.Address
	Implementation common.Address
	Kind           ProxyKind
	Admin          common.Address
	LastDeployedAt time.Time

	// Extra holds fields written by other tools, preserved on rewrite
	Extra map[string]json.RawMessage
}

// Clone returns a deep copy of the record
func (r *ProxyRecord) Clone() *ProxyRecord {
	if r == nil {
		return nil
	}
	c := *r
	if r.Extra != nil {
		c.Extra = make(map[string]json.RawMessage, len(r.Extra))
		for k, v := range r.Extra {
			c.Extra[k] = slices.Clone(v)
		}
	}
	return &c
}

func (r ProxyRecord) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Extra)+len(knownFields))
	for k, v := range r.Extra {
		out[k] = v
	}
	out[fieldAddress] = r.Address.Hex()
	if r.Implementation != (common.Address{}) {
		out[fieldImplementation] = r.Implementation.Hex()
	}
	if r.Kind != "" {
		out[fieldKind] = r.Kind
	}
	if r.Admin != (common.Address{}) {
		out[fieldAdmin] = r.Admin.Hex()
	}
	if !r.LastDeployedAt.IsZero() {
		out[fieldLastDeployedAt] = r.LastDeployedAt.UTC().Format(time.RFC3339Nano)
	}
	return json.Marshal(out)
}

func (r *ProxyRecord) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if fields == nil {
		return errors.New("record is null")
	}

	rawAddress, ok := fields[fieldAddress]
	if !ok {
		return errors.New("missing address")
	}
	address, err := decodeAddress(fieldAddress, rawAddress)
	if err != nil {
		return err
	}
	rec := ProxyRecord{Address: address}

	if raw, ok := fields[fieldImplementation]; ok {
		if rec.Implementation, err = decodeAddress(fieldImplementation, raw); err != nil {
			return err
		}
	}
	if raw, ok := fields[fieldAdmin]; ok {
		if rec.Admin, err = decodeAddress(fieldAdmin, raw); err != nil {
			return err
		}
	}
	if raw, ok := fields[fieldKind]; ok {
		var kind string
		if err := json.Unmarshal(raw, &kind); err != nil {
			return fmt.Errorf("invalid kind: %w", err)
		}
		rec.Kind = ProxyKind(kind)
	}
	if raw, ok := fields[fieldLastDeployedAt]; ok {
		if err := json.Unmarshal(raw, &rec.LastDeployedAt); err != nil {
			return fmt.Errorf("invalid lastDeployedAt: %w", err)
		}
	}

	for _, k := range knownFields {
		delete(fields, k)
	}
	if len(fields) > 0 {
		rec.Extra = fields
	}

	*r = rec
	return nil
}

func decodeAddress(field string, raw json.RawMessage) (common.Address, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return common.Address{}, fmt.Errorf("invalid %s: %w", field, err)
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid %s: %q is not a hex address", field, s)
	}
	return common.HexToAddress(s), nil
}

// ProxyRegistry maps contract names to their proxy records.
// At most one record exists per name.
type ProxyRegistry map[string]*ProxyRecord

// Get returns the record for name, or nil
func (r ProxyRegistry) Get(name string) *ProxyRecord {
	return r[name]
}

// Upsert inserts or replaces the record for name. Other entries are not touched.
func (r ProxyRegistry) Upsert(name string, record *ProxyRecord) {
	record.ContractName = name
	r[name] = record
}

// Remove deletes the record for name and reports whether it existed
func (r ProxyRegistry) Remove(name string) bool {
	if _, ok := r[name]; !ok {
		return false
	}
	delete(r, name)
	return true
}

// Names returns the registered contract names in sorted order
func (r ProxyRegistry) Names() []string {
	names := lo.Keys(r)
	slices.Sort(names)
	return names
}

// Records returns the records sorted by contract name
func (r ProxyRegistry) Records() []*ProxyRecord {
	return lo.Map(r.Names(), func(name string, _ int) *ProxyRecord {
		return r[name]
	})
}

// Clone returns a deep copy of the registry
func (r ProxyRegistry) Clone() ProxyRegistry {
	out := make(ProxyRegistry, len(r))
	for name, rec := range maps.All(r) {
		out[name] = rec.Clone()
	}
	return out
}

func (r *ProxyRegistry) UnmarshalJSON(data []byte) error {
	var entries map[string]*ProxyRecord
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	out := make(ProxyRegistry, len(entries))
	for name, rec := range entries {
		if rec == nil {
			return fmt.Errorf("entry %q: record is null", name)
		}
		rec.ContractName = name
		out[name] = rec
	}
	*r = out
	return nil
}
