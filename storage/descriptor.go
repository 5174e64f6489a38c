package storage

import (
	"fmt"

	"github.com/estuary/sqlflow/field"
	"github.com/gogo/protobuf/proto"
)

// ColumnDescriptor describes one column of a table, the Go side of
// `describe_table`'s per-column entries (grounded on
// `executor/dto/describe_table_utils.cpp`'s column conversion, scoped to
// the fields that matter for this core: name, kind, and nullability).
type ColumnDescriptor struct {
	Name         string     `protobuf:"bytes,1,opt,name=name,proto3" json:"name,omitempty"`
	Kind         int32      `protobuf:"varint,2,opt,name=kind,proto3" json:"kind,omitempty"`
	Nullable     bool       `protobuf:"varint,3,opt,name=nullable,proto3" json:"nullable,omitempty"`
	VaryingLength bool      `protobuf:"varint,4,opt,name=varying_length,json=varyingLength,proto3" json:"varying_length,omitempty"`
}

func (c *ColumnDescriptor) Reset()         { *c = ColumnDescriptor{} }
func (c *ColumnDescriptor) String() string { return proto.CompactTextString(c) }
func (*ColumnDescriptor) ProtoMessage()    {}

// FieldKind returns the column's type as a field.Kind.
func (c *ColumnDescriptor) FieldKind() field.Kind { return field.Kind(c.Kind) }

// TableDescriptor is the Go side of `describe_table`: a table's
// identity, its columns, and its primary key column names, round-tripped
// through gogo/protobuf the way the original converts to/from its
// generated `DescribeTable::Success` message (grounded on
// `executor/dto/describe_table_utils.{h,cpp}`).
type TableDescriptor struct {
	DatabaseName string              `protobuf:"bytes,1,opt,name=database_name,json=databaseName,proto3" json:"database_name,omitempty"`
	SchemaName   string              `protobuf:"bytes,2,opt,name=schema_name,json=schemaName,proto3" json:"schema_name,omitempty"`
	TableName    string              `protobuf:"bytes,3,opt,name=table_name,json=tableName,proto3" json:"table_name,omitempty"`
	Columns      []*ColumnDescriptor `protobuf:"bytes,4,rep,name=columns,proto3" json:"columns,omitempty"`
	PrimaryKey   []string            `protobuf:"bytes,5,rep,name=primary_key,json=primaryKey,proto3" json:"primary_key,omitempty"`
	Description  string              `protobuf:"bytes,6,opt,name=description,proto3" json:"description,omitempty"`
}

func (t *TableDescriptor) Reset()         { *t = TableDescriptor{} }
func (t *TableDescriptor) String() string { return proto.CompactTextString(t) }
func (*TableDescriptor) ProtoMessage()    {}

// Marshal encodes t as protobuf bytes, for storage in the catalog
// keyspace.
func (t *TableDescriptor) Marshal() ([]byte, error) {
	return proto.Marshal(t)
}

// UnmarshalTableDescriptor decodes bytes previously produced by Marshal.
func UnmarshalTableDescriptor(data []byte) (*TableDescriptor, error) {
	var t = new(TableDescriptor)
	if err := proto.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("unmarshaling table descriptor: %w", err)
	}
	return t, nil
}

// ColumnByName finds a column by name, or nil if t has none by that name.
func (t *TableDescriptor) ColumnByName(name string) *ColumnDescriptor {
	for _, c := range t.Columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}
