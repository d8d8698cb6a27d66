package kvwire

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// GetRequest looks up a single key
type GetRequest struct {
	Key string
}

// MarshalBinary encodes the message
func (m *GetRequest) MarshalBinary() ([]byte, error) {
	return appendString(nil, 1, m.Key), nil
}

// UnmarshalBinary decodes the message
func (m *GetRequest) UnmarshalBinary(buf []byte) error {
	*m = GetRequest{}
	return decode(buf, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		var (
			n   = -1
			err error
		)
		if num == 1 {
			m.Key, n, err = consumeString(typ, b)
		}
		return n, err
	})
}

// GetResponse is the value for a key
type GetResponse struct {
	Value string
}

// MarshalBinary encodes the message
func (m *GetResponse) MarshalBinary() ([]byte, error) {
	return appendString(nil, 1, m.Value), nil
}

// UnmarshalBinary decodes the message
func (m *GetResponse) UnmarshalBinary(buf []byte) error {
	*m = GetResponse{}
	return decode(buf, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		var (
			n   = -1
			err error
		)
		if num == 1 {
			m.Value, n, err = consumeString(typ, b)
		}
		return n, err
	})
}

// PutRequest writes a single key
type PutRequest struct {
	Key   string
	Value string
}

// MarshalBinary encodes the message
func (m *PutRequest) MarshalBinary() ([]byte, error) {
	b := appendString(nil, 1, m.Key)
	return appendString(b, 2, m.Value), nil
}

// UnmarshalBinary decodes the message
func (m *PutRequest) UnmarshalBinary(buf []byte) error {
	*m = PutRequest{}
	return decode(buf, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		var (
			n   = -1
			err error
		)
		switch num {
		case 1:
			m.Key, n, err = consumeString(typ, b)
		case 2:
			m.Value, n, err = consumeString(typ, b)
		}
		return n, err
	})
}

// Empty is used for requests and responses without any fields
type Empty struct {
}

// MarshalBinary encodes the message
func (m *Empty) MarshalBinary() ([]byte, error) {
	return []byte{}, nil
}

// UnmarshalBinary decodes the message. All fields are ignored.
func (m *Empty) UnmarshalBinary(buf []byte) error {
	return decode(buf, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		return -1, nil
	})
}

// Entry is a single key/value pair in a partition
type Entry struct {
	Key   string
	Value string
}

// TransferRequest carries a partition from its previous owner to the new
// owner.
type TransferRequest struct {
	Partition int
	Sender    string
	Epoch     uint64
	Entries   []Entry
}

// MarshalBinary encodes the message
func (m *TransferRequest) MarshalBinary() ([]byte, error) {
	b := protowire.AppendTag(nil, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.Partition))
	b = appendString(b, 2, m.Sender)
	b = appendVarint(b, 3, m.Epoch)
	for _, e := range m.Entries {
		entry := appendString(nil, 1, e.Key)
		entry = appendString(entry, 2, e.Value)
		b = appendBytes(b, 4, entry)
	}
	return b, nil
}

// UnmarshalBinary decodes the message
func (m *TransferRequest) UnmarshalBinary(buf []byte) error {
	*m = TransferRequest{}
	return decode(buf, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		var (
			n   = -1
			err error
			v   uint64
		)
		switch num {
		case 1:
			v, n, err = consumeVarint(typ, b)
			m.Partition = int(v)
		case 2:
			m.Sender, n, err = consumeString(typ, b)
		case 3:
			m.Epoch, n, err = consumeVarint(typ, b)
		case 4:
			var entry []byte
			entry, n, err = consumeBytes(typ, b)
			if err != nil {
				return n, err
			}
			e := Entry{}
			err = decode(entry, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
				var (
					n   = -1
					err error
				)
				switch num {
				case 1:
					e.Key, n, err = consumeString(typ, b)
				case 2:
					e.Value, n, err = consumeString(typ, b)
				}
				return n, err
			})
			m.Entries = append(m.Entries, e)
		}
		return n, err
	})
}

// PartitionInfo is the status of a single local partition
type PartitionInfo struct {
	ID   int
	Keys int
}

// StatusResponse is the status of a node
type StatusResponse struct {
	NodeID         string
	Endpoint       string
	Epoch          uint64
	PartitionCount int
	Nodes          []string
	Partitions     []PartitionInfo
	Pending        []int
}

// MarshalBinary encodes the message
func (m *StatusResponse) MarshalBinary() ([]byte, error) {
	b := appendString(nil, 1, m.NodeID)
	b = appendString(b, 2, m.Endpoint)
	b = appendVarint(b, 3, m.Epoch)
	b = appendVarint(b, 4, uint64(m.PartitionCount))
	for _, n := range m.Nodes {
		b = protowire.AppendTag(b, 5, protowire.BytesType)
		b = protowire.AppendString(b, n)
	}
	for _, p := range m.Partitions {
		info := protowire.AppendTag(nil, 1, protowire.VarintType)
		info = protowire.AppendVarint(info, uint64(p.ID))
		info = appendVarint(info, 2, uint64(p.Keys))
		b = appendBytes(b, 6, info)
	}
	b = appendInts(b, 7, m.Pending)
	return b, nil
}

// UnmarshalBinary decodes the message
func (m *StatusResponse) UnmarshalBinary(buf []byte) error {
	*m = StatusResponse{}
	return decode(buf, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		var (
			n   = -1
			err error
			v   uint64
			s   string
		)
		switch num {
		case 1:
			m.NodeID, n, err = consumeString(typ, b)
		case 2:
			m.Endpoint, n, err = consumeString(typ, b)
		case 3:
			m.Epoch, n, err = consumeVarint(typ, b)
		case 4:
			v, n, err = consumeVarint(typ, b)
			m.PartitionCount = int(v)
		case 5:
			s, n, err = consumeString(typ, b)
			m.Nodes = append(m.Nodes, s)
		case 6:
			var info []byte
			info, n, err = consumeBytes(typ, b)
			if err != nil {
				return n, err
			}
			p := PartitionInfo{}
			err = decode(info, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
				var (
					n   = -1
					err error
					v   uint64
				)
				switch num {
				case 1:
					v, n, err = consumeVarint(typ, b)
					p.ID = int(v)
				case 2:
					v, n, err = consumeVarint(typ, b)
					p.Keys = int(v)
				}
				return n, err
			})
			m.Partitions = append(m.Partitions, p)
		case 7:
			m.Pending, n, err = consumeInts(m.Pending, typ, b)
		}
		return n, err
	})
}

// RebalanceResponse is the result of a rebalance pass
type RebalanceResponse struct {
	Epoch       uint64
	Created     []int
	Retained    int
	Detached    []int
	Transferred []int
	Restored    []int
	Abandoned   []int
	Failures    []string
	DurationMs  int64
}

// MarshalBinary encodes the message
func (m *RebalanceResponse) MarshalBinary() ([]byte, error) {
	b := appendVarint(nil, 1, m.Epoch)
	b = appendInts(b, 2, m.Created)
	b = appendVarint(b, 3, uint64(m.Retained))
	b = appendInts(b, 4, m.Detached)
	b = appendInts(b, 5, m.Transferred)
	b = appendInts(b, 6, m.Restored)
	b = appendInts(b, 7, m.Abandoned)
	for _, f := range m.Failures {
		b = protowire.AppendTag(b, 8, protowire.BytesType)
		b = protowire.AppendString(b, f)
	}
	b = appendVarint(b, 9, uint64(m.DurationMs))
	return b, nil
}

// UnmarshalBinary decodes the message
func (m *RebalanceResponse) UnmarshalBinary(buf []byte) error {
	*m = RebalanceResponse{}
	return decode(buf, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		var (
			n   = -1
			err error
			v   uint64
			s   string
		)
		switch num {
		case 1:
			m.Epoch, n, err = consumeVarint(typ, b)
		case 2:
			m.Created, n, err = consumeInts(m.Created, typ, b)
		case 3:
			v, n, err = consumeVarint(typ, b)
			m.Retained = int(v)
		case 4:
			m.Detached, n, err = consumeInts(m.Detached, typ, b)
		case 5:
			m.Transferred, n, err = consumeInts(m.Transferred, typ, b)
		case 6:
			m.Restored, n, err = consumeInts(m.Restored, typ, b)
		case 7:
			m.Abandoned, n, err = consumeInts(m.Abandoned, typ, b)
		case 8:
			s, n, err = consumeString(typ, b)
			m.Failures = append(m.Failures, s)
		case 9:
			v, n, err = consumeVarint(typ, b)
			m.DurationMs = int64(v)
		}
		return n, err
	})
}
