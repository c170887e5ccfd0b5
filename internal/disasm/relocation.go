package disasm

import (
	"fmt"
	"io"
	"sort"

	"github.com/retroenv/sidgodisasm/internal/format"
)

// RelocationType marks a byte as the low or high half of a 16 bit pointer.
type RelocationType byte

const (
	RelocationLow RelocationType = iota
	RelocationHigh
)

// RelocationInfo describes a relocatable byte and the address it points to.
type RelocationInfo struct {
	Target uint16
	Type   RelocationType
}

// RelocationTable maps byte addresses to their relocation info. Adding an
// entry for an existing address overwrites it, later discoveries win.
type RelocationTable struct {
	entries map[uint16]RelocationInfo
}

// NewRelocationTable creates an empty relocation table.
func NewRelocationTable() *RelocationTable {
	return &RelocationTable{
		entries: map[uint16]RelocationInfo{},
	}
}

// Add registers a relocation byte, overwriting any existing entry.
func (t *RelocationTable) Add(address uint16, info RelocationInfo) {
	t.entries[address] = info
}

// Get returns the relocation info of an address.
func (t *RelocationTable) Get(address uint16) (RelocationInfo, bool) {
	info, ok := t.entries[address]
	return info, ok
}

// Has returns whether an address has a relocation entry.
func (t *RelocationTable) Has(address uint16) bool {
	_, ok := t.entries[address]
	return ok
}

// Len returns the number of relocation entries.
func (t *RelocationTable) Len() int {
	return len(t.entries)
}

// SortedAddresses returns all entry addresses in ascending order.
func (t *RelocationTable) SortedAddresses() []uint16 {
	addresses := make([]uint16, 0, len(t.entries))
	for addr := range t.entries {
		addresses = append(addresses, addr)
	}
	sort.Slice(addresses, func(i, j int) bool { return addresses[i] < addresses[j] })
	return addresses
}

// FormatterView converts the table into the representation the data byte
// formatter consumes.
func (t *RelocationTable) FormatterView() map[uint16]format.RelocationByte {
	view := make(map[uint16]format.RelocationByte, len(t.entries))
	for addr, info := range t.entries {
		view[addr] = format.RelocationByte{
			Target: info.Target,
			High:   info.Type == RelocationHigh,
		}
	}
	return view
}

// Dump writes all entries in address order, used for debugging output.
func (t *RelocationTable) Dump(w io.Writer) error {
	for _, addr := range t.SortedAddresses() {
		info := t.entries[addr]
		half := "lo"
		if info.Type == RelocationHigh {
			half = "hi"
		}
		if _, err := fmt.Fprintf(w, "$%04X %s -> $%04X\n", addr, half, info.Target); err != nil {
			return err
		}
	}
	return nil
}
