package sid

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const (
	headerSizeV1 = 0x76
	headerSizeV2 = 0x7c

	// flag bits of the header flags field
	clockPAL  = 1 << 2
	clockNTSC = 1 << 3
)

// Header contains the decoded PSID/RSID file header.
// All multi byte fields are stored big-endian in the file.
type Header struct {
	MagicID     string // "PSID" or "RSID"
	Version     uint16 // 1-4
	DataOffset  uint16 // offset to the binary data
	LoadAddress uint16 // load address, 0 for an embedded load address
	InitAddress uint16 // init routine address
	PlayAddress uint16 // play routine address
	Songs       uint16 // number of songs
	StartSong   uint16 // default song
	Speed       uint32 // speed flags

	Name      string // song name
	Author    string // author name
	Copyright string // copyright info

	Flags            uint16 // PSID v2+ flags
	StartPage        byte   // start page (PSID v2)
	PageLength       byte   // page length (PSID v2)
	SecondSIDAddress byte   // second SID address (PSID v3)
	ThirdSIDAddress  byte   // third SID address (PSID v4)
}

// parseHeader decodes the SID file header from the file buffer.
func parseHeader(buffer []byte) (Header, error) {
	if len(buffer) < headerSizeV1 {
		return Header{}, fmt.Errorf("file too small for a SID header: %d bytes", len(buffer))
	}

	magic := string(buffer[0:4])
	if magic != "PSID" && magic != "RSID" {
		return Header{}, fmt.Errorf("invalid SID file magic '%s'", magic)
	}

	header := Header{
		MagicID:     magic,
		Version:     binary.BigEndian.Uint16(buffer[4:]),
		DataOffset:  binary.BigEndian.Uint16(buffer[6:]),
		LoadAddress: binary.BigEndian.Uint16(buffer[8:]),
		InitAddress: binary.BigEndian.Uint16(buffer[10:]),
		PlayAddress: binary.BigEndian.Uint16(buffer[12:]),
		Songs:       binary.BigEndian.Uint16(buffer[14:]),
		StartSong:   binary.BigEndian.Uint16(buffer[16:]),
		Speed:       binary.BigEndian.Uint32(buffer[18:]),
		Name:        fixedString(buffer[22:54]),
		Author:      fixedString(buffer[54:86]),
		Copyright:   fixedString(buffer[86:118]),
	}

	if header.Version >= 2 {
		if len(buffer) < headerSizeV2 {
			return Header{}, fmt.Errorf("file too small for a SID v%d header: %d bytes", header.Version, len(buffer))
		}
		header.Flags = binary.BigEndian.Uint16(buffer[118:])
		header.StartPage = buffer[120]
		header.PageLength = buffer[121]
		header.SecondSIDAddress = buffer[122]
		header.ThirdSIDAddress = buffer[123]
	}

	return header, nil
}

// IsPAL returns whether the tune is meant for a PAL machine.
// Version 1 files carry no clock flags, PAL is assumed.
func (h Header) IsPAL() bool {
	if h.Version < 2 {
		return true
	}
	if h.Flags&clockNTSC != 0 && h.Flags&clockPAL == 0 {
		return false
	}
	return true
}

func fixedString(data []byte) string {
	if idx := bytes.IndexByte(data, 0); idx >= 0 {
		data = data[:idx]
	}
	return string(data)
}
