// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package snoop

import "strings"

// Packet sentinels printed by the decoder around every EIT section.
const (
	PacketStart = "SECT-Packet"
	PacketEnd   = "CRC"
)

// Assembler delimits packets in a line stream. It alternates between
// seeking a start sentinel and collecting lines up to the end sentinel.
type Assembler struct {
	src LineSource
}

// NewAssembler wraps a line source.
func NewAssembler(src LineSource) *Assembler {
	return &Assembler{src: src}
}

// NextPacket returns the next packet with both sentinels included and all
// lines trimmed. It blocks until the end sentinel has been read. If the
// stream ends first, the partial packet (possibly empty) is returned together
// with the read error.
func (a *Assembler) NextPacket() ([]string, error) {
	var line string
	var err error
	for {
		line, err = a.src.ReadLine()
		if err != nil {
			return nil, err
		}
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, PacketStart) {
			break
		}
	}

	pkt := []string{line}
	for {
		line, err = a.src.ReadLine()
		if err != nil {
			return pkt, err
		}
		line = strings.TrimSpace(line)
		pkt = append(pkt, line)
		if strings.HasPrefix(line, PacketEnd) {
			return pkt, nil
		}
	}
}
