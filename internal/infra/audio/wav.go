package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

type wavInfo struct {
	sampleRate int
	channels   int
	data       []byte
}

// parseWAV walks the RIFF chunks of a 16-bit PCM WAV file.
func parseWAV(b []byte) (*wavInfo, error) {
	if len(b) < 12 || !bytes.Equal(b[0:4], []byte("RIFF")) || !bytes.Equal(b[8:12], []byte("WAVE")) {
		return nil, errors.New("not a RIFF/WAVE file")
	}

	var info wavInfo
	var haveFmt bool
	for off := 12; off+8 <= len(b); {
		id := string(b[off : off+4])
		size := int(binary.LittleEndian.Uint32(b[off+4 : off+8]))
		body := b[off+8:]
		if size > len(body) {
			size = len(body)
		}
		body = body[:size]

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, errors.New("short fmt chunk")
			}
			if format := binary.LittleEndian.Uint16(body[0:2]); format != 1 {
				return nil, fmt.Errorf("unsupported wav format %d", format)
			}
			info.channels = int(binary.LittleEndian.Uint16(body[2:4]))
			info.sampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			if bits := binary.LittleEndian.Uint16(body[14:16]); bits != 16 {
				return nil, fmt.Errorf("unsupported wav bit depth %d", bits)
			}
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, errors.New("wav data before fmt chunk")
			}
			info.data = body
			return &info, nil
		}

		off += 8 + size + size%2
	}
	return nil, errors.New("wav file has no data chunk")
}
