package main

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
)

// wavHeaderSize is the canonical PCM WAV header length.
const wavHeaderSize = 44

var (
	errNotWAV      = errors.New("not a RIFF/WAVE file")
	errNotPCM      = errors.New("only PCM WAV files are supported")
	errShortHeader = errors.New("file shorter than a WAV header")
)

type wavInfo struct {
	Format        uint16
	Channels      uint16
	SampleRate    uint32
	BitsPerSample uint16
}

// inspectWAV validates the header at the start of r without consuming it;
// the session's feeder skips it.
func inspectWAV(r *bufio.Reader) (wavInfo, error) {
	header, err := r.Peek(wavHeaderSize)
	if err != nil {
		if len(header) < wavHeaderSize {
			return wavInfo{}, fmt.Errorf("%w: %d bytes", errShortHeader, len(header))
		}
		return wavInfo{}, fmt.Errorf("read WAV header: %w", err)
	}

	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return wavInfo{}, errNotWAV
	}

	info := wavInfo{
		Format:        binary.LittleEndian.Uint16(header[20:22]),
		Channels:      binary.LittleEndian.Uint16(header[22:24]),
		SampleRate:    binary.LittleEndian.Uint32(header[24:28]),
		BitsPerSample: binary.LittleEndian.Uint16(header[34:36]),
	}
	if info.Format != 1 {
		return info, errNotPCM
	}
	return info, nil
}
