// Package sbf implements the ".SBF"-tagged binary blob format used to
// persist the Vulkan pipeline cache and its driver-version sidecar.
// Grounded on original_source/src/core/serialization/public/
// core.serialization/sbf_header.hpp (the magic tag and version pair) and
// buffer.hpp's write-sequential/no-seek access pattern, expressed over
// encoding/binary instead of the original's placement-new Buffer type.
package sbf

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// headerTag is the little-endian encoding of the original's SBF_HEADER_TAG
// ('FBS.', chosen so the four bytes read back as ".SBF" on a little-endian
// host).
const headerTag uint32 = 0x4642532e

// Version is the {major, minor} pair written after the magic tag.
type Version struct {
	Major int8
	Minor int8
}

// CurrentVersion is the format version this package writes.
var CurrentVersion = Version{Major: 1, Minor: 0}

// Header is the fixed-size preamble of every SBF blob: magic tag plus
// version.
type Header struct {
	Version Version
}

// Write serializes header followed by payload into a single []byte.
func Write(header Header, payload []byte) []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, headerTag)
	binary.Write(buf, binary.LittleEndian, header.Version.Major)
	binary.Write(buf, binary.LittleEndian, header.Version.Minor)
	buf.Write(payload)
	return buf.Bytes()
}

// Read parses an SBF blob, validating the magic tag, and returns the header
// and the payload bytes following it. Returns an error if data is too short
// or the magic tag does not match.
func Read(data []byte) (Header, []byte, error) {
	if len(data) < 6 {
		return Header{}, nil, fmt.Errorf("sbf: blob too short (%d bytes) to contain a header", len(data))
	}
	tag := binary.LittleEndian.Uint32(data[0:4])
	if tag != headerTag {
		return Header{}, nil, fmt.Errorf("sbf: bad magic tag %#x, want %#x", tag, headerTag)
	}
	header := Header{Version: Version{
		Major: int8(data[4]),
		Minor: int8(data[5]),
	}}
	return header, data[6:], nil
}

// DriverInfo is the .cacheinfo sidecar payload: the driver version triple a
// pipeline cache blob was produced against. A mismatch on load means the
// cache must be discarded rather than fed to vkCreatePipelineCache, since a
// driver update can silently invalidate cache contents.
type DriverInfo struct {
	Major uint32
	Minor uint32
	Patch uint32
}

// WriteDriverInfo serializes a DriverInfo sidecar as a full SBF blob.
func WriteDriverInfo(info DriverInfo) []byte {
	payload := new(bytes.Buffer)
	binary.Write(payload, binary.LittleEndian, info.Major)
	binary.Write(payload, binary.LittleEndian, info.Minor)
	binary.Write(payload, binary.LittleEndian, info.Patch)
	return Write(Header{Version: CurrentVersion}, payload.Bytes())
}

// ReadDriverInfo parses a .cacheinfo sidecar written by WriteDriverInfo.
func ReadDriverInfo(data []byte) (DriverInfo, error) {
	_, payload, err := Read(data)
	if err != nil {
		return DriverInfo{}, err
	}
	if len(payload) < 12 {
		return DriverInfo{}, fmt.Errorf("sbf: driver info payload too short (%d bytes)", len(payload))
	}
	return DriverInfo{
		Major: binary.LittleEndian.Uint32(payload[0:4]),
		Minor: binary.LittleEndian.Uint32(payload[4:8]),
		Patch: binary.LittleEndian.Uint32(payload[8:12]),
	}, nil
}

// Matches reports whether two DriverInfo values are identical, i.e. whether
// a cache produced under want remains valid to load on a device reporting
// got.
func (want DriverInfo) Matches(got DriverInfo) bool {
	return want == got
}
