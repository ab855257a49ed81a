package sbf

import (
	"bytes"
	"testing"
)

func TestWriteReadRoundTrip(t *testing.T) {
	payload := []byte{1, 2, 3, 4, 5}
	blob := Write(Header{Version: CurrentVersion}, payload)

	header, got, err := Read(blob)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if header.Version != CurrentVersion {
		t.Fatalf("Read() version = %+v, want %+v", header.Version, CurrentVersion)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("Read() payload = %v, want %v", got, payload)
	}
}

func TestReadRejectsBadMagic(t *testing.T) {
	blob := []byte{0, 0, 0, 0, 1, 0, 9, 9}
	if _, _, err := Read(blob); err == nil {
		t.Fatalf("Read() with bad magic should return an error")
	}
}

func TestReadRejectsShortBlob(t *testing.T) {
	if _, _, err := Read([]byte{1, 2, 3}); err == nil {
		t.Fatalf("Read() with too-short blob should return an error")
	}
}

func TestDriverInfoRoundTrip(t *testing.T) {
	info := DriverInfo{Major: 535, Minor: 129, Patch: 3}
	blob := WriteDriverInfo(info)

	got, err := ReadDriverInfo(blob)
	if err != nil {
		t.Fatalf("ReadDriverInfo() error = %v", err)
	}
	if got != info {
		t.Fatalf("ReadDriverInfo() = %+v, want %+v", got, info)
	}
}

func TestDriverInfoMatches(t *testing.T) {
	a := DriverInfo{Major: 1, Minor: 2, Patch: 3}
	b := DriverInfo{Major: 1, Minor: 2, Patch: 3}
	c := DriverInfo{Major: 1, Minor: 2, Patch: 4}

	if !a.Matches(b) {
		t.Fatalf("identical DriverInfo values should match")
	}
	if a.Matches(c) {
		t.Fatalf("differing patch versions should not match")
	}
}
