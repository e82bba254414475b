package cli

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	markerSOI  = 0xD8
	markerSOS  = 0xDA
	markerAPP1 = 0xE1

	tagOrientation = 0x0112
	typeShort      = 3
)

var errNoOrientation = errors.New("no exif orientation")

// exifTIFFStart scans the JPEG markers up to the first scan and returns the
// offset of the TIFF header inside the APP1 Exif segment.
func exifTIFFStart(data []byte) (int, error) {
	if len(data) < 4 || data[0] != 0xFF || data[1] != markerSOI {
		return -1, fmt.Errorf("not a jpeg stream")
	}
	i := 2
	for i+4 <= len(data) {
		if data[i] != 0xFF {
			i++
			continue
		}
		marker := data[i+1]
		if marker == markerSOS {
			break
		}
		segLen := int(data[i+2])<<8 | int(data[i+3])
		if marker == markerAPP1 && segLen >= 8 && i+10 <= len(data) &&
			string(data[i+4:i+10]) == "Exif\x00\x00" {
			return i + 10, nil
		}
		if segLen < 2 {
			i += 2
		} else {
			i += 2 + segLen
		}
	}
	return -1, errNoOrientation
}

// exifOrientation returns the orientation tag (1 to 8) of a JPEG stream.
// Only IFD0 is consulted, which is where cameras write it.
func exifOrientation(data []byte) (int, error) {
	start, err := exifTIFFStart(data)
	if err != nil {
		return 0, err
	}
	if start+8 > len(data) {
		return 0, fmt.Errorf("tiff header truncated")
	}
	var order binary.ByteOrder
	switch string(data[start : start+2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return 0, fmt.Errorf("unknown tiff byte order")
	}
	if order.Uint16(data[start+2:start+4]) != 0x002A {
		return 0, fmt.Errorf("invalid tiff magic")
	}

	ifd := start + int(order.Uint32(data[start+4:start+8]))
	if ifd+2 > len(data) || ifd <= start {
		return 0, fmt.Errorf("ifd0 out of range")
	}
	n := int(order.Uint16(data[ifd : ifd+2]))
	for e := 0; e < n; e++ {
		ent := ifd + 2 + e*12
		if ent+12 > len(data) {
			break
		}
		if order.Uint16(data[ent:ent+2]) != tagOrientation {
			continue
		}
		if order.Uint16(data[ent+2:ent+4]) != typeShort || order.Uint32(data[ent+4:ent+8]) < 1 {
			return 0, fmt.Errorf("malformed orientation entry")
		}
		v := int(order.Uint16(data[ent+8 : ent+10]))
		if v < 1 || v > 8 {
			return 0, fmt.Errorf("orientation %d out of range", v)
		}
		return v, nil
	}
	return 0, errNoOrientation
}
