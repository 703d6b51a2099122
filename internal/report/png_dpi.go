package report

import (
	"encoding/binary"
	"hash/crc32"
	"math"
)

const (
	pngSignatureLen = 8
	pngIHDRChunkLen = 4 + 4 + 13 + 4 // length, type, data, crc
	metersPerInch   = 0.0254
)

// withPHYs inserts a pHYs chunk right after IHDR so viewers and print tools
// see the resolution the chart was rendered at.
func withPHYs(encoded []byte, dpi int) []byte {
	at := pngSignatureLen + pngIHDRChunkLen
	if dpi <= 0 || len(encoded) < at || string(encoded[pngSignatureLen+4:pngSignatureLen+8]) != "IHDR" {
		return encoded
	}
	ppm := uint32(math.Round(float64(dpi) / metersPerInch))

	chunk := make([]byte, 4+4+9+4)
	binary.BigEndian.PutUint32(chunk[0:4], 9)
	copy(chunk[4:8], "pHYs")
	binary.BigEndian.PutUint32(chunk[8:12], ppm)
	binary.BigEndian.PutUint32(chunk[12:16], ppm)
	chunk[16] = 1 // unit: meter
	binary.BigEndian.PutUint32(chunk[17:21], crc32.ChecksumIEEE(chunk[4:17]))

	out := make([]byte, 0, len(encoded)+len(chunk))
	out = append(out, encoded[:at]...)
	out = append(out, chunk...)
	return append(out, encoded[at:]...)
}
