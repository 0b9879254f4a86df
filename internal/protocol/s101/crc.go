package s101

const (
	crcInitial uint16 = 0xFFFF
	crcGood    uint16 = 0xF0B8
	crcPoly    uint16 = 0x8408
)

var crcTable = buildCRCTable()

// CRC-16/CCITT in reflected form; the receiver-side residue over payload+crc is crcGood.
func buildCRCTable() [256]uint16 {
	var table [256]uint16
	for i := range table {
		crc := uint16(i)
		for bit := 0; bit < 8; bit++ {
			if crc&1 != 0 {
				crc = (crc >> 1) ^ crcPoly
			} else {
				crc >>= 1
			}
		}
		table[i] = crc
	}
	return table
}

func crcUpdate(crc uint16, b byte) uint16 {
	return (crc >> 8) ^ crcTable[byte(crc)^b]
}

// CRC returns the running CRC over p starting from the initial value.
func CRC(p []byte) uint16 {
	crc := crcInitial
	for _, b := range p {
		crc = crcUpdate(crc, b)
	}
	return crc
}
