package alac

import (
	"github.com/alicebob/alacenc/internal/bitstream"
)

// Element tags.
const (
	elemSCE = 0 // single channel element
	elemCPE = 1 // channel pair element
	elemEND = 7 // end of frameset
)

const maxChannels = 8

// channelLayout lists, per channel count, the groups of input channels
// (WAVE order) that become frameset elements, in bitstream order.
var channelLayout = [maxChannels + 1][][]int{
	1: {{0}},
	2: {{0, 1}},
	3: {{2}, {0, 1}},
	4: {{2}, {0, 1}, {3}},
	5: {{2}, {0, 1}, {3, 4}},
	6: {{2}, {0, 1}, {4, 5}, {3}},
	7: {{2}, {0, 1}, {4, 5}, {6}, {3}},
	8: {{2}, {6, 7}, {0, 1}, {4, 5}, {3}},
}

// writeFrameset writes one element per channel group, the end tag and the
// byte alignment padding.
func (e *Encoder) writeFrameset(out *bitstream.Recorder, pcmFrames int, channels [][]int32) {
	for _, group := range channelLayout[len(channels)] {
		tag := uint32(elemSCE)
		if len(group) == 2 {
			tag = elemCPE
		}
		out.WriteBits(3, tag)

		e.group = e.group[:0]
		for _, c := range group {
			e.group = append(e.group, channels[c])
		}
		e.writeFrame(out, pcmFrames, e.group)
	}
	out.WriteBits(3, elemEND)
	out.ByteAlign()
}
