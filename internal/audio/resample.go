package audio

// Upsample2x doubles the sample rate of mono PCM by linear interpolation
// between neighbours. The last input sample is repeated because it has no
// forward neighbour.
func Upsample2x(in []int16) []int16 {
	if len(in) == 0 {
		return []int16{}
	}
	out := make([]int16, len(in)*2)
	for i := 0; i < len(in)-1; i++ {
		a, b := int32(in[i]), int32(in[i+1])
		out[2*i] = in[i]
		out[2*i+1] = int16((a + b) >> 1)
	}
	last := in[len(in)-1]
	out[len(out)-2] = last
	out[len(out)-1] = last
	return out
}
