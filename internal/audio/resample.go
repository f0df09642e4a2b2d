package audio

// StereoToMono downmixes interleaved multi-channel samples to mono by
// averaging each group of `channels` consecutive samples.
// A trailing partial group (fewer than `channels` samples) is dropped.
func StereoToMono(samples []float32, channels int) []float32 {
	if channels <= 1 {
		return samples
	}

	mono := make([]float32, len(samples)/channels)
	for i := 0; i < len(mono); i++ {
		var sum float32
		for ch := 0; ch < channels; ch++ {
			sum += samples[i*channels+ch]
		}
		mono[i] = sum / float32(channels)
	}
	return mono
}

// Resample converts samples from sourceRate to targetRate using linear
// interpolation. Equal rates return the input unchanged to avoid any
// precision loss. No low-pass filtering is applied, so aliasing on
// downsampling is an accepted trade-off.
func Resample(samples []float32, sourceRate, targetRate int) []float32 {
	if sourceRate == targetRate {
		return samples
	}

	ratio := float64(sourceRate) / float64(targetRate)
	outputLen := int(float64(len(samples)) / ratio)
	output := make([]float32, 0, outputLen)

	for i := 0; i < outputLen; i++ {
		srcIdx := float64(i) * ratio
		idxFloor := int(srcIdx)
		idxCeil := idxFloor + 1
		if idxCeil > len(samples)-1 {
			idxCeil = len(samples) - 1
		}
		frac := float32(srcIdx - float64(idxFloor))

		sample := samples[idxFloor]*(1-frac) + samples[idxCeil]*frac
		output = append(output, sample)
	}

	return output
}
